package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/shelterbill/internal/catalog/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() catalogdomain.Repository {
	return &repo{}
}

func (r *repo) EnsureAction(ctx context.Context, db *gorm.DB, action *catalogdomain.BillableAction) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(action).Error
}

func (r *repo) FindActionByCode(ctx context.Context, db *gorm.DB, code string) (*catalogdomain.BillableAction, error) {
	var action catalogdomain.BillableAction
	err := db.WithContext(ctx).Where("code = ?", code).First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &action, nil
}

func (r *repo) LockActionByCode(ctx context.Context, db *gorm.DB, code string) (*catalogdomain.BillableAction, error) {
	var action catalogdomain.BillableAction
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &action, nil
}

func (r *repo) ShareLockActionByCode(ctx context.Context, db *gorm.DB, code string) (*catalogdomain.BillableAction, error) {
	var action catalogdomain.BillableAction
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("code = ?", code).
		First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &action, nil
}

func (r *repo) InsertVersion(ctx context.Context, db *gorm.DB, version *catalogdomain.ActionVersion) error {
	return db.WithContext(ctx).Create(version).Error
}

func (r *repo) FindVersionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.ActionVersion, error) {
	var version catalogdomain.ActionVersion
	err := db.WithContext(ctx).Where("id = ?", id).First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *repo) ListVersions(ctx context.Context, db *gorm.DB, code string) ([]catalogdomain.ActionVersion, error) {
	var items []catalogdomain.ActionVersion
	err := db.WithContext(ctx).
		Where("action_code = ?", code).
		Order("valid_from ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListCoveringOn(ctx context.Context, db *gorm.DB, day time.Time) ([]catalogdomain.ActionVersion, error) {
	var items []catalogdomain.ActionVersion
	err := db.WithContext(ctx).
		Where("valid_from <= ?", day).
		Where("(valid_to IS NULL OR valid_to >= ?)", day).
		Order("action_code ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CloseVersion(ctx context.Context, db *gorm.DB, id snowflake.ID, validTo time.Time, updatedAt time.Time) error {
	result := db.WithContext(ctx).
		Model(&catalogdomain.ActionVersion{}).
		Where("id = ? AND valid_to IS NULL", id).
		Updates(map[string]any{
			"valid_to":   validTo,
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalogdomain.ErrNoOpenVersion
	}
	return nil
}

func (r *repo) DeleteVersion(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&catalogdomain.ActionVersion{}).Error
}

func (r *repo) CountSnapshotReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM service_records WHERE billing_resolved_version_id = ?`,
		id,
	).Scan(&count).Error
	return count, err
}
