package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	recorddomain "github.com/smallbiznis/shelterbill/internal/record/domain"
	"github.com/smallbiznis/shelterbill/pkg/db/option"
	"github.com/smallbiznis/shelterbill/pkg/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct {
	store repository.Repository[recorddomain.ServiceRecord]
}

func Provide(db *gorm.DB) recorddomain.Repository {
	return &repo{store: repository.ProvideStore[recorddomain.ServiceRecord](db)}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *recorddomain.ServiceRecord) error {
	return r.store.WithTrx(db).Create(ctx, record)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*recorddomain.ServiceRecord, error) {
	return r.store.WithTrx(db).FindOne(ctx, &recorddomain.ServiceRecord{ID: id})
}

// FindByIdempotencyKey also returns soft-deleted records since their keys stay reserved.
func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*recorddomain.ServiceRecord, error) {
	var record recorddomain.ServiceRecord
	err := db.WithContext(ctx).Unscoped().Where("idempotency_key = ?", key).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter recorddomain.ListFilter) ([]*recorddomain.ServiceRecord, error) {
	query := &recorddomain.ServiceRecord{SubjectID: filter.SubjectID}

	opts := []option.QueryOption{option.WithOrder("id ASC")}
	if filter.From != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "service_date", Operator: option.GTE, Value: *filter.From}))
	}
	if filter.To != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "service_date", Operator: option.LTE, Value: *filter.To}))
	}
	if filter.AfterID != 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "id", Operator: option.GT, Value: filter.AfterID}))
	}
	if filter.Limit > 0 {
		opts = append(opts, option.WithLimit(filter.Limit))
	}

	return r.store.WithTrx(db).Find(ctx, query, opts...)
}

// UpdateNonBilling writes only symptoms, notes and metadata. Billing columns are never part of the statement.
func (r *repo) UpdateNonBilling(ctx context.Context, db *gorm.DB, id snowflake.ID, update recorddomain.NonBillingUpdate) error {
	values := map[string]any{"updated_at": update.UpdatedAt}
	if update.Symptoms != nil {
		values["symptoms"] = *update.Symptoms
	}
	if update.Notes != nil {
		values["notes"] = *update.Notes
	}
	if update.Metadata != nil {
		values["metadata"] = datatypes.JSONMap(update.Metadata)
	}

	err := r.store.WithTrx(db).Update(ctx, id.String(), values)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return recorddomain.ErrNotFound
	}
	return err
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	err := r.store.WithTrx(db).Delete(ctx, id.String())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return recorddomain.ErrNotFound
	}
	return err
}
