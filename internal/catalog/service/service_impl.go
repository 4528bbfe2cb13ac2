package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/shelterbill/internal/catalog/domain"
	"github.com/smallbiznis/shelterbill/internal/clock"
	"github.com/smallbiznis/shelterbill/internal/lock"
	"github.com/smallbiznis/shelterbill/internal/observability/metrics"
	"github.com/smallbiznis/shelterbill/pkg/dates"
	"github.com/smallbiznis/shelterbill/pkg/db"
	"github.com/smallbiznis/shelterbill/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    catalogdomain.Repository
	Locker  lock.Locker
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    catalogdomain.Repository
	locker  lock.Locker
	metrics *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("catalog.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		locker:  p.Locker,
		metrics: p.Metrics,
	}
}

var (
	_ catalogdomain.Service  = (*Service)(nil)
	_ catalogdomain.Resolver = (*Service)(nil)
)

func (s *Service) AddVersion(ctx context.Context, req catalogdomain.AddVersionRequest) (*catalogdomain.VersionResponse, error) {
	name := strings.TrimSpace(req.ActionName)
	code, err := catalogdomain.ActionCode(name)
	if err != nil {
		return nil, err
	}

	currency, err := money.NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, catalogdomain.ErrInvalidCurrency
	}

	validFrom, err := dates.Parse(req.ValidFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: valid_from", catalogdomain.ErrInvalidDate)
	}
	var validTo *time.Time
	if req.ValidTo != nil {
		validTo, err = dates.ParseOptional(*req.ValidTo)
		if err != nil {
			return nil, fmt.Errorf("%w: valid_to", catalogdomain.ErrInvalidDate)
		}
	}
	if validTo != nil && validTo.Before(validFrom) {
		return nil, &catalogdomain.InvalidRangeError{From: validFrom, To: *validTo}
	}

	costPrice, err := toMinor(currency, "cost_price", req.CostPrice)
	if err != nil {
		return nil, err
	}
	sellingPrice, err := toMinor(currency, "selling_price", req.SellingPrice)
	if err != nil {
		return nil, err
	}
	procedureFee, err := toMinor(currency, "procedure_fee", req.ProcedureFee)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lockKey(code))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var entity *catalogdomain.ActionVersion
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		if err := s.repo.EnsureAction(ctx, tx, &catalogdomain.BillableAction{
			ID:        s.genID.Generate(),
			Code:      code,
			Name:      name,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		action, err := s.repo.LockActionByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if action == nil {
			return catalogdomain.ErrNotFound
		}

		versions, err := s.repo.ListVersions(ctx, tx, code)
		if err != nil {
			return err
		}
		if conflict := catalogdomain.FindOverlap(versions, validFrom, validTo); conflict != nil {
			return &catalogdomain.OverlapError{
				ActionCode: code,
				ValidFrom:  validFrom,
				ValidTo:    validTo,
				Conflict:   conflict,
			}
		}

		entity = &catalogdomain.ActionVersion{
			ID:           s.genID.Generate(),
			ActionCode:   code,
			ActionName:   action.Name,
			ValidFrom:    validFrom,
			ValidTo:      validTo,
			CostPrice:    costPrice,
			SellingPrice: sellingPrice,
			ProcedureFee: procedureFee,
			Currency:     currency,
			Unit:         strings.TrimSpace(req.Unit),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.InsertVersion(ctx, tx, entity); err != nil {
			if db.IsConstraintConflict(err) {
				s.log.Warn("store rejected overlapping version",
					zap.String("action_code", code),
					zap.Error(err),
				)
				return &catalogdomain.OverlapError{ActionCode: code, ValidFrom: validFrom, ValidTo: validTo}
			}
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.metrics.RecordVersionAdded(ctx, code)
	s.log.Info("action version added",
		zap.String("action_code", code),
		zap.String("version_id", entity.ID.String()),
		zap.String("valid_from", dates.Format(validFrom)),
	)
	return s.toResponse(entity), nil
}

func (s *Service) CloseOpenVersion(ctx context.Context, req catalogdomain.CloseVersionRequest) (*catalogdomain.VersionResponse, error) {
	code, err := catalogdomain.ActionCode(req.ActionName)
	if err != nil {
		return nil, err
	}
	validTo, err := dates.Parse(req.ValidTo)
	if err != nil {
		return nil, fmt.Errorf("%w: valid_to", catalogdomain.ErrInvalidDate)
	}

	unlock, err := s.locker.Lock(ctx, lockKey(code))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var closed *catalogdomain.ActionVersion
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		action, err := s.repo.LockActionByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if action == nil {
			return catalogdomain.ErrNotFound
		}

		versions, err := s.repo.ListVersions(ctx, tx, code)
		if err != nil {
			return err
		}
		open := catalogdomain.OpenVersion(versions)
		if open == nil {
			return catalogdomain.ErrNoOpenVersion
		}
		if validTo.Before(open.ValidFrom) {
			return &catalogdomain.InvalidRangeError{From: open.ValidFrom, To: validTo}
		}
		for i := range versions {
			if versions[i].ID != open.ID && versions[i].ValidFrom.After(open.ValidFrom) {
				return &catalogdomain.InvalidRangeError{From: versions[i].ValidFrom, To: validTo}
			}
		}

		now := s.clock.Now()
		if err := s.repo.CloseVersion(ctx, tx, open.ID, validTo, now); err != nil {
			return err
		}
		open.ValidTo = &validTo
		open.UpdatedAt = now
		closed = open
		return nil
	}); err != nil {
		return nil, err
	}

	s.metrics.RecordVersionClosed(ctx, code)
	s.log.Info("action version closed",
		zap.String("action_code", code),
		zap.String("version_id", closed.ID.String()),
		zap.String("valid_to", dates.Format(validTo)),
	)
	return s.toResponse(closed), nil
}

func (s *Service) Resolve(ctx context.Context, actionName string, onDate time.Time) (*catalogdomain.VersionResponse, error) {
	version, err := s.resolve(ctx, s.db, actionName, onDate, false)
	if err != nil {
		return nil, err
	}
	return s.toResponse(version), nil
}

// ResolveTx returns ErrNotFound when the action is unknown or no version covers onDate.
// The action row stays share-locked until tx ends, so catalog writers, which
// lock it FOR UPDATE, cannot close or remove the resolved version before the
// caller commits.
func (s *Service) ResolveTx(ctx context.Context, tx *gorm.DB, actionName string, onDate time.Time) (*catalogdomain.ActionVersion, error) {
	return s.resolve(ctx, tx, actionName, onDate, true)
}

func (s *Service) resolve(ctx context.Context, tx *gorm.DB, actionName string, onDate time.Time, lockAction bool) (*catalogdomain.ActionVersion, error) {
	code, err := catalogdomain.ActionCode(actionName)
	if err != nil {
		return nil, err
	}

	if lockAction {
		action, err := s.repo.ShareLockActionByCode(ctx, tx, code)
		if err != nil {
			return nil, err
		}
		if action == nil {
			return nil, catalogdomain.ErrNotFound
		}
	}

	versions, err := s.repo.ListVersions(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	catalogdomain.SortVersions(versions)

	version := catalogdomain.ResolveOn(versions, onDate)
	if version == nil {
		return nil, catalogdomain.ErrNotFound
	}
	return version, nil
}

func (s *Service) ListActiveOn(ctx context.Context, onDate time.Time) ([]catalogdomain.VersionResponse, error) {
	items, err := s.repo.ListCoveringOn(ctx, s.db, dates.Of(onDate))
	if err != nil {
		return nil, err
	}

	resp := make([]catalogdomain.VersionResponse, 0, len(items))
	for i := range items {
		resp = append(resp, *s.toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) ListVersions(ctx context.Context, actionName string) ([]catalogdomain.VersionResponse, error) {
	code, err := catalogdomain.ActionCode(actionName)
	if err != nil {
		return nil, err
	}

	action, err := s.repo.FindActionByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, catalogdomain.ErrNotFound
	}

	items, err := s.repo.ListVersions(ctx, s.db, code)
	if err != nil {
		return nil, err
	}

	resp := make([]catalogdomain.VersionResponse, 0, len(items))
	for i := range items {
		resp = append(resp, *s.toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) GetVersion(ctx context.Context, id string) (*catalogdomain.VersionResponse, error) {
	versionID, err := parseID(id)
	if err != nil {
		return nil, catalogdomain.ErrInvalidID
	}

	version, err := s.repo.FindVersionByID(ctx, s.db, versionID)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, catalogdomain.ErrNotFound
	}
	return s.toResponse(version), nil
}

// RemoveVersion deletes a version no service record has been billed from.
func (s *Service) RemoveVersion(ctx context.Context, id string) error {
	versionID, err := parseID(id)
	if err != nil {
		return catalogdomain.ErrInvalidID
	}

	version, err := s.repo.FindVersionByID(ctx, s.db, versionID)
	if err != nil {
		return err
	}
	if version == nil {
		return catalogdomain.ErrNotFound
	}

	unlock, err := s.locker.Lock(ctx, lockKey(version.ActionCode))
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.LockActionByCode(ctx, tx, version.ActionCode); err != nil {
			return err
		}

		current, err := s.repo.FindVersionByID(ctx, tx, versionID)
		if err != nil {
			return err
		}
		if current == nil {
			return catalogdomain.ErrNotFound
		}

		refs, err := s.repo.CountSnapshotReferences(ctx, tx, versionID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return catalogdomain.ErrVersionInUse
		}
		return s.repo.DeleteVersion(ctx, tx, versionID)
	}); err != nil {
		return err
	}

	s.log.Info("action version removed",
		zap.String("action_code", version.ActionCode),
		zap.String("version_id", versionID.String()),
	)
	return nil
}

func (s *Service) toResponse(v *catalogdomain.ActionVersion) *catalogdomain.VersionResponse {
	var validTo *string
	if v.ValidTo != nil {
		formatted := dates.Format(*v.ValidTo)
		validTo = &formatted
	}

	return &catalogdomain.VersionResponse{
		ID:           v.ID.String(),
		ActionCode:   v.ActionCode,
		ActionName:   v.ActionName,
		ValidFrom:    dates.Format(v.ValidFrom),
		ValidTo:      validTo,
		CostPrice:    money.Format(v.Currency, v.CostPrice),
		SellingPrice: money.Format(v.Currency, v.SellingPrice),
		ProcedureFee: money.Format(v.Currency, v.ProcedureFee),
		Currency:     v.Currency,
		Unit:         v.Unit,
		Status:       deriveStatus(v, dates.Of(s.clock.Now())),
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

func deriveStatus(v *catalogdomain.ActionVersion, today time.Time) string {
	if dates.Of(v.ValidFrom).After(today) {
		return "upcoming"
	}
	if v.ValidTo != nil && dates.Of(*v.ValidTo).Before(today) {
		return "expired"
	}
	return "active"
}

func toMinor(currency, field string, amount decimal.Decimal) (int64, error) {
	minor, err := money.ToMinor(currency, amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", catalogdomain.ErrInvalidPrice, field, err)
	}
	return minor, nil
}

func lockKey(code string) string {
	return "catalog:" + code
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
