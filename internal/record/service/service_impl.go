package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/shelterbill/internal/billing/domain"
	catalogdomain "github.com/smallbiznis/shelterbill/internal/catalog/domain"
	"github.com/smallbiznis/shelterbill/internal/clock"
	obslogger "github.com/smallbiznis/shelterbill/internal/observability/logger"
	"github.com/smallbiznis/shelterbill/internal/observability/metrics"
	recorddomain "github.com/smallbiznis/shelterbill/internal/record/domain"
	"github.com/smallbiznis/shelterbill/pkg/dates"
	"github.com/smallbiznis/shelterbill/pkg/db"
	"github.com/smallbiznis/shelterbill/pkg/db/pagination"
	"github.com/smallbiznis/shelterbill/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    recorddomain.Repository
	Billing billingdomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    recorddomain.Repository
	billing billingdomain.Service
	metrics *metrics.Metrics
}

func New(p Params) recorddomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("record.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		billing: p.Billing,
		metrics: p.Metrics,
	}
}

// CreateRecord prices and stores a record in one transaction. A failed price
// lookup leaves nothing behind. Replaying an idempotency key returns the
// record created the first time.
func (s *Service) CreateRecord(ctx context.Context, req recorddomain.CreateRecordRequest) (*recorddomain.Response, error) {
	subjectID := strings.TrimSpace(req.SubjectID)
	if subjectID == "" {
		return nil, recorddomain.ErrInvalidSubject
	}
	serviceDate, err := dates.Parse(req.ServiceDate)
	if err != nil {
		return nil, recorddomain.ErrInvalidServiceDate
	}
	actionName := strings.TrimSpace(req.ActionName)
	actionCode, err := catalogdomain.ActionCode(actionName)
	if err != nil {
		return nil, err
	}
	quantity, err := money.ToQuantity(req.Quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", recorddomain.ErrInvalidQuantity, err)
	}
	key := strings.TrimSpace(req.IdempotencyKey)

	candidate := recorddomain.ServiceRecord{
		SubjectID:   subjectID,
		ServiceDate: serviceDate,
		ActionCode:  actionCode,
		Quantity:    quantity,
	}

	var (
		record *recorddomain.ServiceRecord
		replay bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if key != "" {
			existing, err := s.repo.FindByIdempotencyKey(ctx, tx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				if err := matchesReplay(existing, candidate); err != nil {
					return err
				}
				record, replay = existing, true
				return nil
			}
		}

		snapshot, err := s.billing.ResolveAndSnapshot(ctx, tx, actionName, serviceDate, quantity)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		record = &recorddomain.ServiceRecord{
			ID:          s.genID.Generate(),
			SubjectID:   subjectID,
			ServiceDate: serviceDate,
			ActionCode:  actionCode,
			ActionName:  actionName,
			Quantity:    quantity,
			Symptoms:    strings.TrimSpace(req.Symptoms),
			Notes:       strings.TrimSpace(req.Notes),
			Billing:     *snapshot,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if req.Metadata != nil {
			record.Metadata = datatypes.JSONMap(req.Metadata)
		}
		if key != "" {
			record.IdempotencyKey = &key
		}
		return s.repo.Insert(ctx, tx, record)
	})
	if err != nil {
		if key != "" && db.IsDuplicateKeyErr(err) {
			return s.replayAfterRace(ctx, key, candidate)
		}
		return nil, err
	}

	log := obslogger.WithRecord(s.log, record.ID.String(), actionCode)
	if replay {
		log.Info("service record replayed", zap.String("idempotency_key", key))
		return toResponse(record), nil
	}

	s.metrics.RecordServiceRecord(ctx, actionCode, record.Billing.Currency)
	log.Info("service record created",
		zap.String("service_date", dates.Format(serviceDate)),
		zap.Int64("computed_amount", record.Billing.ComputedAmount),
		zap.String("currency", record.Billing.Currency),
	)
	return toResponse(record), nil
}

// replayAfterRace handles two requests with the same key racing past the lookup.
func (s *Service) replayAfterRace(ctx context.Context, key string, candidate recorddomain.ServiceRecord) (*recorddomain.Response, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, recorddomain.ErrIdempotencyKeyReused
	}
	if err := matchesReplay(existing, candidate); err != nil {
		return nil, err
	}
	return toResponse(existing), nil
}

func matchesReplay(existing *recorddomain.ServiceRecord, candidate recorddomain.ServiceRecord) error {
	if existing.DeletedAt.Valid {
		return recorddomain.ErrIdempotencyKeyReused
	}
	if existing.SubjectID != candidate.SubjectID ||
		existing.ActionCode != candidate.ActionCode ||
		!dates.Of(existing.ServiceDate).Equal(candidate.ServiceDate) ||
		existing.Quantity != candidate.Quantity {
		return recorddomain.ErrIdempotencyKeyReused
	}
	return nil
}

func (s *Service) UpdateNonBillingFields(ctx context.Context, id string, req recorddomain.UpdateRecordRequest) (*recorddomain.Response, error) {
	recordID, err := parseID(id)
	if err != nil {
		return nil, recorddomain.ErrInvalidID
	}

	var record *recorddomain.ServiceRecord
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := recorddomain.NonBillingUpdate{
			Symptoms:  trimmed(req.Symptoms),
			Notes:     trimmed(req.Notes),
			Metadata:  req.Metadata,
			UpdatedAt: s.clock.Now(),
		}
		if err := s.repo.UpdateNonBilling(ctx, tx, recordID, update); err != nil {
			return err
		}

		record, err = s.repo.FindByID(ctx, tx, recordID)
		if err != nil {
			return err
		}
		if record == nil {
			return recorddomain.ErrNotFound
		}
		return nil
	}); err != nil {
		return nil, err
	}

	obslogger.WithRecord(s.log, record.ID.String(), record.ActionCode).Info("service record updated")
	return toResponse(record), nil
}

// Delete soft-deletes the record; it disappears from reads and reports.
func (s *Service) Delete(ctx context.Context, id string) error {
	recordID, err := parseID(id)
	if err != nil {
		return recorddomain.ErrInvalidID
	}

	if err := s.repo.SoftDelete(ctx, s.db, recordID); err != nil {
		return err
	}

	s.metrics.RecordServiceRecordDeleted(ctx)
	s.log.Info("service record deleted", zap.String("record_id", recordID.String()))
	return nil
}

func (s *Service) GetRecord(ctx context.Context, id string) (*recorddomain.Response, error) {
	recordID, err := parseID(id)
	if err != nil {
		return nil, recorddomain.ErrInvalidID
	}

	record, err := s.repo.FindByID(ctx, s.db, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, recorddomain.ErrNotFound
	}
	return toResponse(record), nil
}

func (s *Service) ListRecords(ctx context.Context, req recorddomain.ListRecordsRequest) (*recorddomain.ListRecordsResponse, error) {
	from, err := dates.ParseOptional(req.From)
	if err != nil {
		return nil, recorddomain.ErrInvalidServiceDate
	}
	to, err := dates.ParseOptional(req.To)
	if err != nil {
		return nil, recorddomain.ErrInvalidServiceDate
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, recorddomain.ErrInvalidRange
	}

	limit := req.Pagination.Limit()
	filter := recorddomain.ListFilter{
		SubjectID: strings.TrimSpace(req.SubjectID),
		From:      from,
		To:        to,
		Limit:     limit + 1,
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, err
		}
		afterID, err := parseID(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		filter.AfterID = afterID
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	page, pageInfo := pagination.BuildCursorPageInfo(items, limit, func(r *recorddomain.ServiceRecord) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: r.ID.String()})
		return token
	})

	resp := make([]recorddomain.Response, 0, len(page))
	for _, item := range page {
		resp = append(resp, *toResponse(item))
	}
	return &recorddomain.ListRecordsResponse{Records: resp, PageInfo: pageInfo}, nil
}

func toResponse(r *recorddomain.ServiceRecord) *recorddomain.Response {
	var metadata map[string]any
	if r.Metadata != nil {
		metadata = map[string]any(r.Metadata)
	}

	return &recorddomain.Response{
		ID:          r.ID.String(),
		SubjectID:   r.SubjectID,
		ServiceDate: dates.Format(r.ServiceDate),
		ActionCode:  r.ActionCode,
		ActionName:  r.ActionName,
		Quantity:    money.FormatQuantity(r.Quantity),
		Symptoms:    r.Symptoms,
		Notes:       r.Notes,
		Metadata:    metadata,
		Billing: recorddomain.BillingResponse{
			ResolvedVersionID: r.Billing.ResolvedVersionID.String(),
			UnitPrice:         money.Format(r.Billing.Currency, r.Billing.UnitPrice),
			ProcedureFee:      money.Format(r.Billing.Currency, r.Billing.ProcedureFee),
			Currency:          r.Billing.Currency,
			Unit:              r.Billing.Unit,
			ComputedAmount:    money.Format(r.Billing.Currency, r.Billing.ComputedAmount),
			ComputedMinor:     r.Billing.ComputedAmount,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
