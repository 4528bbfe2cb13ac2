package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingdomain "github.com/smallbiznis/shelterbill/internal/billing/domain"
	catalogdomain "github.com/smallbiznis/shelterbill/internal/catalog/domain"
	"github.com/smallbiznis/shelterbill/pkg/dates"
	"github.com/smallbiznis/shelterbill/pkg/money"
	"github.com/smallbiznis/shelterbill/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Resolver catalogdomain.Resolver
	Metrics  *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	resolver catalogdomain.Resolver
	metrics  *telemetry.Metrics
}

func New(p Params) billingdomain.Service {
	return &Service{
		log:      p.Log.Named("billing.service"),
		resolver: p.Resolver,
		metrics:  p.Metrics,
	}
}

func (s *Service) ResolveAndSnapshot(ctx context.Context, tx *gorm.DB, actionName string, onDate time.Time, quantity int64) (*billingdomain.BillingSnapshot, error) {
	if quantity < 0 {
		return nil, money.ErrInvalidQuantity
	}
	onDate = dates.Of(onDate)

	version, err := s.resolver.ResolveTx(ctx, tx, actionName, onDate)
	if err != nil {
		if errors.Is(err, catalogdomain.ErrNotFound) {
			s.metrics.RecordBillingFailure("no_price")
			s.log.Debug("no price for date",
				zap.String("action", actionName),
				zap.String("date", dates.Format(onDate)),
			)
			return nil, &billingdomain.NoPriceForDateError{Action: actionName, Date: onDate}
		}
		return nil, err
	}

	amount, err := money.LineAmount(version.SellingPrice, quantity, version.ProcedureFee)
	if err != nil {
		s.metrics.RecordBillingFailure("overflow")
		return nil, fmt.Errorf("compute amount for version %s: %w", version.ID, err)
	}

	return &billingdomain.BillingSnapshot{
		ResolvedVersionID: version.ID,
		UnitPrice:         version.SellingPrice,
		ProcedureFee:      version.ProcedureFee,
		Currency:          version.Currency,
		Unit:              version.Unit,
		ComputedAmount:    amount,
	}, nil
}
