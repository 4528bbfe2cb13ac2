package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/shelterbill/internal/clock"
	"github.com/smallbiznis/shelterbill/internal/config"
	"github.com/smallbiznis/shelterbill/internal/observability/metrics"
	recorddomain "github.com/smallbiznis/shelterbill/internal/record/domain"
	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
	"github.com/smallbiznis/shelterbill/internal/report/export"
	"github.com/smallbiznis/shelterbill/pkg/dates"
	"github.com/smallbiznis/shelterbill/pkg/db"
	"github.com/smallbiznis/shelterbill/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      reportdomain.Repository
	Config    *config.ReportConfigHolder
	Exporters export.Registry
	Metrics   *metrics.Metrics   `optional:"true"`
	Telemetry *telemetry.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      reportdomain.Repository
	config    *config.ReportConfigHolder
	exporters export.Registry
	metrics   *metrics.Metrics
	telemetry *telemetry.Metrics
}

func New(p Params) reportdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("report.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		config:    p.Config,
		exporters: p.Exporters,
		metrics:   p.Metrics,
		telemetry: p.Telemetry,
	}
}

// Generate reads every live record in the range from one consistent snapshot
// and aggregates it. Catalog prices are never consulted.
func (s *Service) Generate(ctx context.Context, req reportdomain.Request) (*reportdomain.Result, error) {
	started := time.Now()

	req.Start, req.End = dates.Of(req.Start), dates.Of(req.End)
	if req.Start.After(req.End) {
		return nil, &reportdomain.InvalidRangeError{Start: req.Start, End: req.End}
	}
	if maxDays := s.reportConfig().MaxRangeDays; maxDays > 0 && dates.DaysBetween(req.Start, req.End)+1 > maxDays {
		return nil, &reportdomain.InvalidRangeError{Start: req.Start, End: req.End, MaxDays: maxDays}
	}

	filter := reportdomain.ScanFilter{Start: req.Start, End: req.End, SubjectID: req.SubjectID}
	var records []recorddomain.ServiceRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		records, err = s.repo.ScanRecords(ctx, tx, filter)
		return err
	}, s.readOptions()...)
	if err != nil {
		s.log.Error("failed to scan records", zap.Error(err))
		return nil, err
	}

	result, err := Aggregate(req, records)
	if err != nil {
		return nil, err
	}
	result.RunID = ulid.Make().String()
	result.GeneratedAt = s.clock.Now().UTC()

	scope := "all"
	if !req.AllSubjects() {
		scope = "subject"
	}
	s.metrics.RecordReport(ctx, scope, string(req.Granularity))
	s.telemetry.ObserveReport(string(req.Granularity), result.RecordCount, time.Since(started))

	s.log.Info("report generated",
		zap.String("run_id", result.RunID),
		zap.String("granularity", string(req.Granularity)),
		zap.String("scope", scope),
		zap.Int("record_count", result.RecordCount),
		zap.Int("bucket_count", len(result.Buckets)),
	)
	return result, nil
}

func (s *Service) Export(ctx context.Context, req reportdomain.Request) (*reportdomain.Export, error) {
	exporter, err := s.exporters.Lookup(req.Format)
	if err != nil {
		return nil, reportdomain.ErrInvalidFormat
	}

	result, err := s.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := exporter.Export(ctx, &buf, result, export.OptionsFrom(s.reportConfig())); err != nil {
		s.log.Error("failed to export report", zap.String("run_id", result.RunID), zap.String("format", string(req.Format)), zap.Error(err))
		return nil, fmt.Errorf("export %s: %w", req.Format, err)
	}

	s.metrics.RecordExport(ctx, string(req.Format))
	s.telemetry.ObserveExport(string(req.Format), buf.Len())

	return &reportdomain.Export{
		Filename: fmt.Sprintf("report_%s_%s_%s.%s",
			result.Request.Start, result.Request.End, req.Granularity, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Body:        buf.Bytes(),
	}, nil
}

func (s *Service) reportConfig() config.ReportConfig {
	if s.config == nil {
		return config.DefaultReportConfig()
	}
	return s.config.Get()
}

// sqlite has no read-only or repeatable-read transactions; its single writer
// already gives the scan a stable view.
func (s *Service) readOptions() []*sql.TxOptions {
	if db.IsSQLite(s.db) {
		return nil
	}
	return []*sql.TxOptions{{ReadOnly: true, Isolation: sql.LevelRepeatableRead}}
}
