package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/shelterbill/internal/billing/domain"
	"github.com/smallbiznis/shelterbill/internal/clock"
	"github.com/smallbiznis/shelterbill/internal/config"
	"github.com/smallbiznis/shelterbill/internal/migration"
	"github.com/smallbiznis/shelterbill/internal/observability/metrics"
	"github.com/smallbiznis/shelterbill/internal/providers/pdf"
	recorddomain "github.com/smallbiznis/shelterbill/internal/record/domain"
	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
	"github.com/smallbiznis/shelterbill/internal/report/export"
	"github.com/smallbiznis/shelterbill/internal/report/repository"
	"github.com/smallbiznis/shelterbill/pkg/dates"
	"github.com/smallbiznis/shelterbill/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	reports reportdomain.Service
	config  *config.ReportConfigHolder
}

func setup(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	holder := config.NewStaticReportConfigHolder(config.DefaultReportConfig())
	reports := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(time.Date(2024, time.April, 2, 9, 0, 0, 0, time.UTC)),
		Repo:      repository.Provide(),
		Config:    holder,
		Exporters: export.NewRegistry(pdf.New()),
		Metrics:   metrics.NewNoop(),
	})
	return &fixture{db: conn, node: node, reports: reports, config: holder}
}

func (f *fixture) insert(t *testing.T, subject string, day time.Time, currency string, amount int64) recorddomain.ServiceRecord {
	t.Helper()
	now := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	rec := recorddomain.ServiceRecord{
		ID:          f.node.Generate(),
		SubjectID:   subject,
		ServiceDate: day,
		ActionCode:  "vaccine",
		ActionName:  "Vaccine",
		Quantity:    1000,
		Billing: billingdomain.BillingSnapshot{
			ResolvedVersionID: f.node.Generate(),
			UnitPrice:         amount,
			Currency:          currency,
			Unit:              "dose",
			ComputedAmount:    amount,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(&rec).Error)
	return rec
}

func monthly(start, end time.Time) reportdomain.Request {
	return reportdomain.Request{Start: start, End: end, Granularity: reportdomain.GranularityMonth, Format: reportdomain.FormatJSON}
}

func TestGenerateMonthlyReport(t *testing.T) {
	f := setup(t)
	f.insert(t, "7", dates.New(2024, time.February, 3), "JPY", 2200)
	f.insert(t, "8", dates.New(2024, time.February, 14), "JPY", 1200)
	f.insert(t, "7", dates.New(2024, time.February, 28), "JPY", 3400)

	result, err := f.reports.Generate(context.Background(), monthly(dates.New(2024, time.January, 1), dates.New(2024, time.March, 31)))
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.RecordCount)
	require.Len(t, result.Buckets, 3)

	assert.Equal(t, "2024-01", result.Buckets[0].Label)
	assert.Equal(t, 0, result.Buckets[0].RecordCount)
	assert.Empty(t, result.Buckets[0].Totals)

	feb := result.Buckets[1]
	assert.Equal(t, "2024-02", feb.Label)
	assert.Equal(t, "2024-02-01", feb.Start)
	assert.Equal(t, "2024-02-29", feb.End)
	assert.Equal(t, 3, feb.RecordCount)
	require.Len(t, feb.Totals, 1)
	assert.Equal(t, "JPY", feb.Totals[0].Currency)
	assert.Equal(t, int64(6800), feb.Totals[0].Minor)

	assert.Equal(t, "2024-03", result.Buckets[2].Label)
	assert.Equal(t, 0, result.Buckets[2].RecordCount)

	require.Len(t, result.Totals, 1)
	assert.Equal(t, int64(6800), result.Totals[0].Minor)
	assert.Empty(t, result.Lines)
}

func TestGenerateRejectsInvalidRange(t *testing.T) {
	f := setup(t)

	_, err := f.reports.Generate(context.Background(), monthly(dates.New(2024, time.March, 1), dates.New(2024, time.February, 1)))
	var rangeErr *reportdomain.InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.ErrorIs(t, err, reportdomain.ErrInvalidRange)

	cfg := config.DefaultReportConfig()
	cfg.MaxRangeDays = 31
	f.config.Set(cfg)

	_, err = f.reports.Generate(context.Background(), monthly(dates.New(2024, time.January, 1), dates.New(2024, time.February, 1)))
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 31, rangeErr.MaxDays)

	_, err = f.reports.Generate(context.Background(), monthly(dates.New(2024, time.January, 1), dates.New(2024, time.January, 31)))
	assert.NoError(t, err)
}

func TestGenerateEmptyResults(t *testing.T) {
	f := setup(t)
	f.insert(t, "7", dates.New(2024, time.February, 3), "JPY", 2200)

	req := monthly(dates.New(2024, time.January, 1), dates.New(2024, time.March, 31))
	req.SubjectID = "does-not-exist"
	result, err := f.reports.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RecordCount)
	assert.Empty(t, result.Buckets)
	assert.Empty(t, result.Totals)

	result, err = f.reports.Generate(context.Background(), monthly(dates.New(2023, time.January, 1), dates.New(2023, time.December, 31)))
	require.NoError(t, err)
	assert.Empty(t, result.Buckets)
}

func TestGenerateExcludesDeletedRecords(t *testing.T) {
	f := setup(t)
	f.insert(t, "7", dates.New(2024, time.February, 3), "JPY", 2200)
	deleted := f.insert(t, "7", dates.New(2024, time.February, 4), "JPY", 1200)
	require.NoError(t, f.db.Delete(&deleted).Error)

	result, err := f.reports.Generate(context.Background(), monthly(dates.New(2024, time.February, 1), dates.New(2024, time.February, 29)))
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordCount)
	assert.Equal(t, int64(2200), result.Totals[0].Minor)
}

func TestGenerateSubjectScopeIncludesLines(t *testing.T) {
	f := setup(t)
	f.insert(t, "7", dates.New(2024, time.February, 5), "JPY", 2200)
	f.insert(t, "7", dates.New(2024, time.February, 13), "USD", 1999)
	f.insert(t, "8", dates.New(2024, time.February, 6), "JPY", 9999)

	result, err := f.reports.Generate(context.Background(), reportdomain.Request{
		Start:       dates.New(2024, time.February, 1),
		End:         dates.New(2024, time.February, 14),
		Granularity: reportdomain.GranularityWeek,
		SubjectID:   "7",
		Format:      reportdomain.FormatJSON,
	})
	require.NoError(t, err)

	require.Len(t, result.Buckets, 3)
	assert.Equal(t, "2024-W05", result.Buckets[0].Label)
	assert.Equal(t, "2024-02-01", result.Buckets[0].Start)
	assert.Equal(t, "2024-02-04", result.Buckets[0].End)
	assert.Equal(t, "2024-W06", result.Buckets[1].Label)
	assert.Equal(t, "2024-02-05", result.Buckets[1].Start)
	assert.Equal(t, "2024-02-11", result.Buckets[1].End)
	assert.Equal(t, "2024-W07", result.Buckets[2].Label)
	assert.Equal(t, "2024-02-14", result.Buckets[2].End)

	require.Len(t, result.Totals, 2)
	assert.Equal(t, "JPY", result.Totals[0].Currency)
	assert.Equal(t, int64(2200), result.Totals[0].Minor)
	assert.Equal(t, "USD", result.Totals[1].Currency)
	assert.Equal(t, "19.99", result.Totals[1].Amount)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, "2024-02-05", result.Lines[0].ServiceDate)
	assert.Equal(t, "2024-02-13", result.Lines[1].ServiceDate)
}

func TestExportDispatchesByFormat(t *testing.T) {
	f := setup(t)
	f.insert(t, "7", dates.New(2024, time.February, 3), "JPY", 2200)

	req := monthly(dates.New(2024, time.January, 1), dates.New(2024, time.March, 31))
	for _, format := range []reportdomain.OutputFormat{reportdomain.FormatJSON, reportdomain.FormatCSV, reportdomain.FormatXLSX, reportdomain.FormatPDF} {
		req.Format = format
		out, err := f.reports.Export(context.Background(), req)
		require.NoError(t, err, format)
		assert.NotEmpty(t, out.Body, format)
		assert.Equal(t, "report_2024-01-01_2024-03-31_month."+string(format), out.Filename)
	}

	req.Format = "docx"
	_, err := f.reports.Export(context.Background(), req)
	assert.ErrorIs(t, err, reportdomain.ErrInvalidFormat)
}

func TestAggregateDayBuckets(t *testing.T) {
	records := []recorddomain.ServiceRecord{
		{SubjectID: "1", ServiceDate: dates.New(2024, time.February, 2), Billing: billingdomain.BillingSnapshot{Currency: "JPY", ComputedAmount: 100}},
		{SubjectID: "1", ServiceDate: dates.New(2024, time.February, 2), Billing: billingdomain.BillingSnapshot{Currency: "JPY", ComputedAmount: 50}},
		{SubjectID: "1", ServiceDate: dates.New(2024, time.March, 1), Billing: billingdomain.BillingSnapshot{Currency: "JPY", ComputedAmount: 999}},
	}
	result, err := Aggregate(reportdomain.Request{
		Start:       dates.New(2024, time.February, 1),
		End:         dates.New(2024, time.February, 3),
		Granularity: reportdomain.GranularityDay,
	}, records)
	require.NoError(t, err)

	require.Len(t, result.Buckets, 3)
	assert.Equal(t, "2024-02-01", result.Buckets[0].Label)
	assert.Equal(t, 2, result.Buckets[1].RecordCount)
	assert.Equal(t, int64(150), result.Buckets[1].Totals[0].Minor)
	assert.Equal(t, 2, result.RecordCount)
}

func TestAggregateIndividual(t *testing.T) {
	records := []recorddomain.ServiceRecord{
		{SubjectID: "1", ServiceDate: dates.New(2024, time.February, 2), Billing: billingdomain.BillingSnapshot{Currency: "JPY", ComputedAmount: 100}},
		{SubjectID: "2", ServiceDate: dates.New(2024, time.February, 9), Billing: billingdomain.BillingSnapshot{Currency: "JPY", ComputedAmount: 300}},
	}
	result, err := Aggregate(reportdomain.Request{
		Start:       dates.New(2024, time.February, 1),
		End:         dates.New(2024, time.February, 29),
		Granularity: reportdomain.GranularityIndividual,
	}, records)
	require.NoError(t, err)

	require.Len(t, result.Buckets, 1)
	assert.Equal(t, "2024-02-01/2024-02-29", result.Buckets[0].Label)
	assert.Equal(t, int64(400), result.Buckets[0].Totals[0].Minor)
	assert.Len(t, result.Lines, 2)
}

func TestAggregateSoundness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	currencies := []string{"JPY", "USD", "EUR"}
	start := dates.New(2023, time.November, 15)
	end := dates.New(2024, time.March, 20)
	span := dates.DaysBetween(start, end)

	for _, g := range []reportdomain.Granularity{
		reportdomain.GranularityDay, reportdomain.GranularityWeek,
		reportdomain.GranularityMonth, reportdomain.GranularityIndividual,
	} {
		var records []recorddomain.ServiceRecord
		want := map[string]int64{}
		for i := 0; i < 200; i++ {
			currency := currencies[rng.Intn(len(currencies))]
			amount := rng.Int63n(100000)
			// Some records fall outside the range and must be ignored.
			offset := rng.Intn(span+20) - 10
			day := start.AddDate(0, 0, offset)
			records = append(records, recorddomain.ServiceRecord{
				SubjectID:   "s",
				ServiceDate: day,
				Billing:     billingdomain.BillingSnapshot{Currency: currency, ComputedAmount: amount},
			})
			if !day.Before(start) && !day.After(end) {
				want[currency] += amount
			}
		}

		result, err := Aggregate(reportdomain.Request{Start: start, End: end, Granularity: g}, records)
		require.NoError(t, err, g)

		bucketSums := map[string]int64{}
		count := 0
		for i, b := range result.Buckets {
			count += b.RecordCount
			for _, total := range b.Totals {
				bucketSums[total.Currency] += total.Minor
			}
			if i > 0 {
				prevEnd, _ := dates.Parse(result.Buckets[i-1].End)
				curStart, _ := dates.Parse(b.Start)
				assert.Equal(t, prevEnd.AddDate(0, 0, 1), curStart, "buckets are contiguous for %s", g)
			}
		}
		grand := map[string]int64{}
		for _, total := range result.Totals {
			grand[total.Currency] = total.Minor
		}
		assert.Equal(t, want, grand, g)
		assert.Equal(t, want, bucketSums, g)
		assert.Equal(t, result.RecordCount, count, g)
		assert.Equal(t, dates.Format(start), result.Buckets[0].Start, g)
		assert.Equal(t, dates.Format(end), result.Buckets[len(result.Buckets)-1].End, g)
	}
}
