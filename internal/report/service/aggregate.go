package service

import (
	"fmt"
	"strconv"
	"time"

	recorddomain "github.com/smallbiznis/shelterbill/internal/record/domain"
	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
	"github.com/smallbiznis/shelterbill/pkg/dates"
	"github.com/smallbiznis/shelterbill/pkg/money"
)

type bucketSpan struct {
	key   time.Time
	start time.Time
	end   time.Time
	label string
}

// Aggregate groups records into req's buckets and sums computed amounts per
// currency. Records outside the range are ignored. Buckets are dense when at
// least one record falls in the range and absent otherwise.
func Aggregate(req reportdomain.Request, records []recorddomain.ServiceRecord) (*reportdomain.Result, error) {
	start, end := dates.Of(req.Start), dates.Of(req.End)
	if start.After(end) {
		return nil, &reportdomain.InvalidRangeError{Start: start, End: end}
	}

	result := &reportdomain.Result{
		Request: reportdomain.RequestEcho{
			Start:       dates.Format(start),
			End:         dates.Format(end),
			Granularity: req.Granularity,
			SubjectID:   req.SubjectID,
			Format:      req.Format,
		},
		Buckets: []reportdomain.Bucket{},
		Totals:  []reportdomain.Total{},
	}

	inRange := make([]recorddomain.ServiceRecord, 0, len(records))
	for _, rec := range records {
		day := dates.Of(rec.ServiceDate)
		if day.Before(start) || day.After(end) {
			continue
		}
		if !req.AllSubjects() && rec.SubjectID != req.SubjectID {
			continue
		}
		inRange = append(inRange, rec)
	}
	if len(inRange) == 0 {
		return result, nil
	}

	spans := bucketSpans(req.Granularity, start, end)
	index := make(map[time.Time]int, len(spans))
	counts := make([]int, len(spans))
	totals := make([]money.Totals, len(spans))
	for i, span := range spans {
		index[span.key] = i
		totals[i] = money.Totals{}
	}

	grand := money.Totals{}
	for _, rec := range inRange {
		i, ok := index[bucketKey(req.Granularity, start, dates.Of(rec.ServiceDate))]
		if !ok {
			return nil, fmt.Errorf("no bucket for %s", dates.Format(rec.ServiceDate))
		}
		counts[i]++
		if err := totals[i].Add(rec.Billing.Currency, rec.Billing.ComputedAmount); err != nil {
			return nil, err
		}
		if err := grand.Add(rec.Billing.Currency, rec.Billing.ComputedAmount); err != nil {
			return nil, err
		}
		if req.IncludeLines() {
			result.Lines = append(result.Lines, lineOf(rec))
		}
	}

	for i, span := range spans {
		result.Buckets = append(result.Buckets, reportdomain.Bucket{
			Label:       span.label,
			Start:       dates.Format(span.start),
			End:         dates.Format(span.end),
			RecordCount: counts[i],
			Totals:      toTotals(totals[i]),
		})
	}
	result.RecordCount = len(inRange)
	result.Totals = toTotals(grand)
	return result, nil
}

func bucketKey(g reportdomain.Granularity, rangeStart, day time.Time) time.Time {
	switch g {
	case reportdomain.GranularityDay:
		return day
	case reportdomain.GranularityWeek:
		return dates.StartOfWeek(day)
	case reportdomain.GranularityMonth:
		return dates.StartOfMonth(day)
	default:
		return rangeStart
	}
}

func bucketSpans(g reportdomain.Granularity, start, end time.Time) []bucketSpan {
	if g == reportdomain.GranularityIndividual {
		return []bucketSpan{{
			key:   start,
			start: start,
			end:   end,
			label: dates.Format(start) + "/" + dates.Format(end),
		}}
	}

	var spans []bucketSpan
	for key := bucketKey(g, start, start); !key.After(end); {
		var next time.Time
		var label string
		switch g {
		case reportdomain.GranularityDay:
			next = key.AddDate(0, 0, 1)
			label = dates.Format(key)
		case reportdomain.GranularityWeek:
			next = key.AddDate(0, 0, 7)
			year, week := key.ISOWeek()
			label = fmt.Sprintf("%04d-W%02d", year, week)
		default:
			next = key.AddDate(0, 1, 0)
			label = key.Format("2006-01")
		}
		spanStart, spanEnd := key, next.AddDate(0, 0, -1)
		if spanStart.Before(start) {
			spanStart = start
		}
		if spanEnd.After(end) {
			spanEnd = end
		}
		spans = append(spans, bucketSpan{key: key, start: spanStart, end: spanEnd, label: label})
		key = next
	}
	return spans
}

func toTotals(t money.Totals) []reportdomain.Total {
	sorted := t.Sorted()
	out := make([]reportdomain.Total, 0, len(sorted))
	for _, amount := range sorted {
		out = append(out, reportdomain.Total{
			Currency: amount.Currency,
			Minor:    amount.Amount,
			Amount:   money.Format(amount.Currency, amount.Amount),
		})
	}
	return out
}

func lineOf(rec recorddomain.ServiceRecord) reportdomain.Line {
	currency := rec.Billing.Currency
	return reportdomain.Line{
		RecordID:     strconv.FormatInt(rec.ID.Int64(), 10),
		ServiceDate:  dates.Format(rec.ServiceDate),
		SubjectID:    rec.SubjectID,
		ActionCode:   rec.ActionCode,
		ActionName:   rec.ActionName,
		Quantity:     money.FormatQuantity(rec.Quantity),
		Unit:         rec.Billing.Unit,
		Currency:     currency,
		UnitPrice:    money.Format(currency, rec.Billing.UnitPrice),
		ProcedureFee: money.Format(currency, rec.Billing.ProcedureFee),
		Amount:       money.Format(currency, rec.Billing.ComputedAmount),
		AmountMinor:  rec.Billing.ComputedAmount,
	}
}
