package export

import (
	"strconv"

	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
)

const (
	SectionBucket = "bucket"
	SectionTotal  = "total"
	SectionRecord = "record"
)

// Header is shared by the CSV file and both XLSX sheets.
var Header = []string{
	"section", "label", "start", "end", "record_count",
	"subject_id", "action", "quantity", "currency", "amount", "amount_minor",
}

// summaryRows flattens a result into Header-shaped rows: one row per bucket
// and currency, then the grand totals.
func summaryRows(result *reportdomain.Result) [][]string {
	rows := make([][]string, 0, len(result.Buckets)+len(result.Totals))
	for _, b := range result.Buckets {
		rows = append(rows, amountRows(SectionBucket, b.Label, b.Start, b.End, b.RecordCount, b.Totals)...)
	}
	label := result.Request.SubjectID
	if label == "" {
		label = "all"
	}
	rows = append(rows, amountRows(SectionTotal, label, result.Request.Start, result.Request.End, result.RecordCount, result.Totals)...)
	return rows
}

func amountRows(section, label, start, end string, count int, totals []reportdomain.Total) [][]string {
	if len(totals) == 0 {
		return [][]string{{section, label, start, end, strconv.Itoa(count), "", "", "", "", "0", "0"}}
	}
	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{
			section, label, start, end, strconv.Itoa(count),
			"", "", "", t.Currency, t.Amount, strconv.FormatInt(t.Minor, 10),
		})
	}
	return rows
}

func recordRows(result *reportdomain.Result) [][]string {
	rows := make([][]string, 0, len(result.Lines))
	for _, l := range result.Lines {
		rows = append(rows, []string{
			SectionRecord, l.RecordID, l.ServiceDate, l.ServiceDate, "1",
			l.SubjectID, l.ActionName, l.Quantity, l.Currency, l.Amount, strconv.FormatInt(l.AmountMinor, 10),
		})
	}
	return rows
}
