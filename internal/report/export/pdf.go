package export

import (
	"context"
	"fmt"
	"io"

	"github.com/smallbiznis/shelterbill/internal/providers/pdf"
	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
)

type pdfExporter struct {
	renderer pdf.Provider
}

func (pdfExporter) ContentType() string { return "application/pdf" }
func (pdfExporter) Extension() string   { return "pdf" }

func (e pdfExporter) Export(ctx context.Context, w io.Writer, result *reportdomain.Result, opts Options) error {
	body, err := e.renderer.GenerateReport(ctx, BuildLayout(result, opts))
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

var (
	bucketColumns = []pdf.Column{
		{Header: "Period", Width: 3},
		{Header: "From", Width: 2},
		{Header: "To", Width: 2},
		{Header: "Records", Width: 1, AlignRight: true},
		{Header: "Currency", Width: 2},
		{Header: "Amount", Width: 2, AlignRight: true},
	}
	recordColumns = []pdf.Column{
		{Header: "Date", Width: 2},
		{Header: "Subject", Width: 2},
		{Header: "Action", Width: 3},
		{Header: "Qty", Width: 1, AlignRight: true},
		{Header: "Currency", Width: 2},
		{Header: "Amount", Width: 2, AlignRight: true},
	}
)

// BuildLayout cuts the result into pages of at most opts.PDFRowsPerPage table
// rows. Bucket rows come first, then record rows, then the grand totals.
func BuildLayout(result *reportdomain.Result, opts Options) pdf.ReportLayout {
	perPage := opts.PDFRowsPerPage
	if perPage <= 0 {
		perPage = 1
	}

	scope := "all subjects"
	if result.Request.SubjectID != "" {
		scope = "subject " + result.Request.SubjectID
	}
	layout := pdf.ReportLayout{
		Title: opts.PDFTitle,
		Subtitle: fmt.Sprintf("%s to %s, %s, %s, %d records",
			result.Request.Start, result.Request.End, result.Request.Granularity, scope, result.RecordCount),
	}

	var bucketRows [][]string
	for _, b := range result.Buckets {
		if len(b.Totals) == 0 {
			bucketRows = append(bucketRows, []string{b.Label, b.Start, b.End, fmt.Sprint(b.RecordCount), "", "0"})
			continue
		}
		for _, t := range b.Totals {
			bucketRows = append(bucketRows, []string{b.Label, b.Start, b.End, fmt.Sprint(b.RecordCount), t.Currency, t.Amount})
		}
	}
	var lineRows [][]string
	for _, l := range result.Lines {
		lineRows = append(lineRows, []string{l.ServiceDate, l.SubjectID, l.ActionName, l.Quantity, l.Currency, l.Amount})
	}

	current := pdf.ReportPage{Number: 1}
	used := 0
	flush := func() {
		layout.Pages = append(layout.Pages, current)
		current = pdf.ReportPage{Number: len(layout.Pages) + 1}
		used = 0
	}
	appendRows := func(title string, columns []pdf.Column, rows [][]string) {
		for len(rows) > 0 {
			if used == perPage {
				flush()
			}
			n := perPage - used
			if n > len(rows) {
				n = len(rows)
			}
			current.Tables = append(current.Tables, pdf.Table{Title: title, Columns: columns, Rows: rows[:n]})
			used += n
			rows = rows[n:]
		}
	}
	appendRows("Summary", bucketColumns, bucketRows)
	appendRows("Records", recordColumns, lineRows)
	layout.Pages = append(layout.Pages, current)

	for _, t := range result.Totals {
		layout.Totals = append(layout.Totals, pdf.TotalLine{Label: "Total " + t.Currency, Amount: t.Amount})
	}
	if len(layout.Totals) == 0 {
		layout.Totals = []pdf.TotalLine{{Label: "Total", Amount: "0"}}
	}
	return layout
}
