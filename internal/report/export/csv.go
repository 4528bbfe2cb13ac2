package export

import (
	"context"
	"encoding/csv"
	"io"

	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
)

type csvExporter struct{}

func (csvExporter) ContentType() string { return "text/csv; charset=utf-8" }
func (csvExporter) Extension() string   { return "csv" }

func (csvExporter) Export(ctx context.Context, w io.Writer, result *reportdomain.Result, opts Options) error {
	cw := csv.NewWriter(w)
	if opts.CSVDelimiter != 0 {
		cw.Comma = opts.CSVDelimiter
	}
	if err := cw.Write(Header); err != nil {
		return err
	}
	if err := cw.WriteAll(summaryRows(result)); err != nil {
		return err
	}
	if err := cw.WriteAll(recordRows(result)); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
