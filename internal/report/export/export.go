// Package export renders report results into downloadable formats.
package export

import (
	"context"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/smallbiznis/shelterbill/internal/config"
	"github.com/smallbiznis/shelterbill/internal/providers/pdf"
	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
)

var ErrUnsupportedFormat = errors.New("unsupported_format")

// Options carries the layout settings read from the report configuration.
type Options struct {
	CSVDelimiter   rune
	PDFRowsPerPage int
	PDFTitle       string
}

func OptionsFrom(cfg config.ReportConfig) Options {
	opts := Options{
		CSVDelimiter:   ',',
		PDFRowsPerPage: cfg.PDFRowsPerPage,
		PDFTitle:       cfg.PDFTitle,
	}
	if r, _ := utf8.DecodeRuneInString(cfg.CSVDelimiter); r != utf8.RuneError && cfg.CSVDelimiter != "" {
		opts.CSVDelimiter = r
	}
	if opts.PDFRowsPerPage <= 0 {
		opts.PDFRowsPerPage = config.DefaultReportConfig().PDFRowsPerPage
	}
	if opts.PDFTitle == "" {
		opts.PDFTitle = config.DefaultReportConfig().PDFTitle
	}
	return opts
}

// Exporter writes one result in a single output format. Exporters hold no state.
type Exporter interface {
	ContentType() string
	Extension() string
	Export(ctx context.Context, w io.Writer, result *reportdomain.Result, opts Options) error
}

type Registry map[reportdomain.OutputFormat]Exporter

func NewRegistry(renderer pdf.Provider) Registry {
	return Registry{
		reportdomain.FormatJSON: jsonExporter{},
		reportdomain.FormatCSV:  csvExporter{},
		reportdomain.FormatXLSX: xlsxExporter{},
		reportdomain.FormatPDF:  pdfExporter{renderer: renderer},
	}
}

func (r Registry) Lookup(format reportdomain.OutputFormat) (Exporter, error) {
	exp, ok := r[format]
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	return exp, nil
}
