package export

import (
	"context"
	"io"
	"strconv"

	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet = "Summary"
	RecordsSheet = "Records"
)

type xlsxExporter struct{}

func (xlsxExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (xlsxExporter) Extension() string { return "xlsx" }

func (xlsxExporter) Export(ctx context.Context, w io.Writer, result *reportdomain.Result, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := writeSheet(f, SummarySheet, bold, summaryRows(result)); err != nil {
		return err
	}
	if len(result.Lines) > 0 {
		if _, err := f.NewSheet(RecordsSheet); err != nil {
			return err
		}
		if err := writeSheet(f, RecordsSheet, bold, recordRows(result)); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, rows [][]string) error {
	if err := f.SetSheetRow(sheet, "A1", &Header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(Header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	countCol, minorCol := 4, len(Header)-1
	for i, values := range rows {
		cells := make([]interface{}, len(values))
		for j, v := range values {
			cells[j] = v
			// Counts and minor amounts are stored as numbers so they sum in a spreadsheet.
			if j == countCol || j == minorCol {
				if n, err := strconv.ParseInt(v, 10, 64); err == nil {
					cells[j] = n
				}
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return nil
}
