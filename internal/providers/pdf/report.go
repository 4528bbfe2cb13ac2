package pdf

import (
	"context"
	"errors"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var ErrEmptyLayout = errors.New("empty_layout")

// Column widths use maroto's 12 unit grid.
type Column struct {
	Header     string
	Width      int
	AlignRight bool
}

type Table struct {
	Title   string
	Columns []Column
	Rows    [][]string
}

// ReportPage is one physical page. Pages are cut by the caller so the layout
// can be checked without rendering.
type ReportPage struct {
	Number int
	Tables []Table
}

type TotalLine struct {
	Label  string
	Amount string
}

type ReportLayout struct {
	Title    string
	Subtitle string
	Pages    []ReportPage
	Totals   []TotalLine
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateReport(ctx context.Context, layout ReportLayout) ([]byte, error) {
	if len(layout.Pages) == 0 {
		return nil, ErrEmptyLayout
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	for i, lp := range layout.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pg := page.New()
		if i == 0 {
			pg.Add(
				row.New(10).Add(
					text.NewCol(12, layout.Title, props.Text{
						Size:  16,
						Style: fontstyle.Bold,
						Align: align.Left,
					}),
				),
				row.New(8).Add(
					text.NewCol(12, layout.Subtitle, props.Text{Size: 9}),
				),
			)
		}

		for _, table := range lp.Tables {
			pg.Add(tableRows(table)...)
		}

		if i == len(layout.Pages)-1 && len(layout.Totals) > 0 {
			pg.Add(row.New(4).Add(col.New(12)))
			for _, total := range layout.Totals {
				pg.Add(row.New(7).Add(
					col.New(6),
					text.NewCol(3, total.Label, props.Text{Style: fontstyle.Bold, Size: 9}),
					text.NewCol(3, total.Amount, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
				))
			}
		}

		m.AddPages(pg)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return doc.GetBytes(), nil
}

func tableRows(table Table) []core.Row {
	rows := make([]core.Row, 0, len(table.Rows)+3)
	if table.Title != "" {
		rows = append(rows, row.New(8).Add(
			text.NewCol(12, table.Title, props.Text{Size: 11, Style: fontstyle.Bold, Top: 2}),
		))
	}

	header := make([]core.Col, 0, len(table.Columns))
	for _, c := range table.Columns {
		header = append(header, text.NewCol(c.Width, c.Header, cellProps(c, fontstyle.Bold)))
	}
	rows = append(rows, row.New(7).Add(header...))
	rows = append(rows, row.New(1).Add(line.NewCol(12)))

	for _, values := range table.Rows {
		cols := make([]core.Col, 0, len(table.Columns))
		for i, c := range table.Columns {
			value := ""
			if i < len(values) {
				value = values[i]
			}
			cols = append(cols, text.NewCol(c.Width, value, cellProps(c, fontstyle.Normal)))
		}
		rows = append(rows, row.New(6).Add(cols...))
	}
	return rows
}

func cellProps(c Column, style fontstyle.Type) props.Text {
	p := props.Text{Size: 8, Style: style}
	if c.AlignRight {
		p.Align = align.Right
	}
	return p
}
