package export

import (
	"context"
	"encoding/json"
	"io"

	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
)

type jsonExporter struct{}

func (jsonExporter) ContentType() string { return "application/json" }
func (jsonExporter) Extension() string   { return "json" }

func (jsonExporter) Export(ctx context.Context, w io.Writer, result *reportdomain.Result, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
