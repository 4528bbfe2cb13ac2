package pdf

import (
	"context"
)

// Provider renders a paginated report layout into PDF bytes.
type Provider interface {
	GenerateReport(ctx context.Context, layout ReportLayout) ([]byte, error)
}
