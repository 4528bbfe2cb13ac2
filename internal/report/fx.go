package report

import (
	"github.com/smallbiznis/shelterbill/internal/providers/pdf"
	"github.com/smallbiznis/shelterbill/internal/report/export"
	"github.com/smallbiznis/shelterbill/internal/report/repository"
	"github.com/smallbiznis/shelterbill/internal/report/service"
	"go.uber.org/fx"
)

var Module = fx.Module("report.service",
	fx.Provide(pdf.New),
	fx.Provide(export.NewRegistry),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
