package record

import (
	"github.com/smallbiznis/shelterbill/internal/record/repository"
	"github.com/smallbiznis/shelterbill/internal/record/service"
	"go.uber.org/fx"
)

var Module = fx.Module("record.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
