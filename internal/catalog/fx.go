package catalog

import (
	catalogdomain "github.com/smallbiznis/shelterbill/internal/catalog/domain"
	"github.com/smallbiznis/shelterbill/internal/catalog/repository"
	"github.com/smallbiznis/shelterbill/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(s *service.Service) catalogdomain.Service { return s }),
	fx.Provide(func(s *service.Service) catalogdomain.Resolver { return s }),
)
