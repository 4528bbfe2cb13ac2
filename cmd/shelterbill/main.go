package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shelterbill/internal/clock"
	"github.com/smallbiznis/shelterbill/internal/config"
	"github.com/smallbiznis/shelterbill/internal/lock"
	"github.com/smallbiznis/shelterbill/internal/migration"
	"github.com/smallbiznis/shelterbill/internal/observability"
	"github.com/smallbiznis/shelterbill/internal/server"
	"github.com/smallbiznis/shelterbill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,

		// Catalog, billing, records, reports and the HTTP surface
		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
