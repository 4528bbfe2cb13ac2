package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/shelterbill/internal/billing"
	"github.com/smallbiznis/shelterbill/internal/catalog"
	catalogdomain "github.com/smallbiznis/shelterbill/internal/catalog/domain"
	"github.com/smallbiznis/shelterbill/internal/clock"
	"github.com/smallbiznis/shelterbill/internal/config"
	"github.com/smallbiznis/shelterbill/internal/observability"
	obsmiddleware "github.com/smallbiznis/shelterbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/shelterbill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/shelterbill/internal/observability/tracing"
	"github.com/smallbiznis/shelterbill/internal/record"
	recorddomain "github.com/smallbiznis/shelterbill/internal/record/domain"
	"github.com/smallbiznis/shelterbill/internal/report"
	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
	"github.com/smallbiznis/shelterbill/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	catalog.Module,
	billing.Module,
	record.Module,
	report.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *telemetry.Metrics, requestTimeout time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(RequestTimeout(requestTimeout))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *telemetry.Metrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics, cfg.RequestTimeout)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// RequestTimeout bounds every request context; gorm calls inherit the deadline.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

type Server struct {
	engine     *gin.Engine
	clock      clock.Clock
	catalogSvc catalogdomain.Service
	recordSvc  recorddomain.Service
	reportSvc  reportdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Clock      clock.Clock
	CatalogSvc catalogdomain.Service
	RecordSvc  recorddomain.Service
	ReportSvc  reportdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		clock:      p.Clock,
		catalogSvc: p.CatalogSvc,
		recordSvc:  p.RecordSvc,
		reportSvc:  p.ReportSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Pricing catalog --------
	api.POST("/actions/versions", s.AddActionVersion)
	api.GET("/actions/active", s.ListActiveActions)
	api.POST("/actions/:name/close", s.CloseActionVersion)
	api.GET("/actions/:name/versions", s.ListActionVersions)
	api.GET("/actions/:name/resolve", s.ResolveAction)
	api.GET("/action-versions/:id", s.GetActionVersion)
	api.DELETE("/action-versions/:id", s.RemoveActionVersion)

	// -------- Service records --------
	api.POST("/records", s.CreateRecord)
	api.GET("/records", s.ListRecords)
	api.GET("/records/:id", s.GetRecord)
	api.PATCH("/records/:id", s.UpdateRecord)
	api.DELETE("/records/:id", s.DeleteRecord)

	// -------- Reports --------
	api.GET("/reports", s.GenerateReport)
	api.GET("/reports/export", s.ExportReport)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
