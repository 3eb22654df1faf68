// Package server exposes the raffle core over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/winwai/raffled/internal/config"
	"github.com/winwai/raffled/internal/observability/metrics"
	"github.com/winwai/raffled/internal/observability/tracing"
	"github.com/winwai/raffled/internal/raffle/domain"
)

type ServerParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Config      config.Config
	Svc         domain.Service
	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`
}

type Server struct {
	db  *gorm.DB
	log *zap.Logger
	cfg config.Config
	svc domain.Service

	engine  *gin.Engine
	limiter *rateLimiter
}

func NewServer(p ServerParam) *Server {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		db:      p.DB,
		log:     p.Log.Named("server"),
		cfg:     p.Config,
		svc:     p.Svc,
		limiter: newRateLimiter(p.Config.AdViewRateLimit, p.Config.AdViewRateWindow),
	}

	tracing.SetPropagator()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(tracing.GinMiddleware("raffled"))
	engine.Use(s.requestLogger())
	if p.HTTPMetrics != nil {
		engine.Use(metrics.GinMiddleware(p.HTTPMetrics))
	}
	s.engine = engine
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.Healthz)

	v1 := s.engine.Group("/v1")

	authed := v1.Group("", s.AuthRequired())
	authed.POST("/raffles/:id/ad-views", s.RecordAdViews)

	admin := v1.Group("", s.AuthRequired(), s.AdminRequired())
	admin.POST("/raffles/:id/draw", s.RunDrawManual)
	admin.GET("/raffles/:id/stats", s.GetRaffleStats)
	admin.POST("/threshold/simulate", s.SimulateThreshold)
	admin.POST("/selection/test", s.TestSelection)
}

func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(serve),
)

func serve(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				s.log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
