// Package server exposes the HTTP API: batch enqueue and progress polling,
// brand profile management, content items, and credit/usage reads.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/storyforge/storyforge/internal/config"
	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	creditdomain "github.com/storyforge/storyforge/internal/credit/domain"
	generationdomain "github.com/storyforge/storyforge/internal/generation/domain"
	organizationdomain "github.com/storyforge/storyforge/internal/organization/domain"
	"github.com/storyforge/storyforge/internal/ratelimit"
	usagedomain "github.com/storyforge/storyforge/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServerParam struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	GenID      *snowflake.Node
	Generation generationdomain.Service
	Orgs       organizationdomain.Service
	Items      contentdomain.Repository
	Credits    creditdomain.Service
	Usage      usagedomain.Repository
	Limiter    *ratelimit.EnqueueLimiter `optional:"true"`
}

type Server struct {
	log        *zap.Logger
	cfg        config.Config
	genID      *snowflake.Node
	generation generationdomain.Service
	orgs       organizationdomain.Service
	items      contentdomain.Repository
	credits    creditdomain.Service
	usage      usagedomain.Repository
	limiter    *ratelimit.EnqueueLimiter
}

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func NewServer(r *gin.Engine, p ServerParam) *Server {
	s := &Server{
		log:        p.Log.Named("http.server"),
		cfg:        p.Cfg,
		genID:      p.GenID,
		generation: p.Generation,
		orgs:       p.Orgs,
		items:      p.Items,
		credits:    p.Credits,
		usage:      p.Usage,
		limiter:    p.Limiter,
	}

	v1 := r.Group("/v1")
	v1.POST("/organizations", s.CreateOrganization)

	scoped := v1.Group("", OrgContext())
	{
		scoped.GET("/brand-profile", s.GetBrandProfile)
		scoped.PUT("/brand-profile", s.UpsertBrandProfile)

		scoped.POST("/content-items", s.CreateContentItem)
		scoped.GET("/content-items/:id", s.GetContentItem)

		scoped.POST("/generation/batches", s.EnqueueBatch)
		scoped.GET("/generation/batches", s.ListBatches)
		scoped.GET("/generation/batches/:id", s.GetBatchStatus)
		scoped.POST("/generation/batches/:id/process", s.ProcessBatchItem)
		scoped.POST("/generation/batches/:id/cancel", s.CancelBatch)

		scoped.GET("/credits", s.GetCreditBalance)
		scoped.GET("/usage", s.ListUsage)
	}

	return s
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)
