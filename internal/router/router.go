package router

import (
	"chatviewer/internal/app/export"
	"chatviewer/internal/app/feed"
	"chatviewer/internal/app/health"
	"chatviewer/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(logger *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(middleware.CORSMiddleware())
	engine.Use(middleware.LoggerMiddleware(logger))
	engine.Use(gin.Recovery())
	return &Router{Engine: engine}
}

func (r *Router) RegisterHealthRoutes(handler health.Handler) {
	health.RegisterRoutes(r.Engine.Group("/api"), handler)
}

func (r *Router) RegisterFeedRoutes(handler feed.Handler) {
	feed.RegisterRoutes(r.Engine, handler)
}

func (r *Router) RegisterExportRoutes(handler export.Handler) {
	export.RegisterRoutes(r.Engine, handler)
}

func (r *Router) RegisterMetricsRoutes() {
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (r *Router) Serve(addr string) error {
	return r.Engine.Run(addr)
}
