package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/engine"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/config"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/ratelimit"
)

var log = logrus.WithField("component", "api")

// Server REST + WS 服务
type Server struct {
	cfg    config.APIConfig
	sim    *engine.Simulation
	hub    *Hub
	limits *ratelimit.Registry
	http   *http.Server
}

// New 创建服务（不开始监听）
// hub 可由调用方先建好挂到引擎回调上，传 nil 则内部新建。
func New(cfg config.APIConfig, sim *engine.Simulation, hub *Hub) *Server {
	if hub == nil {
		hub = NewHub()
	}
	limits := ratelimit.NewRegistry(nil)
	limits.Register("orders", ratelimit.NewTokenBucket(200, 100))
	limits.Register("news", ratelimit.NewSlidingWindow(30, 10*time.Second))

	s := &Server{cfg: cfg, sim: sim, hub: hub, limits: limits}
	s.http = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Hub 推流集线器（引擎回调往这里发事件）
func (s *Server) Hub() *Hub { return s.hub }

// Router 组装路由
func (s *Server) Router() http.Handler {
	if s.cfg.GinRelease {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.GET("/state", s.handleState)
	api.POST("/control", s.handleControl)
	api.GET("/config", s.handleConfigGet)
	api.POST("/config", s.handleConfigPatch)
	api.POST("/populate", s.handlePopulate)
	api.GET("/populate/status", s.handlePopulateStatus)

	api.GET("/commodities", s.handleCommodities)
	api.GET("/orderbook/:symbol", s.handleOrderbook)
	api.GET("/candles/:symbol", s.handleCandles)
	api.GET("/trades", s.handleTrades)
	api.GET("/agents", s.handleAgents)

	api.POST("/news", s.limit("news"), s.handleNewsInject)
	api.GET("/news/history", s.handleNewsHistory)

	orders := api.Group("/orders")
	orders.Use(s.limit("orders"))
	orders.POST("/", s.handleOrderSubmit)
	orders.DELETE("/:symbol/:id", s.handleOrderCancel)

	if s.cfg.EnableWS {
		r.GET("/stream", func(c *gin.Context) { s.hub.serveWS(c.Writer, c.Request) })
	}
	return r
}

// limit 按名字取限制器的限流中间件
func (s *Server) limit(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limits.Allow(name) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "请求过于频繁"})
			return
		}
		c.Next()
	}
}

// Start 后台监听
func (s *Server) Start() {
	go func() {
		log.Infof("API 监听 %s", s.cfg.Listen)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("API 服务退出: %v", err)
		}
	}()
}

// Shutdown 优雅下线
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.http.Shutdown(ctx)
}
