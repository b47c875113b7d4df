package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

const requestIDHeader = "X-Request-ID"

type FastAPIServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Service interfaces.IPipelineService
	Hub     *Hub

	engine     *gin.Engine
	httpServer *http.Server

	// background runs started by the async endpoints
	runCtx    context.Context
	cancelRun context.CancelFunc
	runs      sync.WaitGroup
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(cfg *models.MConfig, svc interfaces.IPipelineService, hub *Hub, logger *logger.Logger) *FastAPIServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &FastAPIServer{
		Config:    cfg,
		Logger:    logger,
		Service:   svc,
		Hub:       hub,
		engine:    gin.New(),
		runCtx:    runCtx,
		cancelRun: cancel,
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	// local dashboards only
	s.engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:")
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "X-Requested-With", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/events", s.getEvents)

	api.GET("/issuers", s.listIssuers)
	api.GET("/issuers/:code", s.getIssuer)
	api.GET("/issuers/:code/prices", s.getPrices)
	api.GET("/issuers/:code/summary", s.getSummary)
	api.GET("/issuers/:code/news", s.getNews)

	api.POST("/symbols/refresh", s.refreshSymbols)
	api.POST("/fetch", s.fetchSymbol)
	api.POST("/fetch/stale", s.fetchStale)
	api.POST("/fetch/all", s.fetchAll)
	api.POST("/news", s.collectNews)
	api.POST("/news/content", s.fetchNewsContent)
	api.POST("/import", s.importCSV)
	api.DELETE("/prices", s.clearPrices)

	s.engine.GET("/ws", func(c *gin.Context) { s.Hub.ServeWS(c.Writer, c.Request) })
}

// Handler exposes the router, mainly for tests.
func (s *FastAPIServer) Handler() http.Handler { return s.engine }

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves HTTP until Stop is called.
func (s *FastAPIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	s.Logger.Info("Starting server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the listener down, cancels background runs and waits for them.
func (s *FastAPIServer) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.cancelRun()

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Logger.Warning("Background runs still active at shutdown")
	}
	return err
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			s.Logger.Error("[%s] %s %s -> %d (%s)", requestID, c.Request.Method, c.Request.URL.Path, status, time.Since(start))
		} else {
			s.Logger.Debug("[%s] %s %s -> %d (%s)", requestID, c.Request.Method, c.Request.URL.Path, status, time.Since(start))
		}
	}
}
