package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tradecollector/config"
	"tradecollector/internal/metrics"
	"tradecollector/internal/query"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server is the HTTP front of the query service.
type Server struct {
	cfg     config.APIConfig
	engine  *gin.Engine
	logger  *zap.Logger
	handler *TradingHandler
}

func NewServer(cfg config.APIConfig, metricsCfg config.MetricsConfig, svc *query.Service, m *metrics.Metrics, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:     cfg,
		engine:  gin.New(),
		logger:  logger,
		handler: NewTradingHandler(svc, cfg, logger),
	}

	s.engine.Use(accessLog(logger, m), recovery(logger))
	if cfg.EnableCORS {
		s.engine.Use(cors())
	}

	s.handler.RegisterRoutes(&s.engine.RouterGroup)
	if metricsCfg.Enabled {
		s.engine.GET(metricsCfg.Path, gin.WrapH(m.Handler()))
	}
	s.engine.NoRoute(s.handler.NotFound)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}
