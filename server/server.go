package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/pkg/logger"
	"github.com/rushteam/newsrec/service"
)

func invalidBody(err error) error {
	return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput,
		fmt.Sprintf("invalid request body: %v", err))
}

// NewRouter 组装全部路由。
func NewRouter(svc *service.Recommender, mode string) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	h := NewHandler(svc)
	r.POST("/recommendations", h.Recommend)
	r.POST("/click", h.Click)
	r.POST("/session/start", h.StartSession)
	r.GET("/history/:anonymous_id", h.History)
	r.GET("/trending", h.Trending)
	r.GET("/healthz", h.Healthz)
	return r
}

// Server 包装 http.Server，提供优雅退出。
type Server struct {
	srv *http.Server
	log *logger.Logger
}

func New(addr string, handler http.Handler, log *logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		log: log,
	}
}

// Run 阻塞运行直到 ctx 取消，随后在限定时间内优雅关停。
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
