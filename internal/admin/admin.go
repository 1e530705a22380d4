package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"hakobiya/internal/config"
)

// Server は管理APIのHTTPサーバー
type Server struct {
	addr       string
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// New は新しい管理APIサーバーを作成する
// 埋め込みのOpenAPIドキュメントが不正な場合はエラーを返す
func New(cfg config.AdminConfig, source StatusSource, logger *slog.Logger) (*Server, error) {
	if _, err := LoadOpenAPI(context.Background()); err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		addr:   cfg.Addr,
		logger: logger,
		engine: engine,
		httpServer: &http.Server{
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.setupRoutes(&Handler{source: source})
	return s, nil
}

// setupRoutes はルートを設定する
func (s *Server) setupRoutes(h *Handler) {
	s.engine.GET("/health", h.HealthCheck)

	api := s.engine.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/openapi.yaml", h.GetOpenAPI)

	s.engine.NoRoute(h.NotFound)
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr は実際にlistenしているアドレスを返す。起動前は nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start は管理APIを別ゴルーチンで起動する。listenの失敗はここで返す
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("管理APIの %s へのバインドに失敗: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		s.logger.Info("管理APIを起動しています", "address", "http://"+ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("管理APIが異常終了しました", "error", err)
		}
	}()
	return nil
}

// Stop は管理APIをグレースフルにシャットダウンする
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("管理APIのシャットダウンに失敗: %w", err)
	}
	s.logger.Info("管理APIを停止しました")
	return nil
}

// requestLogger はリクエストをslogで記録するミドルウェア
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("管理APIリクエスト",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"client", c.ClientIP())
	}
}
