package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"hakobiya/internal/config"
	"hakobiya/internal/httpd"
)

// State はサーバーのライフサイクル上の状態
type State int32

const (
	StateUnbound    State = iota // 未バインド
	StateBound                   // バインド済み
	StateListening               // listen中（ワーカー未起動）
	StateServing                 // ワーカーがacceptループを実行中
	StateTerminated              // 停止済み
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateListening:
		return "listening"
	case StateServing:
		return "serving"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// shutdownTimeout はワーカーと付属サービスの停止を待つ時間
const shutdownTimeout = 5 * time.Second

// Component はサーバーと同じライフサイクルで動く付属サービス
type Component interface {
	// Start はサービスを開始する。ブロックしない
	Start(ctx context.Context) error

	// Stop はサービスを停止する
	Stop(ctx context.Context) error
}

// Server はリスナーとワーカープールを管理する構造体
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	root       string
	workers    []*Worker
	components []Component

	state     atomic.Int32
	startedAt atomic.Int64

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
	done     chan struct{} // Shutdown で閉じる
}

// New は新しいServerインスタンスを作成する
// ドキュメントルートが存在しない場合はエラーを返す
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	resolver, err := httpd.NewResolver(cfg.Server.Root)
	if err != nil {
		return nil, err
	}

	handler := httpd.NewHandler(resolver, httpd.NewBuilder(), httpd.Options{
		ChunkSize:      cfg.Server.ChunkSize,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	}, logger)

	return newServer(cfg, logger, resolver.Root(), handler), nil
}

func newServer(cfg *config.Config, logger *slog.Logger, root string, handler ConnHandler) *Server {
	s := &Server{
		config: cfg,
		logger: logger,
		root:   root,
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Server.Workers; i++ {
		s.workers = append(s.workers, NewWorker(i+1, handler, logger))
	}
	return s
}

// Attach は付属サービスを登録する。Start より前に呼ぶ
func (s *Server) Attach(c Component) {
	s.components = append(s.components, c)
}

// State は現在の状態を返す
func (s *Server) State() State {
	return State(s.state.Load())
}

func (s *Server) setState(st State) {
	s.state.Store(int32(st))
}

// Addr は実際にlistenしているアドレスを返す。listen前は nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen はソケットをバインドしてlistenする
// バインドの失敗はサーバー全体にとって致命的なエラーとして返す
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateUnbound {
		return fmt.Errorf("サーバーは既に %s 状態です", s.State())
	}

	addr := s.config.ServerAddress()
	sock, err := bind(addr)
	if err != nil {
		return fmt.Errorf("%s へのバインドに失敗: %w", addr, err)
	}
	s.setState(StateBound)

	ln, err := sock.listen(s.config.Server.Backlog)
	if err != nil {
		s.setState(StateUnbound)
		return fmt.Errorf("%s でのlistenに失敗: %w", addr, err)
	}
	s.listener = ln
	s.setState(StateListening)

	s.logger.Info("サーバーを起動しています",
		"address", "http://"+ln.Addr().String(),
		"root", s.root,
		"workers", len(s.workers),
		"backlog", s.config.Server.Backlog)
	return nil
}

// serve は全ワーカーのacceptループを開始する
func (s *Server) serve() {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w *Worker) {
			defer s.wg.Done()
			w.Run(ln)
		}(w)
		s.logger.Debug("ワーカーを起動しました", "worker", w.ID())
	}

	s.startedAt.Store(time.Now().UnixNano())
	s.setState(StateServing)
}

// Start はサーバーを起動し、コンテキストのキャンセルかシグナルを受けるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	if s.State() == StateUnbound {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	// 付属サービスを開始
	for _, c := range s.components {
		if err := c.Start(ctx); err != nil {
			s.Shutdown()
			return fmt.Errorf("付属サービスの起動に失敗: %w", err)
		}
	}

	s.serve()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.logger.Info("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info("シグナルを受信しました", "signal", sig.String())
	case <-s.done:
	}

	return s.Shutdown()
}

// Shutdown はリスナーを閉じ、処理中の接続を切断してワーカーを停止する
// 接続のドレインは行わない。複数回呼んでも安全
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.shutdown()
		close(s.done)
	})
	return s.stopErr
}

func (s *Server) shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています...")

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	var errs []error
	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("リスナーのクローズに失敗: %w", err))
		}
	}
	for _, w := range s.workers {
		w.Terminate()
		s.logger.Debug("ワーカーを停止しました", "worker", w.ID())
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, errors.New("ワーカーの停止がタイムアウトしました"))
	}

	for _, c := range s.components {
		if err := c.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("付属サービスの停止に失敗: %w", err))
		}
	}

	s.setState(StateTerminated)
	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}

// Status はサーバーとワーカーの状態のスナップショットを返す
func (s *Server) Status() Status {
	st := Status{
		State:    s.State().String(),
		Address:  s.config.ServerAddress(),
		Root:     s.root,
		ByStatus: make(map[string]uint64, len(trackedStatuses)),
		Workers:  make([]WorkerStats, 0, len(s.workers)),
	}
	if addr := s.Addr(); addr != nil {
		st.Address = addr.String()
	}
	if ns := s.startedAt.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		st.StartedAt = &t
	}

	for _, w := range s.workers {
		ws := w.Stats()
		st.Served += ws.Served
		st.Aborted += ws.Aborted
		for code, n := range ws.ByStatus {
			st.ByStatus[code] += n
		}
		st.Workers = append(st.Workers, ws)
	}
	return st
}
