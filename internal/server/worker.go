package server

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"hakobiya/internal/httpd"
)

// ConnHandler は1接続を処理し、必ず接続を閉じる
type ConnHandler interface {
	Serve(conn net.Conn) httpd.Result
}

// acceptの一時的なエラー時の待機時間
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = 1 * time.Second
)

// Worker は共有リスナーに対して独立したacceptループを回す
// 一度に処理する接続は1つだけで、処理が終わるまで次のacceptはしない
type Worker struct {
	id      int
	handler ConnHandler
	logger  *slog.Logger
	stats   counters

	mu         sync.Mutex
	active     net.Conn // 処理中の接続
	terminated bool
}

// NewWorker は新しいWorkerを作成する
func NewWorker(id int, handler ConnHandler, logger *slog.Logger) *Worker {
	return &Worker{
		id:      id,
		handler: handler,
		logger:  logger.With("worker", id),
	}
}

// ID はワーカーの識別子を返す
func (w *Worker) ID() int {
	return w.id
}

// Run はリスナーが閉じられるまで accept → 処理 を繰り返す
func (w *Worker) Run(ln net.Listener) {
	w.logger.Debug("ワーカーを開始しました")
	defer w.logger.Debug("ワーカーを終了しました")

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// net/http と同様に待機時間を伸ばしながら再試行する
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			w.logger.Warn("acceptに失敗しました", "error", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		w.stats.lastAccept.Store(time.Now().UnixNano())
		w.logger.Debug("接続を受け付けました", "peer", conn.RemoteAddr().String())
		w.serve(conn)
	}
}

func (w *Worker) serve(conn net.Conn) {
	if !w.track(conn) {
		conn.Close()
		return
	}
	defer w.untrack()

	res := w.handler.Serve(conn)
	w.stats.record(res)
}

func (w *Worker) track(conn net.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.terminated {
		return false
	}
	w.active = conn
	return true
}

func (w *Worker) untrack() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = nil
}

// Terminate は処理中の接続を強制的に閉じ、以降の接続を受け付けなくする
// 処理中の接続の完了は待たない
func (w *Worker) Terminate() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.terminated = true
	if w.active != nil {
		w.logger.Debug("処理中の接続を切断します", "peer", w.active.RemoteAddr().String())
		w.active.Close()
	}
}

// Stats はワーカーの統計を返す
func (w *Worker) Stats() WorkerStats {
	w.mu.Lock()
	busy := w.active != nil
	w.mu.Unlock()

	return w.stats.snapshot(w.id, busy)
}
