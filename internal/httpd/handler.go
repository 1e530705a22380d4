package httpd

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Options は接続処理の設定
type Options struct {
	ChunkSize      int
	MaxRequestSize int
	ReadTimeout    time.Duration // 0はOSのデフォルト
	WriteTimeout   time.Duration // 0はOSのデフォルト
}

// Result は1接続の処理結果
type Result struct {
	ID     string // 接続ごとのUUID
	Peer   string
	Method string
	URI    string
	Status int   // レスポンスを送れなかった場合は 0
	Bytes  int64 // 送信したバイト数
	Err    error
}

// Handler は1接続分の 受信 → 解析 → 組み立て → 送信 を担う
type Handler struct {
	resolver *Resolver
	builder  *Builder
	receiver Receiver
	opts     Options
	logger   *slog.Logger
}

// NewHandler は新しいHandlerを作成する
func NewHandler(resolver *Resolver, builder *Builder, opts Options, logger *slog.Logger) *Handler {
	if builder == nil {
		builder = NewBuilder()
	}
	return &Handler{
		resolver: resolver,
		builder:  builder,
		receiver: Receiver{ChunkSize: opts.ChunkSize, MaxSize: opts.MaxRequestSize},
		opts:     opts,
		logger:   logger,
	}
}

// Serve は接続を処理し、どの経路でも必ず接続を閉じる
// パニックを含む全ての障害はここで止め、呼び出し元には Result として返す
func (h *Handler) Serve(conn net.Conn) (res Result) {
	res.ID = uuid.NewString()
	res.Peer = peerAddr(conn)
	logger := h.logger.With("conn_id", res.ID, "peer", res.Peer)

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("接続の処理中にパニック: %v", p)
			logger.Error("接続の処理中にパニックが発生しました",
				"panic", p, "stack", string(debug.Stack()))
		}
		logger.Debug("ソケットを閉じます")
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Debug("ソケットのクローズに失敗しました", "error", err)
		}
	}()

	if h.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	}
	raw, err := h.receiver.Receive(conn)
	if err != nil {
		res.Err = err
		logger.Error("リクエストの受信に失敗しました", "error", err)
		return res
	}
	logger.Debug("リクエストを受信しました", "request", string(raw))

	target := h.resolver.Resolve(raw)
	res.Method, res.URI = target.Method, target.URI
	if target.Request != nil && len(target.Request.Malformed) > 0 {
		logger.Debug("不正なヘッダー行を読み飛ばしました", "lines", target.Request.Malformed)
	}

	resp, err := h.builder.Build(target)
	if err != nil {
		// 解決後にファイルが消えた場合など
		logger.Warn("レスポンスの生成に失敗しました", "path", target.Path, "error", err)
		target.Status, target.Path = StatusNotFound, ""
		if resp, err = h.builder.Build(target); err != nil {
			res.Err = err
			return res
		}
	}

	if h.opts.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
	}
	n, err := resp.WriteTo(conn)
	res.Bytes = n
	if err != nil {
		res.Err = fmt.Errorf("レスポンスの送信に失敗: %w", err)
		logger.Error("レスポンスの送信に失敗しました", "error", err, "written", n)
		return res
	}
	res.Status = resp.Status

	logger.Info(fmt.Sprintf("%q %d", target.Method+" "+target.URI+" "+Protocol, resp.Status),
		"bytes", n)
	return res
}

func peerAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
