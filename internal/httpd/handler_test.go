package httpd

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hakobiya/internal/logging"
)

func newTestHandler(t *testing.T, root string) *Handler {
	t.Helper()
	r, err := NewResolver(root)
	require.NoError(t, err)
	logger := logging.Discard()
	return NewHandler(r, NewBuilder(), Options{ChunkSize: 16, MaxRequestSize: 8192}, logger)
}

// roundTrip はnet.Pipe越しにリクエストを送り、生のレスポンスと処理結果を返す
func roundTrip(t *testing.T, h *Handler, request string) ([]byte, Result) {
	t.Helper()

	client, server := net.Pipe()
	done := make(chan Result, 1)
	go func() { done <- h.Serve(server) }()

	_, err := client.Write([]byte(request))
	require.NoError(t, err)

	resp, err := io.ReadAll(client)
	require.NoError(t, err)
	client.Close()

	select {
	case res := <-done:
		return resp, res
	case <-time.After(3 * time.Second):
		t.Fatal("ハンドラーが終了しません")
		return nil, Result{}
	}
}

func parseResponse(t *testing.T, raw []byte, method string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(raw)), &http.Request{Method: method})
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHandler_Serve(t *testing.T) {
	root, _ := newTestRoot(t)
	h := newTestHandler(t, root)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"GET ルート", "GET", "/", 200, "hi"},
		{"GET ファイル", "GET", "/sub/page.txt", 200, "page"},
		{"存在しない", "GET", "/missing", 404, ""},
		{"TRACE", "TRACE", "/", 405, ""},
		{"トラバーサル", "GET", "/../secret.txt", 403, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, res := roundTrip(t, h, tt.method+" "+tt.path+" HTTP/1.1\r\nHost: test\r\n\r\n")
			require.NoError(t, res.Err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, int64(len(raw)), res.Bytes)
			assert.NotEmpty(t, res.ID)

			resp, body := parseResponse(t, raw, tt.method)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantBody, string(body))
			assert.Equal(t, int64(len(body)), resp.ContentLength)
			assert.Equal(t, "close", resp.Header.Get("Connection"))
			assert.NotContains(t, string(body), "top secret")
		})
	}
}

func TestHandler_HEAD(t *testing.T) {
	root, _ := newTestRoot(t)
	h := newTestHandler(t, root)

	getRaw, _ := roundTrip(t, h, "GET /sub/index.html HTTP/1.1\r\n\r\n")
	headRaw, res := roundTrip(t, h, "HEAD /sub/index.html HTTP/1.1\r\n\r\n")
	require.NoError(t, res.Err)

	get, getBody := parseResponse(t, getRaw, "GET")
	head, _ := parseResponse(t, headRaw, "HEAD")

	assert.Equal(t, 200, head.StatusCode)
	assert.Equal(t, int64(len(getBody)), head.ContentLength)
	assert.Equal(t, get.Header.Get("Content-Type"), head.Header.Get("Content-Type"))

	// ヘッダー終端以降には何も送らない
	assert.True(t, bytes.HasSuffix(headRaw, []byte("\r\n\r\n")))
}

func TestHandler_BadRequest(t *testing.T) {
	root, _ := newTestRoot(t)
	h := newTestHandler(t, root)

	raw, res := roundTrip(t, h, "NONSENSE\r\n\r\n")
	assert.Equal(t, 400, res.Status)
	assert.Equal(t, "?", res.Method)

	resp, _ := parseResponse(t, raw, "GET")
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandler_PeerClosedEarly(t *testing.T) {
	root, _ := newTestRoot(t)
	h := newTestHandler(t, root)

	client, server := net.Pipe()
	done := make(chan Result, 1)
	go func() { done <- h.Serve(server) }()

	_, err := client.Write([]byte("GET / HTTP/1.1\r\n"))
	require.NoError(t, err)
	require.NoError(t, client.Close())

	select {
	case res := <-done:
		assert.ErrorIs(t, res.Err, ErrConnectionClosed)
		assert.Zero(t, res.Status)
		assert.Zero(t, res.Bytes)
	case <-time.After(3 * time.Second):
		t.Fatal("ハンドラーが終了しません")
	}
}

// panicConn はReadでパニックするnet.Conn
type panicConn struct {
	net.Conn
	closed atomic.Bool
}

func (c *panicConn) Read([]byte) (int, error)         { panic("read exploded") }
func (c *panicConn) Close() error                     { c.closed.Store(true); return nil }
func (c *panicConn) RemoteAddr() net.Addr             { return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4242} }
func (c *panicConn) SetReadDeadline(time.Time) error  { return nil }
func (c *panicConn) SetWriteDeadline(time.Time) error { return nil }

func TestHandler_RecoversPanic(t *testing.T) {
	root, _ := newTestRoot(t)
	h := newTestHandler(t, root)
	conn := &panicConn{}

	var res Result
	assert.NotPanics(t, func() { res = h.Serve(conn) })
	assert.Error(t, res.Err)
	assert.Equal(t, "10.0.0.1:4242", res.Peer)
	assert.True(t, conn.closed.Load(), "パニック時も接続を閉じること")
}
