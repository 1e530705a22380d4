package httpd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 5, 9, 7, 3, 0, time.FixedZone("JST", 9*60*60))

func newTestBuilder() *Builder {
	return &Builder{
		ServerName: "test/1.0",
		Now:        func() time.Time { return fixedNow },
	}
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestBuilder_GET(t *testing.T) {
	path := writeFile(t, "index.html", []byte("<h1>hi</h1>"))

	resp, err := newTestBuilder().Build(Target{Status: StatusOK, Method: MethodGet, Path: path})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "OK", resp.Reason)
	assert.Equal(t, "<h1>hi</h1>", string(resp.Body))
	assert.Equal(t, "11", resp.Get("Content-Length"))
	assert.True(t, strings.HasPrefix(resp.Get("Content-Type"), "text/html"), resp.Get("Content-Type"))
	assert.Equal(t, "close", resp.Get("Connection"))
	assert.Equal(t, "test/1.0", resp.Get("Server"))
	// UTCに変換してGMTと表記する
	assert.Equal(t, "Tue, 05 Mar 2024 00:07:03 GMT", resp.Get("Date"))
}

func TestBuilder_HEADMatchesGET(t *testing.T) {
	path := writeFile(t, "style.css", []byte("body { color: red; }"))
	b := newTestBuilder()

	get, err := b.Build(Target{Status: StatusOK, Method: MethodGet, Path: path})
	require.NoError(t, err)
	head, err := b.Build(Target{Status: StatusOK, Method: MethodHead, Path: path})
	require.NoError(t, err)

	assert.Equal(t, get.Header, head.Header)
	assert.Empty(t, head.Body)
	assert.Equal(t, "20", head.Get("Content-Length"))
}

func TestBuilder_SniffUnknownExtension(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{"PNG", png, "image/png"},
		{"テキスト", []byte("just some words\n"), "text/plain"},
		{"バイナリ", []byte{0x00, 0x01, 0x02, 0x03, 0xfe, 0xff}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "blob.zzunknown", tt.content)
			b := newTestBuilder()

			get, err := b.Build(Target{Status: StatusOK, Method: MethodGet, Path: path})
			require.NoError(t, err)
			head, err := b.Build(Target{Status: StatusOK, Method: MethodHead, Path: path})
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(get.Get("Content-Type"), tt.want), get.Get("Content-Type"))
			assert.Equal(t, get.Get("Content-Type"), head.Get("Content-Type"))
		})
	}
}

func TestBuilder_ErrorStatuses(t *testing.T) {
	tests := []struct {
		status int
		reason string
	}{
		{StatusBadRequest, "Bad Request"},
		{StatusForbidden, "Forbidden"},
		{StatusNotFound, "Not Found"},
		{StatusMethodNotAllowed, "Method Not Allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			resp, err := newTestBuilder().Build(Target{Status: tt.status, Method: MethodGet})
			require.NoError(t, err)

			assert.Equal(t, tt.reason, resp.Reason)
			assert.Empty(t, resp.Body)
			assert.Equal(t, "0", resp.Get("Content-Length"))
			assert.Equal(t, "text/plain", resp.Get("Content-Type"))
		})
	}
}

func TestBuilder_Errors(t *testing.T) {
	b := newTestBuilder()

	_, err := b.Build(Target{Status: 500})
	assert.Error(t, err)

	_, err = b.Build(Target{Status: StatusOK, Method: MethodGet, Path: filepath.Join(t.TempDir(), "gone")})
	assert.Error(t, err)
}

func TestResponse_Bytes(t *testing.T) {
	resp := &Response{
		Status: 200,
		Reason: "OK",
		Header: []Field{{"Content-Length", "2"}, {"Content-Type", "text/plain"}},
		Body:   []byte("hi"),
	}

	want := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\nContent-Type: text/plain\r\n\r\nhi"
	assert.Equal(t, want, string(resp.Bytes()))
}

// shortWriter は1回に最大 max バイトしか書き込まない
type shortWriter struct {
	buf bytes.Buffer
	max int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.max {
		p = p[:w.max]
	}
	return w.buf.Write(p)
}

type zeroWriter struct{}

func (zeroWriter) Write(p []byte) (int, error) { return 0, nil }

func TestResponse_WriteToPartialWrites(t *testing.T) {
	resp := &Response{Status: 200, Reason: "OK", Body: bytes.Repeat([]byte("x"), 1000)}
	w := &shortWriter{max: 7}

	n, err := resp.WriteTo(w)
	require.NoError(t, err)
	assert.Equal(t, int64(len(resp.Bytes())), n)
	assert.Equal(t, resp.Bytes(), w.buf.Bytes())

	_, err = resp.WriteTo(zeroWriter{})
	assert.ErrorIs(t, err, io.ErrShortWrite)
}
