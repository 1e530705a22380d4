package httpd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// DefaultServerName は Server ヘッダーの値
const DefaultServerName = "hakobiya/0.1.0"

// DateFormat は Date ヘッダーの書式 (RFC 1123, 常にUTC)
const DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Field はレスポンスヘッダーの1項目
type Field struct {
	Name  string
	Value string
}

// Response は送信するレスポンス
// Content-Length は GET で送るボディの長さと常に一致する
type Response struct {
	Status int
	Reason string
	Header []Field // 送信順
	Body   []byte
}

// Get はヘッダーの値を取得する
func (r *Response) Get(name string) string {
	for _, f := range r.Header {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Bytes はレスポンス全体をシリアライズする
func (r *Response) Bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %s\r\n", Protocol, r.Status, r.Reason)
	for _, f := range r.Header {
		fmt.Fprintf(&buf, "%s: %s\r\n", f.Name, f.Value)
	}
	buf.WriteString("\r\n")
	buf.Write(r.Body)
	return buf.Bytes()
}

// WriteTo はレスポンス全体を書き出す。部分書き込みは全て送り切るまで繰り返す
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	return writeFull(w, r.Bytes())
}

func writeFull(w io.Writer, b []byte) (int64, error) {
	var total int64
	for len(b) > 0 {
		n, err := w.Write(b)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
		b = b[n:]
	}
	return total, nil
}

// Builder は Target から Response を組み立てる
type Builder struct {
	ServerName string
	Now        func() time.Time
}

// NewBuilder は新しいBuilderを作成する
func NewBuilder() *Builder {
	return &Builder{
		ServerName: DefaultServerName,
		Now:        time.Now,
	}
}

// Build はレスポンスを組み立てる
// ファイルを読むのは Status が 200 のときだけで、HEAD ではボディを読まない
func (b *Builder) Build(t Target) (*Response, error) {
	var (
		body        []byte
		length      int64
		contentKind = "text/plain"
	)

	if t.Status == StatusOK {
		info, err := os.Stat(t.Path)
		if err != nil {
			return nil, fmt.Errorf("ファイル %s の参照に失敗: %w", t.Path, err)
		}

		if t.Method == MethodHead {
			length = info.Size()
			contentKind = contentType(t.Path, nil)
		} else {
			if body, err = os.ReadFile(t.Path); err != nil {
				return nil, fmt.Errorf("ファイル %s の読み込みに失敗: %w", t.Path, err)
			}
			length = int64(len(body))
			contentKind = contentType(t.Path, body)
		}
	}

	reason := StatusText(t.Status)
	if reason == "" {
		return nil, fmt.Errorf("未対応のステータス: %d", t.Status)
	}

	now, name := time.Now, DefaultServerName
	if b.Now != nil {
		now = b.Now
	}
	if b.ServerName != "" {
		name = b.ServerName
	}

	return &Response{
		Status: t.Status,
		Reason: reason,
		Header: []Field{
			{"Date", now().UTC().Format(DateFormat)},
			{"Server", name},
			{"Connection", "close"},
			{"Content-Length", strconv.FormatInt(length, 10)},
			{"Content-Type", contentKind},
		},
		Body: body,
	}, nil
}
