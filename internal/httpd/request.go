package httpd

import (
	"errors"
	"strings"
)

// 対応するメソッド
const (
	MethodGet  = "GET"
	MethodHead = "HEAD"
)

// ErrBadRequestLine はリクエスト行が METHOD SP TARGET SP VERSION の形でないことを表す
var ErrBadRequestLine = errors.New("不正なリクエスト行")

// Header はヘッダー名（小文字）から値への対応
// 同名のヘッダーは後勝ち。http.Header と異なり複数値は持たない
type Header map[string]string

// Get は大文字小文字を区別せずにヘッダーを取得する
func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Request は解析済みのリクエスト
type Request struct {
	Method  string // 大文字に正規化したメソッド
	URI     string // リクエストターゲット
	Version string
	Headers Header
	Raw     string // 受信した生のテキスト

	// Malformed はコロンを含まないため読み飛ばしたヘッダー行
	Malformed []string
}

// ParseRequest は生のヘッダーブロックを解析する
// リクエスト行が不正な場合のみ ErrBadRequestLine を返し、不正なヘッダー行は読み飛ばす
func ParseRequest(raw []byte) (*Request, error) {
	text := string(raw)
	lines := strings.Split(text, "\r\n")

	fields := strings.Fields(lines[0])
	if len(fields) != 3 {
		return nil, ErrBadRequestLine
	}

	req := &Request{
		Method:  strings.ToUpper(fields[0]),
		URI:     fields[1],
		Version: fields[2],
		Headers: make(Header),
		Raw:     text,
	}

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			req.Malformed = append(req.Malformed, line)
			continue
		}
		req.Headers[name] = strings.TrimSpace(value)
	}

	return req, nil
}

// MethodSupported はメソッドが GET または HEAD かどうかを返す
func MethodSupported(method string) bool {
	switch strings.ToUpper(method) {
	case MethodGet, MethodHead:
		return true
	}
	return false
}
