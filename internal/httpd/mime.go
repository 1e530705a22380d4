package httpd

import (
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// fallbackContentType は内容からも判定できなかった場合の Content-Type
const fallbackContentType = "application/octet-stream"

// contentType は拡張子から Content-Type を決め、未知の拡張子なら内容から推定する
// body が nil の場合はファイルの先頭を読んで推定する
func contentType(path string, body []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}

	if body != nil {
		return mimetype.Detect(body).String()
	}
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return fallbackContentType
	}
	return m.String()
}
