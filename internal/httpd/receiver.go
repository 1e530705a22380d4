package httpd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrConnectionClosed はヘッダー終端を受信する前に相手が接続を閉じたことを表す
var ErrConnectionClosed = errors.New("ヘッダー受信前に接続が閉じられました")

var headerTerminator = []byte("\r\n\r\n")

// デフォルトの受信設定
const (
	DefaultChunkSize      = 1024
	DefaultMaxRequestSize = 8192
)

// Receiver は接続からヘッダーブロックを読み込む
type Receiver struct {
	ChunkSize int // 1回の読み込みサイズ
	MaxSize   int // 受信する最大バイト数
}

// Receive はヘッダー終端が現れるか、MaxSize に達するまで読み込む
// 返すバイト列はヘッダー終端を含み、それ以降は含まない
func (rc Receiver) Receive(r io.Reader) ([]byte, error) {
	chunkSize, maxSize := rc.ChunkSize, rc.MaxSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}

	buf := make([]byte, 0, chunkSize)
	chunk := make([]byte, chunkSize)
	for {
		n := chunkSize
		if rest := maxSize - len(buf); rest < n {
			n = rest
		}

		m, err := r.Read(chunk[:n])
		if m > 0 {
			// 終端がチャンク境界をまたぐ場合に備えて直前の3バイトから探す
			from := len(buf) - (len(headerTerminator) - 1)
			if from < 0 {
				from = 0
			}
			buf = append(buf, chunk[:m]...)
			if i := bytes.Index(buf[from:], headerTerminator); i >= 0 {
				return buf[:from+i+len(headerTerminator)], nil
			}
			if len(buf) >= maxSize {
				return buf, nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrConnectionClosed
			}
			return nil, fmt.Errorf("リクエストの読み込みに失敗: %w", err)
		}
	}
}
