package httpd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// IndexFile はディレクトリへのリクエストで返すファイル名
const IndexFile = "index.html"

// placeholder はリクエスト行が読めなかったときのメソッドとパス
const placeholder = "?"

// Target はパス解決の結果
// Status が 200 の場合、Path はドキュメントルート内に存在する通常ファイルを指す
type Target struct {
	Status  int
	Method  string
	URI     string
	Path    string // 絶対パス（Status が 200 のときのみ）
	Headers Header
	Request *Request // リクエスト行が不正な場合は nil
}

// Resolver はリクエストをドキュメントルート上のファイルに解決する
type Resolver struct {
	root     string // 絶対パス
	realRoot string // シンボリックリンク解決後の絶対パス
}

// NewResolver は新しいResolverを作成する
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントルート %s の絶対パス化に失敗: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントルート %s が見つかりません: %w", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントルート %s を参照できません: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ドキュメントルート %s はディレクトリではありません", root)
	}

	return &Resolver{root: abs, realRoot: resolved}, nil
}

// Root はドキュメントルートの絶対パスを返す
func (r *Resolver) Root() string {
	return r.root
}

// Resolve は生のヘッダーブロックを解析し、ステータスとファイルパスを決定する
// 失敗は全てステータスで表現し、エラーは返さない
func (r *Resolver) Resolve(raw []byte) Target {
	req, err := ParseRequest(raw)
	if err != nil {
		return Target{
			Status:  StatusBadRequest,
			Method:  placeholder,
			URI:     placeholder,
			Headers: Header{},
		}
	}

	t := Target{
		Method:  req.Method,
		URI:     req.URI,
		Headers: req.Headers,
		Request: req,
	}

	// パスの妥当性に関係なく 405
	if !MethodSupported(req.Method) {
		t.Status = StatusMethodNotAllowed
		return t
	}

	t.Status, t.Path = r.resolvePath(req.URI)
	if t.Status != StatusOK {
		t.Path = ""
	}
	return t
}

// resolvePath はリクエストターゲットをファイルパスに解決する
func (r *Resolver) resolvePath(uri string) (int, string) {
	// フラグメントを落としてからクエリ除去とパーセントデコード
	uri, _, _ = strings.Cut(uri, "#")
	u, err := url.ParseRequestURI(uri)
	if err != nil {
		return StatusBadRequest, ""
	}

	reqPath := u.Path
	if strings.IndexByte(reqPath, 0) >= 0 {
		return StatusBadRequest, ""
	}
	if !strings.HasPrefix(reqPath, "/") {
		reqPath = "/" + reqPath
	}

	// Join は正規化も行うため、".." を含む場合はここでルート外になり得る
	path := filepath.Join(r.root, filepath.FromSlash(reqPath))
	if !within(r.root, path) {
		return StatusForbidden, ""
	}

	info, err := os.Stat(path)
	if err != nil {
		return StatusNotFound, ""
	}
	if info.IsDir() {
		path = filepath.Join(path, IndexFile)
		if info, err = os.Stat(path); err != nil {
			return StatusNotFound, ""
		}
	} else if strings.HasSuffix(reqPath, "/") {
		return StatusNotFound, ""
	}
	if !info.Mode().IsRegular() {
		return StatusNotFound, ""
	}

	// ルート内のシンボリックリンクがルート外を指す場合も拒否する
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return StatusNotFound, ""
	}
	if !within(r.realRoot, resolved) {
		return StatusForbidden, ""
	}

	return StatusOK, resolved
}

// within は path が root 以下にあるかを返す
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
