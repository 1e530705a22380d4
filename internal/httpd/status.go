package httpd

// Protocol はレスポンスで名乗るプロトコル
const Protocol = "HTTP/1.1"

// ステータスコード
const (
	StatusOK               = 200
	StatusBadRequest       = 400
	StatusForbidden        = 403
	StatusNotFound         = 404
	StatusMethodNotAllowed = 405
)

var statusText = map[int]string{
	StatusOK:               "OK",
	StatusBadRequest:       "Bad Request",
	StatusForbidden:        "Forbidden",
	StatusNotFound:         "Not Found",
	StatusMethodNotAllowed: "Method Not Allowed",
}

// StatusText はステータスコードの理由句を返す
func StatusText(code int) string {
	return statusText[code]
}
