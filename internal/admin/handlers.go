package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hakobiya/internal/server"
)

// StatusSource はサーバーの状態を提供する
type StatusSource interface {
	Status() server.Status
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse は状態取得のレスポンス
type StatusResponse struct {
	server.Status
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler は管理APIのエンドポイントを実装する
type Handler struct {
	source StatusSource
}

// HealthCheck はヘルスチェックエンドポイントの実装
// サーバーが停止済みなら unhealthy を返す
func (h *Handler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	code := http.StatusOK
	if h.source.Status().State == server.StateTerminated.String() {
		response.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, response)
}

// GetStatus はサーバー状態取得エンドポイントの実装
func (h *Handler) GetStatus(c *gin.Context) {
	response := StatusResponse{
		Status:    h.source.Status(),
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// GetOpenAPI はOpenAPIドキュメントを返す
func (h *Handler) GetOpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", OpenAPIDocument())
}

// NotFound は存在しないエンドポイントへのレスポンス
func (h *Handler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:     "not_found",
		Message:   "指定されたエンドポイントが見つかりません",
		Timestamp: time.Now(),
	})
}
