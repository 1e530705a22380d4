package admin

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// OpenAPIDocument は埋め込まれたOpenAPIドキュメントを返す
func OpenAPIDocument() []byte {
	return openAPIDocument
}

// LoadOpenAPI は埋め込まれたOpenAPIドキュメントを読み込んで検証する
func LoadOpenAPI(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("OpenAPIドキュメントの読み込みに失敗: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("OpenAPIドキュメントの検証に失敗: %w", err)
	}
	return doc, nil
}
