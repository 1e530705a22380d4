// Package admin は、サーバーの状態を確認するための管理用HTTP APIを提供します。
//
// 責務:
//   - ヘルスチェック
//   - ワーカーごとの処理件数・ステータス別件数の公開
//   - OpenAPIドキュメントの配信
//
// 仕様:
//   - Ginを使用（静的ファイルサーバー本体とは別のポートで動作）
//   - APIの定義は埋め込みの openapi.yaml を正とし、起動時に検証する
//   - server.Component として本体と同じライフサイクルで起動・停止する
package admin
