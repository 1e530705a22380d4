// Package server は、リスナーとワーカープールを管理します。
//
// このパッケージは、リッスンソケットの作成、ワーカーの起動と停止、
// シグナルによるシャットダウン、ワーカーごとの統計の集計を担当します。
//
// 責務:
//   - SO_REUSEADDR / SO_REUSEPORT を設定したソケットのバインドとlisten
//   - 固定数のワーカーによる独立したacceptループの実行
//   - SIGINT / SIGTERM を受けたときのシャットダウン
//   - 付属サービス（管理APIなど）のライフサイクル管理
//
// 仕様:
//   - 状態は Unbound → Bound → Listening → Serving → Terminated と遷移する
//   - 各ワーカーは一度に1接続のみを同期的に処理する
//   - 同時に処理される接続数はワーカー数を超えない。超えた分はカーネルのバックログで待つ
//   - ワーカー間で共有するのはリスナーのみで、アプリケーションの可変状態は共有しない
//   - シャットダウン時に処理中の接続はドレインせずに切断する
//   - バインドの失敗のみが致命的なエラーとなる
package server
