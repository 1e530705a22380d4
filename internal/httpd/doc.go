// Package httpd は、1接続分のHTTP/1.1リクエストを処理します。
//
// このパッケージは、生のバイト列からのリクエスト受信、リクエスト行と
// ヘッダーの解析、ドキュメントルートに対するパスの解決、
// レスポンスの組み立てと送信を担当します。
//
// 責務:
//   - ヘッダー終端 (\r\n\r\n) または上限サイズまでのリクエスト受信
//   - リクエスト行・ヘッダーの手書きパーサー（プロトコルライブラリは使わない）
//   - ドキュメントルート外へのトラバーサルの拒否
//   - ステータスライン・ヘッダー・ボディの組み立て
//   - 全ての経路でのソケットのクローズ
//
// 仕様:
//   - 対応メソッドは GET と HEAD のみ（それ以外は 405）
//   - Keep-Alive は非対応（常に Connection: close）
//   - 返すステータスは 200 / 400 / 403 / 404 / 405
//   - 1接続の障害はワーカーに伝搬しない
package httpd
