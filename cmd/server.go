// Package main はhakobiyaサーバーコマンドの実装です
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"hakobiya/internal/admin"
	"hakobiya/internal/config"
	"hakobiya/internal/logging"
	"hakobiya/internal/server"
)

// version はビルド時に -ldflags で上書きされる
var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd はルートコマンドを作成する
func newRootCmd() *cobra.Command {
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "hakobiya",
		Short: "hakobiya - 静的ファイルHTTPサーバー",
		Long: `hakobiya はドキュメントルート配下のファイルを GET/HEAD で配信する
HTTP/1.1 サーバーです。固定数のワーカーが1つのリスナーから接続を受け付けます。`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd)
		},
	}
	cmd.SetVersionTemplate("hakobiya version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringP("host", "s", d.Server.Host, "リッスンするホスト")
	flags.IntP("port", "p", d.Server.Port, "リッスンするポート")
	flags.IntP("workers", "w", d.Server.Workers, "ワーカー数")
	flags.StringP("root", "r", d.Server.Root, "ドキュメントルート")
	flags.BoolP("debug", "d", false, "デバッグログを有効にする")
	flags.String("config", "", "設定ファイル (YAML/TOML/JSON)")
	flags.String("log-file", d.Log.File, "ログの出力先ファイル (デフォルト: 標準エラー出力)")
	flags.String("log-format", d.Log.Format, "ログの形式 (auto, text, json)")
	flags.Int("backlog", d.Server.Backlog, "listenのバックログ")
	flags.Bool("admin", d.Admin.Enabled, "管理APIを有効にする")
	flags.String("admin-addr", d.Admin.Addr, "管理APIのアドレス")

	cmd.AddCommand(newConfigCmd())
	return cmd
}

// loadConfig はフラグを含めて設定を読み込む
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(config.LoadOptions{ConfigFile: file, Flags: cmd.Flags()})
}

func runServer(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "設定の読み込みに失敗しました: %v\n", err)
		return err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "ロガーの作成に失敗しました: %v\n", err)
		return err
	}
	defer closer.Close()

	if err := serve(cmd.Context(), cfg, logger); err != nil {
		logger.Error("サーバーの起動に失敗しました", "error", err)
		return err
	}
	return nil
}

// serve はサーバーを作成し、停止するまでブロックする
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Admin.Enabled {
		api, err := admin.New(cfg.Admin, srv, logger)
		if err != nil {
			return err
		}
		srv.Attach(api)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	return srv.Start(ctx)
}
