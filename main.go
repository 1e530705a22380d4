package main

import (
	"context"
	"log"
	"os"

	"hakobiya/internal/admin"
	"hakobiya/internal/config"
	"hakobiya/internal/logging"
	"hakobiya/internal/server"
)

func main() {
	// 設定を読み込む（デフォルト値と環境変数のみ）
	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("ロガーの作成に失敗しました: %v", err)
	}
	defer closer.Close()

	// サーバーを作成
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("サーバーの作成に失敗しました", "error", err)
		os.Exit(1)
	}

	if cfg.Admin.Enabled {
		api, err := admin.New(cfg.Admin, srv, logger)
		if err != nil {
			logger.Error("管理APIの作成に失敗しました", "error", err)
			os.Exit(1)
		}
		srv.Attach(api)
	}

	// サーバーを起動
	if err := srv.Start(context.Background()); err != nil {
		logger.Error("サーバーの起動に失敗しました", "error", err)
		closer.Close()
		os.Exit(1)
	}
}
