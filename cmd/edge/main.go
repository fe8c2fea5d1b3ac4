// エッジランタイムのエントリポイント。
// コンテンツ配信層をローカルで再現し、Basic認証ゲートを配信経路に適用する。
// 環境名はSURVEY_ENV（デフォルトdev）、envファイルの場所はSURVEY_ENV_DIR（デフォルト.）で指定する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/survey-edge/internal/config"
	"github.com/nao1215/survey-edge/internal/edge"
	"github.com/nao1215/survey-edge/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	env := os.Getenv("SURVEY_ENV")
	if env == "" {
		env = "dev"
	}
	dir := os.Getenv("SURVEY_ENV_DIR")
	if dir == "" {
		dir = "."
	}

	cfg, err := config.Load(env, dir)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer logger.Sync()

	var store edge.ObjectStore
	if cfg.Edge.S3Endpoint != "" {
		store, err = edge.NewMinioStore(cfg.Edge.S3Endpoint, cfg.Edge.S3AccessKeyID, cfg.Edge.S3SecretKey)
		if err != nil {
			logger.Fatal("オブジェクトストレージの初期化に失敗", zap.Error(err))
		}
	}

	server, err := edge.NewServer(cfg, store, logger)
	if err != nil {
		logger.Fatal("エッジサーバーの初期化に失敗", zap.Error(err))
	}

	logger.Info("エッジランタイムを起動します",
		zap.String("env", cfg.Env),
		zap.String("port", cfg.Edge.Port),
		zap.String("admin_port", cfg.Edge.AdminPort),
		zap.Bool("gate", cfg.Gate.Enabled),
	)
	if err := server.Run(); err != nil {
		logger.Fatal("エッジランタイムの起動に失敗", zap.Error(err))
	}
}
