// Package logging はzapベースの構造化ロガーを生成する。
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New は指定レベルのJSONロガーを生成する。levelが空の場合はinfo。
// タイムスタンプはISO8601で"timestamp"キー、呼び出し元は"caller"キーに出力する。
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	if level = strings.TrimSpace(level); level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("ログレベルの解析に失敗: %w", err)
		}
		cfg.Level.SetLevel(lvl)
	}

	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("ロガーの構築に失敗: %w", err)
	}
	return logger, nil
}
