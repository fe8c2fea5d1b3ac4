package cli

import (
	"fmt"

	"github.com/nao1215/survey-edge/internal/config"
	"github.com/nao1215/survey-edge/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options は全サブコマンド共通のフラグ。
type options struct {
	env      string
	envDir   string
	logLevel string
}

// NewRootCommand はsurveyctlのルートコマンドを生成する。
func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "surveyctl",
		Short:         "アンケートアプリの配信基盤を操作する",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.env, "env", "e", "dev", "環境名（.env.<env>を読み込む）")
	cmd.PersistentFlags().StringVar(&opts.envDir, "env-dir", ".", ".env.<env>を置いたディレクトリ")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "ログレベル（省略時はLOG_LEVEL）")

	cmd.AddCommand(
		newSynthCommand(opts),
		newGateCommand(opts),
		newPreflightCommand(opts),
		newLocalCommand(opts),
	)
	return cmd
}

// loadConfig は設定を読み込む。
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.env, o.envDir)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	return cfg, nil
}

// newLogger はフラグまたは設定のログレベルでロガーを生成する。
func (o *options) newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := o.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	return logging.New(level)
}
