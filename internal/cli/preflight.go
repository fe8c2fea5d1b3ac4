package cli

import (
	"fmt"

	"github.com/nao1215/survey-edge/internal/preflight"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newPreflightCommand はデプロイ前チェックを実行するコマンドを生成する。
func newPreflightCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "AWSアカウント・成果物バケット・アプリオリジンを確認する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := opts.newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			checker, err := preflight.NewFromEnv(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			report, runErr := checker.Run(cmd.Context())

			out, err := yaml.Marshal(report)
			if err != nil {
				return fmt.Errorf("YAMLへの変換に失敗: %w", err)
			}
			if _, err := cmd.OutOrStdout().Write(out); err != nil {
				return err
			}
			return runErr
		},
	}
}
