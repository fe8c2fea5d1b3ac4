package cli

import (
	"fmt"
	"os"

	"github.com/nao1215/survey-edge/internal/stack"
	"github.com/spf13/cobra"
)

// newSynthCommand はスタックのあるべき状態を描画するコマンドを生成する。
func newSynthCommand(opts *options) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "スタックのあるべき状態をYAMLまたはJSONで出力する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			s, err := stack.Build(cfg)
			if err != nil {
				return err
			}
			out, err := s.Render(stack.Format(format))
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0o600); err != nil {
				return fmt.Errorf("%s への書き込みに失敗: %w", output, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(stack.FormatYAML), "出力形式（yaml, json）")
	cmd.Flags().StringVarP(&output, "output", "o", "", "出力先ファイル（省略時は標準出力）")
	return cmd
}
