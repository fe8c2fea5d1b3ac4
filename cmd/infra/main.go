// Pulumiプログラムのエントリポイント。
// Pulumiのスタック名を環境名として設定を読み込み、スタックのあるべき状態を出力として公開する。
// envファイルの場所はSURVEY_ENV_DIR（デフォルト.）で指定する。
package main

import (
	"os"

	"github.com/nao1215/survey-edge/internal/config"
	"github.com/nao1215/survey-edge/internal/stack"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		dir := os.Getenv("SURVEY_ENV_DIR")
		if dir == "" {
			dir = "."
		}

		cfg, err := config.Load(ctx.Stack(), dir)
		if err != nil {
			return err
		}
		s, err := stack.Build(cfg)
		if err != nil {
			return err
		}
		return s.Export(ctx)
	})
}
