package cli

import (
	"fmt"

	"github.com/nao1215/survey-edge/internal/localstack"
	"github.com/nao1215/survey-edge/internal/stack"
	"github.com/spf13/cobra"
)

// newLocalCommand はローカル開発用のリソースを操作するコマンドを生成する。
func newLocalCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "ローカル開発用のリソースを操作する",
	}
	cmd.AddCommand(newLocalProvisionCommand(opts))
	return cmd
}

// newLocalProvisionCommand は宣言されたテーブルをSQLiteに作成するコマンドを生成する。
func newLocalProvisionCommand(opts *options) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "宣言されたテーブルとインデックスをSQLiteに作成する",
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

			s, err := stack.Build(cfg)
			if err != nil {
				return err
			}
			store, err := localstack.Open(dsn, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Provision(cmd.Context(), s.Tables); err != nil {
				return err
			}
			names, err := store.Tables(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "db", "local.db", "SQLiteのデータベースファイル")
	return cmd
}
