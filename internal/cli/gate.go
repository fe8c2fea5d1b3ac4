package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/nao1215/survey-edge/pkg/basicauth"
	"github.com/spf13/cobra"
)

// decisionOutput はgate checkの出力。
type decisionOutput struct {
	Kind              string `json:"kind"`
	ServiceIndex      int    `json:"serviceIndex"`
	StatusCode        int    `json:"statusCode,omitempty"`
	StatusDescription string `json:"statusDescription,omitempty"`
	WWWAuthenticate   string `json:"wwwAuthenticate,omitempty"`
}

// newGateCommand はゲートを評価するコマンドを生成する。
func newGateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Basic認証ゲートを評価する",
	}
	cmd.AddCommand(newGateCheckCommand(opts), newGateEventCommand(opts))
	return cmd
}

// newGateCheckCommand はパスと資格情報の組を評価するコマンドを生成する。
func newGateCheckCommand(opts *options) *cobra.Command {
	var (
		path          string
		username      string
		password      string
		authorization string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "パスと資格情報に対するゲートの判定を表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := opts.loadGate(cmd)
			if err != nil {
				return err
			}
			if authorization == "" && cmd.Flags().Changed("user") {
				authorization = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
			}

			d := g.Evaluate(path, authorization)
			return writeJSON(cmd, decisionOutput{
				Kind:              d.Kind.String(),
				ServiceIndex:      d.ServiceIndex,
				StatusCode:        d.StatusCode(),
				StatusDescription: d.StatusDescription(),
				WWWAuthenticate:   d.WWWAuthenticate(),
			})
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "/", "リクエストのパス")
	cmd.Flags().StringVarP(&username, "user", "u", "", "ユーザー名")
	cmd.Flags().StringVar(&password, "password", "", "パスワード")
	cmd.Flags().StringVar(&authorization, "authorization", "", "Authorizationヘッダーの値（--userより優先）")
	return cmd
}

// newGateEventCommand は標準入力のエッジイベントを評価するコマンドを生成する。
func newGateEventCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "event",
		Short: "標準入力のビューアーリクエストイベントを評価し、転送するリクエストまたは応答を出力する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := opts.loadGate(cmd)
			if err != nil {
				return err
			}

			var ev basicauth.Event
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&ev); err != nil {
				return fmt.Errorf("イベントのデシリアライズに失敗: %w", err)
			}
			res := basicauth.HandleEvent(g, ev)
			if res.Response != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), res.Response)
			}
			return writeJSON(cmd, res)
		},
	}
}

// loadGate は設定からゲートを生成する。ゲートが配信に適用されない設定の場合は警告する。
func (o *options) loadGate(cmd *cobra.Command) (*basicauth.Gate, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Gate.Enabled {
		fmt.Fprintln(cmd.ErrOrStderr(), "警告: NUXT_APP_BASIC_AUTH_ON_CLOUD_FRONTがyesでないため、このゲートは配信に適用されません")
	}
	return basicauth.New(cfg.Gate.Rules), nil
}

// writeJSON は値をインデント付きJSONで出力する。
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("JSONへの変換に失敗: %w", err)
	}
	return nil
}
