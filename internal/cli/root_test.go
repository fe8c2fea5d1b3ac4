package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testEnv はテスト用のenvファイル。
const testEnv = `
NUXT_SYS_SERVICE_NAME=survey-sundai
NUXT_AWS_S3_STORAGE_CACHE_BUCKET_NAME=survey-test-cache
NUXT_APP_ACCESS_KEY_NAME=x-origin-key
NUXT_APP_ACCESS_KEY_VALUE=origin-secret
NUXT_APP_BASIC_AUTH_ON_CLOUD_FRONT=yes
NUXT_APP_BASIC_AUTH_PUBLIC_SERVICES='/api/health$'
NUXT_APP_BASIC_AUTH_SERVICES=/
NUXT_APP_BASIC_AUTH_REALMS=survey
NUXT_APP_BASIC_AUTH_USERNAMES=user
NUXT_APP_BASIC_AUTH_PASSWORDS=pass
NUXT_AWS_DYNAMO_TABLE_PREFIX=Test
LOG_LEVEL=error
`

// writeEnvDir はテスト用のenvファイルを置いたディレクトリを返す。
func writeEnvDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env.test"), []byte(testEnv), 0o600); err != nil {
		t.Fatalf("envファイルの書き込みに失敗: %v", err)
	}
	return dir
}

// execute はコマンドを実行して標準出力と標準エラー出力を返す。
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"--env", "test", "--env-dir", writeEnvDir(t)}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// TestSynth はsynthコマンドを検証する。
func TestSynth(t *testing.T) {
	t.Parallel()

	t.Run("YAMLで出力され秘密値が伏せられること", func(t *testing.T) {
		t.Parallel()

		out, _, err := execute(t, "", "synth")
		if err != nil {
			t.Fatalf("synthでエラーが発生: %v", err)
		}
		for _, want := range []string{"name: survey-sundai-test", "TestEntries-round-index", "survey-sundai-test-cloudfront-functions-basic-auth"} {
			if !strings.Contains(out, want) {
				t.Errorf("出力に %q が含まれない", want)
			}
		}
		if strings.Contains(out, "origin-secret") {
			t.Error("出力に共有シークレットが含まれる")
		}
	})

	t.Run("JSONで出力できること", func(t *testing.T) {
		t.Parallel()

		out, _, err := execute(t, "", "synth", "--format", "json")
		if err != nil {
			t.Fatalf("synthでエラーが発生: %v", err)
		}
		var v map[string]any
		if err := json.Unmarshal([]byte(out), &v); err != nil {
			t.Fatalf("JSONのパースに失敗: %v", err)
		}
		if v["name"] != "survey-sundai-test" {
			t.Errorf("name = %v", v["name"])
		}
	})

	t.Run("ファイルに出力できること", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "stack.yaml")
		if _, _, err := execute(t, "", "synth", "-o", path); err != nil {
			t.Fatalf("synthでエラーが発生: %v", err)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("出力ファイルの読み込みに失敗: %v", err)
		}
		if !strings.Contains(string(b), "survey-sundai-test") {
			t.Error("出力ファイルにスタック名が含まれない")
		}
	})

	t.Run("未対応の形式はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, _, err := execute(t, "", "synth", "--format", "toml"); err == nil {
			t.Error("エラーが返るべき")
		}
	})
}

// TestGateCheck はgate checkコマンドを検証する。
func TestGateCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want decisionOutput
	}{
		{
			name: "公開パスは転送されること",
			args: []string{"--path", "/api/health"},
			want: decisionOutput{Kind: "forward", ServiceIndex: -1},
		},
		{
			name: "認証情報なしはチャレンジされること",
			args: []string{"--path", "/survey"},
			want: decisionOutput{Kind: "challenge", ServiceIndex: 0, StatusCode: 401, StatusDescription: "Authentication required", WWWAuthenticate: `Basic realm="survey"`},
		},
		{
			name: "正しい資格情報で転送されること",
			args: []string{"--path", "/survey", "--user", "user", "--password", "pass"},
			want: decisionOutput{Kind: "forward", ServiceIndex: 0},
		},
		{
			name: "Authorizationヘッダーを直接指定できること",
			args: []string{"--path", "/survey", "--authorization", "Basic dXNlcjp3cm9uZw=="},
			want: decisionOutput{Kind: "invalid_credentials", ServiceIndex: 0, StatusCode: 401, StatusDescription: "Invalid credentials", WWWAuthenticate: `Basic realm="survey"`},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, _, err := execute(t, "", append([]string{"gate", "check"}, tt.args...)...)
			if err != nil {
				t.Fatalf("gate checkでエラーが発生: %v", err)
			}
			var got decisionOutput
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("JSONのパースに失敗: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("decision mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestGateEvent はgate eventコマンドを検証する。
func TestGateEvent(t *testing.T) {
	t.Parallel()

	t.Run("認証済みのイベントはリクエストがそのまま返ること", func(t *testing.T) {
		t.Parallel()

		in := `{"request":{"method":"GET","uri":"/survey","querystring":{},"headers":{"authorization":{"value":"Basic dXNlcjpwYXNz"}}}}`
		out, _, err := execute(t, in, "gate", "event")
		if err != nil {
			t.Fatalf("gate eventでエラーが発生: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("JSONのパースに失敗: %v", err)
		}
		if got["uri"] != "/survey" {
			t.Errorf("uri = %v, 出力 = %s", got["uri"], out)
		}
	})

	t.Run("認証情報なしのイベントは401応答が返ること", func(t *testing.T) {
		t.Parallel()

		in := `{"request":{"method":"GET","uri":"/survey","headers":{}}}`
		out, errOut, err := execute(t, in, "gate", "event")
		if err != nil {
			t.Fatalf("gate eventでエラーが発生: %v", err)
		}
		if !strings.Contains(errOut, "401 Authentication required") {
			t.Errorf("標準エラー出力 = %q", errOut)
		}
		if !strings.Contains(out, `"statusCode": 401`) || !strings.Contains(out, `Basic realm=\"survey\"`) {
			t.Errorf("出力 = %s", out)
		}
	})

	t.Run("不正なJSONはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, _, err := execute(t, "{", "gate", "event"); err == nil {
			t.Error("エラーが返るべき")
		}
	})
}

// TestLocalProvision はlocal provisionコマンドを検証する。
func TestLocalProvision(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "local.db")
	out, _, err := execute(t, "", "local", "provision", "--db", dsn)
	if err != nil {
		t.Fatalf("local provisionでエラーが発生: %v", err)
	}
	if diff := cmp.Diff("TestEntries\nTestTransactions\n", out); diff != "" {
		t.Errorf("出力 mismatch (-want +got):\n%s", diff)
	}
}
