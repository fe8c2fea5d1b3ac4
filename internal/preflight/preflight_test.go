package preflight

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/survey-edge/internal/config"
	"go.uber.org/zap"
)

// fakeSTS はテスト用のSTS。
type fakeSTS struct {
	account string
	err     error
}

func (f fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.account),
		Arn:     aws.String("arn:aws:iam::" + f.account + ":user/deployer"),
	}, nil
}

// fakeS3 はテスト用のS3。bucketsに含まれるバケットだけが存在する。
type fakeS3 struct {
	buckets []string
	err     error
}

func (f fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, b := range f.buckets {
		if b == aws.ToString(in.Bucket) {
			return &s3.HeadBucketOutput{}, nil
		}
	}
	return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
}

// fakeOrigin はテスト用のオリジン。
type fakeOrigin struct {
	status int
	err    error
}

func (f fakeOrigin) Probe(context.Context, string) (int, error) {
	return f.status, f.err
}

// newTestConfig はテスト用の設定を生成する。
func newTestConfig() *config.Config {
	return &config.Config{
		Env: "stg",
		AWS: config.AWSConfig{AccountID: "123456789012", Region: "ap-northeast-1"},
		App: config.AppConfig{CodeBucket: "survey-code"},
	}
}

// statuses はレポートの状態だけを取り出す。
func statuses(r Report) map[string]Status {
	out := make(map[string]Status, len(r.Checks))
	for _, c := range r.Checks {
		out[c.Name] = c.Status
	}
	return out
}

// TestRun はデプロイ前チェックを検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     func() *config.Config
		sts     STSAPI
		s3      S3API
		origin  OriginProber
		want    map[string]Status
		wantErr bool
	}{
		{
			name:   "全てのチェックが成功すること",
			cfg:    newTestConfig,
			sts:    fakeSTS{account: "123456789012"},
			s3:     fakeS3{buckets: []string{"survey-code"}},
			origin: fakeOrigin{status: 200},
			want:   map[string]Status{"aws-account": StatusPass, "code-bucket": StatusPass, "app-origin": StatusPass},
		},
		{
			name:   "オリジンの401は成功とみなすこと",
			cfg:    newTestConfig,
			sts:    fakeSTS{account: "123456789012"},
			s3:     fakeS3{buckets: []string{"survey-code"}},
			origin: fakeOrigin{status: 401},
			want:   map[string]Status{"aws-account": StatusPass, "code-bucket": StatusPass, "app-origin": StatusPass},
		},
		{
			name:    "アカウント不一致で失敗しても残りのチェックが実行されること",
			cfg:     newTestConfig,
			sts:     fakeSTS{account: "999999999999"},
			s3:      fakeS3{buckets: []string{"survey-code"}},
			want:    map[string]Status{"aws-account": StatusFail, "code-bucket": StatusPass, "app-origin": StatusSkip},
			wantErr: true,
		},
		{
			name:    "バケットが無い場合は失敗すること",
			cfg:     newTestConfig,
			sts:     fakeSTS{account: "123456789012"},
			s3:      fakeS3{},
			want:    map[string]Status{"aws-account": StatusPass, "code-bucket": StatusFail, "app-origin": StatusSkip},
			wantErr: true,
		},
		{
			name:    "共有シークレットが拒否された場合は失敗すること",
			cfg:     newTestConfig,
			sts:     fakeSTS{account: "123456789012"},
			s3:      fakeS3{buckets: []string{"survey-code"}},
			origin:  fakeOrigin{status: 403},
			want:    map[string]Status{"aws-account": StatusPass, "code-bucket": StatusPass, "app-origin": StatusFail},
			wantErr: true,
		},
		{
			name: "設定が無いチェックはスキップされること",
			cfg: func() *config.Config {
				return &config.Config{Env: "dev"}
			},
			sts:  fakeSTS{err: errors.New("呼ばれないはず")},
			s3:   fakeS3{err: errors.New("呼ばれないはず")},
			want: map[string]Status{"aws-account": StatusSkip, "code-bucket": StatusSkip, "app-origin": StatusSkip},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New(tt.cfg(), tt.sts, tt.s3, tt.origin, zap.NewNop())
			report, err := c.Run(context.Background())
			if tt.wantErr != errors.Is(err, ErrPreflightFailed) {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == report.OK() {
				t.Errorf("OK() = %v", report.OK())
			}
			if diff := cmp.Diff(tt.want, statuses(report)); diff != "" {
				t.Errorf("statuses mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestDescribeAPIError はAWS APIエラーの説明を検証する。
func TestDescribeAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "存在しない", err: &smithy.GenericAPIError{Code: "NoSuchBucket"}, want: "存在しません"},
		{name: "権限が無い", err: &smithy.GenericAPIError{Code: "Forbidden"}, want: "アクセス権がありません"},
		{name: "認証情報が無効", err: &smithy.GenericAPIError{Code: "ExpiredToken"}, want: "認証情報が無効です"},
		{name: "その他のAPIエラー", err: &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce rate"}, want: "SlowDown: reduce rate"},
		{name: "APIエラー以外", err: errors.New("dial tcp: timeout"), want: "dial tcp: timeout"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := describeAPIError("確認に失敗", tt.err)
			if !strings.HasPrefix(got, "確認に失敗: ") || !strings.Contains(got, tt.want) {
				t.Errorf("describeAPIError() = %q, want contains %q", got, tt.want)
			}
		})
	}
}
