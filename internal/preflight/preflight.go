package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/nao1215/survey-edge/internal/config"
	"github.com/nao1215/survey-edge/pkg/httpclient"
	"go.uber.org/zap"
)

// ErrPreflightFailed はいずれかのチェックが失敗したことを表す。
var ErrPreflightFailed = errors.New("デプロイ前チェックに失敗しました")

// STSAPI は呼び出し元の識別に使うSTSの操作。
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// S3API はバケットの確認に使うS3の操作。
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// OriginProber はオリジンの疎通確認。
type OriginProber interface {
	Probe(ctx context.Context, path string) (int, error)
}

// Status はチェック結果の状態。
type Status string

const (
	// StatusPass は成功。
	StatusPass Status = "pass"
	// StatusFail は失敗。
	StatusFail Status = "fail"
	// StatusSkip は前提となる設定が無いため実行しなかったことを表す。
	StatusSkip Status = "skip"
)

// Check は1つのチェック結果。
type Check struct {
	Name   string `json:"name" yaml:"name"`
	Status Status `json:"status" yaml:"status"`
	Detail string `json:"detail" yaml:"detail"`
}

// Report はチェック結果の一覧。
type Report struct {
	Checks []Check `json:"checks" yaml:"checks"`
}

// OK は失敗したチェックが無いかどうかを返す。
func (r Report) OK() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			return false
		}
	}
	return true
}

// Checker はデプロイ前チェックを実行する。
type Checker struct {
	cfg    *config.Config
	sts    STSAPI
	s3     S3API
	origin OriginProber
	logger *zap.Logger
}

// New は新しいCheckerを生成する。originがnilの場合、オリジンのチェックはスキップする。
func New(cfg *config.Config, stsClient STSAPI, s3Client S3API, origin OriginProber, logger *zap.Logger) *Checker {
	return &Checker{cfg: cfg, sts: stsClient, s3: s3Client, origin: origin, logger: logger}
}

// NewFromEnv はAWSの標準の認証情報チェーンからクライアントを構築してCheckerを生成する。
// アプリオリジンのURLが設定されている場合は共有シークレット付きのクライアントで疎通を確認する。
func NewFromEnv(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Checker, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗: %w", err)
	}

	var origin OriginProber
	if cfg.Edge.AppOriginURL != "" {
		origin = httpclient.New(cfg.Edge.AppOriginURL,
			httpclient.WithHeader(cfg.App.AccessKeyName, cfg.App.AccessKeyValue),
		)
	}
	return New(cfg, sts.NewFromConfig(awsCfg), s3.NewFromConfig(awsCfg), origin, logger), nil
}

// Run は全てのチェックを実行する。失敗したチェックがある場合はErrPreflightFailedを返す。
// 失敗しても残りのチェックは実行する。
func (c *Checker) Run(ctx context.Context) (Report, error) {
	var r Report
	for _, check := range []func(context.Context) Check{
		c.checkAccount,
		c.checkCodeBucket,
		c.checkOrigin,
	} {
		result := check(ctx)
		c.logger.Info("デプロイ前チェック",
			zap.String("check", result.Name),
			zap.String("status", string(result.Status)),
			zap.String("detail", result.Detail),
		)
		r.Checks = append(r.Checks, result)
	}

	if !r.OK() {
		return r, ErrPreflightFailed
	}
	return r, nil
}

// checkAccount は呼び出し元のアカウントが設定と一致するかを確認する。
func (c *Checker) checkAccount(ctx context.Context) Check {
	const name = "aws-account"
	want := c.cfg.AWS.AccountID
	if want == "" {
		return Check{Name: name, Status: StatusSkip, Detail: "NUXT_AWS_ACCOUNT_IDが設定されていません"}
	}

	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Check{Name: name, Status: StatusFail, Detail: describeAPIError("呼び出し元の識別に失敗", err)}
	}
	got := aws.ToString(out.Account)
	if got != want {
		return Check{Name: name, Status: StatusFail, Detail: fmt.Sprintf("アカウントが一致しません: got=%s want=%s", got, want)}
	}
	return Check{Name: name, Status: StatusPass, Detail: fmt.Sprintf("account=%s arn=%s", got, aws.ToString(out.Arn))}
}

// checkCodeBucket はデプロイ成果物のバケットが存在しアクセスできるかを確認する。
func (c *Checker) checkCodeBucket(ctx context.Context) Check {
	const name = "code-bucket"
	bucket := c.cfg.App.CodeBucket
	if bucket == "" {
		return Check{Name: name, Status: StatusSkip, Detail: "NUXT_APP_SURVEY_CODE_BUCKET_NAMEが設定されていません"}
	}

	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return Check{Name: name, Status: StatusFail, Detail: describeAPIError("バケット "+bucket+" の確認に失敗", err)}
	}
	return Check{Name: name, Status: StatusPass, Detail: "bucket=" + bucket}
}

// checkOrigin はアプリオリジンが共有シークレット付きのリクエストに応答するかを確認する。
// 401はアプリ側の認証要求として成功とみなす。
func (c *Checker) checkOrigin(ctx context.Context) Check {
	const name = "app-origin"
	if c.origin == nil {
		return Check{Name: name, Status: StatusSkip, Detail: "EDGE_APP_ORIGIN_URLが設定されていません"}
	}

	status, err := c.origin.Probe(ctx, "/")
	if err != nil {
		return Check{Name: name, Status: StatusFail, Detail: err.Error()}
	}
	if status < http.StatusBadRequest || status == http.StatusUnauthorized {
		return Check{Name: name, Status: StatusPass, Detail: fmt.Sprintf("status=%d", status)}
	}
	return Check{Name: name, Status: StatusFail, Detail: fmt.Sprintf("オリジンが異常なステータスを返しました: status=%d", status)}
}

// describeAPIError はAWS APIのエラーを説明に変換する。
func describeAPIError(prefix string, err error) string {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %v", prefix, err)
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchBucket":
		return fmt.Sprintf("%s: 存在しません (%s)", prefix, apiErr.ErrorCode())
	case "Forbidden", "AccessDenied", "AccessDeniedException":
		return fmt.Sprintf("%s: アクセス権がありません (%s)", prefix, apiErr.ErrorCode())
	case "ExpiredToken", "InvalidClientTokenId", "SignatureDoesNotMatch":
		return fmt.Sprintf("%s: 認証情報が無効です (%s)", prefix, apiErr.ErrorCode())
	default:
		return fmt.Sprintf("%s: %s: %s", prefix, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
}
