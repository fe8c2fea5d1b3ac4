package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/survey-edge/pkg/basicauth"
	"github.com/spf13/viper"
)

var (
	// ErrMissingEnv は環境名が指定されていないことを表す。
	ErrMissingEnv = errors.New("環境名が指定されていません")
	// ErrMisalignedGate はゲートのサービス・レルム・ユーザー名・パスワードの数が揃っていないことを表す。
	ErrMisalignedGate = errors.New("Basic認証のサービス・レルム・ユーザー名・パスワードの数が一致しません")
	// ErrMissingDomain はドメインホスティングが有効なのにドメイン設定が無いことを表す。
	ErrMissingDomain = errors.New("アプリのドメイン名に関する環境変数が正しく設定されていません")
)

// Config はデプロイ時設定。
type Config struct {
	// Env は環境名（dev, stg, prd など）。
	Env string
	// System はシステム全体の名前とタグの元になる値。
	System SystemConfig
	// AWS はアカウントとリージョン。
	AWS AWSConfig
	// Domain はDNSと証明書の設定。
	Domain DomainConfig
	// Buckets はオブジェクトストレージの設定。
	Buckets BucketConfig
	// App はアプリケーション本体（コンピュートとバッチ）の設定。
	App AppConfig
	// Gate はBasic認証ゲートの設定。
	Gate GateConfig
	// Tables はキーバリューテーブルの設定。
	Tables TableConfig
	// Edge はローカルエッジランタイムの設定。
	Edge EdgeConfig
	// LogLevel はログレベル。
	LogLevel string
}

// SystemConfig はシステム名とタグ。
type SystemConfig struct {
	TeamName    string
	ProjectName string
	ClientName  string
	ServiceName string
	ProductName string
	// Environment はNUXT_SYS_ENVIRONMENTの値。エッジ関数名に使い、空の場合はEnvで代替する。
	Environment string
}

// AWSConfig はAWSアカウントとリージョン。
type AWSConfig struct {
	AccountID string
	Region    string
}

// DomainConfig はDNSと証明書の設定。
type DomainConfig struct {
	// HostedZone はRoute 53のホストゾーンのドメイン。
	HostedZone string
	// Hostname はホストゾーン内のアプリのホスト名。
	Hostname string
	// Hosting はDNSレコードと証明書を作成するかどうか。
	Hosting bool
	// CertificateARN は配信に使う既存証明書のARN。
	CertificateARN string
}

// FQDN はアプリの完全修飾ドメイン名を返す。ホスト名かゾーンが無ければ空。
func (d DomainConfig) FQDN() string {
	if d.Hostname == "" || d.HostedZone == "" {
		return ""
	}
	return d.Hostname + "." + d.HostedZone
}

// BucketConfig はバケット名とキャッシュバケットの設定。
type BucketConfig struct {
	System        string
	Static        string
	Storage       string
	Cache         string
	CacheDownload string
	CacheUpload   string
	// CacheLocalhostAccess はキャッシュバケットのCORSにlocalhostを許可するかどうか。
	CacheLocalhostAccess bool
}

// AppConfig はアプリケーション本体の設定。
type AppConfig struct {
	// SurveyURL はアプリの公開URL。CORSの許可オリジンに使う。
	SurveyURL string
	// CodeBucket はデプロイ成果物を置くバケット名。
	CodeBucket string
	// LambdaBasePath はコンピュート関数の成果物のベースパス。
	LambdaBasePath string
	// GlueBasePath はバッチジョブのスクリプトのベースパス。
	GlueBasePath string
	// IAMFunctionURL は関数URLをIAM認証にするかどうか。
	IAMFunctionURL bool
	// AccessKeyName はオリジン保護用の共有シークレットヘッダー名。
	AccessKeyName string
	// AccessKeyValue はオリジン保護用の共有シークレット値。
	AccessKeyValue string
}

// GateConfig はBasic認証ゲートの設定。
type GateConfig struct {
	// Enabled はゲートを配信経路に適用するかどうか。
	Enabled bool
	// Rules はゲートの判定設定。
	Rules basicauth.Config
}

// TableConfig はキーバリューテーブルの設定。
type TableConfig struct {
	Prefix             string
	PointInTimeRecover bool
	RemovalPolicy      string
}

// EdgeConfig はローカルエッジランタイムの設定。
type EdgeConfig struct {
	Port string
	// AdminPort はヘルスチェックとメトリクスを公開する管理用ポート。
	// 配信用のポートとは別のリスナーで公開する。
	AdminPort     string
	AppOriginURL  string
	S3Endpoint    string
	S3AccessKeyID string
	S3SecretKey   string
	EnforceHTTPS  bool
}

// AppName はスタック名などに使うアプリ名（<service>-<env>）を返す。
func (c *Config) AppName() string {
	return c.System.ServiceName + "-" + c.Env
}

// Load はdir配下の .env.<env> とプロセス環境変数から設定を読み込む。
// ファイルが存在しない場合は環境変数とデフォルト値のみを使う。
func Load(env, dir string) (*Config, error) {
	if env == "" {
		return nil, ErrMissingEnv
	}

	v, err := newViper(filepath.Join(dir, ".env."+env))
	if err != nil {
		return nil, err
	}

	cfg := fromViper(v, env)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newViper はデフォルト値・環境変数・envファイルを重ねたviperを生成する。
// envファイルの値はSetで上書きするため、プロセス環境変数より優先される。
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("設定ファイルの確認に失敗: %w", err)
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
	}
	for _, key := range file.AllKeys() {
		v.Set(key, file.Get(key))
	}
	return v, nil
}

// setDefaults はデフォルト値を設定する。
func setDefaults(v *viper.Viper) {
	v.SetDefault(keyTeamName, "standardai")
	v.SetDefault(keyProjectName, "survey")
	v.SetDefault(keyClientName, "standardai")
	v.SetDefault(keyServiceName, "survey-sundai")
	v.SetDefault(keyProductName, "survey")
	v.SetDefault(keyDynamoRemovalPolicy, "retain")
	v.SetDefault(keyEdgePort, "8080")
	v.SetDefault(keyEdgeAdminPort, "9090")
	v.SetDefault(keyLogLevel, "info")
}

// fromViper はviperの値からConfigを組み立てる。
func fromViper(v *viper.Viper, env string) *Config {
	return &Config{
		Env: env,
		System: SystemConfig{
			TeamName:    v.GetString(keyTeamName),
			ProjectName: v.GetString(keyProjectName),
			ClientName:  v.GetString(keyClientName),
			ServiceName: v.GetString(keyServiceName),
			ProductName: v.GetString(keyProductName),
			Environment: v.GetString(keySysEnvironment),
		},
		AWS: AWSConfig{
			AccountID: v.GetString(keyAccountID),
			Region:    v.GetString(keyRegion),
		},
		Domain: DomainConfig{
			HostedZone:     v.GetString(keyHostedZone),
			Hostname:       v.GetString(keyHostname),
			Hosting:        yes(v, keyDomainHosting),
			CertificateARN: v.GetString(keyCertificateARN),
		},
		Buckets: BucketConfig{
			System:               v.GetString(keySystemBucket),
			Static:               v.GetString(keyStaticBucket),
			Storage:              v.GetString(keyStorageBucket),
			Cache:                v.GetString(keyCacheBucket),
			CacheDownload:        v.GetString(keyCacheDownloadPath),
			CacheUpload:          v.GetString(keyCacheUploadPath),
			CacheLocalhostAccess: yes(v, keyCacheLocalhostAccess),
		},
		App: AppConfig{
			SurveyURL:      v.GetString(keySurveyURL),
			CodeBucket:     v.GetString(keyCodeBucket),
			LambdaBasePath: v.GetString(keyLambdaBasePath),
			GlueBasePath:   v.GetString(keyGlueBasePath),
			IAMFunctionURL: yes(v, keyOACForFunctionURL),
			AccessKeyName:  v.GetString(keyAccessKeyName),
			AccessKeyValue: v.GetString(keyAccessKeyValue),
		},
		Gate: GateConfig{
			Enabled: yes(v, keyGateEnabled),
			Rules: basicauth.Config{
				PublicPaths: SplitList(v.GetString(keyGatePublic)),
				Services:    SplitList(v.GetString(keyGateServices)),
				Realms:      SplitList(v.GetString(keyGateRealms)),
				Usernames:   SplitList(v.GetString(keyGateUsernames)),
				Passwords:   SplitList(v.GetString(keyGatePasswords)),
			},
		},
		Tables: TableConfig{
			Prefix:             v.GetString(keyDynamoPrefix),
			PointInTimeRecover: yes(v, keyDynamoPITR),
			RemovalPolicy:      strings.ToLower(v.GetString(keyDynamoRemovalPolicy)),
		},
		Edge: EdgeConfig{
			Port:          v.GetString(keyEdgePort),
			AdminPort:     v.GetString(keyEdgeAdminPort),
			AppOriginURL:  v.GetString(keyEdgeAppOrigin),
			S3Endpoint:    v.GetString(keyEdgeS3Endpoint),
			S3AccessKeyID: v.GetString(keyEdgeS3AccessKey),
			S3SecretKey:   v.GetString(keyEdgeS3SecretKey),
			EnforceHTTPS:  yes(v, keyEdgeEnforceHTTPS),
		},
		LogLevel: v.GetString(keyLogLevel),
	}
}

// Validate は設定の整合性を検証する。
// ゲートが有効な場合、サービス・レルム・ユーザー名・パスワードの数が一致していなければならない。
func (c *Config) Validate() error {
	if c.Gate.Enabled {
		r := c.Gate.Rules
		n := len(r.Services)
		if len(r.Realms) != n || len(r.Usernames) != n || len(r.Passwords) != n {
			return fmt.Errorf("%w: services=%d realms=%d usernames=%d passwords=%d",
				ErrMisalignedGate, n, len(r.Realms), len(r.Usernames), len(r.Passwords))
		}
	}
	if c.Domain.Hosting && c.Domain.FQDN() == "" {
		return ErrMissingDomain
	}
	return nil
}

// SplitList は空白区切りの文字列をリストに分割する。空の要素は含めない。
func SplitList(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// yes はフラグキーの値が"yes"かどうかを返す。
func yes(v *viper.Viper, key string) bool {
	return v.GetString(key) == "yes"
}
