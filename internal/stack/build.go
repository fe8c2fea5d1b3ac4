package stack

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nao1215/survey-edge/internal/config"
)

// ErrInvalidRemovalPolicy はテーブルの削除ポリシーが不正であることを表す。
var ErrInvalidRemovalPolicy = errors.New("不正な削除ポリシーです")

// removalPolicies は受け付ける削除ポリシー。
var removalPolicies = []string{"retain", "destroy", "snapshot", "retain-on-update-or-delete"}

// JobKeys はバッチジョブのキー。スクリプトは <glueBase>app/<key>.py に置く。
var JobKeys = []string{"import_respondent_list", "report_status_summary"}

// entriesIndexAttributes はEntriesテーブルのGSIに射影する非キー属性。
// 各インデックスのパーティションキーは除外される。
var entriesIndexAttributes = []string{
	"step_id",
	"respondent_id",
	"web_member_number",
	"email",
	"kana_name",
	"kanji_name",
	"call_pattern",
	"classification",
	"call_target",
	"created_at",
}

// 論理ID。
const (
	BucketSystem  = "s3-system"
	BucketStatic  = "s3-static"
	BucketStorage = "s3-storage"
	BucketCache   = "s3-cache"

	TableEntries      = "dynamodb-table:Entries"
	TableTransactions = "dynamodb-table:Transactions"

	distributionID = "cloudfront"
)

// 配信ビヘイビアのパスパターン。
const (
	PatternAssets   = "/_nuxt/*"
	PatternAPI      = "/api/*"
	PatternDownload = "/storage/download/*"
	PatternUpload   = "/storage/upload/*"
	PatternFiles    = "/*.*"
	// PatternDefault はデフォルトビヘイビアのパターン。
	PatternDefault = "*"
)

// localhostOrigin はキャッシュバケットのCORSでlocalhostを許可する場合のオリジン。
const localhostOrigin = "http://localhost:3000"

// Build は設定からスタックのあるべき状態を組み立てる。
func Build(cfg *config.Config) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}
	if !slices.Contains(removalPolicies, cfg.Tables.RemovalPolicy) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRemovalPolicy, cfg.Tables.RemovalPolicy)
	}

	name := cfg.AppName()
	s := &Stack{
		Name:    name,
		Env:     cfg.Env,
		Account: cfg.AWS.AccountID,
		Region:  cfg.AWS.Region,
		Tags:    Tags(cfg),
		Global:  buildGlobal(cfg),
		Buckets: buildBuckets(cfg),
		Function: Function{
			Name:           name + "-app",
			Runtime:        "nodejs24.x",
			Handler:        "index.handler",
			MemoryMB:       1024,
			TimeoutSeconds: 300,
			Code:           s3URL(cfg.App.CodeBucket, cfg.App.LambdaBasePath+"app/server.zip"),
			URLAuthType:    urlAuthType(cfg.App.IAMFunctionURL),
		},
		JobRole: Role{
			ID:               "glue-job-role",
			AssumedBy:        "glue.amazonaws.com",
			ManagedPolicies:  []string{"service-role/AWSGlueServiceRole"},
			ReadWriteBuckets: []string{BucketSystem},
		},
		ResponseHeadersPolicy: ResponseHeadersPolicy{
			Name:    "pass-www-authenticate-policy",
			Comment: "Passes through the Www-Authenticate header.",
			Headers: []CustomHeader{{Header: "WWW-Authenticate", Value: "Basic", Override: false}},
		},
		Tables: buildTables(cfg),
	}

	for _, key := range JobKeys {
		s.Jobs = append(s.Jobs, Job{
			Key:             key,
			Name:            name + "-" + key,
			Command:         "glueshell",
			ScriptLocation:  s3URL(cfg.App.CodeBucket, cfg.App.GlueBasePath+"app/"+key+".py"),
			PythonVersion:   "3.9",
			MaxRetries:      1,
			TimeoutMinutes:  60,
			WorkerType:      "Standard",
			NumberOfWorkers: 2,
			Role:            s.JobRole.ID,
		})
	}

	if cfg.Gate.Enabled {
		r := cfg.Gate.Rules
		s.EdgeFunction = &EdgeFunction{
			Name:      edgeFunctionName(cfg),
			Runtime:   "cloudfront-js-2.0",
			EventType: "viewer-request",
			Gate: GateConfig{
				PublicPaths: r.PublicPaths,
				Services:    r.Services,
				Realms:      r.Realms,
				Usernames:   r.Usernames,
				Passwords:   r.Passwords,
			},
		}
	}

	s.Distribution = buildDistribution(cfg, s)

	if cfg.Domain.Hosting {
		s.Records = append(s.Records, AliasRecord{
			Zone:       cfg.Domain.HostedZone,
			RecordName: cfg.Domain.Hostname,
			Type:       "A",
			Target:     distributionID,
		})
	}

	s.Outputs = []Output{{
		Key:   "cloudfront-domain-name",
		Value: ref(distributionID, "domainName"),
	}}
	return s, nil
}

// Tags は全リソースに付与するタグを返す。コスト配分タグも含む。
func Tags(cfg *config.Config) map[string]string {
	sys := cfg.System
	return map[string]string{
		"team":        sys.TeamName,
		"project":     sys.ProjectName,
		"client":      sys.ClientName,
		"environment": cfg.Env,
		"service":     sys.ServiceName,
		"product":     sys.ProductName,

		"Owner":       sys.TeamName,
		"Category1":   sys.ProjectName,
		"Category2":   sys.ClientName,
		"Category3":   cfg.Env,
		"Application": sys.ProductName,
	}
}

// buildGlobal はグローバルスタックを組み立てる。
func buildGlobal(cfg *config.Config) Global {
	g := Global{Name: cfg.AppName() + "-global", Region: "us-east-1"}
	if !cfg.Domain.Hosting {
		return g
	}
	g.Certificate = &Certificate{
		DomainName: cfg.Domain.FQDN(),
		HostedZone: cfg.Domain.HostedZone,
		Validation: "DNS",
	}
	g.Outputs = []Output{{
		Key:         "certificate-arn",
		Value:       ref("certificate", "arn"),
		Description: "The ARN of the ACM certificate for " + cfg.Domain.FQDN(),
	}}
	return g
}

// buildBuckets はバケットを組み立てる。全バケットで公開アクセスを遮断し、スタック削除時に中身ごと削除する。
func buildBuckets(cfg *config.Config) []Bucket {
	base := func(id, name string) Bucket {
		return Bucket{
			ID:                id,
			Name:              name,
			RemovalPolicy:     "destroy",
			AutoDeleteObjects: true,
			BlockPublicAccess: true,
		}
	}

	system := base(BucketSystem, cfg.Buckets.System)
	system.EnforceSSL = true

	cache := base(BucketCache, cfg.Buckets.Cache)
	cache.LifecycleRules = []LifecycleRule{
		{ID: "delete-downloads", Prefix: cfg.Buckets.CacheDownload, ExpirationDays: 1},
		{ID: "delete-uploads", Prefix: cfg.Buckets.CacheUpload, ExpirationDays: 1},
	}
	cache.CORS = []CORSRule{CacheCORS(cfg)}

	return []Bucket{
		system,
		base(BucketStatic, cfg.Buckets.Static),
		base(BucketStorage, cfg.Buckets.Storage),
		cache,
	}
}

// CacheCORS はキャッシュバケットのCORSルールを返す。空のオリジンは含めない。
func CacheCORS(cfg *config.Config) CORSRule {
	var origins []string
	if cfg.App.SurveyURL != "" {
		origins = append(origins, cfg.App.SurveyURL)
	}
	if cfg.Buckets.CacheLocalhostAccess {
		origins = append(origins, localhostOrigin)
	}
	return CORSRule{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "PUT", "POST", "DELETE", "HEAD"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"ETag"},
		MaxAgeSeconds:  3000,
	}
}

// オリジンID。
func staticOriginID(name string) string { return name + "-static-assets-origin" }
func cacheOriginID(name string) string  { return name + "-cached-assets-origin" }
func appOriginID(name string) string    { return name + "-lambda-function-origin" }

// buildDistribution は配信を組み立てる。ビヘイビアは評価順に並ぶ。
func buildDistribution(cfg *config.Config, s *Stack) Distribution {
	name := s.Name
	gate := s.EdgeFunction != nil

	app := Origin{ID: appOriginID(name), Kind: OriginKindFunctionURL}
	if cfg.App.AccessKeyName != "" {
		app.CustomHeaders = map[string]string{cfg.App.AccessKeyName: cfg.App.AccessKeyValue}
	}

	appBehavior := func(pattern string) Behavior {
		return Behavior{
			PathPattern:           pattern,
			OriginID:              app.ID,
			ViewerProtocolPolicy:  "redirect-to-https",
			AllowedMethods:        AllowedMethodsAll,
			CachePolicy:           CachePolicyDisabled,
			OriginRequestPolicy:   "ALL_VIEWER_EXCEPT_HOST_HEADER",
			ResponseHeadersPolicy: s.ResponseHeadersPolicy.Name,
			Gate:                  gate,
		}
	}
	staticBehavior := func(pattern string) Behavior {
		return Behavior{
			PathPattern:          pattern,
			OriginID:             staticOriginID(name),
			ViewerProtocolPolicy: "redirect-to-https",
			AllowedMethods:       AllowedMethodsGetHead,
			CachePolicy:          CachePolicyOptimized,
		}
	}

	d := Distribution{
		ID:             distributionID,
		Comment:        name,
		CertificateARN: cfg.Domain.CertificateARN,
		PriceClass:     "PriceClass_200",
		Origins: []Origin{
			{ID: staticOriginID(name), Kind: OriginKindBucket, Bucket: cfg.Buckets.Static},
			{ID: cacheOriginID(name), Kind: OriginKindBucket, Bucket: cfg.Buckets.Cache},
			app,
		},
		DefaultBehavior: appBehavior(PatternDefault),
		Behaviors: []Behavior{
			staticBehavior(PatternAssets),
			appBehavior(PatternAPI),
			{
				PathPattern:          PatternDownload,
				OriginID:             cacheOriginID(name),
				ViewerProtocolPolicy: "redirect-to-https",
				AllowedMethods:       AllowedMethodsGetHead,
				CachePolicy:          CachePolicyOptimized,
				Gate:                 gate,
			},
			{
				PathPattern:          PatternUpload,
				OriginID:             cacheOriginID(name),
				ViewerProtocolPolicy: "redirect-to-https",
				AllowedMethods:       AllowedMethodsAll,
				CachePolicy:          CachePolicyDisabled,
				Gate:                 gate,
			},
			staticBehavior(PatternFiles),
		},
		Tags: map[string]string{"Name": name + "-cloudfront"},
	}
	if fqdn := cfg.Domain.FQDN(); fqdn != "" {
		d.DomainNames = []string{fqdn}
	}
	return d
}

// buildTables はテーブルを組み立てる。
func buildTables(cfg *config.Config) []Table {
	prefix := cfg.Tables.Prefix
	str := func(name string) KeyAttribute { return KeyAttribute{Name: name, Type: AttributeTypeString} }

	entries := Table{
		ID:                  TableEntries,
		Name:                prefix + "Entries",
		PartitionKey:        str("id"),
		SortKey:             str("step_id"),
		BillingMode:         "PAY_PER_REQUEST",
		PointInTimeRecovery: cfg.Tables.PointInTimeRecover,
		RemovalPolicy:       cfg.Tables.RemovalPolicy,
	}
	for _, gsi := range []struct{ name, key string }{
		{name: "round", key: "round_id"},
		{name: "respondent", key: "respondent_id"},
	} {
		attrs := slices.DeleteFunc(slices.Clone(entriesIndexAttributes), func(a string) bool { return a == gsi.key })
		entries.Indexes = append(entries.Indexes, Index{
			Name:             fmt.Sprintf("%sEntries-%s-index", prefix, gsi.name),
			PartitionKey:     str(gsi.key),
			SortKey:          str("id"),
			ProjectionType:   "INCLUDE",
			NonKeyAttributes: attrs,
		})
	}

	transactions := Table{
		ID:                  TableTransactions,
		Name:                prefix + "Transactions",
		PartitionKey:        str("type_id"),
		SortKey:             str("id"),
		BillingMode:         "PAY_PER_REQUEST",
		PointInTimeRecovery: cfg.Tables.PointInTimeRecover,
		RemovalPolicy:       cfg.Tables.RemovalPolicy,
	}
	return []Table{entries, transactions}
}

// Origin はIDでオリジンを探す。
func (d Distribution) Origin(id string) (Origin, bool) {
	for _, o := range d.Origins {
		if o.ID == id {
			return o, true
		}
	}
	return Origin{}, false
}

// Bucket は論理IDでバケットを探す。
func (s *Stack) Bucket(id string) (Bucket, bool) {
	for _, b := range s.Buckets {
		if b.ID == id {
			return b, true
		}
	}
	return Bucket{}, false
}

// Table は論理IDでテーブルを探す。
func (s *Stack) Table(id string) (Table, bool) {
	for _, t := range s.Tables {
		if t.ID == id {
			return t, true
		}
	}
	return Table{}, false
}

// edgeFunctionName はエッジ関数名（<service>-<NUXT_SYS_ENVIRONMENT>-cloudfront-functions-basic-auth）を返す。
// NUXT_SYS_ENVIRONMENTが未設定の場合はデプロイ環境名を使う。
func edgeFunctionName(cfg *config.Config) string {
	env := cfg.System.Environment
	if env == "" {
		env = cfg.Env
	}
	return cfg.System.ServiceName + "-" + env + "-cloudfront-functions-basic-auth"
}

// s3URL はs3://形式のURLを返す。
func s3URL(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

// ref はプロビジョニング後に決まる属性への参照を表す文字列を返す。
func ref(id, attr string) string {
	return "${" + id + "." + attr + "}"
}

// urlAuthType は関数URLの認証方式を返す。
func urlAuthType(iam bool) string {
	if iam {
		return "AWS_IAM"
	}
	return "NONE"
}
