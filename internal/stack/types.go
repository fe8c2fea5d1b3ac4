package stack

// Stack はデプロイ単位のあるべき状態。
type Stack struct {
	// Name はアプリ名（<service>-<env>）。
	Name string `yaml:"name" json:"name"`
	// Env は環境名。
	Env string `yaml:"env" json:"env"`
	// Account はAWSアカウントID。
	Account string `yaml:"account,omitempty" json:"account,omitempty"`
	// Region はリージョナルスタックのリージョン。
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
	// Tags は全リソースに付与するタグ。
	Tags map[string]string `yaml:"tags" json:"tags"`
	// Global はus-east-1に置くグローバルスタック。
	Global Global `yaml:"global" json:"global"`
	// Buckets はオブジェクトストレージ。
	Buckets []Bucket `yaml:"buckets" json:"buckets"`
	// Function はアプリ本体のコンピュート関数。
	Function Function `yaml:"function" json:"function"`
	// JobRole はバッチジョブの実行ロール。
	JobRole Role `yaml:"jobRole" json:"jobRole"`
	// Jobs はバッチジョブ。
	Jobs []Job `yaml:"jobs" json:"jobs"`
	// EdgeFunction はBasic認証ゲート。無効な場合はnil。
	EdgeFunction *EdgeFunction `yaml:"edgeFunction,omitempty" json:"edgeFunction,omitempty"`
	// ResponseHeadersPolicy はアプリ系ビヘイビアに付けるレスポンスヘッダーポリシー。
	ResponseHeadersPolicy ResponseHeadersPolicy `yaml:"responseHeadersPolicy" json:"responseHeadersPolicy"`
	// Distribution はコンテンツ配信の定義。
	Distribution Distribution `yaml:"distribution" json:"distribution"`
	// Tables はキーバリューテーブル。
	Tables []Table `yaml:"tables" json:"tables"`
	// Records はDNSエイリアスレコード。
	Records []AliasRecord `yaml:"records,omitempty" json:"records,omitempty"`
	// Outputs はスタック出力。
	Outputs []Output `yaml:"outputs" json:"outputs"`
}

// Global はグローバルスタック（証明書など）。
type Global struct {
	// Name はグローバルスタック名（<name>-global）。
	Name string `yaml:"name" json:"name"`
	// Region は常にus-east-1。
	Region string `yaml:"region" json:"region"`
	// Certificate はドメインホスティング有効時のみ作成する証明書。
	Certificate *Certificate `yaml:"certificate,omitempty" json:"certificate,omitempty"`
	// Outputs はグローバルスタックの出力。
	Outputs []Output `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// Certificate はDNS検証の証明書。
type Certificate struct {
	DomainName string `yaml:"domainName" json:"domainName"`
	// HostedZone は検証レコードを作るホストゾーン。
	HostedZone string `yaml:"hostedZone" json:"hostedZone"`
	Validation string `yaml:"validation" json:"validation"`
}

// Bucket はオブジェクトストレージのバケット。
type Bucket struct {
	// ID は論理ID。
	ID                string          `yaml:"id" json:"id"`
	Name              string          `yaml:"name" json:"name"`
	Versioned         bool            `yaml:"versioned" json:"versioned"`
	RemovalPolicy     string          `yaml:"removalPolicy" json:"removalPolicy"`
	AutoDeleteObjects bool            `yaml:"autoDeleteObjects" json:"autoDeleteObjects"`
	BlockPublicAccess bool            `yaml:"blockPublicAccess" json:"blockPublicAccess"`
	EnforceSSL        bool            `yaml:"enforceSSL" json:"enforceSSL"`
	LifecycleRules    []LifecycleRule `yaml:"lifecycleRules,omitempty" json:"lifecycleRules,omitempty"`
	CORS              []CORSRule      `yaml:"cors,omitempty" json:"cors,omitempty"`
}

// LifecycleRule は接頭辞単位の有効期限ルール。
type LifecycleRule struct {
	ID             string `yaml:"id" json:"id"`
	Prefix         string `yaml:"prefix" json:"prefix"`
	ExpirationDays int    `yaml:"expirationDays" json:"expirationDays"`
}

// CORSRule はバケットのCORSルール。
type CORSRule struct {
	AllowedOrigins []string `yaml:"allowedOrigins" json:"allowedOrigins"`
	AllowedMethods []string `yaml:"allowedMethods" json:"allowedMethods"`
	AllowedHeaders []string `yaml:"allowedHeaders" json:"allowedHeaders"`
	ExposedHeaders []string `yaml:"exposedHeaders" json:"exposedHeaders"`
	MaxAgeSeconds  int      `yaml:"maxAgeSeconds" json:"maxAgeSeconds"`
}

// Function はアプリ本体のコンピュート関数。
type Function struct {
	Name           string `yaml:"name" json:"name"`
	Runtime        string `yaml:"runtime" json:"runtime"`
	Handler        string `yaml:"handler" json:"handler"`
	MemoryMB       int    `yaml:"memoryMB" json:"memoryMB"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" json:"timeoutSeconds"`
	// Code は成果物の場所（s3://bucket/key）。
	Code string `yaml:"code" json:"code"`
	// URLAuthType は関数URLの認証方式（AWS_IAM または NONE）。
	URLAuthType string `yaml:"urlAuthType" json:"urlAuthType"`
}

// Role はIAMロール。
type Role struct {
	ID              string   `yaml:"id" json:"id"`
	AssumedBy       string   `yaml:"assumedBy" json:"assumedBy"`
	ManagedPolicies []string `yaml:"managedPolicies" json:"managedPolicies"`
	// ReadWriteBuckets は読み書きを許可するバケットの論理ID。
	ReadWriteBuckets []string `yaml:"readWriteBuckets" json:"readWriteBuckets"`
}

// Job はバッチジョブ。
type Job struct {
	Key             string `yaml:"key" json:"key"`
	Name            string `yaml:"name" json:"name"`
	Command         string `yaml:"command" json:"command"`
	ScriptLocation  string `yaml:"scriptLocation" json:"scriptLocation"`
	PythonVersion   string `yaml:"pythonVersion" json:"pythonVersion"`
	MaxRetries      int    `yaml:"maxRetries" json:"maxRetries"`
	TimeoutMinutes  int    `yaml:"timeoutMinutes" json:"timeoutMinutes"`
	WorkerType      string `yaml:"workerType" json:"workerType"`
	NumberOfWorkers int    `yaml:"numberOfWorkers" json:"numberOfWorkers"`
	Role            string `yaml:"role" json:"role"`
}

// EdgeFunction はビューアーリクエストで実行するBasic認証ゲート。
type EdgeFunction struct {
	Name      string     `yaml:"name" json:"name"`
	Runtime   string     `yaml:"runtime" json:"runtime"`
	EventType string     `yaml:"eventType" json:"eventType"`
	Gate      GateConfig `yaml:"gate" json:"gate"`
}

// GateConfig はゲートの設定を描画用に持つ。
type GateConfig struct {
	PublicPaths []string `yaml:"publicPaths" json:"publicPaths"`
	Services    []string `yaml:"services" json:"services"`
	Realms      []string `yaml:"realms" json:"realms"`
	Usernames   []string `yaml:"usernames" json:"usernames"`
	Passwords   []string `yaml:"passwords" json:"passwords"`
}

// ResponseHeadersPolicy は上書きしないカスタムレスポンスヘッダー。
type ResponseHeadersPolicy struct {
	Name    string         `yaml:"name" json:"name"`
	Comment string         `yaml:"comment" json:"comment"`
	Headers []CustomHeader `yaml:"headers" json:"headers"`
}

// CustomHeader はレスポンスヘッダーポリシーの1ヘッダー。
type CustomHeader struct {
	Header   string `yaml:"header" json:"header"`
	Value    string `yaml:"value" json:"value"`
	Override bool   `yaml:"override" json:"override"`
}

// OriginKind はオリジンの種類。
type OriginKind string

const (
	// OriginKindBucket はオブジェクトストレージのオリジン。
	OriginKindBucket OriginKind = "bucket"
	// OriginKindFunctionURL はコンピュート関数URLのオリジン。
	OriginKindFunctionURL OriginKind = "functionURL"
)

// Origin は配信のオリジン。
type Origin struct {
	ID   string     `yaml:"id" json:"id"`
	Kind OriginKind `yaml:"kind" json:"kind"`
	// Bucket はバケットオリジンの場合のバケット名。
	Bucket string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	// CustomHeaders はオリジンへのリクエストに付与するヘッダー。
	CustomHeaders map[string]string `yaml:"customHeaders,omitempty" json:"customHeaders,omitempty"`
}

// 許可メソッドの種類。
const (
	// AllowedMethodsAll は全メソッドを許可する。
	AllowedMethodsAll = "ALL"
	// AllowedMethodsGetHead はGETとHEADのみ許可する。
	AllowedMethodsGetHead = "GET_HEAD"
)

// キャッシュポリシーの種類。
const (
	CachePolicyDisabled  = "CACHING_DISABLED"
	CachePolicyOptimized = "CACHING_OPTIMIZED"
)

// Behavior はパスパターンごとの配信ビヘイビア。
type Behavior struct {
	// PathPattern はパスパターン。デフォルトビヘイビアは"*"。
	PathPattern          string `yaml:"pathPattern" json:"pathPattern"`
	OriginID             string `yaml:"originId" json:"originId"`
	ViewerProtocolPolicy string `yaml:"viewerProtocolPolicy" json:"viewerProtocolPolicy"`
	AllowedMethods       string `yaml:"allowedMethods" json:"allowedMethods"`
	CachePolicy          string `yaml:"cachePolicy" json:"cachePolicy"`
	OriginRequestPolicy  string `yaml:"originRequestPolicy,omitempty" json:"originRequestPolicy,omitempty"`
	// ResponseHeadersPolicy はレスポンスヘッダーポリシー名。
	ResponseHeadersPolicy string `yaml:"responseHeadersPolicy,omitempty" json:"responseHeadersPolicy,omitempty"`
	// Gate はBasic認証ゲートを適用するかどうか。
	Gate bool `yaml:"gate" json:"gate"`
}

// Distribution はコンテンツ配信の定義。
type Distribution struct {
	ID              string            `yaml:"id" json:"id"`
	Comment         string            `yaml:"comment" json:"comment"`
	DomainNames     []string          `yaml:"domainNames,omitempty" json:"domainNames,omitempty"`
	CertificateARN  string            `yaml:"certificateArn,omitempty" json:"certificateArn,omitempty"`
	PriceClass      string            `yaml:"priceClass" json:"priceClass"`
	Origins         []Origin          `yaml:"origins" json:"origins"`
	DefaultBehavior Behavior          `yaml:"defaultBehavior" json:"defaultBehavior"`
	Behaviors       []Behavior        `yaml:"behaviors" json:"behaviors"`
	Tags            map[string]string `yaml:"tags" json:"tags"`
}

// AttributeType はテーブル属性の型。
type AttributeType string

// AttributeTypeString は文字列属性。
const AttributeTypeString AttributeType = "S"

// KeyAttribute はキー属性。
type KeyAttribute struct {
	Name string        `yaml:"name" json:"name"`
	Type AttributeType `yaml:"type" json:"type"`
}

// Index はグローバルセカンダリインデックス。
type Index struct {
	Name             string       `yaml:"name" json:"name"`
	PartitionKey     KeyAttribute `yaml:"partitionKey" json:"partitionKey"`
	SortKey          KeyAttribute `yaml:"sortKey" json:"sortKey"`
	ProjectionType   string       `yaml:"projectionType" json:"projectionType"`
	NonKeyAttributes []string     `yaml:"nonKeyAttributes,omitempty" json:"nonKeyAttributes,omitempty"`
}

// Table はキーバリューテーブル。
type Table struct {
	ID                  string       `yaml:"id" json:"id"`
	Name                string       `yaml:"name" json:"name"`
	PartitionKey        KeyAttribute `yaml:"partitionKey" json:"partitionKey"`
	SortKey             KeyAttribute `yaml:"sortKey" json:"sortKey"`
	BillingMode         string       `yaml:"billingMode" json:"billingMode"`
	PointInTimeRecovery bool         `yaml:"pointInTimeRecovery" json:"pointInTimeRecovery"`
	RemovalPolicy       string       `yaml:"removalPolicy" json:"removalPolicy"`
	Indexes             []Index      `yaml:"indexes,omitempty" json:"indexes,omitempty"`
}

// Index は名前でインデックスを探す。
func (t Table) Index(name string) (Index, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// AliasRecord は配信を指すDNSエイリアスレコード。
type AliasRecord struct {
	Zone       string `yaml:"zone" json:"zone"`
	RecordName string `yaml:"recordName" json:"recordName"`
	Type       string `yaml:"type" json:"type"`
	// Target はエイリアス先のリソース論理ID。
	Target string `yaml:"target" json:"target"`
}

// Output はスタック出力。
type Output struct {
	Key         string `yaml:"key" json:"key"`
	Value       string `yaml:"value" json:"value"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}
