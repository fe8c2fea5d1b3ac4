package config

// 設定キー。.env.<env> ファイルと環境変数で同じ名前を使う。
const (
	keyTeamName       = "NUXT_SYS_TEAM_NAME"
	keyProjectName    = "NUXT_SYS_PROJECT_NAME"
	keyClientName     = "NUXT_SYS_CLIENT_NAME"
	keyServiceName    = "NUXT_SYS_SERVICE_NAME"
	keyProductName    = "NUXT_SYS_PRODUCT_NAME"
	keySysEnvironment = "NUXT_SYS_ENVIRONMENT"

	keyAccountID = "NUXT_AWS_ACCOUNT_ID"
	keyRegion    = "NUXT_AWS_REGION"

	keyHostedZone     = "NUXT_AWS_R53_APP_HOSTED_ZONE_DOMAIN"
	keyHostname       = "NUXT_AWS_R53_APP_HOSTNAME"
	keyDomainHosting  = "NUXT_AWS_R53_APP_DOMAIN_HOSTING"
	keyCertificateARN = "NUXT_AWS_ACM_APP_CERT_ARN"

	keySystemBucket         = "NUXT_AWS_S3_SYSTEM_BUCKET_NAME"
	keyStaticBucket         = "NUXT_AWS_S3_PUBLIC_BUCKET_NAME"
	keyStorageBucket        = "NUXT_AWS_S3_STORAGE_BUCKET_NAME"
	keyCacheBucket          = "NUXT_AWS_S3_STORAGE_CACHE_BUCKET_NAME"
	keyCacheDownloadPath    = "NUXT_AWS_S3_STORAGE_CACHE_DOWNLOAD_BASE_PATH"
	keyCacheUploadPath      = "NUXT_AWS_S3_STORAGE_CACHE_UPLOAD_BASE_PATH"
	keyCacheLocalhostAccess = "NUXT_AWS_S3_STORAGE_CACHE_LOCALHOST_ACCESS"

	keySurveyURL         = "NUXT_APP_SURVEY_URL"
	keyCodeBucket        = "NUXT_APP_SURVEY_CODE_BUCKET_NAME"
	keyLambdaBasePath    = "NUXT_APP_SURVEY_CODE_LAMBDA_BASE_PATH"
	keyGlueBasePath      = "NUXT_APP_SURVEY_CODE_GLUE_BASE_PATH"
	keyOACForFunctionURL = "NUXT_AWS_OCA_FOR_LAMBDA_FUNC_URLS"
	keyAccessKeyName     = "NUXT_APP_ACCESS_KEY_NAME"
	keyAccessKeyValue    = "NUXT_APP_ACCESS_KEY_VALUE"

	keyGateEnabled   = "NUXT_APP_BASIC_AUTH_ON_CLOUD_FRONT"
	keyGatePublic    = "NUXT_APP_BASIC_AUTH_PUBLIC_SERVICES"
	keyGateServices  = "NUXT_APP_BASIC_AUTH_SERVICES"
	keyGateRealms    = "NUXT_APP_BASIC_AUTH_REALMS"
	keyGateUsernames = "NUXT_APP_BASIC_AUTH_USERNAMES"
	keyGatePasswords = "NUXT_APP_BASIC_AUTH_PASSWORDS"

	keyDynamoPrefix        = "NUXT_AWS_DYNAMO_TABLE_PREFIX"
	keyDynamoPITR          = "NUXT_AWS_DYNAMO_POINT_IN_TIME_RECOVERY"
	keyDynamoRemovalPolicy = "NUXT_AWS_DYNAMO_REMOVAL_POLICY"

	keyEdgePort         = "EDGE_PORT"
	keyEdgeAdminPort    = "EDGE_ADMIN_PORT"
	keyEdgeAppOrigin    = "EDGE_APP_ORIGIN_URL"
	keyEdgeS3Endpoint   = "EDGE_S3_ENDPOINT"
	keyEdgeS3AccessKey  = "EDGE_S3_ACCESS_KEY_ID"
	keyEdgeS3SecretKey  = "EDGE_S3_SECRET_ACCESS_KEY"
	keyEdgeEnforceHTTPS = "EDGE_ENFORCE_HTTPS"

	keyLogLevel = "LOG_LEVEL"
)
