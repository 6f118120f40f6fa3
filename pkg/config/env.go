package config

const (
	EnvPrefix = "THREADLINE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv        = "THREADLINE_APP_ENV"
	EnvPort          = "THREADLINE_APP_PORT"
	EnvLogLevel      = "THREADLINE_LOG_LEVEL"
	EnvDBDSN         = "THREADLINE_DB_DSN"
	EnvDBHost        = "THREADLINE_DB_HOST"
	EnvDBUser        = "THREADLINE_DB_USER"
	EnvDBName        = "THREADLINE_DB_NAME"
	EnvDBTxIsolation = "THREADLINE_DB_TX_ISOLATION"
	EnvRedisURL      = "THREADLINE_REDIS_URL"
	EnvJWTSecret     = "THREADLINE_JWT_SECRET"
	EnvJWTIssuer     = "THREADLINE_JWT_ISSUER"
	EnvGCPProjectID  = "THREADLINE_GCP_PROJECT_ID"
	EnvDomainTopic   = "THREADLINE_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
