package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "gembot"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside struct tags (tests, errors).
const (
	EnvAppEnv     = "GEMBOT_APP_ENV"
	EnvPort       = "GEMBOT_APP_PORT"
	EnvDBDSN      = "GEMBOT_DB_DSN"
	EnvDBHost     = "GEMBOT_DB_HOST"
	EnvDBUser     = "GEMBOT_DB_USER"
	EnvDBName     = "GEMBOT_DB_NAME"
	EnvRedisURL   = "GEMBOT_REDIS_URL"
	EnvJWTSecret  = "GEMBOT_JWT_SECRET"
	EnvJWTIssuer  = "GEMBOT_JWT_ISSUER"
	EnvJWTExpMins = "GEMBOT_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
