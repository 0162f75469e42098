package config

const (
	// EnvPrefix scopes envconfig processing.
	EnvPrefix = "SHIFTBID"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SHIFTBID_DB_DSN"
	EnvDBHost = "SHIFTBID_DB_HOST"
	EnvDBUser = "SHIFTBID_DB_USER"
	EnvDBName = "SHIFTBID_DB_NAME"
)
