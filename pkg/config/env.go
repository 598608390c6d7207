package config

const EnvPrefix = "PACKAGEBUILDER"

const (
	AppEnvDev        = "dev"
	AppEnvProd       = "prod"
	AppEnvProduction = "production"
)

const (
	EnvAppEnv   = "PACKAGEBUILDER_APP_ENV"
	EnvPort     = "PACKAGEBUILDER_APP_PORT"
	EnvLogLevel = "PACKAGEBUILDER_LOG_LEVEL"

	EnvDBDSN  = "PACKAGEBUILDER_DB_DSN"
	EnvDBHost = "PACKAGEBUILDER_DB_HOST"
	EnvDBUser = "PACKAGEBUILDER_DB_USER"
	EnvDBName = "PACKAGEBUILDER_DB_NAME"

	EnvRedisURL = "PACKAGEBUILDER_REDIS_URL"

	EnvWizardStepDelay  = "PACKAGEBUILDER_WIZARD_STEP_DELAY"
	EnvWizardSessionTTL = "PACKAGEBUILDER_WIZARD_SESSION_TTL"

	EnvPricingPlanNames          = "PACKAGEBUILDER_PRICING_PLAN_NAMES"
	EnvPricingPlanDiscounts      = "PACKAGEBUILDER_PRICING_PLAN_DISCOUNTS"
	EnvPricingSupportNames       = "PACKAGEBUILDER_PRICING_SUPPORT_NAMES"
	EnvPricingSupportMultipliers = "PACKAGEBUILDER_PRICING_SUPPORT_MULTIPLIERS"

	EnvGCPProjectID              = "PACKAGEBUILDER_GCP_PROJECT_ID"
	EnvPubSubConfigurationsTopic = "PACKAGEBUILDER_PUBSUB_CONFIGURATIONS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
