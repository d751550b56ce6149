package config

// MfaConfig contains service-level MFA settings loaded from the environment.
type MfaConfig struct {
	// Port the HTTP server listens on
	Port int `env:"MFA_PORT" env-default:"4000"`

	// JwtSecret verifies bearer tokens on the API surface
	JwtSecret string `env:"MFA_JWT_SECRET" env-default:"mfa-dev-secret-change-in-production"`

	// PersistenceType selects the account config store backend (memory, file, postgres)
	PersistenceType string `env:"MFA_PERSISTENCE_TYPE" env-default:"memory"`

	// DataDir holds file-based store data when PersistenceType is "file"
	DataDir string `env:"MFA_DATA_DIR" env-default:"./data"`

	// RedisAddr enables the Redis-backed verification ledger when set;
	// empty selects the in-memory ledger
	RedisAddr string `env:"MFA_REDIS_ADDR"`

	// RedisPassword authenticates the Redis connection
	RedisPassword string `env:"MFA_REDIS_PASSWORD"`

	// DatabaseURL connects the postgres stores when PersistenceType is "postgres"
	DatabaseURL string `env:"MFA_DATABASE_URL"`

	// TwilioEnabled selects the Twilio SMS notifier; disabled uses the mock
	TwilioEnabled bool `env:"MFA_TWILIO_ENABLED" env-default:"false"`

	// SmtpEnabled selects the SMTP email notifier; disabled uses the mock
	SmtpEnabled bool `env:"MFA_SMTP_ENABLED" env-default:"false"`
}
