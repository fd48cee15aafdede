package config

const redacted = "[REDACTED]"

// RedactedConfig returns a shallow copy of the Config with credential fields
// masked so the whole structure can be logged safely at startup.
func (c *Config) RedactedConfig() Config {
	cp := *c
	redact(&cp.Redis.Password)
	redact(&cp.Postgres.DSN)
	redact(&cp.Postgres.Password)
	redact(&cp.S3.AccessKey)
	redact(&cp.S3.SecretKey)
	redact(&cp.Server.APIKey)
	return cp
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
