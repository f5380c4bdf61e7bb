package config

// FieldEncryptionConfig holds the at-rest field encryption settings.
//
// Key is a 64-character hex string (a raw 256-bit AES key). Passphrase is a
// fallback for deployments that cannot ship a raw key; the fieldcrypt package
// derives a key from it with PBKDF2. Exactly one of the two should be set.
type FieldEncryptionConfig struct {
	Key        string `env:"TRUST_ENCRYPTION_KEY" env-default:""`
	Passphrase string `env:"TRUST_ENCRYPTION_PASSPHRASE" env-default:""`
}

// JwtConfig holds settings for session identity tokens
type JwtConfig struct {
	Secret         string `env:"TRUST_JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer         string `env:"TRUST_JWT_ISSUER" env-default:"trustcore"`
	Audience       string `env:"TRUST_JWT_AUDIENCE" env-default:"trustcore"`
	CookieHttpOnly bool   `env:"TRUST_COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure   bool   `env:"TRUST_COOKIE_SECURE" env-default:"false"`
}
