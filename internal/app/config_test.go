package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", validSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "full_admin", cfg.ProtectedRoleName)
	assert.Equal(t, 10, cfg.PreAnalysisLimit)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		return Config{
			JWTSecret:        validSecret,
			JWTAlgorithm:     "HS256",
			AccessTokenTTL:   time.Minute,
			RefreshTokenTTL:  time.Hour,
			PreAnalysisLimit: 5,
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "short secret", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: true},
		{name: "hs512", mutate: func(c *Config) { c.JWTAlgorithm = "HS512" }},
		{name: "asymmetric algorithm", mutate: func(c *Config) { c.JWTAlgorithm = "RS256" }, wantErr: true},
		{name: "none algorithm", mutate: func(c *Config) { c.JWTAlgorithm = "none" }, wantErr: true},
		{name: "zero access ttl", mutate: func(c *Config) { c.AccessTokenTTL = 0 }, wantErr: true},
		{name: "refresh shorter than access", mutate: func(c *Config) { c.RefreshTokenTTL = time.Second }, wantErr: true},
		{name: "zero pre-analysis limit", mutate: func(c *Config) { c.PreAnalysisLimit = 0 }, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "full_admin", cfg.ProtectedRoleName)
		})
	}
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
