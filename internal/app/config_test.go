package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyLegacyDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://legacy/db")
	t.Setenv("PORT", "9090")
	t.Setenv("HYP_TERMINAL_ID", "0010203")
	t.Setenv("HYP_USER_ID", "apiuser")
	t.Setenv("HYP_ENVIRONMENT", "staging")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.Gateway.Environment = "production" // the struct default
	cfg.applyLegacyDefaults()

	assert.Equal(t, "postgres://legacy/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, "0010203", cfg.Gateway.TerminalID)
	assert.Equal(t, "apiuser", cfg.Gateway.UserID)
	assert.Equal(t, "staging", cfg.Gateway.Environment)
}

func TestApplyLegacyDefaultsDoesNotOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://legacy/db")
	t.Setenv("HYP_TERMINAL_ID", "legacy-terminal")
	t.Setenv("PORT", "9090")

	cfg := Config{
		Addr:        "0.0.0.0:3000", // explicitly configured
		DatabaseURL: "postgres://primary/db",
	}
	cfg.Gateway.TerminalID = "primary-terminal"
	cfg.applyLegacyDefaults()

	assert.Equal(t, "postgres://primary/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr)
	assert.Equal(t, "primary-terminal", cfg.Gateway.TerminalID)
}

func TestPaymentConfig(t *testing.T) {
	cfg := Config{Gateway: GatewayConfig{
		MerchantName: "UNSEEN",
		TerminalID:   "0010203",
		UserID:       "apiuser",
		APIPassword:  "secret",
		Endpoint:     "https://pay.example.com/",
		Environment:  "production",
	}}

	pc := cfg.PaymentConfig()
	require.Equal(t, "0010203", pc.TerminalID)
	assert.Equal(t, "UNSEEN", pc.MerchantName)
	assert.Equal(t, "apiuser", pc.UserID)
	assert.Equal(t, "secret", pc.APIPassword)
	assert.Equal(t, "https://pay.example.com/", pc.Endpoint)
}
