package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/unseenwear/checkout/internal/domain/payment"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Gateway     GatewayConfig
	SMTP        SMTPConfig
	Graceful    GracefulConfig
}

// GatewayConfig holds the HYP payment gateway credentials.
type GatewayConfig struct {
	MerchantName string `usage:"HYP merchant name" flag:"merchant-name"`
	TerminalID   string `usage:"HYP terminal id (Masof)" flag:"terminal-id"`
	UserID       string `usage:"HYP API user id" flag:"user-id"`
	APIPassword  string `usage:"HYP API password" flag:"api-password"`
	Endpoint     string `usage:"HYP API endpoint URL" flag:"endpoint"`
	Environment  string `default:"production" usage:"HYP environment tag"`
}

// SMTPConfig holds outbound mail settings for order notifications.
type SMTPConfig struct {
	Host       string `default:"localhost" usage:"SMTP host"`
	Port       int    `default:"587" usage:"SMTP port"`
	Username   string `usage:"SMTP username"`
	Password   string `usage:"SMTP password"`
	FromEmail  string `default:"noreply@unseen.il" usage:"From address" flag:"from-email"`
	OwnerEmail string `usage:"store owner notification address" flag:"owner-email"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// PaymentConfig converts the gateway section into the payment package's
// configuration.
func (c *Config) PaymentConfig() payment.Config {
	return payment.Config{
		MerchantName: c.Gateway.MerchantName,
		TerminalID:   c.Gateway.TerminalID,
		UserID:       c.Gateway.UserID,
		APIPassword:  c.Gateway.APIPassword,
		Endpoint:     c.Gateway.Endpoint,
		Environment:  c.Gateway.Environment,
	}
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and legacy environment names.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyLegacyDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set CHECKOUT_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyLegacyDefaults maps the HYP_* environment names of the original
// deployment and platform-provided names like DATABASE_URL and PORT onto the
// CHECKOUT_-prefixed configuration.
func (c *Config) applyLegacyDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}

	legacy := map[string]*string{
		"HYP_MERCHANT_NAME": &c.Gateway.MerchantName,
		"HYP_TERMINAL_ID":   &c.Gateway.TerminalID,
		"HYP_USER_ID":       &c.Gateway.UserID,
		"HYP_API_PASSWORD":  &c.Gateway.APIPassword,
		"HYP_API_ENDPOINT":  &c.Gateway.Endpoint,
		"HYP_ENVIRONMENT":   &c.Gateway.Environment,
	}
	for env, dst := range legacy {
		if *dst == "" || (env == "HYP_ENVIRONMENT" && *dst == "production") {
			if v := os.Getenv(env); v != "" {
				*dst = v
			}
		}
	}
}
