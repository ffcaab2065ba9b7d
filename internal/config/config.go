// Package config loads per-environment settings for the ticket intake
// service. It replaces the original per-environment subclass hierarchy
// (ProductionAppConfig / OTEAppConfig / ... inheriting AppConfig) with a
// single value type and a loader function selecting by environment name,
// per the abstract base / global-config design notes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the fully-resolved runtime configuration for one environment.
type Config struct {
	Env string

	// Backend Adapter
	BackendURL      string
	BackendUser     string
	BackendPass     string
	BackendTimeoutS int

	// Incident store
	PGURL string

	// Task Publisher
	BrokerURL       string
	MultipleBrokers []string
	QuorumQueue     bool
	MiddlewareQueue string
	GDBSQueue       string

	// Policy
	TrustedReporters map[string]string
	ExemptReporters  map[string]string
	UserGenDomains   []string

	// Operating regime
	DatabaseImpacted bool

	// Observability
	OTELEndpoint string
}

var byEnv = map[string]func() Config{
	"prod": productionConfig,
	"ote":  oteConfig,
	"dev":  developmentConfig,
	"test": testConfig,
	"unit-test": testConfig,
}

// Load resolves the Config for the named environment, applying secret and
// environment-variable overrides on top of the environment's static
// defaults. An empty environment name selects "dev", matching the original
// settings.py's behavior of defaulting sysenv to 'dev'; any other name not
// in byEnv is an error.
func Load(env string) (Config, error) {
	if env == "" {
		env = "dev"
	}
	factory, ok := byEnv[env]
	if !ok {
		return Config{}, fmt.Errorf("config: unknown environment %q", env)
	}
	cfg := factory()
	cfg.Env = env

	cfg.BackendPass = getenv("BACKEND_PASS", cfg.BackendPass)
	cfg.PGURL = getenv("PG_URL", cfg.PGURL)
	cfg.BrokerURL = getenv("BROKER_URL", cfg.BrokerURL)
	cfg.OTELEndpoint = getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)

	if v := os.Getenv("MULTIPLE_BROKERS"); v != "" {
		cfg.MultipleBrokers = strings.Split(v, ",")
	}
	if v := os.Getenv("QUORUM_QUEUE"); v != "" {
		cfg.QuorumQueue = strings.EqualFold(v, "quorum") || parseBool(v)
	}
	if v := os.Getenv("DATABASE_IMPACTED"); v != "" {
		cfg.DatabaseImpacted = parseBool(v)
	}
	if cfg.BackendTimeoutS == 0 {
		cfg.BackendTimeoutS = 10
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return false
	}
	return b
}

func baseConfig() Config {
	return Config{
		BackendTimeoutS: 10,
		BackendPass:     "backend_pass",
		UserGenDomains:  []string{"wix.com", "joomla.com"},
	}
}

func productionConfig() Config {
	c := baseConfig()
	c.BackendURL = "https://ticketing.example.com/api/now/table"
	c.BackendUser = "dcuapi"
	c.MiddlewareQueue = "dcumiddleware"
	c.GDBSQueue = "gdbsqueue"
	c.TrustedReporters = map[string]string{"Sucuri": "198103515", "DBP": "290638894", "PhishLabs": "129092584"}
	c.ExemptReporters = map[string]string{"Sucuri": "198103515", "DBP": "290638894", "PhishLabs": "129092584", "InternalScanner": "700001122"}
	return c
}

func oteConfig() Config {
	c := baseConfig()
	c.BackendURL = "https://ticketing-ote.example.com/api/now/table"
	c.MiddlewareQueue = "otedcumiddleware"
	c.GDBSQueue = "otegdbsqueue"
	c.TrustedReporters = map[string]string{"Sucuri": "1500070951", "DBP": "1500495186", "PhishLabs": "908557"}
	c.ExemptReporters = map[string]string{"Sucuri": "1500070951", "DBP": "1500495186", "PhishLabs": "908557", "InternalScanner": "700002233"}
	return c
}

func developmentConfig() Config {
	c := baseConfig()
	c.BackendURL = "https://ticketing-dev.example.com/api/now/table"
	c.MiddlewareQueue = "devdcumiddleware"
	c.GDBSQueue = "devgdbsqueue"
	c.TrustedReporters = map[string]string{"dcuapi_test_dev": "1054985"}
	c.ExemptReporters = map[string]string{"dcuapi_test_dev": "1054985", "InternalScanner": "700003344"}
	return c
}

func testConfig() Config {
	c := baseConfig()
	c.BackendURL = "https://ticketing-dev.example.com/api/now/table"
	c.MiddlewareQueue = "testdcumiddleware"
	c.GDBSQueue = "testgdbsqueue"
	c.TrustedReporters = map[string]string{"Sucuri": "0", "DBP": "0", "PhishLabs": "0"}
	c.ExemptReporters = map[string]string{"Sucuri": "0", "DBP": "0", "PhishLabs": "0", "InternalScanner": "0"}
	return c
}
