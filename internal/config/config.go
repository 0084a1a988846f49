package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPListenAddr    string
	MetricsListenAddr string
	LogLevel          string
	ServiceName       string
	CORSOrigins       []string
	// DashboardToken is passed through by the frontend as a bearer token.
	// Empty disables the check.
	DashboardToken string

	TLSCert string
	TLSKey  string

	VendorAPIURL     string
	VendorAPIToken   string
	VendorAPITimeout time.Duration

	BackupAPIURL      string
	BackupAPIPassword string
	BackupTimeout     time.Duration

	DevHostSuffix     string
	MainSiteDomain    string
	ProbeTimeout      time.Duration
	ProbeMaxRedirects int

	ValidationCooldown time.Duration
	PollInterval       time.Duration
	PollStableWindow   time.Duration
	PollMaxDuration    time.Duration

	ResidentHostingMap  string
	PullTimestampsFile  string
	// ExcludedCustomerIDs hides customers from the list. Production sets the
	// vendor's internal test account here; empty shows every customer.
	ExcludedCustomerIDs []int
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPListenAddr:     getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsListenAddr:  getEnv("METRICS_LISTEN_ADDR", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ServiceName:        getEnv("SERVICE_NAME", "envdash"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		DashboardToken:     getEnv("DASHBOARD_TOKEN", ""),
		TLSCert:            getEnv("TLS_CERT_FILE", ""),
		TLSKey:             getEnv("TLS_KEY_FILE", ""),
		VendorAPIURL:       getEnv("VENDOR_API_URL", ""),
		VendorAPIToken:     getEnv("VENDOR_API_TOKEN", ""),
		BackupAPIURL:       getEnv("BACKUP_API_URL", ""),
		BackupAPIPassword:  getEnv("BACKUP_API_PASSWORD", ""),
		DevHostSuffix:      strings.Trim(getEnv("DEV_HOST_SUFFIX", ""), "."),
		MainSiteDomain:     getEnv("MAIN_SITE_DOMAIN", ""),
		ResidentHostingMap: getEnv("RESIDENT_HOSTING_MAP", "data/resident_hosting.json"),
		PullTimestampsFile: getEnv("PULL_TIMESTAMPS_FILE", "data/pull_timestamps.json"),
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"VENDOR_API_TIMEOUT", 10 * time.Second, &cfg.VendorAPITimeout},
		{"BACKUP_TIMEOUT", 45 * time.Second, &cfg.BackupTimeout},
		{"PROBE_TIMEOUT", 5 * time.Second, &cfg.ProbeTimeout},
		{"VALIDATION_COOLDOWN", 5 * time.Second, &cfg.ValidationCooldown},
		{"POLL_INTERVAL", 60 * time.Second, &cfg.PollInterval},
		{"POLL_STABLE_WINDOW", 2 * time.Minute, &cfg.PollStableWindow},
		{"POLL_MAX_DURATION", 30 * time.Minute, &cfg.PollMaxDuration},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.fallback)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	redirects, err := strconv.Atoi(getEnv("PROBE_MAX_REDIRECTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("PROBE_MAX_REDIRECTS: %w", err)
	}
	cfg.ProbeMaxRedirects = redirects

	for _, s := range splitList(getEnv("EXCLUDED_CUSTOMER_IDS", "")) {
		id, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("EXCLUDED_CUSTOMER_IDS: invalid id %q", s)
		}
		cfg.ExcludedCustomerIDs = append(cfg.ExcludedCustomerIDs, id)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.VendorAPIURL == "" {
		missing = append(missing, "VENDOR_API_URL")
	}
	if c.VendorAPIToken == "" {
		missing = append(missing, "VENDOR_API_TOKEN")
	}
	if c.BackupAPIURL == "" {
		missing = append(missing, "BACKUP_API_URL")
	}
	if c.DevHostSuffix == "" {
		missing = append(missing, "DEV_HOST_SUFFIX")
	}
	if c.MainSiteDomain == "" {
		missing = append(missing, "MAIN_SITE_DOMAIN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must both be set")
	}
	if c.ProbeMaxRedirects < 0 {
		return fmt.Errorf("PROBE_MAX_REDIRECTS must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	return nil
}

// Warnings reports settings that are valid but unusual for a production
// deployment.
func (c *Config) Warnings() []string {
	var warnings []string
	if len(c.ExcludedCustomerIDs) == 0 {
		warnings = append(warnings, "EXCLUDED_CUSTOMER_IDS is empty; the internal test account will be listed")
	}
	if c.DashboardToken == "" {
		warnings = append(warnings, "DASHBOARD_TOKEN is empty; the API is unauthenticated")
	}
	return warnings
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
