package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config captures runtime configuration values used by the metrics service.
type Config struct {
	// ServerAddress is the host:port pair the HTTP server listens on. Defaults to ":18111".
	ServerAddress string

	// MemberfulAPIKey authenticates GraphQL requests against Memberful.
	MemberfulAPIKey string

	// MemberfulGraphQLURL is the Memberful GraphQL endpoint.
	MemberfulGraphQLURL string

	// BaselineMRR is the opening MRR, in major units, used for the first
	// month of a reconciliation when no stored baseline exists.
	BaselineMRR decimal.Decimal

	// CacheTTL is how long a fetched snapshot is served before refetching.
	CacheTTL time.Duration

	// RefreshSchedule is a cron spec for background refreshes. Empty disables them.
	RefreshSchedule string

	// ActivityMonths is how many months of activity history are loaded.
	ActivityMonths int

	// EducationActivityRule selects how activities are classified as education.
	EducationActivityRule string

	// DashboardPassword gates the /api routes when set.
	DashboardPassword string

	// DatabaseURL is the optional Postgres DSN holding stored MRR baselines.
	DatabaseURL string
}

const (
	defaultServerAddress   = ":18111"
	defaultGraphQLURL      = "https://made.memberful.com/api/graphql"
	defaultCacheTTL        = "1h"
	defaultRefreshSchedule = "@every 30m"
	defaultActivityMonths  = 12
	defaultEducationRule   = "heuristic"

	envServerAddress     = "BACKEND_ADDR"
	envMemberfulAPIKey   = "MEMBERFUL_API_KEY"
	envMemberfulURL      = "MEMBERFUL_GRAPHQL_URL"
	envBaselineMRR       = "BASELINE_MRR"
	envCacheTTL          = "CACHE_TTL"
	envRefreshSchedule   = "REFRESH_SCHEDULE"
	envActivityMonths    = "ACTIVITY_MONTHS"
	envEducationRule     = "EDUCATION_ACTIVITY_RULE"
	envDashboardPassword = "DASHBOARD_PASSWORD"
	envDatabaseURL       = "DATABASE_URL"
)

var educationRules = []string{"heuristic", "coupon"}

// Load reads configuration from environment variables, applies defaults, and returns
// a Config structure. Required or malformed values return an error naming the variable.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault(envServerAddress, defaultServerAddress)
	v.SetDefault(envMemberfulURL, defaultGraphQLURL)
	v.SetDefault(envBaselineMRR, "0")
	v.SetDefault(envCacheTTL, defaultCacheTTL)
	v.SetDefault(envRefreshSchedule, defaultRefreshSchedule)
	v.SetDefault(envActivityMonths, strconv.Itoa(defaultActivityMonths))
	v.SetDefault(envEducationRule, defaultEducationRule)
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	for _, key := range []string{
		envServerAddress, envMemberfulAPIKey, envMemberfulURL, envBaselineMRR, envCacheTTL,
		envRefreshSchedule, envActivityMonths, envEducationRule, envDashboardPassword, envDatabaseURL,
	} {
		_ = v.BindEnv(key)
	}

	rule := strings.ToLower(strings.TrimSpace(v.GetString(envEducationRule)))
	cfg := Config{
		ServerAddress:         firstNonEmpty(strings.TrimSpace(v.GetString(envServerAddress)), defaultServerAddress),
		MemberfulAPIKey:       strings.TrimSpace(v.GetString(envMemberfulAPIKey)),
		MemberfulGraphQLURL:   firstNonEmpty(strings.TrimSpace(v.GetString(envMemberfulURL)), defaultGraphQLURL),
		RefreshSchedule:       refreshSchedule(v.GetString(envRefreshSchedule)),
		EducationActivityRule: firstNonEmpty(rule, defaultEducationRule),
		DashboardPassword:     v.GetString(envDashboardPassword),
		DatabaseURL:           strings.TrimSpace(v.GetString(envDatabaseURL)),
	}

	if cfg.MemberfulAPIKey == "" {
		return Config{}, fmt.Errorf("%s is required", envMemberfulAPIKey)
	}

	if _, err := url.ParseRequestURI(cfg.MemberfulGraphQLURL); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", envMemberfulURL, err)
	}

	baseline, err := decimal.NewFromString(firstNonEmpty(strings.TrimSpace(v.GetString(envBaselineMRR)), "0"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", envBaselineMRR, err)
	}
	if baseline.IsNegative() {
		return Config{}, fmt.Errorf("invalid %s: must not be negative", envBaselineMRR)
	}
	cfg.BaselineMRR = baseline

	ttl, err := time.ParseDuration(firstNonEmpty(strings.TrimSpace(v.GetString(envCacheTTL)), defaultCacheTTL))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", envCacheTTL, err)
	}
	if ttl < 0 {
		return Config{}, fmt.Errorf("invalid %s: must not be negative", envCacheTTL)
	}
	cfg.CacheTTL = ttl

	months, err := strconv.Atoi(firstNonEmpty(strings.TrimSpace(v.GetString(envActivityMonths)), strconv.Itoa(defaultActivityMonths)))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", envActivityMonths, err)
	}
	if months < 1 || months > 120 {
		return Config{}, fmt.Errorf("invalid %s: must be between 1 and 120", envActivityMonths)
	}
	cfg.ActivityMonths = months

	if !lo.Contains(educationRules, cfg.EducationActivityRule) {
		return Config{}, fmt.Errorf("invalid %s: %q (expected one of %s)", envEducationRule, cfg.EducationActivityRule, strings.Join(educationRules, ", "))
	}

	if cfg.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envRefreshSchedule, err)
		}
	}

	if cfg.DatabaseURL != "" {
		if err := validateDatabaseURL(cfg.DatabaseURL); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envDatabaseURL, err)
		}
	}

	return cfg, nil
}

// LoadDatabaseURL returns DATABASE_URL for tools that only need the
// database, without requiring the Memberful settings.
func LoadDatabaseURL() (string, error) {
	v := viper.New()
	_ = v.BindEnv(envDatabaseURL)
	dsn := strings.TrimSpace(v.GetString(envDatabaseURL))
	if dsn == "" {
		return "", fmt.Errorf("%s is required", envDatabaseURL)
	}
	if err := validateDatabaseURL(dsn); err != nil {
		return "", fmt.Errorf("invalid %s: %w", envDatabaseURL, err)
	}
	return dsn, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// refreshSchedule normalises the schedule; empty or "off" disables refreshes.
func refreshSchedule(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "off") {
		return ""
	}
	return raw
}

func validateDatabaseURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch parsed.Scheme {
	case "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
