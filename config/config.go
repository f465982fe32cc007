/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	// MemoryDataSource selects the in-process store instead of PostgreSQL.
	MemoryDataSource = "memory://"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"RECON_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"RECON_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"RECON_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"RECON_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"RECON_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"RECON_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"RECON_DATA_SOURCE_DNS"`
	// ConnectRetrySec bounds how long startup keeps retrying an unreachable database.
	ConnectRetrySec int `json:"connect_retry_sec" envconfig:"RECON_DATA_SOURCE_CONNECT_RETRY_SEC"`
}

// RedisConfig is optional. Without it, auto-match runs are not guarded by a tenant lock.
type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"RECON_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"RECON_REDIS_SKIP_TLS_VERIFY"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"RECON_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"RECON_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"RECON_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"RECON_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url" envconfig:"RECON_WEBHOOK_URL"`
		Headers map[string]string `json:"headers" ignored:"true"`
	} `json:"webhook"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" envconfig:"RECON_TRACING_ENABLED"`
	Endpoint    string `json:"endpoint" envconfig:"RECON_TRACING_ENDPOINT"`
	Insecure    bool   `json:"insecure" envconfig:"RECON_TRACING_INSECURE"`
	ServiceName string `json:"service_name" envconfig:"RECON_TRACING_SERVICE_NAME"`
}

type LogConfig struct {
	Level  string `json:"level" envconfig:"RECON_LOG_LEVEL"`
	Format string `json:"format" envconfig:"RECON_LOG_FORMAT"`
}

type WeightsConfig struct {
	Amount      float64 `json:"amount" envconfig:"RECON_WEIGHT_AMOUNT"`
	Date        float64 `json:"date" envconfig:"RECON_WEIGHT_DATE"`
	Description float64 `json:"description" envconfig:"RECON_WEIGHT_DESCRIPTION"`
}

// TolerancesConfig holds the accepted amount difference per match type, in currency units.
type TolerancesConfig struct {
	Single       decimal.Decimal `json:"single" envconfig:"RECON_TOLERANCE_SINGLE"`
	Combination  decimal.Decimal `json:"combination" envconfig:"RECON_TOLERANCE_COMBINATION"`
	ProviderBulk decimal.Decimal `json:"provider_bulk" envconfig:"RECON_TOLERANCE_PROVIDER_BULK"`
}

// ThresholdsConfig is the auto-match policy of a tenant.
type ThresholdsConfig struct {
	AutoMatch       float64 `json:"auto_match" envconfig:"RECON_AUTO_MATCH_THRESHOLD"`
	Review          float64 `json:"review" envconfig:"RECON_REVIEW_THRESHOLD"`
	AmbiguityMargin float64 `json:"ambiguity_margin" envconfig:"RECON_AMBIGUITY_MARGIN"`
}

type MatchingConfig struct {
	// Weights are shared by the provider and the bank pass.
	Weights             WeightsConfig    `json:"weights"`
	Thresholds          ThresholdsConfig `json:"thresholds"`
	Tolerances          TolerancesConfig `json:"tolerances"`
	MaxCombinationItems int              `json:"max_combination_items" envconfig:"RECON_MAX_COMBINATION_ITEMS"`
	MaxBulkItems        int              `json:"max_bulk_items" envconfig:"RECON_MAX_BULK_ITEMS"`
	CombinationPoolCap  int              `json:"combination_pool_cap" envconfig:"RECON_COMBINATION_POOL_CAP"`
	BulkWindowDays      int              `json:"bulk_window_days" envconfig:"RECON_BULK_WINDOW_DAYS"`
	TopCandidates       int              `json:"top_candidates" envconfig:"RECON_TOP_CANDIDATES"`

	// BulkDetectionThreshold is the confidence from which a bulk payout is reported.
	BulkDetectionThreshold float64 `json:"bulk_detection_threshold" envconfig:"RECON_BULK_DETECTION_THRESHOLD"`

	// TenantOverrides replaces the thresholds for individual tenants.
	TenantOverrides map[string]ThresholdsConfig `json:"tenant_overrides" ignored:"true"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"RECON_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Tracing      TracingConfig    `json:"tracing"`
	Log          LogConfig        `json:"log"`
	Matching     MatchingConfig   `json:"matching"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("recon", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called recon.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Recon Server"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}
	if cnf.DataSource.ConnectRetrySec <= 0 {
		cnf.DataSource.ConnectRetrySec = 30
	}

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	if cnf.Tracing.ServiceName == "" {
		cnf.Tracing.ServiceName = "recon"
	}
	if cnf.Log.Level == "" {
		cnf.Log.Level = "info"
	}

	return cnf.Matching.validateAndAddDefaults()
}

func (m *MatchingConfig) validateAndAddDefaults() error {
	w := &m.Weights
	if w.Amount == 0 && w.Date == 0 && w.Description == 0 {
		w.Amount, w.Date, w.Description = 70, 20, 10
	}
	if w.Amount < 0 || w.Date < 0 || w.Description < 0 {
		return errors.New("matching weights must not be negative")
	}

	m.Thresholds = m.Thresholds.withDefaults()
	if err := m.Thresholds.validate(); err != nil {
		return err
	}
	for tenant, override := range m.TenantOverrides {
		override = override.withDefaultsFrom(m.Thresholds)
		if err := override.validate(); err != nil {
			return fmt.Errorf("tenant %s: %w", tenant, err)
		}
		m.TenantOverrides[tenant] = override
	}

	t := &m.Tolerances
	if t.Single.IsZero() {
		t.Single = decimal.RequireFromString("5.00")
	}
	if t.Combination.IsZero() {
		t.Combination = decimal.RequireFromString("1.00")
	}
	if t.ProviderBulk.IsZero() {
		t.ProviderBulk = decimal.RequireFromString("2.00")
	}
	for name, tol := range map[string]decimal.Decimal{"single": t.Single, "combination": t.Combination, "provider_bulk": t.ProviderBulk} {
		if tol.IsNegative() {
			return fmt.Errorf("%s tolerance must not be negative", name)
		}
		if !tol.Equal(tol.Round(2)) {
			return fmt.Errorf("%s tolerance must have at most two decimal places", name)
		}
	}

	if m.MaxCombinationItems <= 0 {
		m.MaxCombinationItems = 5
	}
	if m.MaxBulkItems <= 0 {
		m.MaxBulkItems = 10
	}
	if m.CombinationPoolCap <= 0 {
		m.CombinationPoolCap = 40
	}
	if m.BulkWindowDays <= 0 {
		m.BulkWindowDays = 7
	}
	if m.TopCandidates <= 0 {
		m.TopCandidates = 10
	}
	if m.BulkDetectionThreshold <= 0 {
		m.BulkDetectionThreshold = 60
	}
	return nil
}

func (t ThresholdsConfig) withDefaults() ThresholdsConfig {
	return t.withDefaultsFrom(ThresholdsConfig{AutoMatch: 95, Review: 50, AmbiguityMargin: 5})
}

func (t ThresholdsConfig) withDefaultsFrom(base ThresholdsConfig) ThresholdsConfig {
	if t.AutoMatch == 0 {
		t.AutoMatch = base.AutoMatch
	}
	if t.Review == 0 {
		t.Review = base.Review
	}
	if t.AmbiguityMargin == 0 {
		t.AmbiguityMargin = base.AmbiguityMargin
	}
	return t
}

func (t ThresholdsConfig) validate() error {
	if t.Review <= 0 || t.Review > t.AutoMatch || t.AutoMatch > 100 {
		return errors.New("thresholds must satisfy 0 < review <= auto_match <= 100")
	}
	if t.AmbiguityMargin < 0 {
		return errors.New("ambiguity margin must not be negative")
	}
	return nil
}

// ThresholdsFor returns the thresholds that apply to a tenant.
func (m MatchingConfig) ThresholdsFor(tenantID string) ThresholdsConfig {
	if override, ok := m.TenantOverrides[tenantID]; ok {
		return override
	}
	return m.Thresholds
}

// DefaultMatchingConfig returns the matching defaults, as used when no file is given.
func DefaultMatchingConfig() MatchingConfig {
	var m MatchingConfig
	_ = m.validateAndAddDefaults()
	return m
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}

// ConfigureLogging applies the log level and format to the standard logrus logger.
func (cnf *Configuration) ConfigureLogging() {
	level, err := logrus.ParseLevel(cnf.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if cnf.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
