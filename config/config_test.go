package config

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateAndAddDefaults(t *testing.T) {
	// Test case with empty ProjectName and DataSource DNS
	cnf := Configuration{
		ProjectName: "",
		DataSource: DataSourceConfig{
			Dns: "",
		},
	}

	err := cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "data source DNS is required" {
		t.Errorf("Expected data source DNS required error, got %v", err)
	}

	// Redis is optional
	cnf = Configuration{
		ProjectName: "Test Project",
		DataSource: DataSourceConfig{
			Dns: "postgres://localhost:5432",
		},
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cnf.Server.Port != DEFAULT_PORT {
		t.Errorf("Expected default port %s, got %s", DEFAULT_PORT, cnf.Server.Port)
	}
	if cnf.DataSource.ConnectRetrySec != 30 {
		t.Errorf("Expected default connect retry of 30s, got %d", cnf.DataSource.ConnectRetrySec)
	}
}

func TestMatchingDefaults(t *testing.T) {
	m := DefaultMatchingConfig()

	if m.Weights != (WeightsConfig{Amount: 70, Date: 20, Description: 10}) {
		t.Errorf("unexpected default weights %+v", m.Weights)
	}
	if m.Thresholds != (ThresholdsConfig{AutoMatch: 95, Review: 50, AmbiguityMargin: 5}) {
		t.Errorf("unexpected default thresholds %+v", m.Thresholds)
	}
	if !m.Tolerances.Single.Equal(decimal.RequireFromString("5")) {
		t.Errorf("unexpected single tolerance %s", m.Tolerances.Single)
	}
	if !m.Tolerances.Combination.Equal(decimal.RequireFromString("1")) {
		t.Errorf("unexpected combination tolerance %s", m.Tolerances.Combination)
	}
	if !m.Tolerances.ProviderBulk.Equal(decimal.RequireFromString("2")) {
		t.Errorf("unexpected bulk tolerance %s", m.Tolerances.ProviderBulk)
	}
	if m.MaxCombinationItems != 5 || m.MaxBulkItems != 10 || m.CombinationPoolCap != 40 || m.BulkWindowDays != 7 || m.TopCandidates != 10 {
		t.Errorf("unexpected limits %+v", m)
	}
}

func TestMatchingValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  MatchingConfig
	}{
		{"negative weight", MatchingConfig{Weights: WeightsConfig{Amount: -1, Date: 20, Description: 10}}},
		{"review above auto", MatchingConfig{Thresholds: ThresholdsConfig{AutoMatch: 60, Review: 70}}},
		{"auto above 100", MatchingConfig{Thresholds: ThresholdsConfig{AutoMatch: 101}}},
		{"negative tolerance", MatchingConfig{Tolerances: TolerancesConfig{Single: decimal.RequireFromString("-1")}}},
		{"sub cent tolerance", MatchingConfig{Tolerances: TolerancesConfig{Combination: decimal.RequireFromString("0.005")}}},
		{"bad tenant override", MatchingConfig{TenantOverrides: map[string]ThresholdsConfig{"tenant_a": {AutoMatch: 40}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.validateAndAddDefaults(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestThresholdsFor(t *testing.T) {
	m := MatchingConfig{TenantOverrides: map[string]ThresholdsConfig{
		"strict": {AutoMatch: 99},
	}}
	if err := m.validateAndAddDefaults(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	strict := m.ThresholdsFor("strict")
	if strict.AutoMatch != 99 || strict.Review != 50 || strict.AmbiguityMargin != 5 {
		t.Errorf("override not merged with defaults: %+v", strict)
	}
	if m.ThresholdsFor("other").AutoMatch != 95 {
		t.Errorf("expected default thresholds for unknown tenant")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "recon.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := map[string]interface{}{
		"project_name": "Temp Project",
		"data_source":  map[string]string{"dns": "temp-dns"},
		"matching": map[string]interface{}{
			"tolerances": map[string]string{"combination": "0.50"},
			"tenant_overrides": map[string]interface{}{
				"tenant_a": map[string]float64{"auto_match": 97},
			},
		},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	os.Setenv("RECON_PROJECT_NAME", "Env Project")
	defer os.Unsetenv("RECON_PROJECT_NAME")
	os.Setenv("RECON_AUTO_MATCH_THRESHOLD", "96")
	defer os.Unsetenv("RECON_AUTO_MATCH_THRESHOLD")

	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if loadedConfig.ProjectName != "Env Project" {
		t.Errorf("Expected ProjectName to be 'Env Project', got '%s'", loadedConfig.ProjectName)
	}
	if loadedConfig.DataSource.Dns != "temp-dns" {
		t.Errorf("Expected DataSource.Dns to be 'temp-dns', got '%s'", loadedConfig.DataSource.Dns)
	}
	if !loadedConfig.Matching.Tolerances.Combination.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Expected combination tolerance 0.50, got %s", loadedConfig.Matching.Tolerances.Combination)
	}
	if loadedConfig.Matching.Thresholds.AutoMatch != 96 {
		t.Errorf("Expected env override of auto match threshold, got %v", loadedConfig.Matching.Thresholds.AutoMatch)
	}
	if loadedConfig.Matching.ThresholdsFor("tenant_a").AutoMatch != 97 {
		t.Errorf("Expected tenant override to be loaded")
	}
}

func TestInitConfig(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "recon.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "InitConfig Test",
		DataSource: DataSourceConfig{
			Dns: MemoryDataSource,
		},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	if err := InitConfig(tmpFile.Name()); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if loadedConfig.ProjectName != "InitConfig Test" {
		t.Errorf("Expected ProjectName to be 'InitConfig Test', got '%s'", loadedConfig.ProjectName)
	}
	if loadedConfig.Matching.TopCandidates != 10 {
		t.Errorf("Expected matching defaults to be applied, got %+v", loadedConfig.Matching)
	}
}
