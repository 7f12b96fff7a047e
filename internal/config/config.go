// Package config builds the process-wide configuration object.
//
// Configuration is loaded once at cold start and passed by reference to
// every component. Values come from, lowest priority first:
//  1. Defaults (in code)
//  2. An optional YAML file named by CONFIG_FILE (local development)
//  3. Environment variables
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "compact-connect-backend/internal/errors"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "dev"
	Test        Environment = "test"
	Beta        Environment = "beta"
	Production  Environment = "prod"
)

// LicenseType is one license type a compact recognises.
type LicenseType struct {
	Name         string `json:"name" yaml:"name" validate:"required"`
	Abbreviation string `json:"abbreviation" yaml:"abbreviation" validate:"required"`
}

// Tables holds DynamoDB table and index names.
type Tables struct {
	ProviderTableName             string `yaml:"providerTableName" validate:"required"`
	SSNTableName                  string `yaml:"ssnTableName" validate:"required"`
	SSNIndexName                  string `yaml:"ssnIndexName" validate:"required"`
	CompactConfigurationTableName string `yaml:"compactConfigurationTableName"`
	FamGivMidIndexName            string `yaml:"famGivMidIndexName" validate:"required"`
	DateOfUpdateIndexName         string `yaml:"dateOfUpdateIndexName" validate:"required"`
	LicenseGSIName                string `yaml:"licenseGSIName" validate:"required"`
}

// Email holds notification settings.
type Email struct {
	FromAddress   string `yaml:"fromAddress" validate:"omitempty,email"`
	UIBasePathURL string `yaml:"uiBasePathURL" validate:"omitempty,url"`
}

// Observability toggles metrics and tracing.
type Observability struct {
	LogLevel        string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics   bool   `yaml:"enableMetrics"`
	EnableTracing   bool   `yaml:"enableTracing"`
	TracingEndpoint string `yaml:"tracingEndpoint"`
}

// Config is the full backend configuration.
type Config struct {
	Environment Environment `yaml:"environment" validate:"required"`
	ServiceName string      `yaml:"serviceName" validate:"required"`
	Region      string      `yaml:"region" validate:"required"`
	MaxRetries  int         `yaml:"maxRetries" validate:"min=0,max=10"`

	Tables         Tables `yaml:"tables"`
	BulkBucketName string `yaml:"bulkBucketName"`
	EventBusName   string `yaml:"eventBusName"`
	Email          Email  `yaml:"email"`

	Compacts      []string                 `yaml:"compacts" validate:"required,min=1,dive,required"`
	Jurisdictions []string                 `yaml:"jurisdictions" validate:"required,min=1,dive,len=2"`
	LicenseTypes  map[string][]LicenseType `yaml:"licenseTypes" validate:"required,dive,dive"`

	Observability Observability `yaml:"observability"`

	// Clock overrides the wall clock. Tests pin it.
	Clock func() time.Time `yaml:"-"`
}

// Now returns the current time in UTC.
func (c *Config) Now() time.Time {
	if c.Clock != nil {
		return c.Clock().UTC()
	}
	return time.Now().UTC()
}

// IsProduction reports whether this is the production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsCompact reports whether compact is configured.
func (c *Config) IsCompact(compact string) bool {
	for _, known := range c.Compacts {
		if known == compact {
			return true
		}
	}
	return false
}

// IsJurisdiction reports whether jurisdiction is a configured postal abbreviation.
func (c *Config) IsJurisdiction(jurisdiction string) bool {
	for _, known := range c.Jurisdictions {
		if known == jurisdiction {
			return true
		}
	}
	return false
}

// LicenseTypeByAbbreviation looks up a compact's license type by its abbreviation.
func (c *Config) LicenseTypeByAbbreviation(compact, abbreviation string) (LicenseType, bool) {
	for _, lt := range c.LicenseTypes[compact] {
		if lt.Abbreviation == abbreviation {
			return lt, true
		}
	}
	return LicenseType{}, false
}

// LicenseTypeByName looks up a compact's license type by its full name.
func (c *Config) LicenseTypeByName(compact, name string) (LicenseType, bool) {
	for _, lt := range c.LicenseTypes[compact] {
		if lt.Name == name {
			return lt, true
		}
	}
	return LicenseType{}, false
}

// Validate checks struct tags and returns a VALIDATION error naming every bad field.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var fields []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
		}
	} else {
		fields = append(fields, err.Error())
	}

	return apperrors.Validation(apperrors.CodeInvalidConfig, "invalid configuration").
		WithDetails(strings.Join(fields, ", ")).
		WithCause(err).
		Build()
}

// Load builds the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// MustLoad is Load for cold-start code paths that cannot continue without configuration.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom builds the configuration using lookup in place of os.LookupEnv.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := defaultConfig()

	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := loadEnvironmentVariables(lookup, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Environment: Development,
		ServiceName: "compact-connect",
		Region:      "us-east-1",
		MaxRetries:  3,
		Tables: Tables{
			SSNIndexName:          "providerIdGSIpk",
			FamGivMidIndexName:    "providerFamGivMid",
			DateOfUpdateIndexName: "providerDateOfUpdate",
			LicenseGSIName:        "licenseGSI",
		},
		Observability: Observability{
			LogLevel: "info",
		},
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// loadEnvironmentVariables overlays environment variables on the configuration.
func loadEnvironmentVariables(lookup func(string) (string, bool), cfg *Config) error {
	setString := func(name string, target *string) {
		if val, ok := lookup(name); ok && val != "" {
			*target = val
		}
	}

	if val, ok := lookup("ENVIRONMENT_NAME"); ok && val != "" {
		cfg.Environment = Environment(strings.ToLower(val))
	}
	setString("SERVICE_NAME", &cfg.ServiceName)
	setString("AWS_REGION", &cfg.Region)

	setString("PROVIDER_TABLE_NAME", &cfg.Tables.ProviderTableName)
	setString("SSN_TABLE_NAME", &cfg.Tables.SSNTableName)
	setString("SSN_INDEX_NAME", &cfg.Tables.SSNIndexName)
	setString("COMPACT_CONFIGURATION_TABLE_NAME", &cfg.Tables.CompactConfigurationTableName)
	setString("PROV_FAM_GIV_MID_INDEX_NAME", &cfg.Tables.FamGivMidIndexName)
	setString("PROV_DATE_OF_UPDATE_INDEX_NAME", &cfg.Tables.DateOfUpdateIndexName)
	setString("LICENSE_GSI_NAME", &cfg.Tables.LicenseGSIName)

	setString("BULK_BUCKET_NAME", &cfg.BulkBucketName)
	setString("EVENT_BUS_NAME", &cfg.EventBusName)
	setString("FROM_ADDRESS", &cfg.Email.FromAddress)
	setString("UI_BASE_PATH_URL", &cfg.Email.UIBasePathURL)

	setString("LOG_LEVEL", &cfg.Observability.LogLevel)
	cfg.Observability.LogLevel = strings.ToLower(cfg.Observability.LogLevel)
	setString("TRACING_ENDPOINT", &cfg.Observability.TracingEndpoint)
	if val, ok := lookup("ENABLE_METRICS"); ok {
		cfg.Observability.EnableMetrics = parseBool(val)
	}
	if val, ok := lookup("ENABLE_TRACING"); ok {
		cfg.Observability.EnableTracing = parseBool(val)
	}

	if val, ok := lookup("AWS_MAX_RETRIES"); ok && val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return apperrors.Validation(apperrors.CodeInvalidConfig, "AWS_MAX_RETRIES must be an integer").
				WithDetails(val).
				Build()
		}
		cfg.MaxRetries = n
	}

	jsonVars := []struct {
		name   string
		target any
	}{
		{"COMPACTS", &cfg.Compacts},
		{"JURISDICTIONS", &cfg.Jurisdictions},
		{"LICENSE_TYPES", &cfg.LicenseTypes},
	}
	for _, v := range jsonVars {
		val, ok := lookup(v.name)
		if !ok || val == "" {
			continue
		}
		if err := json.Unmarshal([]byte(val), v.target); err != nil {
			return apperrors.Validation(apperrors.CodeInvalidConfig, v.name+" must be valid JSON").
				WithCause(err).
				Build()
		}
	}

	return nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
