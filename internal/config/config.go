// Package config loads process configuration from the environment with
// viper, following the xarvis settings package's mapstructure-unmarshal
// pattern but sourcing values from the environment (this process has no
// config file, only the env-var contract spec.md documents) rather than a
// YAML file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DBConfig holds the Postgres connection parameters for the stats writer.
type DBConfig struct {
	URL      string `mapstructure:"database_url"`
	Host     string `mapstructure:"db_host"`
	Port     int    `mapstructure:"db_port"`
	User     string `mapstructure:"db_user"`
	Password string `mapstructure:"db_password"`
	Name     string `mapstructure:"db_name"`
}

// DSN returns the connection string to use, preferring the single URL form
// when set over the discrete host/port/user/password/name quartet.
func (d DBConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

// Settings is the fully loaded process configuration.
type Settings struct {
	PipecatServerURL     string   `mapstructure:"pipecat_server_url"`
	DB                   DBConfig `mapstructure:",squash"`
	InfoAgentAssistantID string   `mapstructure:"info_agent_assistant_id"`
	DataFilePath         string   `mapstructure:"data_file_path"`
	KnowledgeBaseFilePath string  `mapstructure:"knowledge_base_file_path"`
	MigrationsPath       string   `mapstructure:"migrations_path"`

	CerbaBaseURL string `mapstructure:"cerba_base_url"`
	CerbaToken   string `mapstructure:"cerba_token"`

	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	OpenAIModel  string `mapstructure:"openai_model"`

	HTTPAddr    string `mapstructure:"http_addr"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads configuration from the environment, applying defaults for the
// ambient additions spec.md's §6 contract does not name. Validation
// failures are aggregated into a single returned error, never a panic.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("db_port", 5432)
	v.SetDefault("migrations_path", "migrations")
	v.SetDefault("openai_model", "")

	for _, key := range []string{
		"pipecat_server_url", "database_url", "db_host", "db_port", "db_user",
		"db_password", "db_name", "info_agent_assistant_id", "data_file_path",
		"knowledge_base_file_path", "migrations_path", "cerba_base_url", "cerba_token",
		"openai_api_key", "openai_model", "http_addr", "log_level", "log_format", "metrics_addr",
	} {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	var missing []string
	if s.PipecatServerURL == "" {
		missing = append(missing, "PIPECAT_SERVER_URL")
	}
	if s.DB.URL == "" && (s.DB.Host == "" || s.DB.User == "" || s.DB.Name == "") {
		missing = append(missing, "DATABASE_URL or DB_HOST/DB_USER/DB_NAME")
	}
	if s.CerbaBaseURL == "" {
		missing = append(missing, "CERBA_BASE_URL")
	}
	if s.CerbaToken == "" {
		missing = append(missing, "CERBA_TOKEN")
	}
	if s.DataFilePath == "" {
		missing = append(missing, "DATA_FILE_PATH")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return &s, nil
}
