package common

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// Config holds all application configuration
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Source   SourceConfig   `mapstructure:"source"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// LLMConfig holds text-generation service configuration
type LLMConfig struct {
	Provider      string        `mapstructure:"provider" validate:"oneof=openai vertex"`
	Model         string        `mapstructure:"model" validate:"required"`
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Temperature   float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	TopP          float32       `mapstructure:"top_p" validate:"gte=0,lte=1"`
	MaxTokens     int           `mapstructure:"max_tokens" validate:"gte=1"`
	Timeout       time.Duration `mapstructure:"timeout"`
	HTTPRetryMax  int           `mapstructure:"http_retry_max" validate:"gte=0"`
	VertexProject string        `mapstructure:"vertex_project"`
	VertexRegion  string        `mapstructure:"vertex_region"`
}

// ExtractConfig holds the extraction client's retry and prompt settings
type ExtractConfig struct {
	MaxAttempts          int           `mapstructure:"max_attempts" validate:"gte=1"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	GuidanceFile         string        `mapstructure:"guidance_file"`
	SchemaFile           string        `mapstructure:"schema_file"`
	IDField              string        `mapstructure:"id_field" validate:"required"`
	TenantField          string        `mapstructure:"tenant_field"`
}

// PipelineConfig holds the batch run settings
type PipelineConfig struct {
	DataDir           string `mapstructure:"data_dir" validate:"required"`
	Output            string `mapstructure:"output" validate:"required"`
	Concurrency       int    `mapstructure:"concurrency" validate:"gte=1"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" validate:"gte=0"`
	MaxDocs           int    `mapstructure:"max_docs" validate:"gte=0"`
}

// SourceConfig holds document scanning settings. Footer markers contain commas,
// so set them from a config file rather than the environment.
type SourceConfig struct {
	Pdftotext           string   `mapstructure:"pdftotext"`
	FirstPages          int      `mapstructure:"first_pages" validate:"gte=1"`
	Extensions          []string `mapstructure:"extensions" validate:"min=1"`
	FooterMarkers       []string `mapstructure:"footer_markers"`
	TenantLabel         string   `mapstructure:"tenant_label" validate:"required"`
	MissingTenantPolicy string   `mapstructure:"missing_tenant_policy" validate:"oneof=abort skip"`
	LoadFailurePolicy   string   `mapstructure:"load_failure_policy" validate:"oneof=abort skip"`
	SkipHidden          bool     `mapstructure:"skip_hidden"`
}

// LedgerConfig holds the optional run ledger DSN: a postgres:// URL or a SQLite path.
type LedgerConfig struct {
	DSN string `mapstructure:"dsn"`
}

// envAliases keeps the OPENAI_* names working next to the dotted keys.
var envAliases = map[string][]string{
	"llm.api_key":     {"LLM_API_KEY", "OPENAI_API_KEY"},
	"llm.model":       {"LLM_MODEL", "OPENAI_MODEL"},
	"llm.base_url":    {"LLM_BASE_URL", "OPENAI_BASE_URL"},
	"llm.temperature": {"LLM_TEMPERATURE", "OPENAI_TEMPERATURE"},
	"llm.timeout":     {"LLM_TIMEOUT", "OPENAI_TIMEOUT"},
	"llm.vertex_project": {
		"LLM_VERTEX_PROJECT", "PROJECT_ID",
	},
	"llm.vertex_region": {"LLM_VERTEX_REGION", "VERTEX_AI_REGION"},
	"ledger.dsn":        {"LEDGER_DSN", "DB_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.top_p", 0.0)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.http_retry_max", 3)
	v.SetDefault("llm.vertex_project", "")
	v.SetDefault("llm.vertex_region", "us-central1")

	v.SetDefault("extract.max_attempts", 2)
	v.SetDefault("extract.retry_initial_interval", 500*time.Millisecond)
	v.SetDefault("extract.guidance_file", "")
	v.SetDefault("extract.schema_file", "")
	v.SetDefault("extract.id_field", "file_name")
	v.SetDefault("extract.tenant_field", "payer_id")

	v.SetDefault("pipeline.data_dir", "./data")
	v.SetDefault("pipeline.output", "invoices.csv")
	v.SetDefault("pipeline.concurrency", 50)
	v.SetDefault("pipeline.requests_per_minute", 0)
	v.SetDefault("pipeline.max_docs", 0)

	v.SetDefault("source.pdftotext", "pdftotext")
	v.SetDefault("source.first_pages", 1)
	v.SetDefault("source.extensions", constants.DefaultExtensions)
	v.SetDefault("source.footer_markers", constants.DefaultFooterMarkers)
	v.SetDefault("source.tenant_label", constants.DefaultTenantLabel)
	v.SetDefault("source.missing_tenant_policy", "abort")
	v.SetDefault("source.load_failure_policy", "abort")
	v.SetDefault("source.skip_hidden", true)

	v.SetDefault("ledger.dsn", "")
}

// LoadConfig loads configuration from an optional .env, an optional config file and
// the environment. An empty path searches ./config.yaml and ./config/config.yaml.
// Call Validate after applying command-line overrides.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "bind env "+key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "decode config", err)
	}
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", errors.Mark(err, ErrInvalidInput))
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	case "vertex":
		if c.LLM.VertexProject == "" || c.LLM.VertexRegion == "" {
			return NewAppError("CONFIG_ERROR", "PROJECT_ID and VERTEX_AI_REGION are required", ErrInvalidInput)
		}
	}
	return nil
}
