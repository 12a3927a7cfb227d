package openai

import (
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// Config for the OpenAI client.
type Config struct {
	APIKey   string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL  string        // default https://api.openai.com/v1
	Model    string        // e.g., "gpt-4o"
	Timeout  time.Duration // per-request http timeout
	RetryMax int           // transport retries on 429/5xx
	JSONMode bool          // ask for response_format json_object
}

// Client implements llm.Generator against any OpenAI-compatible chat/completions endpoint.
type Client struct {
	cfg    Config
	http   *retryablehttp.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   llm.NewHTTPClient(cfg.Timeout, cfg.RetryMax, logger),
		logger: logger,
	}
}
