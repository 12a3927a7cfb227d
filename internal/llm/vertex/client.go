package vertex

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/cockroachdb/errors"

	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

type Config struct {
	Project string
	Region  string
	Model   string // e.g., "gemini-1.5-pro"
}

// Client implements llm.Generator with Gemini on Vertex AI.
type Client struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	c, err := genai.NewClient(ctx, cfg.Project, cfg.Region)
	if err != nil {
		return nil, errors.Wrap(err, "genai.NewClient")
	}
	logger.Info("llm.vertex.client_ready", "project", cfg.Project, "region", cfg.Region, "model", cfg.Model)
	return &Client{cfg: cfg, client: c, logger: logger}, nil
}

// Generate builds a model handle per call so sampling settings never leak between
// concurrent requests.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	start := time.Now()

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(req.Temperature)
	model.SetTopP(req.TopP)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", errors.Wrap(err, "vertex generate")
	}
	text, parts := ResponseText(resp)
	if parts == 0 {
		return "", errors.New("vertex response has no text parts")
	}
	if parts > 1 {
		c.logger.Debug("llm.vertex.parts_concatenated", "parts", parts)
	}
	c.logger.Debug("llm.vertex.ok", "model", c.cfg.Model, "elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}

// ResponseText concatenates the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) (string, int) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", 0
	}
	var b strings.Builder
	n := 0
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
			n++
		}
	}
	return strings.TrimSpace(b.String()), n
}

func (c *Client) Close() error {
	return c.client.Close()
}
