package openai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate sends the prompt as a single user message and returns the first choice.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	start := time.Now()

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": req.Temperature,
		"top_p":       req.TopP,
		"messages": []map[string]any{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if c.cfg.JSONMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		if status != 0 {
			return "", errors.Newf("openai status %d: %s", status, snippet(raw))
		}
		return "", errors.Wrap(err, "openai http error")
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", errors.Wrap(err, "decode openai response")
	}
	if len(cc.Choices) == 0 {
		return "", errors.New("no choices in openai response")
	}

	choice := cc.Choices[0]
	if choice.FinishReason == "length" {
		c.logger.Warn("llm.openai.truncated", "model", c.cfg.Model, "max_tokens", req.MaxTokens)
	}
	c.logger.Debug("llm.openai.ok",
		"model", c.cfg.Model,
		"prompt_tokens", cc.Usage.PromptTokens,
		"completion_tokens", cc.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(choice.Message.Content), nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		return s[:512] + "...(truncated)"
	}
	return s
}
