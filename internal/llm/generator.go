package llm

import "context"

// GenerateRequest is one prompt plus the sampling parameters sent with it.
type GenerateRequest struct {
	Prompt      string
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// Generator is the text-generation service the extractor depends on. Implementations
// must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
