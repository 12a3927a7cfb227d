package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

type ExtractorConfig struct {
	MaxAttempts          int           // full round trips per document; if <= 0 -> 2
	RetryInitialInterval time.Duration // 0 retries immediately
	Temperature          float32
	TopP                 float32
	MaxTokens            int    // if <= 0 -> 4096
	IDField              string // if empty -> "file_name"
	TenantField          string // optional
}

// Extractor turns one pending document into a Record or a Failure. It keeps no state
// between calls and is safe for concurrent use.
type Extractor struct {
	gen       Generator
	schema    *schema.Schema
	validator *schema.Validator
	prompt    *PromptBuilder
	cfg       ExtractorConfig
	logger    *slog.Logger
}

func NewExtractor(gen Generator, s *schema.Schema, prompt *PromptBuilder, cfg ExtractorConfig, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.IDField == "" {
		cfg.IDField = "file_name"
	}
	if !s.Has(cfg.IDField) {
		return nil, common.InvalidInputError("schema has no identifier field %q", cfg.IDField)
	}
	if cfg.IDField != s.ID() {
		return nil, common.InvalidInputError("identifier field %q must be declared first, found %q", cfg.IDField, s.ID())
	}
	if cfg.TenantField != "" && !s.Has(cfg.TenantField) {
		return nil, common.InvalidInputError("schema has no tenant field %q", cfg.TenantField)
	}
	if prompt == nil {
		prompt = NewPromptBuilder(s, "")
	}
	v, err := schema.NewValidator(s)
	if err != nil {
		return nil, err
	}
	return &Extractor{gen: gen, schema: s, validator: v, prompt: prompt, cfg: cfg, logger: logger}, nil
}

// Extract runs up to MaxAttempts round trips and never retries after a success.
func (e *Extractor) Extract(ctx context.Context, doc entity.PendingDocument) entity.Result {
	start := time.Now()
	prompt := e.prompt.Build(doc.Text)
	log := e.logger.With("file_name", doc.FileName, "run_id", common.RunIDFromContext(ctx))
	log.Debug("llm.extract.start", "text_len", len(doc.Text), "prompt_len", len(prompt))

	var (
		attempts int
		rec      *entity.Record
		lastErr  error
	)
	op := func() error {
		attempts++
		r, err := e.attempt(ctx, log, doc, prompt)
		if err != nil {
			lastErr = err
			if attempts < e.cfg.MaxAttempts && ctx.Err() == nil {
				log.Warn("llm.extract.retry", "attempt", attempts, "error", err)
			}
			if !common.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		rec = r
		return nil
	}

	if err := backoff.Retry(op, e.backOff(ctx)); err != nil {
		if lastErr == nil {
			lastErr = common.GenerationError(err)
		}
		kind := entity.FailureGeneration
		if errors.Is(lastErr, common.ErrParse) {
			kind = entity.FailureParse
		}
		log.Error("llm.extract.failed",
			"kind", kind,
			"attempts", attempts,
			"error", lastErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.NewFailureResult(&entity.Failure{
			FileName: doc.FileName,
			Kind:     kind,
			Attempts: attempts,
			Cause:    lastErr,
		})
	}

	log.Info("llm.extract.ok", "attempts", attempts, "elapsed_ms", time.Since(start).Milliseconds())
	rec.Attempts = attempts
	return entity.NewRecordResult(rec)
}

func (e *Extractor) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if e.cfg.RetryInitialInterval > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = e.cfg.RetryInitialInterval
		eb.MaxElapsedTime = 0
		b = eb
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.MaxAttempts-1)), ctx)
}

func (e *Extractor) attempt(ctx context.Context, log *slog.Logger, doc entity.PendingDocument, prompt string) (*entity.Record, error) {
	raw, err := e.gen.Generate(ctx, GenerateRequest{
		Prompt:      prompt,
		Temperature: e.cfg.Temperature,
		TopP:        e.cfg.TopP,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		return nil, common.GenerationError(err)
	}

	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, common.ParseError(err)
	}
	dec := json.NewDecoder(strings.NewReader(obj))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, common.ParseError(err)
	}

	clean, dropped := e.schema.Coerce(m)
	if len(dropped) > 0 {
		log.Warn("llm.extract.lenient_sanitize_applied", "dropped", dropped)
	}
	e.pinIdentifiers(log, doc, clean)

	if err := e.validator.Validate(clean); err != nil {
		return nil, common.ParseError(err)
	}
	rec, err := e.schema.ToRecord(doc.FileName, clean)
	if err != nil {
		return nil, common.ParseError(err)
	}
	return rec, nil
}

// pinIdentifiers overwrites the identifier and tenant with the document's own values
// so the resume index always keys on the source file name.
func (e *Extractor) pinIdentifiers(log *slog.Logger, doc entity.PendingDocument, m map[string]any) {
	pin := func(field, want string) {
		if field == "" || want == "" {
			return
		}
		if got, ok := m[field]; ok && got != want {
			log.Warn("llm.extract.identifier_overridden", "field", field, "model_value", got, "document_value", want)
		}
		m[field] = want
	}
	pin(e.cfg.IDField, doc.FileName)
	pin(e.cfg.TenantField, doc.TenantID)
}
