package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/consentforge/consentforge/engine/core"
	"github.com/consentforge/consentforge/engine/retrieval"
	"github.com/consentforge/consentforge/pkg/config"
)

const retryBackoffBase = 500 * time.Millisecond

// Service implements Writer, FactExtractor and QueryProposer over one chat
// model. Instances are cheap; pipeline tasks create their own.
type Service struct {
	model       llms.Model
	temperature float64
	maxRetries  uint64
}

// NewService constructs a chat-model service for the configured provider.
func NewService(ctx context.Context, cfg config.LLMConfig) (*Service, error) {
	model, err := buildModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: build %s model: %w", cfg.Provider, err)
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Service{
		model:       model,
		temperature: cfg.Temperature,
		maxRetries:  uint64(retries),
	}, nil
}

// NewServiceWithModel wraps an existing model, mainly for tests.
func NewServiceWithModel(model llms.Model, temperature float64) *Service {
	return &Service{model: model, temperature: temperature}
}

func buildModel(ctx context.Context, cfg config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		return openai.New(opts...)
	default:
		opts := []googleai.Option{googleai.WithDefaultModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, googleai.WithAPIKey(cfg.APIKey))
		}
		return googleai.New(ctx, opts...)
	}
}

// WriteSection drafts a section from the snippets and optional facts.
func (s *Service) WriteSection(
	ctx context.Context,
	section string,
	hits []retrieval.Hit,
	facts Facts,
) (string, error) {
	factsJSON := "{}"
	if facts != nil {
		if b, err := json.Marshal(facts); err == nil {
			factsJSON = string(b)
		}
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, writerTemplate(section)),
		llms.TextParts(llms.ChatMessageTypeHuman, writerRequest(section, joinSnippets(hits), factsJSON)),
	}
	text, err := s.generate(ctx, messages)
	if err != nil {
		return "", core.NewGenerationProviderError(section, err)
	}
	return text, nil
}

// ExtractProcedureFacts pulls structured facts from the snippets. Output
// that fails to parse degrades to the empty shape rather than an error.
func (s *Service) ExtractProcedureFacts(ctx context.Context, hits []retrieval.Hit) (Facts, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, factsPrompt(joinSnippets(hits))),
	}
	text, err := s.generate(ctx, messages)
	if err != nil {
		return nil, core.NewGenerationProviderError("Procedures", err)
	}
	return parseFacts(text), nil
}

// ProposeQueries asks for up to max follow-up retrieval queries. A
// response without a parseable array yields an empty list, not an error.
func (s *Service) ProposeQueries(ctx context.Context, section, text string, max int) ([]string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, proposeQueriesPrompt(section, text, max)),
	}
	resp, err := s.generate(ctx, messages)
	if err != nil {
		return nil, core.NewGenerationProviderError(section, err)
	}
	return parseQueries(resp, max), nil
}

// SelfCheck is a light final pass over a draft. It currently trims
// whitespace only; the citation heuristic lives in the pipeline.
func (s *Service) SelfCheck(_ context.Context, _ string, text string) string {
	return strings.TrimSpace(text)
}

func (s *Service) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(retryBackoffBase))
	var text string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, callErr := s.model.GenerateContent(ctx, messages, llms.WithTemperature(s.temperature))
		if callErr != nil {
			return retry.RetryableError(callErr)
		}
		if len(resp.Choices) == 0 {
			return retry.RetryableError(fmt.Errorf("empty response"))
		}
		text = resp.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
