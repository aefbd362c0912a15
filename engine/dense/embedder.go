package dense

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder converts text into vectors. Implementations must be safe for
// concurrent use; section tasks share one embedder through the store.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedding providers supported by the adapter.
const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
)

// EmbedderConfig selects and tunes the embedding provider.
type EmbedderConfig struct {
	Provider  string
	Model     string
	APIKey    string
	BatchSize int
	CacheSize int
}

// Adapter wraps a langchaingo embedder and adds an LRU cache keyed by the
// input text, so repeated canned queries hit the provider once.
type Adapter struct {
	model string
	impl  embeddings.Embedder
	cache *lru.Cache[string, []float32]
}

// NewAdapter builds a provider-backed embedder adapter.
func NewAdapter(ctx context.Context, cfg *EmbedderConfig) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("dense: embedder config is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("dense: embedder model is required")
	}
	impl, err := buildProviderEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(cfg, impl)
}

// Wrap constructs an adapter around an existing langchaingo embedder.
func Wrap(cfg *EmbedderConfig, impl embeddings.Embedder) (*Adapter, error) {
	if impl == nil {
		return nil, errors.New("dense: embedder implementation is required")
	}
	adapter := &Adapter{model: cfg.Model, impl: impl}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("dense: init embedding cache: %w", err)
		}
		adapter.cache = cache
	}
	return adapter, nil
}

// EmbedQuery embeds one query string, consulting the cache first.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if a.cache != nil {
		if vector, ok := a.cache.Get(text); ok {
			return cloneVector(vector), nil
		}
	}
	vector, err := a.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("dense: embed query: %w", err)
	}
	if a.cache != nil {
		a.cache.Add(text, cloneVector(vector))
	}
	return vector, nil
}

// EmbedDocuments embeds a batch of chunk texts.
func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := a.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("dense: embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("dense: received %d embeddings for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func buildProviderEmbedder(ctx context.Context, cfg *EmbedderConfig) (embeddings.Embedder, error) {
	opts := []embeddings.Option{}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	switch cfg.Provider {
	case ProviderGoogleAI, "":
		clientOpts := []googleai.Option{googleai.WithDefaultEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, googleai.WithAPIKey(cfg.APIKey))
		}
		client, err := googleai.New(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("dense: initialize googleai client: %w", err)
		}
		embedder, err := embeddings.NewEmbedder(client, opts...)
		if err != nil {
			return nil, fmt.Errorf("dense: construct googleai embedder: %w", err)
		}
		return embedder, nil
	case ProviderOpenAI:
		clientOpts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, openai.WithToken(cfg.APIKey))
		}
		client, err := openai.New(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("dense: initialize openai client: %w", err)
		}
		embedder, err := embeddings.NewEmbedder(client, opts...)
		if err != nil {
			return nil, fmt.Errorf("dense: construct openai embedder: %w", err)
		}
		return embedder, nil
	default:
		return nil, fmt.Errorf("dense: embedding provider %q is not supported", cfg.Provider)
	}
}

func cloneVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}
