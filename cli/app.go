package cli

import (
	"context"

	"github.com/consentforge/consentforge/engine/core"
	"github.com/consentforge/consentforge/engine/dense"
	"github.com/consentforge/consentforge/engine/generate"
	"github.com/consentforge/consentforge/engine/index"
	"github.com/consentforge/consentforge/engine/llm"
	"github.com/consentforge/consentforge/engine/retrieval"
	"github.com/consentforge/consentforge/engine/run"
	"github.com/consentforge/consentforge/pkg/config"
)

func newEmbedder(ctx context.Context, cfg *config.Config) (dense.Embedder, error) {
	return dense.NewAdapter(ctx, &dense.EmbedderConfig{
		Provider:  cfg.Embedder.Provider,
		Model:     cfg.Embedder.Model,
		APIKey:    cfg.Embedder.APIKey,
		BatchSize: cfg.Embedder.BatchSize,
		CacheSize: cfg.Embedder.CacheSize,
	})
}

func newIndexManager(ctx context.Context, cfg *config.Config) (*index.Manager, error) {
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return index.NewManager(cfg, embedder)
}

// newPipeline wires the generation pipeline with real factories: each
// section task gets its own retrieval engine and LLM service.
func newPipeline(cfg *config.Config) *generate.Pipeline {
	ledger := run.NewLedger(cfg)
	newSearcher := func(ctx context.Context, indexID core.ID) (generate.Searcher, error) {
		mgr, err := newIndexManager(ctx, cfg)
		if err != nil {
			return nil, err
		}
		snap, err := mgr.Load(indexID)
		if err != nil {
			return nil, err
		}
		return retrieval.NewEngine(snap, cfg), nil
	}
	newGenerator := func(ctx context.Context) (generate.Generator, error) {
		return llm.NewService(ctx, cfg.LLM)
	}
	return generate.NewPipeline(cfg, ledger, newSearcher, newGenerator)
}
