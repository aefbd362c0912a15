package generate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/consentforge/consentforge/engine/core"
	"github.com/consentforge/consentforge/engine/llm"
	"github.com/consentforge/consentforge/engine/retrieval"
	"github.com/consentforge/consentforge/engine/run"
	"github.com/consentforge/consentforge/pkg/config"
	"github.com/consentforge/consentforge/pkg/logger"
)

const (
	warnNoCitations = "No inline citations detected in final text for this section."
	warnRefined     = "Refined with follow-up retrieval"
)

// Searcher is the retrieval surface a section task needs. Satisfied by
// *retrieval.Engine.
type Searcher interface {
	Search(ctx context.Context, query string, opts retrieval.Options) ([]retrieval.Hit, error)
}

// Generator is the text-generation surface a section task needs.
// Satisfied by *llm.Service.
type Generator interface {
	llm.Writer
	llm.FactExtractor
	llm.QueryProposer
	SelfCheck(ctx context.Context, section, text string) string
}

// SearcherFactory builds a searcher bound to one index. Each section task
// calls it once so tasks never share retriever state.
type SearcherFactory func(ctx context.Context, indexID core.ID) (Searcher, error)

// GeneratorFactory builds a generation service for one section task.
type GeneratorFactory func(ctx context.Context) (Generator, error)

// Result is the outcome of a generation pass: the finalized run metadata
// plus the final text produced per section. A failed section is present
// with empty text so callers always see every requested section.
type Result struct {
	Meta     run.Meta
	Sections map[string]string
}

// RefineResult extends Result with the follow-up queries proposed per
// section. Sections that failed to refine are absent from Sections and
// keep their first-pass artifact.
type RefineResult struct {
	Result
	Queries map[string][]string
}

// Pipeline fans section generation out over a bounded worker pool and
// records everything in the run ledger.
type Pipeline struct {
	cfg          *config.Config
	ledger       *run.Ledger
	newSearcher  SearcherFactory
	newGenerator GeneratorFactory
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(
	cfg *config.Config,
	ledger *run.Ledger,
	newSearcher SearcherFactory,
	newGenerator GeneratorFactory,
) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		ledger:       ledger,
		newSearcher:  newSearcher,
		newGenerator: newGenerator,
	}
}

// RunSections generates every requested section concurrently and finalizes
// the run. A section failure is recorded in that section's artifact and
// never aborts its siblings; the run fails only when every section failed.
func (p *Pipeline) RunSections(
	ctx context.Context,
	documentID string,
	indexID core.ID,
	sections []string,
) (Result, error) {
	if len(sections) == 0 {
		sections = p.cfg.Pipeline.DefaultSections
	}
	meta, err := p.ledger.Create(documentID, indexID)
	if err != nil {
		return Result{}, err
	}
	log := logger.FromContext(ctx).With("run_id", meta.RunID)
	log.Info("starting section generation", "sections", sections)

	var mu sync.Mutex
	texts := make(map[string]string, len(sections))
	failures := make([]bool, len(sections))
	var eg errgroup.Group
	sem := make(chan struct{}, workerCount(p.cfg.Pipeline.MaxWorkers, len(sections)))
	for i, section := range sections {
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			text, err := p.runSection(ctx, meta, section)
			if err != nil {
				log.Error("section generation failed", "section", section, "error", err)
				failures[i] = true
				text = ""
				if writeErr := p.writeFailedArtifact(meta.RunID, section, err); writeErr != nil {
					return writeErr
				}
			}
			mu.Lock()
			texts[section] = text
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		_, _ = p.ledger.Finalize(meta.RunID, run.StatusFailed)
		return Result{}, err
	}

	status := run.StatusSucceeded
	allFailed := true
	for _, failed := range failures {
		if !failed {
			allFailed = false
			break
		}
	}
	if allFailed && len(sections) > 0 {
		status = run.StatusFailed
	}
	final, err := p.ledger.Finalize(meta.RunID, status)
	if err != nil {
		return Result{}, err
	}
	log.Info("section generation complete", "status", status)
	return Result{Meta: final, Sections: texts}, nil
}

func (p *Pipeline) runSection(ctx context.Context, meta run.Meta, section string) (string, error) {
	log := logger.FromContext(ctx).With("run_id", meta.RunID, "section", section)
	searcher, err := p.newSearcher(ctx, meta.IndexID)
	if err != nil {
		return "", err
	}
	generator, err := p.newGenerator(ctx)
	if err != nil {
		return "", err
	}

	hits, err := p.retrieveMerged(ctx, searcher, queriesFor(section), p.cfg.Pipeline.MaxHits)
	if err != nil {
		return "", err
	}
	log.Debug("retrieved fused hits", "count", len(hits))

	var facts llm.Facts
	if section == "Procedures" {
		facts, err = generator.ExtractProcedureFacts(ctx, hits)
		if err != nil {
			return "", err
		}
	}
	draft, err := generator.WriteSection(ctx, section, hits, facts)
	if err != nil {
		return "", err
	}
	final := generator.SelfCheck(ctx, section, draft)

	var warnings []string
	if !hasInlineCitations(final) {
		warnings = append(warnings, warnNoCitations)
		log.Warn("no inline citations in final text")
	}
	if err := p.ledger.WriteSectionArtifact(meta.RunID, run.SectionArtifact{
		Name:      section,
		DraftText: draft,
		FinalText: final,
		Warnings:  warnings,
		Facts:     facts,
	}, hits); err != nil {
		return "", err
	}
	return final, nil
}

// retrieveMerged runs each query and merges hits by chunk id, summing
// scores of repeats, then sorts descending and caps at limit.
func (p *Pipeline) retrieveMerged(
	ctx context.Context,
	searcher Searcher,
	queries []string,
	limit int,
) ([]retrieval.Hit, error) {
	byID := map[string]retrieval.Hit{}
	order := []string{}
	for _, q := range queries {
		hits, err := searcher.Search(ctx, q, retrieval.Options{Mode: retrieval.ModeDense})
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if existing, ok := byID[h.ChunkID]; ok {
				existing.Score += h.Score
				byID[h.ChunkID] = existing
			} else {
				byID[h.ChunkID] = h
				order = append(order, h.ChunkID)
			}
		}
	}
	return mergeRanked(byID, order, limit), nil
}

func mergeRanked(byID map[string]retrieval.Hit, order []string, limit int) []retrieval.Hit {
	merged := make([]retrieval.Hit, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func (p *Pipeline) writeFailedArtifact(runID core.ID, section string, cause error) error {
	return p.ledger.WriteSectionArtifact(runID, run.SectionArtifact{
		Name:     section,
		Warnings: []string{fmt.Sprintf("Section generation failed: %v", cause)},
	}, nil)
}

// hasInlineCitations is the heuristic for the citation warning: the final
// text must carry at least one [[...]] marker.
func hasInlineCitations(text string) bool {
	if text == "" {
		return false
	}
	return strings.Contains(text, "[[") && strings.Contains(text, "]]")
}

func workerCount(capacity, n int) int {
	if capacity <= 0 {
		capacity = 1
	}
	if n > 0 && n < capacity {
		return n
	}
	return capacity
}
