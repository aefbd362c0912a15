package generate

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/consentforge/consentforge/engine/core"
	"github.com/consentforge/consentforge/engine/llm"
	"github.com/consentforge/consentforge/engine/retrieval"
	"github.com/consentforge/consentforge/engine/run"
	"github.com/consentforge/consentforge/pkg/logger"
)

// ErrNoSections reports a run that exists but has no section artifacts to
// refine, as opposed to a run that does not exist at all.
var ErrNoSections = errors.New("run has no section artifacts to refine")

// Refine runs a second retrieval-and-rewrite pass over every section of an
// existing run. Each section proposes follow-up queries from its current
// text, retrieves extra context without a section filter, merges with the
// persisted snippets and rewrites. Artifacts are overwritten in place and
// the run moves to StatusRefined.
func (p *Pipeline) Refine(ctx context.Context, runID core.ID) (RefineResult, error) {
	meta, err := p.ledger.Read(runID)
	if err != nil {
		return RefineResult{}, err
	}
	sections, err := p.ledger.ListSections(runID)
	if err != nil {
		return RefineResult{}, err
	}
	if len(sections) == 0 {
		return RefineResult{}, ErrNoSections
	}
	log := logger.FromContext(ctx).With("run_id", runID)
	log.Info("starting refinement", "sections", sections)

	var mu sync.Mutex
	queriesLog := map[string][]string{}
	texts := make(map[string]string, len(sections))
	var eg errgroup.Group
	sem := make(chan struct{}, workerCount(p.cfg.Pipeline.MaxWorkers, len(sections)))
	for _, section := range sections {
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			queries, text, err := p.refineSection(ctx, meta, section)
			if err != nil {
				// Siblings keep going; the section retains its first-pass
				// artifact.
				log.Error("section refinement failed", "section", section, "error", err)
				return nil
			}
			mu.Lock()
			queriesLog[section] = queries
			texts[section] = text
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return RefineResult{}, err
	}
	if err := p.ledger.WriteRefinementQueries(runID, queriesLog); err != nil {
		return RefineResult{}, err
	}
	final, err := p.ledger.Finalize(runID, run.StatusRefined)
	if err != nil {
		return RefineResult{}, err
	}
	log.Info("refinement complete")
	return RefineResult{
		Result:  Result{Meta: final, Sections: texts},
		Queries: queriesLog,
	}, nil
}

func (p *Pipeline) refineSection(ctx context.Context, meta run.Meta, section string) ([]string, string, error) {
	log := logger.FromContext(ctx).With("run_id", meta.RunID, "section", section)
	searcher, err := p.newSearcher(ctx, meta.IndexID)
	if err != nil {
		return nil, "", err
	}
	generator, err := p.newGenerator(ctx)
	if err != nil {
		return nil, "", err
	}

	artifact, err := p.ledger.ReadSection(meta.RunID, section)
	if err != nil {
		return nil, "", err
	}
	currentText := artifact.FinalText
	if currentText == "" {
		currentText = artifact.DraftText
	}
	original, err := p.ledger.ReadSnippets(meta.RunID, section)
	if err != nil {
		return nil, "", err
	}

	queries, err := generator.ProposeQueries(ctx, section, currentText, p.cfg.Pipeline.MaxFollowUps)
	if err != nil {
		log.Warn("query proposal failed", "error", err)
		queries = nil
	}
	log.Debug("proposed follow-up queries", "queries", queries)

	byID := map[string]retrieval.Hit{}
	order := []string{}
	for _, h := range original {
		if _, ok := byID[h.ChunkID]; ok {
			continue
		}
		byID[h.ChunkID] = h
		order = append(order, h.ChunkID)
	}
	for _, q := range queries {
		extra, searchErr := searcher.Search(ctx, q, retrieval.Options{Mode: retrieval.ModeDense})
		if searchErr != nil {
			// A single bad query does not sink the section.
			log.Warn("follow-up retrieval failed", "query", q, "error", searchErr)
			continue
		}
		for _, h := range extra {
			if existing, ok := byID[h.ChunkID]; ok {
				existing.Score += h.Score
				byID[h.ChunkID] = existing
			} else {
				byID[h.ChunkID] = h
				order = append(order, h.ChunkID)
			}
		}
	}
	combined := mergeRanked(byID, order, p.cfg.Pipeline.MaxRefineHits)
	log.Debug("combined hits", "count", len(combined))

	var facts llm.Facts
	if section == "Procedures" {
		facts, err = generator.ExtractProcedureFacts(ctx, combined)
		if err != nil {
			return nil, "", err
		}
	}
	draft, err := generator.WriteSection(ctx, section, combined, facts)
	if err != nil {
		return nil, "", err
	}
	final := generator.SelfCheck(ctx, section, draft)

	warnings := []string{warnRefined}
	if !hasInlineCitations(final) {
		warnings = append(warnings, warnNoCitations)
	}
	if err := p.ledger.WriteSectionArtifact(meta.RunID, run.SectionArtifact{
		Name:      section,
		DraftText: draft,
		FinalText: final,
		Warnings:  warnings,
		Facts:     facts,
	}, combined); err != nil {
		return nil, "", err
	}
	return queries, final, nil
}
