package retrieval

import (
	"context"
	"sort"

	"github.com/consentforge/consentforge/engine/chunk"
	"github.com/consentforge/consentforge/engine/dense"
	"github.com/consentforge/consentforge/engine/index"
	"github.com/consentforge/consentforge/engine/sparse"
	"github.com/consentforge/consentforge/pkg/config"
	"github.com/consentforge/consentforge/pkg/logger"
)

// Retrieval modes.
const (
	ModeDense  = "dense"
	ModeHybrid = "hybrid"
)

// Dense search types.
const (
	SearchSimilarity = "similarity"
	SearchMMR        = "mmr"
)

// Hit is one retrieved snippet, trimmed to the token budget.
type Hit struct {
	ChunkID     string       `json:"chunk_id"`
	Page        int          `json:"page"`
	SectionPath string       `json:"section_path"`
	Heading     string       `json:"heading_norm"`
	Text        string       `json:"text"`
	Score       float64      `json:"score"`
	Sources     SourceScores `json:"source_scores"`
}

// SourceScores records each retriever's contribution to a hit. Sparse and
// dense values are min-max normalized within their own candidate pool.
type SourceScores struct {
	Sparse float64 `json:"sparse"`
	Dense  float64 `json:"dense"`
}

// Options controls one search. Zero values fall back to the configured
// defaults; a non-empty Section additionally applies that section's dense
// search profile unless SearchType or K is set explicitly.
type Options struct {
	Section    string
	Mode       string
	KDense     int
	KSparse    int
	KFinal     int
	WSparse    float64
	WDense     float64
	SearchType string
	Lambda     float64
	FetchK     int
}

// Engine fuses BM25 and embedding search over one loaded index.
type Engine struct {
	chunks  []chunk.Chunk
	sparse  *sparse.Model
	store   *dense.Store
	counter *TokenCounter
	cfg     config.RetrievalConfig
}

// NewEngine builds a fusion engine over an index snapshot.
func NewEngine(snap *index.Snapshot, cfg *config.Config) *Engine {
	return &Engine{
		chunks:  snap.Chunks,
		sparse:  snap.Sparse,
		store:   snap.Store,
		counter: NewTokenCounter(cfg.Retrieval.TokenModel),
		cfg:     cfg.Retrieval,
	}
}

// Search runs dense or hybrid retrieval for query and returns scored,
// heading-filtered, budget-trimmed snippets.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	if opts.Mode == ModeHybrid {
		return e.searchHybrid(ctx, query, opts)
	}
	return e.searchDense(ctx, query, opts)
}

func (e *Engine) searchDense(ctx context.Context, query string, opts Options) ([]Hit, error) {
	log := logger.FromContext(ctx)
	searchType, k, lambda, fetchK := e.denseProfile(opts)

	var matches []dense.Match
	scored := searchType != SearchMMR
	var err error
	if searchType == SearchMMR {
		matches, err = e.store.MaxMarginalRelevanceSearch(ctx, query, k, fetchK, lambda)
		if err != nil {
			log.Warn("mmr search failed, falling back to similarity", "error", err)
			matches, err = e.store.SimilaritySearch(ctx, query, k)
			scored = true
		}
	} else {
		matches, err = e.store.SimilaritySearch(ctx, query, k)
	}
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, k)
	for rank, m := range matches {
		if !allowedHeading(opts.Section, m.Heading) {
			continue
		}
		hit := Hit{
			ChunkID:     m.ChunkID,
			Page:        m.Page,
			SectionPath: m.SectionPath,
			Heading:     m.Heading,
			Text:        e.counter.Trim(m.Text, e.cfg.TokenBudget),
		}
		if scored {
			hit.Score = m.Score
			hit.Sources.Dense = m.Score
		} else {
			// MMR re-ranking discards provider scores; rank decay keeps
			// the ordering meaningful downstream.
			hit.Score = positionalDecay(rank)
		}
		hits = append(hits, hit)
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

func (e *Engine) denseProfile(opts Options) (searchType string, k int, lambda float64, fetchK int) {
	searchType = opts.SearchType
	k = opts.KDense
	lambda = opts.Lambda
	fetchK = opts.FetchK
	if opts.Section != "" && opts.SearchType == "" && opts.KDense == 0 {
		if prof, ok := e.cfg.Sections[opts.Section]; ok {
			searchType = prof.SearchType
			k = prof.K
			lambda = prof.Lambda
			fetchK = prof.FetchK
		}
	}
	if searchType == "" {
		searchType = SearchMMR
	}
	if k <= 0 {
		k = e.cfg.KDense
	}
	if lambda <= 0 {
		lambda = 0.5
	}
	if fetchK <= 0 {
		fetchK = 2 * k
	}
	return searchType, k, lambda, fetchK
}

func (e *Engine) searchHybrid(ctx context.Context, query string, opts Options) ([]Hit, error) {
	kSparse := opts.KSparse
	if kSparse <= 0 {
		kSparse = e.cfg.KSparse
	}
	kDense := opts.KDense
	if kDense <= 0 {
		kDense = e.cfg.KDense
	}
	kFinal := opts.KFinal
	if kFinal <= 0 {
		kFinal = e.cfg.KFinal
	}
	wSparse := opts.WSparse
	wDense := opts.WDense
	if wSparse == 0 && wDense == 0 {
		wSparse = e.cfg.WSparse
		wDense = e.cfg.WDense
	}

	sparseRanked := e.sparse.TopK(query, kSparse)
	sparsePairs := make(map[int]float64, len(sparseRanked))
	for _, s := range sparseRanked {
		sparsePairs[s.Pos] = s.Score
	}
	sparseNorm := normalizeScores(sparsePairs)

	denseMatches, err := e.store.SimilaritySearch(ctx, query, kDense)
	if err != nil {
		return nil, err
	}
	densePairs := make(map[int]float64, len(denseMatches))
	for _, m := range denseMatches {
		densePairs[m.Pos] = m.Score
	}
	denseNorm := normalizeScores(densePairs)

	type fusedScore struct {
		pos   int
		score float64
	}
	fused := make([]fusedScore, 0, len(sparseNorm)+len(denseNorm))
	seen := map[int]bool{}
	for pos := range sparseNorm {
		seen[pos] = true
	}
	for pos := range denseNorm {
		seen[pos] = true
	}
	for pos := range seen {
		fused = append(fused, fusedScore{
			pos:   pos,
			score: wSparse*sparseNorm[pos] + wDense*denseNorm[pos],
		})
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score == fused[j].score {
			return fused[i].pos < fused[j].pos
		}
		return fused[i].score > fused[j].score
	})

	hits := make([]Hit, 0, kFinal)
	for _, f := range fused {
		if f.pos < 0 || f.pos >= len(e.chunks) {
			continue
		}
		ch := e.chunks[f.pos]
		if !allowedHeading(opts.Section, ch.Heading) {
			continue
		}
		hits = append(hits, Hit{
			ChunkID:     ch.ID,
			Page:        ch.PageStart,
			SectionPath: ch.SectionPath,
			Heading:     ch.Heading,
			Text:        e.counter.Trim(ch.Text, e.cfg.TokenBudget),
			Score:       f.score,
			Sources: SourceScores{
				Sparse: sparseNorm[f.pos],
				Dense:  denseNorm[f.pos],
			},
		})
		if len(hits) >= kFinal {
			break
		}
	}
	return hits, nil
}

// normalizeScores min-max scales each candidate pool to [0,1]. A pool with
// a single score level maps every member to 1.0 so it still contributes to
// fusion.
func normalizeScores(pairs map[int]float64) map[int]float64 {
	if len(pairs) == 0 {
		return map[int]float64{}
	}
	lo, hi := 0.0, 0.0
	first := true
	for _, s := range pairs {
		if first {
			lo, hi = s, s
			first = false
			continue
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make(map[int]float64, len(pairs))
	if hi-lo <= 1e-9 {
		for pos := range pairs {
			out[pos] = 1.0
		}
		return out
	}
	for pos, s := range pairs {
		out[pos] = (s - lo) / (hi - lo)
	}
	return out
}

func positionalDecay(rank int) float64 {
	score := 1.0 - float64(rank)*0.05
	if score < 0 {
		return 0
	}
	return score
}
