package sparse

import (
	"errors"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/consentforge/consentforge/engine/core"
)

// Default Okapi BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Model is a serializable Okapi BM25 snapshot over an ordered corpus.
// Document positions refer to the corpus order used at build time and are
// the alignment key against the dense index.
type Model struct {
	K1      float64            `json:"k1"`
	B       float64            `json:"b"`
	N       int                `json:"n"`
	AvgDL   float64            `json:"avgdl"`
	IDF     map[string]float64 `json:"idf"`
	DocTFs  []map[string]int   `json:"doc_tfs"`
	DocLens []int              `json:"doc_lens"`
}

// Scored pairs a corpus position with its BM25 score.
type Scored struct {
	Pos   int
	Score float64
}

// Tokenization is whitespace split plus lowercase, no stemming. The fusion
// layer depends on this staying deterministic.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	for i := range fields {
		fields[i] = strings.ToLower(fields[i])
	}
	return fields
}

// Build computes the BM25 model for the given corpus.
func Build(texts []string, k1, b float64) *Model {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}
	n := len(texts)
	docTFs := make([]map[string]int, n)
	docLens := make([]int, n)
	df := make(map[string]int)
	totalLen := 0
	for i, text := range texts {
		tokens := tokenize(text)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		docTFs[i] = tf
		docLens[i] = len(tokens)
		totalLen += len(tokens)
		for term := range tf {
			df[term]++
		}
	}
	avgdl := 0.0
	if n > 0 {
		avgdl = float64(totalLen) / float64(n)
	}
	idf := make(map[string]float64, len(df))
	for term, freq := range df {
		idf[term] = math.Log((float64(n)-float64(freq)+0.5)/(float64(freq)+0.5) + 1.0)
	}
	return &Model{K1: k1, B: b, N: n, AvgDL: avgdl, IDF: idf, DocTFs: docTFs, DocLens: docLens}
}

// Scores returns the BM25 score of every corpus document for query.
func (m *Model) Scores(query string) []float64 {
	terms := tokenize(query)
	avgdl := m.AvgDL
	if avgdl == 0 {
		avgdl = 1
	}
	scores := make([]float64, len(m.DocTFs))
	for i, tf := range m.DocTFs {
		dl := float64(m.DocLens[i])
		if dl == 0 {
			dl = 1
		}
		var s float64
		for _, term := range terms {
			f, ok := tf[term]
			if !ok {
				continue
			}
			freq := float64(f)
			denom := freq + m.K1*(1-m.B+m.B*(dl/avgdl))
			s += m.IDF[term] * (freq * (m.K1 + 1)) / denom
		}
		scores[i] = s
	}
	return scores
}

// TopK ranks corpus positions for query, excluding non-positive scores.
// A query sharing no terms with the corpus returns an empty result.
func (m *Model) TopK(query string, k int) []Scored {
	scores := m.Scores(query)
	ranked := make([]Scored, 0, len(scores))
	for pos, score := range scores {
		if score > 0 {
			ranked = append(ranked, Scored{Pos: pos, Score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// Save persists the model snapshot with atomic write-replace semantics.
func Save(path string, m *Model) error {
	if m == nil {
		return errors.New("sparse: model is required")
	}
	return core.WriteJSONFile(path, m)
}

// Load reads a model snapshot; a missing file maps to ErrIndexNotFound.
func Load(path string) (*Model, error) {
	var m Model
	if err := core.ReadJSONFile(path, &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.ErrIndexNotFound
		}
		return nil, err
	}
	return &m, nil
}
