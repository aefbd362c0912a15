package config

import "path/filepath"

// Config holds every runtime knob for the engine. Defaults come from
// Default(); environment variables prefixed CONSENTFORGE_ override them.
type Config struct {
	Data      DataConfig      `koanf:"data"      validate:"required"`
	Chunking  ChunkingConfig  `koanf:"chunking"  validate:"required"`
	Sparse    SparseConfig    `koanf:"sparse"    validate:"required"`
	Retrieval RetrievalConfig `koanf:"retrieval" validate:"required"`
	Embedder  EmbedderConfig  `koanf:"embedder"`
	LLM       LLMConfig       `koanf:"llm"`
	Pipeline  PipelineConfig  `koanf:"pipeline"  validate:"required"`
}

// DataConfig controls the on-disk layout for persisted artifacts.
type DataConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// FilesDir returns the directory holding uploaded source documents.
func (d DataConfig) FilesDir() string { return filepath.Join(d.Dir, "files") }

// IndexesDir returns the directory holding per-index artifacts.
func (d DataConfig) IndexesDir() string { return filepath.Join(d.Dir, "indexes") }

// RunsDir returns the directory holding per-run artifacts.
func (d DataConfig) RunsDir() string { return filepath.Join(d.Dir, "runs") }

// DBDir returns the directory holding the JSON registries.
func (d DataConfig) DBDir() string { return filepath.Join(d.Dir, "db") }

// ChunkingConfig controls document splitting.
type ChunkingConfig struct {
	Size     int `koanf:"size"      validate:"gt=0"`
	Overlap  int `koanf:"overlap"   validate:"gte=0"`
	MinChars int `koanf:"min_chars" validate:"gte=0"`
}

// SparseConfig holds the BM25 parameters.
type SparseConfig struct {
	K1 float64 `koanf:"k1" validate:"gt=0"`
	B  float64 `koanf:"b"  validate:"gte=0,lte=1"`
}

// RetrievalConfig controls fusion and trimming behavior.
type RetrievalConfig struct {
	KSparse     int     `koanf:"k_sparse"     validate:"gt=0"`
	KDense      int     `koanf:"k_dense"      validate:"gt=0"`
	KFinal      int     `koanf:"k_final"      validate:"gt=0"`
	WSparse     float64 `koanf:"w_sparse"     validate:"gte=0"`
	WDense      float64 `koanf:"w_dense"      validate:"gte=0"`
	TokenBudget int     `koanf:"token_budget" validate:"gt=0"`
	// TokenModel selects the tiktoken encoding used for budget trimming.
	TokenModel string `koanf:"token_model"`

	// Sections maps logical section names to dense retrieval defaults,
	// applied when the caller does not override search parameters.
	Sections map[string]SectionRetrieval `koanf:"sections"`
}

// SectionRetrieval holds per-section dense search defaults.
type SectionRetrieval struct {
	SearchType string  `koanf:"search_type"`
	K          int     `koanf:"k"`
	Lambda     float64 `koanf:"lambda"`
	FetchK     int     `koanf:"fetch_k"`
}

// EmbedderConfig selects the embedding provider.
type EmbedderConfig struct {
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	APIKey    string `koanf:"api_key"`
	BatchSize int    `koanf:"batch_size"`
	CacheSize int    `koanf:"cache_size"`
}

// LLMConfig selects the generation provider.
type LLMConfig struct {
	Provider    string  `koanf:"provider"`
	Model       string  `koanf:"model"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	MaxRetries  int     `koanf:"max_retries"`
}

// PipelineConfig controls section fan-out.
type PipelineConfig struct {
	MaxWorkers      int `koanf:"max_workers"       validate:"gt=0"`
	MaxHits         int `koanf:"max_hits"          validate:"gt=0"`
	MaxRefineHits   int `koanf:"max_refine_hits"   validate:"gt=0"`
	MaxFollowUps    int `koanf:"max_follow_ups"    validate:"gt=0"`
	DefaultSections []string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Data: DataConfig{Dir: "data"},
		Chunking: ChunkingConfig{
			Size:     1100,
			Overlap:  120,
			MinChars: 50,
		},
		Sparse: SparseConfig{K1: 1.5, B: 0.75},
		Retrieval: RetrievalConfig{
			KSparse:     30,
			KDense:      12,
			KFinal:      12,
			WSparse:     0.6,
			WDense:      0.4,
			TokenBudget: 300,
			TokenModel:  "cl100k_base",
			Sections: map[string]SectionRetrieval{
				"Purpose":    {SearchType: "mmr", K: 6, Lambda: 0.75, FetchK: 20},
				"Procedures": {SearchType: "mmr", K: 12, Lambda: 0.25, FetchK: 40},
				"Risks":      {SearchType: "similarity", K: 12},
				"Benefits":   {SearchType: "similarity", K: 8},
			},
		},
		Embedder: EmbedderConfig{
			Provider:  "googleai",
			Model:     "text-embedding-004",
			BatchSize: 32,
			CacheSize: 512,
		},
		LLM: LLMConfig{
			Provider:    "googleai",
			Model:       "gemini-2.5-flash",
			Temperature: 0.2,
			MaxRetries:  3,
		},
		Pipeline: PipelineConfig{
			MaxWorkers:      4,
			MaxHits:         12,
			MaxRefineHits:   18,
			MaxFollowUps:    3,
			DefaultSections: []string{"Purpose", "Procedures", "Risks", "Benefits"},
		},
	}
}
