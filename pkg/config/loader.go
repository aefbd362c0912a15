package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CONSENTFORGE_"

// envToPath maps environment names whose koanf paths contain underscores,
// which the generic transform cannot derive.
var envToPath = map[string]string{
	"CHUNKING_MIN_CHARS":         "chunking.min_chars",
	"RETRIEVAL_K_SPARSE":         "retrieval.k_sparse",
	"RETRIEVAL_K_DENSE":          "retrieval.k_dense",
	"RETRIEVAL_K_FINAL":          "retrieval.k_final",
	"RETRIEVAL_W_SPARSE":         "retrieval.w_sparse",
	"RETRIEVAL_W_DENSE":          "retrieval.w_dense",
	"RETRIEVAL_TOKEN_BUDGET":     "retrieval.token_budget",
	"RETRIEVAL_TOKEN_MODEL":      "retrieval.token_model",
	"EMBEDDER_API_KEY":           "embedder.api_key",
	"EMBEDDER_BATCH_SIZE":        "embedder.batch_size",
	"EMBEDDER_CACHE_SIZE":        "embedder.cache_size",
	"LLM_API_KEY":                "llm.api_key",
	"LLM_MAX_RETRIES":            "llm.max_retries",
	"PIPELINE_MAX_WORKERS":       "pipeline.max_workers",
	"PIPELINE_MAX_HITS":          "pipeline.max_hits",
	"PIPELINE_MAX_REFINE_HITS":   "pipeline.max_refine_hits",
	"PIPELINE_MAX_FOLLOW_UPS":    "pipeline.max_follow_ups",
}

// Load builds the configuration from defaults plus environment overrides.
// CONSENTFORGE_CHUNKING_SIZE=800 maps to chunking.size, and so on.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, envPrefix)
			if path, ok := envToPath[key]; ok {
				return path, value
			}
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	// Fields without koanf representation keep their defaults.
	if len(cfg.Pipeline.DefaultSections) == 0 {
		cfg.Pipeline.DefaultSections = Default().Pipeline.DefaultSections
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}
