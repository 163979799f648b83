package config

import (
	"time"
)

// Config represents the complete configuration for the text2sql pipeline.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Runtime      RuntimeConfig      `koanf:"runtime"      validate:"required"`
	Server       ServerConfig       `koanf:"server"`
	GraphStore   GraphStoreConfig   `koanf:"graph_store"  validate:"required"`
	LLM          LLMConfig          `koanf:"llm"          validate:"required"`
	Pipeline     PipelineConfig     `koanf:"pipeline"     validate:"required"`
	Thresholds   ThresholdsConfig   `koanf:"thresholds"   validate:"required"`
	Entity       EntityConfig       `koanf:"entity"`
	Relationship RelationshipConfig `koanf:"relationship" validate:"required"`
	SQL          SQLConfig          `koanf:"sql"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error disabled"  env:"RUNTIME_LOG_LEVEL"`
}

// ServerConfig contains HTTP front-end configuration.
type ServerConfig struct {
	Host    string        `koanf:"host"    env:"SERVER_HOST"`
	Port    int           `koanf:"port"    validate:"min=1,max=65535" env:"SERVER_PORT"`
	Timeout time.Duration `koanf:"timeout" env:"SERVER_TIMEOUT"`
}

// GraphStoreConfig contains graph-store client configuration.
type GraphStoreConfig struct {
	BaseURL  string        `koanf:"base_url" validate:"required" env:"GRAPH_STORE_BASE_URL"`
	APIKey   string        `koanf:"api_key"  env:"GRAPH_STORE_API_KEY"`
	Timeout  time.Duration `koanf:"timeout"  env:"GRAPH_STORE_TIMEOUT"`
	CacheTTL time.Duration `koanf:"cache_ttl" env:"GRAPH_STORE_CACHE_TTL"`
}

// LLMConfig contains generation-service configuration.
type LLMConfig struct {
	Provider    string        `koanf:"provider"    validate:"required" env:"LLM_PROVIDER"`
	Model       string        `koanf:"model"       validate:"required" env:"LLM_MODEL"`
	APIKey      string        `koanf:"api_key"     env:"LLM_API_KEY"`
	BaseURL     string        `koanf:"base_url"    env:"LLM_BASE_URL"`
	Temperature float64       `koanf:"temperature" validate:"min=0,max=2" env:"LLM_TEMPERATURE"`
	MaxTokens   int           `koanf:"max_tokens"  validate:"min=1" env:"LLM_MAX_TOKENS"`
	Timeout     time.Duration `koanf:"timeout"     env:"LLM_TIMEOUT"`
}

// PipelineConfig contains orchestrator-level configuration.
type PipelineConfig struct {
	StageTimeout   time.Duration `koanf:"stage_timeout"   env:"PIPELINE_STAGE_TIMEOUT"`
	MaxConcurrency int           `koanf:"max_concurrency" validate:"min=1" env:"PIPELINE_MAX_CONCURRENCY"`
}

// ThresholdsConfig names the confidence thresholds used across the
// pipeline. The values are hand-tuned and pending calibration against
// real query traffic; treat them as starting points, not ground truth.
type ThresholdsConfig struct {
	// BoundaryLow is the confidence below which a decision becomes a
	// knowledge boundary instead of a guess.
	BoundaryLow float64 `koanf:"boundary_low" validate:"min=0,max=1" env:"THRESHOLDS_BOUNDARY_LOW"`
	// AmbiguityHigh is the confidence two competing interpretations must
	// both exceed before the decision is declared ambiguous.
	AmbiguityHigh float64 `koanf:"ambiguity_high" validate:"min=0,max=1" env:"THRESHOLDS_AMBIGUITY_HIGH"`
	// EntityAlternativeHigh is the upper bound of the entity-confidence
	// band [BoundaryLow, EntityAlternativeHigh) that triggers alternative
	// synthesis.
	EntityAlternativeHigh float64 `koanf:"entity_alternative_high" validate:"min=0,max=1" env:"THRESHOLDS_ENTITY_ALTERNATIVE_HIGH"`
	// PathAlternativeHigh is the upper bound of the join-path confidence
	// band that collects alternative paths.
	PathAlternativeHigh float64 `koanf:"path_alternative_high" validate:"min=0,max=1" env:"THRESHOLDS_PATH_ALTERNATIVE_HIGH"`
	// Clarification is the confidence below which extra alternatives are
	// requested from the generation service.
	Clarification float64 `koanf:"clarification" validate:"min=0,max=1" env:"THRESHOLDS_CLARIFICATION"`
}

// EntityConfig contains entity-agent configuration.
type EntityConfig struct {
	// Strategies lists resolution strategy identifiers in priority order.
	// Identifiers must be registered in the resolver registry.
	Strategies      []string `koanf:"strategies"       env:"ENTITY_STRATEGIES"`
	MaxAlternatives int      `koanf:"max_alternatives" validate:"min=0" env:"ENTITY_MAX_ALTERNATIVES"`
}

// RelationshipConfig contains relationship-agent configuration.
type RelationshipConfig struct {
	// PathStrategy selects among multiple store-returned paths:
	// default, weighted, usage, verified, or all.
	PathStrategy string `koanf:"path_strategy" validate:"oneof=default weighted usage verified all" env:"RELATIONSHIP_PATH_STRATEGY"`
	// TreeStrategy selects join-tree assembly: greedy or star.
	TreeStrategy  string  `koanf:"tree_strategy"  validate:"oneof=greedy star" env:"RELATIONSHIP_TREE_STRATEGY"`
	MaxHops       int     `koanf:"max_hops"       validate:"min=1,max=10" env:"RELATIONSHIP_MAX_HOPS"`
	MaxPaths      int     `koanf:"max_paths"      validate:"min=1" env:"RELATIONSHIP_MAX_PATHS"`
	MinConfidence float64 `koanf:"min_confidence" validate:"min=0,max=1" env:"RELATIONSHIP_MIN_CONFIDENCE"`
}

// SQLConfig contains SQL-agent configuration.
type SQLConfig struct {
	MaxAlternatives int `koanf:"max_alternatives" validate:"min=0" env:"SQL_MAX_ALTERNATIVES"`
	FallbackLimit   int `koanf:"fallback_limit"   validate:"min=1" env:"SQL_FALLBACK_LIMIT"`
}

// Default returns the configuration used when no overrides are present.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Timeout: 60 * time.Second,
		},
		GraphStore: GraphStoreConfig{
			BaseURL:  "http://localhost:7474",
			Timeout:  10 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			MaxTokens:   2048,
			Timeout:     30 * time.Second,
		},
		Pipeline: PipelineConfig{
			StageTimeout:   45 * time.Second,
			MaxConcurrency: 8,
		},
		Thresholds: ThresholdsConfig{
			BoundaryLow:           0.4,
			AmbiguityHigh:         0.6,
			EntityAlternativeHigh: 0.7,
			PathAlternativeHigh:   0.8,
			Clarification:         0.8,
		},
		Entity: EntityConfig{
			Strategies:      []string{"direct_match", "glossary_term", "semantic_concept", "llm_generated"},
			MaxAlternatives: 3,
		},
		Relationship: RelationshipConfig{
			PathStrategy:  "default",
			TreeStrategy:  "greedy",
			MaxHops:       4,
			MaxPaths:      5,
			MinConfidence: 0.3,
		},
		SQL: SQLConfig{
			MaxAlternatives: 2,
			FallbackLimit:   10,
		},
	}
}
