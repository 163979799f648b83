package config

// envMappings maps TEXT2SQL_-prefixed environment variable names (prefix
// stripped) to koanf config paths. Keep in sync with the env tags on the
// Config structs.
var envMappings = map[string]string{
	"RUNTIME_ENVIRONMENT": "runtime.environment",
	"RUNTIME_LOG_LEVEL":   "runtime.log_level",

	"SERVER_HOST":    "server.host",
	"SERVER_PORT":    "server.port",
	"SERVER_TIMEOUT": "server.timeout",

	"GRAPH_STORE_BASE_URL":  "graph_store.base_url",
	"GRAPH_STORE_API_KEY":   "graph_store.api_key",
	"GRAPH_STORE_TIMEOUT":   "graph_store.timeout",
	"GRAPH_STORE_CACHE_TTL": "graph_store.cache_ttl",

	"LLM_PROVIDER":    "llm.provider",
	"LLM_MODEL":       "llm.model",
	"LLM_API_KEY":     "llm.api_key",
	"LLM_BASE_URL":    "llm.base_url",
	"LLM_TEMPERATURE": "llm.temperature",
	"LLM_MAX_TOKENS":  "llm.max_tokens",
	"LLM_TIMEOUT":     "llm.timeout",

	"PIPELINE_STAGE_TIMEOUT":   "pipeline.stage_timeout",
	"PIPELINE_MAX_CONCURRENCY": "pipeline.max_concurrency",

	"THRESHOLDS_BOUNDARY_LOW":            "thresholds.boundary_low",
	"THRESHOLDS_AMBIGUITY_HIGH":          "thresholds.ambiguity_high",
	"THRESHOLDS_ENTITY_ALTERNATIVE_HIGH": "thresholds.entity_alternative_high",
	"THRESHOLDS_PATH_ALTERNATIVE_HIGH":   "thresholds.path_alternative_high",
	"THRESHOLDS_CLARIFICATION":           "thresholds.clarification",

	"ENTITY_STRATEGIES":       "entity.strategies",
	"ENTITY_MAX_ALTERNATIVES": "entity.max_alternatives",

	"RELATIONSHIP_PATH_STRATEGY":  "relationship.path_strategy",
	"RELATIONSHIP_TREE_STRATEGY":  "relationship.tree_strategy",
	"RELATIONSHIP_MAX_HOPS":       "relationship.max_hops",
	"RELATIONSHIP_MAX_PATHS":      "relationship.max_paths",
	"RELATIONSHIP_MIN_CONFIDENCE": "relationship.min_confidence",

	"SQL_MAX_ALTERNATIVES": "sql.max_alternatives",
	"SQL_FALLBACK_LIMIT":   "sql.fallback_limit",
}
