package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// productionEnvPattern decides whether a runtime environment counts as
// production for policy purposes. "production", "prod" and "ci" (with
// optional suffixes like "prod-east") are all treated as production.
var productionEnvPattern = regexp.MustCompile(`^(production|prod|ci)(?:[-_].+)?$`)

// IsProductionEnv reports whether the given environment name is governed by
// production policy.
func IsProductionEnv(env string) bool {
	return productionEnvPattern.MatchString(strings.ToLower(strings.TrimSpace(env)))
}

// Settings holds every runtime configuration knob, resolved once at startup.
type Settings struct {
	Environment string
	Port        string

	APIBearerToken string

	OpenAIAPIKey    string
	GeminiAPIKey    string
	GeminiModel     string
	PrimaryProvider string // "openai" or "gemini"

	EnableScaffoldProvider          bool
	AllowScaffoldSyntheticCitations bool

	EnableCaseSearch          bool
	EnableOfficialCaseSources bool
	CanLIIAPIKey              string

	ExportPolicyGateEnabled bool
	DocumentRequireHTTPS    bool

	CircuitFailureThreshold int
	CircuitOpenSeconds      int

	RedisURL           string
	RateLimitPerMinute int

	CheckpointStatePath    string
	SourceRegistryPath     string
	SourcePolicyPath       string
	FetchPolicyPath        string
	CitationTrustedDomains []string

	APIBaseURL string
}

// Load reads settings from the environment. Production hardening is applied
// here: the scaffold provider and synthetic citations are forced off, and a
// bearer token must be configured.
func Load() (*Settings, error) {
	s := &Settings{
		Environment: getenv("ENVIRONMENT", "internal"),
		Port:        getenv("PORT", "8080"),

		APIBearerToken: os.Getenv("API_BEARER_TOKEN"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getenv("GEMINI_MODEL", "gemini-1.5-pro"),
		PrimaryProvider: getenv("PRIMARY_PROVIDER", "openai"),

		EnableScaffoldProvider:          envBool("ENABLE_SCAFFOLD_PROVIDER", false),
		AllowScaffoldSyntheticCitations: envBool("ALLOW_SCAFFOLD_SYNTHETIC_CITATIONS", false),

		EnableCaseSearch:          envBool("ENABLE_CASE_SEARCH", true),
		EnableOfficialCaseSources: envBool("ENABLE_OFFICIAL_CASE_SOURCES", true),
		CanLIIAPIKey:              os.Getenv("CANLII_API_KEY"),

		ExportPolicyGateEnabled: envBool("EXPORT_POLICY_GATE_ENABLED", true),
		DocumentRequireHTTPS:    envBool("DOCUMENT_REQUIRE_HTTPS", true),

		CircuitFailureThreshold: envInt("PROVIDER_CIRCUIT_BREAKER_FAILURE_THRESHOLD", 3),
		CircuitOpenSeconds:      envInt("PROVIDER_CIRCUIT_BREAKER_OPEN_SECONDS", 30),

		RedisURL:           os.Getenv("REDIS_URL"),
		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),

		CheckpointStatePath: getenv("INGESTION_CHECKPOINT_STATE_PATH", "data/ingestion_checkpoints.json"),
		SourceRegistryPath:  os.Getenv("SOURCE_REGISTRY_PATH"),
		SourcePolicyPath:    os.Getenv("SOURCE_POLICY_PATH"),
		FetchPolicyPath:     os.Getenv("FETCH_POLICY_PATH"),

		APIBaseURL: getenv("IMMCAD_API_BASE_URL", "http://localhost:8080"),
	}

	if domains := os.Getenv("CITATION_TRUSTED_DOMAINS"); domains != "" {
		for _, d := range strings.Split(domains, ",") {
			if d = strings.TrimSpace(d); d != "" {
				s.CitationTrustedDomains = append(s.CitationTrustedDomains, strings.ToLower(d))
			}
		}
	}

	if s.PrimaryProvider != "openai" && s.PrimaryProvider != "gemini" {
		return nil, fmt.Errorf("config: PRIMARY_PROVIDER must be openai or gemini, got %q", s.PrimaryProvider)
	}
	if s.CircuitFailureThreshold < 1 {
		return nil, fmt.Errorf("config: PROVIDER_CIRCUIT_BREAKER_FAILURE_THRESHOLD must be >= 1")
	}
	if s.CircuitOpenSeconds <= 0 {
		return nil, fmt.Errorf("config: PROVIDER_CIRCUIT_BREAKER_OPEN_SECONDS must be > 0")
	}

	if s.IsProduction() {
		if s.APIBearerToken == "" {
			return nil, fmt.Errorf("config: API_BEARER_TOKEN is required in production")
		}
		// Never allow scaffold output to reach production users.
		s.EnableScaffoldProvider = false
		s.AllowScaffoldSyntheticCitations = false
	}

	return s, nil
}

// IsProduction reports whether the configured environment is production-like.
func (s *Settings) IsProduction() bool {
	return IsProductionEnv(s.Environment)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
