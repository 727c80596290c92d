// Package ingest implements the incremental ingestion engine: cadence-driven
// conditional fetches of registered sources with persisted checkpoints.
package ingest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// FetchRule is the per-source fetch behaviour: timeout, retry count, and
// retry backoff base. max_retries counts additional attempts after the
// first, so max_retries=0 means exactly one attempt.
type FetchRule struct {
	TimeoutSeconds      float64 `yaml:"timeout_seconds"`
	MaxRetries          int     `yaml:"max_retries"`
	RetryBackoffSeconds float64 `yaml:"retry_backoff_seconds"`
}

// Timeout returns the rule's timeout as a duration.
func (r FetchRule) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds * float64(time.Second))
}

// Backoff returns the sleep before retry attempt n (0-based), doubling each
// attempt.
func (r FetchRule) Backoff(attempt int) time.Duration {
	base := time.Duration(r.RetryBackoffSeconds * float64(time.Second))
	return base * time.Duration(1<<uint(attempt))
}

// FetchPolicy resolves per-source fetch rules with a default fallback.
type FetchPolicy struct {
	Default FetchRule            `yaml:"default"`
	Sources map[string]FetchRule `yaml:"sources"`
}

// DefaultFetchPolicy is used when no policy file is configured.
func DefaultFetchPolicy() *FetchPolicy {
	return &FetchPolicy{
		Default: FetchRule{
			TimeoutSeconds:      20,
			MaxRetries:          2,
			RetryBackoffSeconds: 1,
		},
	}
}

// LoadFetchPolicy reads a fetch policy YAML document. An empty path returns
// the built-in default.
func LoadFetchPolicy(path string) (*FetchPolicy, error) {
	if path == "" {
		return DefaultFetchPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read fetch policy: %w", err)
	}
	var fp FetchPolicy
	if err := yaml.Unmarshal(data, &fp); err != nil {
		return nil, fmt.Errorf("ingest: parse fetch policy: %w", err)
	}
	def := DefaultFetchPolicy().Default
	fp.Default = sanitizeRule(fp.Default, def)
	return &fp, nil
}

// ForSource returns the override for a source id if present, otherwise the
// default. Invalid or negative override fields fall back field-wise.
func (fp *FetchPolicy) ForSource(sourceID string) FetchRule {
	rule, ok := fp.Sources[sourceID]
	if !ok {
		return fp.Default
	}
	return sanitizeRule(rule, fp.Default)
}

func sanitizeRule(rule, fallback FetchRule) FetchRule {
	if rule.TimeoutSeconds <= 0 {
		rule.TimeoutSeconds = fallback.TimeoutSeconds
	}
	if rule.MaxRetries < 0 {
		rule.MaxRetries = fallback.MaxRetries
	}
	if rule.RetryBackoffSeconds < 0 {
		rule.RetryBackoffSeconds = fallback.RetryBackoffSeconds
	}
	return rule
}
