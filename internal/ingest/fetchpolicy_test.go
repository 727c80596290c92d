package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForSourceDefaultFallback(t *testing.T) {
	fp := DefaultFetchPolicy()
	rule := fp.ForSource("UNKNOWN")
	assert.Equal(t, fp.Default, rule)
}

func TestForSourceFieldWiseFallback(t *testing.T) {
	fp := &FetchPolicy{
		Default: FetchRule{TimeoutSeconds: 20, MaxRetries: 2, RetryBackoffSeconds: 1},
		Sources: map[string]FetchRule{
			"IRCC_PDI": {TimeoutSeconds: -5, MaxRetries: 4, RetryBackoffSeconds: -1},
		},
	}

	rule := fp.ForSource("IRCC_PDI")
	assert.Equal(t, 20.0, rule.TimeoutSeconds, "invalid timeout falls back")
	assert.Equal(t, 4, rule.MaxRetries, "valid override kept")
	assert.Equal(t, 1.0, rule.RetryBackoffSeconds, "negative backoff falls back")
}

func TestForSourceZeroRetriesMeansOneAttempt(t *testing.T) {
	fp := &FetchPolicy{
		Default: FetchRule{TimeoutSeconds: 20, MaxRetries: 2, RetryBackoffSeconds: 1},
		Sources: map[string]FetchRule{
			"A2AJ": {TimeoutSeconds: 10, MaxRetries: 0, RetryBackoffSeconds: 1},
		},
	}

	// max_retries=0 is a valid override: the initial attempt still happens.
	rule := fp.ForSource("A2AJ")
	assert.Equal(t, 0, rule.MaxRetries)
}

func TestLoadFetchPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default:
  timeout_seconds: 15
  max_retries: 1
  retry_backoff_seconds: 2
sources:
  SCC_DECISIONS:
    timeout_seconds: 30
`), 0o644))

	fp, err := LoadFetchPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, fp.Default.Timeout())
	scc := fp.ForSource("SCC_DECISIONS")
	assert.Equal(t, 30.0, scc.TimeoutSeconds)
	assert.Equal(t, 1, scc.MaxRetries, "missing override field falls back to default")
}

func TestBackoffDoubles(t *testing.T) {
	rule := FetchRule{RetryBackoffSeconds: 1}
	assert.Equal(t, time.Second, rule.Backoff(0))
	assert.Equal(t, 2*time.Second, rule.Backoff(1))
	assert.Equal(t, 4*time.Second, rule.Backoff(2))
}
