package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immcad/backend/internal/sources"
)

func TestCheckpointStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoints.json")

	cs, err := NewCheckpointStore(path)
	require.NoError(t, err)

	cp := Checkpoint{
		ETag:           `"abc123"`,
		LastModified:   "Mon, 02 Jan 2006 15:04:05 GMT",
		ChecksumSHA256: "deadbeef",
		LastHTTPStatus: 200,
		LastSuccessAt:  time.Now().UTC().Truncate(time.Second),
	}
	cs.Put("IRPA", cp)
	require.NoError(t, cs.Flush())

	reloaded, err := NewCheckpointStore(path)
	require.NoError(t, err)
	got, ok := reloaded.Get("IRPA")
	require.True(t, ok)
	assert.Equal(t, cp.ETag, got.ETag)
	assert.Equal(t, cp.ChecksumSHA256, got.ChecksumSHA256)
	assert.Equal(t, cp.LastHTTPStatus, got.LastHTTPStatus)
	assert.True(t, cp.LastSuccessAt.Equal(got.LastSuccessAt))
}

func TestCheckpointStoreDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.json")
	cs, err := NewCheckpointStore(path)
	require.NoError(t, err)
	cs.Put("IRPA", Checkpoint{LastHTTPStatus: 200})
	require.NoError(t, cs.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "version")
	assert.Contains(t, doc, "updated_at")
	assert.Contains(t, doc, "checkpoints")
}

func TestCheckpointStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	cs, err := NewCheckpointStore(path)
	require.NoError(t, err)
	_, ok := cs.Get("IRPA")
	assert.False(t, ok)

	// Corrupt file is kept for inspection, not deleted.
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestFreshnessClassification(t *testing.T) {
	cs, err := NewCheckpointStore(filepath.Join(t.TempDir(), "checkpoints.json"))
	require.NoError(t, err)

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, FreshnessMissing, cs.Freshness("IRPA", sources.CadenceWeekly, now))

	cs.Put("IRPA", Checkpoint{LastSuccessAt: now.Add(-time.Hour)})
	assert.Equal(t, FreshnessFresh, cs.Freshness("IRPA", sources.CadenceWeekly, now))

	cs.Put("IRPA", Checkpoint{LastSuccessAt: now.Add(-8 * 24 * time.Hour)})
	assert.Equal(t, FreshnessStale, cs.Freshness("IRPA", sources.CadenceWeekly, now))

	cs.Put("IRCC_PDI", Checkpoint{LastSuccessAt: now.Add(-30 * time.Hour)})
	assert.Equal(t, FreshnessStale, cs.Freshness("IRCC_PDI", sources.CadenceDaily, now))

	cs.Put("IRCC_PDI", Checkpoint{LastSuccessAt: now.Add(-20 * time.Hour)})
	assert.Equal(t, FreshnessFresh, cs.Freshness("IRCC_PDI", sources.CadenceDaily, now))
}
