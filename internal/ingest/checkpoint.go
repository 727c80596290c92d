package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/immcad/backend/internal/sources"
)

// Checkpoint is the persisted per-source fetch metadata that drives
// conditional requests.
type Checkpoint struct {
	ETag           string    `json:"etag,omitempty"`
	LastModified   string    `json:"last_modified,omitempty"`
	ChecksumSHA256 string    `json:"checksum_sha256,omitempty"`
	LastHTTPStatus int       `json:"last_http_status,omitempty"`
	LastSuccessAt  time.Time `json:"last_success_at,omitempty"`
}

// Freshness classifications derived from a checkpoint.
const (
	FreshnessFresh   = "fresh"
	FreshnessStale   = "stale"
	FreshnessMissing = "missing"
)

type checkpointDocument struct {
	Version     int                   `json:"version"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Checkpoints map[string]Checkpoint `json:"checkpoints"`
}

// CheckpointStore maintains the source_id -> checkpoint map and persists it
// as a single JSON document with atomic replace semantics.
type CheckpointStore struct {
	mu          sync.RWMutex
	path        string
	checkpoints map[string]Checkpoint
	logger      *log.Logger
}

// NewCheckpointStore loads the store from path. A missing file starts empty;
// a corrupt file is logged and treated as empty but never deleted.
func NewCheckpointStore(path string) (*CheckpointStore, error) {
	cs := &CheckpointStore{
		path:        path,
		checkpoints: make(map[string]Checkpoint),
		logger:      log.New(log.Writer(), "[CHECKPOINT] ", log.LstdFlags),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: read checkpoint state: %w", err)
	}

	var doc checkpointDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		cs.logger.Printf("corrupt checkpoint file %s, starting empty: %v", path, err)
		return cs, nil
	}
	if doc.Checkpoints != nil {
		cs.checkpoints = doc.Checkpoints
	}
	return cs, nil
}

// Get returns the checkpoint for a source and whether one exists.
func (cs *CheckpointStore) Get(sourceID string) (Checkpoint, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	cp, ok := cs.checkpoints[sourceID]
	return cp, ok
}

// Put replaces the checkpoint for a source in memory. Call Flush to persist.
func (cs *CheckpointStore) Put(sourceID string, cp Checkpoint) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.checkpoints[sourceID] = cp
}

// Snapshot returns a copy of all checkpoints.
func (cs *CheckpointStore) Snapshot() map[string]Checkpoint {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]Checkpoint, len(cs.checkpoints))
	for k, v := range cs.checkpoints {
		out[k] = v
	}
	return out
}

// Flush writes the whole store as one document: temp file in the same
// directory, fsync, rename. Readers observe either the old or the new
// document, never a partial write.
func (cs *CheckpointStore) Flush() error {
	cs.mu.RLock()
	doc := checkpointDocument{
		Version:     1,
		UpdatedAt:   time.Now().UTC(),
		Checkpoints: cs.checkpoints,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	cs.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("ingest: marshal checkpoint state: %w", err)
	}

	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ingest: create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoints-*.tmp")
	if err != nil {
		return fmt.Errorf("ingest: create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("ingest: write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("ingest: fsync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ingest: close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, cs.path); err != nil {
		return fmt.Errorf("ingest: replace state file: %w", err)
	}
	return nil
}

// cadenceWindow is the freshness window per cadence, with a grace margin
// over the nominal re-fetch period.
func cadenceWindow(cadence sources.Cadence) time.Duration {
	switch cadence {
	case sources.CadenceWeekly:
		return 7*24*time.Hour + 2*time.Hour
	default: // daily and scheduled_incremental run at least daily
		return 26 * time.Hour
	}
}

// Freshness classifies a source against its cadence window at time now.
func (cs *CheckpointStore) Freshness(sourceID string, cadence sources.Cadence, now time.Time) string {
	cp, ok := cs.Get(sourceID)
	if !ok || cp.LastSuccessAt.IsZero() {
		return FreshnessMissing
	}
	if now.Sub(cp.LastSuccessAt) <= cadenceWindow(cadence) {
		return FreshnessFresh
	}
	return FreshnessStale
}
