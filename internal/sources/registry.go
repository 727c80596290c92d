// Package sources holds the curated catalog of authoritative legal sources
// and the per-source policy flags that gate ingestion, citation, and export.
package sources

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

//go:embed data/registry.json
var defaultRegistryJSON []byte

// SourceType classifies a registry entry.
type SourceType string

const (
	TypeStatute    SourceType = "statute"
	TypeRegulation SourceType = "regulation"
	TypePolicy     SourceType = "policy"
	TypeCaseLaw    SourceType = "case_law"
)

// Cadence is how often a source should be re-fetched.
type Cadence string

const (
	CadenceDaily                Cadence = "daily"
	CadenceWeekly               Cadence = "weekly"
	CadenceScheduledIncremental Cadence = "scheduled_incremental"
)

// Entry is one registered source.
type Entry struct {
	SourceID      string     `json:"source_id"`
	SourceType    SourceType `json:"source_type"`
	Instrument    string     `json:"instrument"`
	URL           string     `json:"url"`
	UpdateCadence Cadence    `json:"update_cadence"`
}

// Registry is the validated, deduplicated source catalog. Loaded once at
// startup; reload is by restart.
type Registry struct {
	Version      int     `json:"version"`
	Jurisdiction string  `json:"jurisdiction"`
	Sources      []Entry `json:"sources"`

	byID map[string]*Entry
}

// LoadRegistry reads and validates a registry document. An empty path loads
// the embedded default catalog.
func LoadRegistry(path string) (*Registry, error) {
	data := defaultRegistryJSON
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("sources: read registry: %w", err)
		}
		data = b
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("sources: parse registry: %w", err)
	}
	if err := reg.validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Registry) validate() error {
	if r.Jurisdiction != "ca" {
		return fmt.Errorf("sources: jurisdiction must be %q, got %q", "ca", r.Jurisdiction)
	}
	r.byID = make(map[string]*Entry, len(r.Sources))
	for i := range r.Sources {
		e := &r.Sources[i]
		if n := len(e.SourceID); n < 3 || n > 128 {
			return fmt.Errorf("sources: source_id %q must be 3-128 chars", e.SourceID)
		}
		if _, dup := r.byID[e.SourceID]; dup {
			return fmt.Errorf("sources: duplicate source_id %q", e.SourceID)
		}
		switch e.SourceType {
		case TypeStatute, TypeRegulation, TypePolicy, TypeCaseLaw:
		default:
			return fmt.Errorf("sources: %s: invalid source_type %q", e.SourceID, e.SourceType)
		}
		switch e.UpdateCadence {
		case CadenceDaily, CadenceWeekly, CadenceScheduledIncremental:
		default:
			return fmt.Errorf("sources: %s: invalid update_cadence %q", e.SourceID, e.UpdateCadence)
		}
		u, err := url.Parse(e.URL)
		if err != nil || !u.IsAbs() || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("sources: %s: url must be absolute https, got %q", e.SourceID, e.URL)
		}
		if strings.TrimSpace(e.Instrument) == "" {
			return fmt.Errorf("sources: %s: instrument must not be empty", e.SourceID)
		}
		r.byID[e.SourceID] = e
	}
	return nil
}

// Get returns the entry for a source id, or nil if unknown.
func (r *Registry) Get(sourceID string) *Entry {
	return r.byID[sourceID]
}

// All returns the entries in catalog order.
func (r *Registry) All() []Entry {
	return r.Sources
}
