package sources

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

//go:embed data/policy.yaml
var defaultPolicyYAML []byte

// SourceClass ranks the authority of a source.
type SourceClass string

const (
	ClassOfficial   SourceClass = "official"
	ClassUnofficial SourceClass = "unofficial"
	ClassCommercial SourceClass = "commercial"
)

// PolicyEntry carries the governance flags for one source.
type PolicyEntry struct {
	SourceID                string      `yaml:"source_id" json:"source_id"`
	SourceClass             SourceClass `yaml:"source_class" json:"source_class"`
	InternalIngestAllowed   bool        `yaml:"internal_ingest_allowed" json:"internal_ingest_allowed"`
	ProductionIngestAllowed bool        `yaml:"production_ingest_allowed" json:"production_ingest_allowed"`
	AnswerCitationAllowed   bool        `yaml:"answer_citation_allowed" json:"answer_citation_allowed"`
	ExportFulltextAllowed   bool        `yaml:"export_fulltext_allowed" json:"export_fulltext_allowed"`
	LicenseNotes            string      `yaml:"license_notes" json:"license_notes,omitempty"`
	ReviewOwner             string      `yaml:"review_owner" json:"review_owner,omitempty"`
	ReviewDate              string      `yaml:"review_date" json:"review_date,omitempty"`
}

// PolicySet is the loaded source policy document.
type PolicySet struct {
	Version      int           `yaml:"version"`
	Jurisdiction string        `yaml:"jurisdiction"`
	Sources      []PolicyEntry `yaml:"sources"`

	byID map[string]*PolicyEntry
}

// LoadPolicy reads and validates a policy document (YAML). An empty path
// loads the embedded default.
func LoadPolicy(path string) (*PolicySet, error) {
	data := defaultPolicyYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("sources: read policy: %w", err)
		}
		data = b
	}

	var ps PolicySet
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("sources: parse policy: %w", err)
	}
	if err := ps.validate(); err != nil {
		return nil, err
	}
	return &ps, nil
}

func (ps *PolicySet) validate() error {
	if ps.Jurisdiction != "ca" {
		return fmt.Errorf("sources: policy jurisdiction must be %q, got %q", "ca", ps.Jurisdiction)
	}
	ps.byID = make(map[string]*PolicyEntry, len(ps.Sources))
	for i := range ps.Sources {
		p := &ps.Sources[i]
		if n := len(p.SourceID); n < 3 || n > 128 {
			return fmt.Errorf("sources: policy source_id %q must be 3-128 chars", p.SourceID)
		}
		if _, dup := ps.byID[p.SourceID]; dup {
			return fmt.Errorf("sources: duplicate policy source_id %q", p.SourceID)
		}
		switch p.SourceClass {
		case ClassOfficial, ClassUnofficial, ClassCommercial:
		default:
			return fmt.Errorf("sources: %s: invalid source_class %q", p.SourceID, p.SourceClass)
		}
		if p.ReviewDate != "" {
			if _, err := time.Parse("2006-01-02", p.ReviewDate); err != nil {
				return fmt.Errorf("sources: %s: review_date must be YYYY-MM-DD: %v", p.SourceID, err)
			}
		}
		ps.byID[p.SourceID] = p
	}
	return nil
}

// ForSource returns the policy entry for a source id, or nil if absent.
func (ps *PolicySet) ForSource(sourceID string) *PolicyEntry {
	return ps.byID[sourceID]
}

// CheckRegistryCoverage verifies that every registry source referenced in
// production has a policy entry. Returns the ids missing from the policy.
func (ps *PolicySet) CheckRegistryCoverage(reg *Registry) []string {
	var missing []string
	for _, e := range reg.All() {
		if ps.ForSource(e.SourceID) == nil {
			missing = append(missing, e.SourceID)
		}
	}
	return missing
}
