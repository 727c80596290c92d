package caselaw

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
)

// Searcher is the capability both the official fan-out and the licensed
// fallback expose.
type Searcher interface {
	Search(ctx context.Context, court string) ([]Decision, error)
}

// SearchService applies the official-first, licensed-fallback policy and
// ranks the merged records against the query.
type SearchService struct {
	official Searcher
	fallback Searcher
}

// NewSearchService wires the clients. Either may be nil.
func NewSearchService(official, fallback Searcher) *SearchService {
	return &SearchService{official: official, fallback: fallback}
}

// DefaultSearchLimit bounds result counts when the caller does not specify.
const DefaultSearchLimit = 10

// Search resolves records and ranks them. The official client is consulted
// first; a SourceUnavailableError falls through to the licensed fallback.
func (s *SearchService) Search(ctx context.Context, query, court string, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	records, err := s.resolve(ctx, court)
	if err != nil {
		return nil, err
	}
	return RankDecisions(query, records, limit), nil
}

func (s *SearchService) resolve(ctx context.Context, court string) ([]Decision, error) {
	var unavailable *SourceUnavailableError

	if s.official != nil {
		records, err := s.official.Search(ctx, court)
		if err == nil {
			return records, nil
		}
		if !errors.As(err, &unavailable) {
			return nil, err
		}
	}

	if s.fallback != nil {
		records, err := s.fallback.Search(ctx, court)
		if err == nil {
			return records, nil
		}
		if errors.As(err, &unavailable) {
			return nil, unavailable
		}
		return nil, err
	}

	if unavailable != nil {
		return nil, unavailable
	}
	return nil, &SourceUnavailableError{Reason: "no case-law client configured"}
}

var queryTokenRe = regexp.MustCompile(`[a-z0-9]+`)

// RankDecisions scores records against the query and returns the top limit.
// With no query tokens, records sort newest-first with case_id as the
// tie-break. Otherwise the score is the token hit count plus a bonus of 5
// when the whole compacted query appears in the record haystack; zero-score
// records are dropped and ties break on date then insertion order.
func RankDecisions(query string, records []Decision, limit int) []Decision {
	tokens := queryTokenRe.FindAllString(strings.ToLower(query), -1)

	if len(tokens) == 0 {
		sorted := append([]Decision(nil), records...)
		sort.SliceStable(sorted, func(i, j int) bool {
			if !sorted[i].DecisionDate.Equal(sorted[j].DecisionDate) {
				return sorted[i].DecisionDate.After(sorted[j].DecisionDate)
			}
			return sorted[i].CaseID < sorted[j].CaseID
		})
		return truncate(sorted, limit)
	}

	compact := strings.Join(tokens, " ")

	type scored struct {
		rec   Decision
		score int
		index int
	}
	var kept []scored
	for i, rec := range records {
		haystack := strings.ToLower(rec.Title + " " + rec.Citation + " " + rec.CaseID)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				score++
			}
		}
		if strings.Contains(haystack, compact) {
			score += 5
		}
		if score == 0 {
			continue
		}
		kept = append(kept, scored{rec: rec, score: score, index: i})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		if !kept[i].rec.DecisionDate.Equal(kept[j].rec.DecisionDate) {
			return kept[i].rec.DecisionDate.After(kept[j].rec.DecisionDate)
		}
		return kept[i].index < kept[j].index
	})

	out := make([]Decision, 0, len(kept))
	for _, s := range kept {
		out = append(out, s.rec)
	}
	return truncate(out, limit)
}

func truncate(records []Decision, limit int) []Decision {
	if len(records) > limit {
		return records[:limit]
	}
	return records
}
