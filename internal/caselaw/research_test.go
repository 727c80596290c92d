package caselaw

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanResearchExtraction(t *testing.T) {
	plan := PlanResearch("Judicial review of a refusal for lack of procedural fairness " +
		"before the Federal Court; applicant alleges the officer ignored hardship evidence")

	assert.Contains(t, plan.IssueTags, "procedural_fairness")
	assert.Contains(t, plan.IssueTags, "judicial_review")
	assert.Equal(t, "fc", plan.Court)
	assert.Equal(t, "judicial_review", plan.Posture)
	assert.Contains(t, plan.FactKeywords, "hardship")
	assert.NotContains(t, plan.FactKeywords, "officer") // stopword
	assert.False(t, plan.TooBroad())
}

func TestPlanResearchCourtPrecedence(t *testing.T) {
	// FCA mention wins over the generic federal court phrase
	plan := PlanResearch("appeal to the Federal Court of Appeal from the Federal Court")
	assert.Equal(t, "fca", plan.Court)
	assert.Equal(t, "appeal", plan.Posture)

	plan = PlanResearch("leave to the Supreme Court")
	assert.Equal(t, "scc", plan.Court)
}

func TestPlanResearchSpecificCaseQuery(t *testing.T) {
	byDocket := PlanResearch("A-1234-23")
	assert.True(t, byDocket.Specific)
	assert.False(t, byDocket.TooBroad())
	assert.Contains(t, byDocket.FactKeywords, "1234")

	byCitation := PlanResearch("2026 FC 101")
	assert.True(t, byCitation.Specific)
	assert.False(t, byCitation.TooBroad())
}

func TestPlanResearchTooBroad(t *testing.T) {
	assert.True(t, PlanResearch("help with immigration").TooBroad())
	assert.True(t, PlanResearch("case law").TooBroad())
}

func TestPlanResearchQueryExpansionCapped(t *testing.T) {
	plan := PlanResearch("judicial review appeal of removal order on humanitarian and " +
		"compassionate grounds, credibility and inadmissibility findings, Federal Court of Appeal")

	assert.LessOrEqual(t, len(plan.Queries), 5)
	assert.Equal(t, plan.Queries[0], "judicial review appeal of removal order on humanitarian and "+
		"compassionate grounds, credibility and inadmissibility findings, Federal Court of Appeal")
	for _, q := range plan.Queries {
		assert.NotEmpty(t, q)
	}
}

func TestPlanResearchFactKeywordCap(t *testing.T) {
	plan := PlanResearch("alpha1 bravo2 charlie delta3 echo45 foxtrot golf4 hotel5 " +
		"india6 juliet7 kilo89 lima90 mike11 november oscar12 papa345")

	assert.LessOrEqual(t, len(plan.FactKeywords), 12)
}

func TestResearchServiceMergesAndDeduplicates(t *testing.T) {
	official := &stubSearcher{records: []Decision{
		{SourceID: SourceFC, CaseID: "1", Title: "Doe v Canada procedural fairness", Citation: "2024 FC 10", DecisionDate: day(2024, 1, 16)},
		{SourceID: SourceFC, CaseID: "2", Title: "Roe v Canada removal order", Citation: "2024 FC 11", DecisionDate: day(2024, 2, 1)},
	}}
	svc := NewResearchService(NewSearchService(official, nil))

	res, err := svc.Research(context.Background(),
		"judicial review for procedural fairness in a removal order matter", 10)

	require.NoError(t, err)
	// multiple expanded queries hit the same records exactly once
	ids := make(map[string]int)
	for _, r := range res.Results {
		ids[r.CaseID]++
	}
	for id, n := range ids {
		assert.Equal(t, 1, n, "case %s duplicated", id)
	}
	assert.NotEmpty(t, res.Plan.Queries)
}

func TestResearchServiceSurfacesUnavailability(t *testing.T) {
	official := &stubSearcher{err: &SourceUnavailableError{Reason: "down"}}
	svc := NewResearchService(NewSearchService(official, nil))

	_, err := svc.Research(context.Background(), "procedural fairness judicial review", 10)

	var unavailable *SourceUnavailableError
	require.ErrorAs(t, err, &unavailable)
}
