package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hebrew-ms/backend/internal/classification"
	domain "github.com/hebrew-ms/backend/internal/models"
	"github.com/hebrew-ms/backend/internal/storage/models"
)

func location(t *testing.T, value string) domain.ExtractedEntity {
	t.Helper()
	e, err := domain.NewExtractedEntity(value, domain.EntityLocation, 0.8, "")
	require.NoError(t, err)
	return e
}

func classified(t *testing.T, value string, source domain.ClassificationSource) domain.ClassifiedEntity {
	return domain.ClassifiedEntity{Entity: location(t, value), Label: "production place", Source: source}
}

func TestCoverage(t *testing.T) {
	ms := []domain.Manuscript{
		{ID: "1", Locations: []domain.ExtractedEntity{location(t, "קנדיה"), location(t, "ונציה")}},
		{ID: "2", Persons: []domain.Person{{Name: "משה", Role: "scribe"}}},
		{ID: "3"},
	}
	labels := map[string][]domain.ClassifiedEntity{
		"1": {classified(t, "קנדיה", domain.SourcePattern), classified(t, "ונציה", domain.SourceAI)},
	}
	stats := classification.Stats{
		LocationAttempts:  2,
		LocationSuccesses: 1,
		LeftUnclassified:  2,
	}

	r := Coverage(ms, labels, stats)
	assert.Equal(t, 3, r.Manuscripts)
	assert.Equal(t, 2, r.WithEntities)

	loc := r.Types[domain.EntityLocation]
	assert.Equal(t, 2, loc.Total)
	assert.Equal(t, 2, loc.Max)
	assert.InDelta(t, 2.0/3.0, loc.Average, 1e-9)
	assert.Equal(t, 1, r.Types[domain.EntityPerson].Total)
	assert.Zero(t, r.Types[domain.EntityDate].Total)

	assert.InDelta(t, 0.5, r.LocationPatternRate, 1e-9)
	assert.Zero(t, r.PersonPatternRate)
	assert.Equal(t, 1, r.PatternLabels)
	assert.Equal(t, 1, r.AILabels)
	assert.InDelta(t, 0.25, r.PatternShare, 1e-9)
	assert.InDelta(t, 0.5, r.UnclassifiedShare, 1e-9)
	assert.Equal(t, 2, r.Labels["production place"])
}

func TestCoverageEmptyBatch(t *testing.T) {
	r := Coverage(nil, nil, classification.Stats{})
	assert.Zero(t, r.Manuscripts)
	assert.Zero(t, r.PatternShare)
	assert.Empty(t, r.Types)
}

func TestCompareLocations(t *testing.T) {
	left := []domain.Manuscript{
		{ID: "1", Locations: []domain.ExtractedEntity{location(t, "קנדיה")}},
		{ID: "2", Locations: []domain.ExtractedEntity{location(t, "ונציה")}},
		{ID: "3", Locations: []domain.ExtractedEntity{location(t, "רומא"), location(t, "פאדובה")}},
		{ID: "only-left"},
	}
	right := []domain.Manuscript{
		{ID: "1", Locations: []domain.ExtractedEntity{location(t, "קנדיה"), location(t, "כרתים")}},
		{ID: "2", Locations: []domain.ExtractedEntity{location(t, "ונציה")}},
		{ID: "3", Locations: []domain.ExtractedEntity{location(t, "רומא")}},
	}

	cmp := CompareLocations(left, right)
	assert.Equal(t, 1, cmp.MoreRight)
	assert.Equal(t, 1, cmp.MoreLeft)
	assert.Equal(t, 1, cmp.Same)
	require.Len(t, cmp.Diffs, 2)
	assert.Equal(t, LocationDiff{ManuscriptID: "1", OnlyRight: []string{"כרתים"}}, cmp.Diffs[0])
	assert.Equal(t, LocationDiff{ManuscriptID: "3", OnlyLeft: []string{"פאדובה"}}, cmp.Diffs[1])
	assert.Equal(t, 4, cmp.Left.Types[domain.EntityLocation].Total)
	assert.Equal(t, 4, cmp.Right.Types[domain.EntityLocation].Total)
}

func TestRunRecord(t *testing.T) {
	run := RunRecord("run-1", CoverageReport{Manuscripts: 4, PatternLabels: 3, AILabels: 2, Unclassified: 1}, 5, 120)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, 5, run.Classified)
	assert.Equal(t, 5, run.Events)
	assert.Equal(t, int64(120), run.DurationMS)
	assert.False(t, run.CreatedAt.IsZero())
}

type fakeStore struct {
	counts []models.LabelCount
	err    error
}

func (f fakeStore) LabelCounts(context.Context) ([]models.LabelCount, error) {
	return f.counts, f.err
}

func TestLabelDistribution(t *testing.T) {
	e := NewEvaluator(fakeStore{counts: []models.LabelCount{
		{Type: "location", Label: "production place", Source: "pattern", Count: 6},
		{Type: "date", Label: "copying date", Source: "ai", Count: 2},
		{Type: "person", Label: "scribe", Source: "pattern", Count: 2},
	}})

	shares, counts, err := e.LabelDistribution(context.Background())
	require.NoError(t, err)
	assert.Len(t, counts, 3)
	assert.InDelta(t, 0.8, shares["pattern"], 1e-9)
	assert.InDelta(t, 0.2, shares["ai"], 1e-9)

	_, _, err = NewEvaluator(fakeStore{err: errors.New("locked")}).LabelDistribution(context.Background())
	assert.ErrorContains(t, err, "failed to load label counts: locked")
}
