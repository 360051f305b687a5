package evaluation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/classification"
	domain "github.com/hebrew-ms/backend/internal/models"
	"github.com/hebrew-ms/backend/internal/storage/models"
	"github.com/hebrew-ms/backend/pkg/logger"
)

// TypeCoverage summarises how many entities of one type a batch produced.
type TypeCoverage struct {
	Total   int     `json:"total"`
	Average float64 `json:"average"`
	Max     int     `json:"max"`
}

type CoverageReport struct {
	Manuscripts         int                                `json:"manuscripts"`
	WithEntities        int                                `json:"with_entities"`
	Types               map[domain.EntityType]TypeCoverage `json:"types"`
	PersonPatternRate   float64                            `json:"person_pattern_rate"`
	LocationPatternRate float64                            `json:"location_pattern_rate"`
	PatternLabels       int                                `json:"pattern_labels"`
	AILabels            int                                `json:"ai_labels"`
	Unclassified        int                                `json:"unclassified"`
	PatternShare        float64                            `json:"pattern_share"`
	AIShare             float64                            `json:"ai_share"`
	UnclassifiedShare   float64                            `json:"unclassified_share"`
	Labels              map[string]int                     `json:"labels"`
}

// LocationDiff compares the locations two extraction modes found for the same manuscript.
type LocationDiff struct {
	ManuscriptID string   `json:"manuscript_id"`
	OnlyLeft     []string `json:"only_left"`
	OnlyRight    []string `json:"only_right"`
}

type ModeComparison struct {
	Left      CoverageReport `json:"left"`
	Right     CoverageReport `json:"right"`
	MoreRight int            `json:"more_right"`
	MoreLeft  int            `json:"more_left"`
	Same      int            `json:"same"`
	Diffs     []LocationDiff `json:"diffs"`
}

func entityCounts(m domain.Manuscript) map[domain.EntityType]int {
	return map[domain.EntityType]int{
		domain.EntityDate:     len(m.Dates),
		domain.EntityLocation: len(m.Locations),
		domain.EntityPerson:   len(m.Persons),
	}
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// Coverage computes per-type totals and classification source shares for a batch.
func Coverage(manuscripts []domain.Manuscript, classified map[string][]domain.ClassifiedEntity, stats classification.Stats) CoverageReport {
	r := CoverageReport{
		Manuscripts:         len(manuscripts),
		Types:               make(map[domain.EntityType]TypeCoverage),
		PersonPatternRate:   stats.PersonRate(),
		LocationPatternRate: stats.LocationRate(),
		Unclassified:        stats.LeftUnclassified,
		Labels:              make(map[string]int),
	}

	for _, m := range manuscripts {
		if m.HasEntities() {
			r.WithEntities++
		}
		for t, n := range entityCounts(m) {
			tc := r.Types[t]
			tc.Total += n
			tc.Max = max(tc.Max, n)
			r.Types[t] = tc
		}
		for _, c := range classified[m.ID] {
			r.Labels[c.Label]++
			switch c.Source {
			case domain.SourcePattern:
				r.PatternLabels++
			case domain.SourceAI:
				r.AILabels++
			}
		}
	}

	for t, tc := range r.Types {
		tc.Average = share(tc.Total, r.Manuscripts)
		r.Types[t] = tc
	}

	total := r.PatternLabels + r.AILabels + r.Unclassified
	r.PatternShare = share(r.PatternLabels, total)
	r.AIShare = share(r.AILabels, total)
	r.UnclassifiedShare = share(r.Unclassified, total)
	return r
}

func locationSet(m domain.Manuscript) map[string]bool {
	set := make(map[string]bool, len(m.Locations))
	for _, l := range m.Locations {
		set[l.Value()] = true
	}
	return set
}

func difference(a, b map[string]bool) []string {
	var out []string
	for v := range a {
		if !b[v] {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// CompareLocations matches manuscripts by id and reports which side found more locations.
// Manuscripts present on only one side are ignored.
func CompareLocations(left, right []domain.Manuscript) ModeComparison {
	cmp := ModeComparison{
		Left:  Coverage(left, nil, classification.Stats{}),
		Right: Coverage(right, nil, classification.Stats{}),
	}

	byID := make(map[string]domain.Manuscript, len(right))
	for _, m := range right {
		byID[m.ID] = m
	}

	for _, l := range left {
		r, ok := byID[l.ID]
		if !ok {
			continue
		}
		switch {
		case len(r.Locations) > len(l.Locations):
			cmp.MoreRight++
		case len(r.Locations) < len(l.Locations):
			cmp.MoreLeft++
		default:
			cmp.Same++
		}

		ls, rs := locationSet(l), locationSet(r)
		diff := LocationDiff{ManuscriptID: l.ID, OnlyLeft: difference(ls, rs), OnlyRight: difference(rs, ls)}
		if len(diff.OnlyLeft) > 0 || len(diff.OnlyRight) > 0 {
			cmp.Diffs = append(cmp.Diffs, diff)
		}
	}
	return cmp
}

// RunRecord converts a batch report into the row kept in extraction_runs.
func RunRecord(id string, r CoverageReport, events int, durationMS int64) *models.Run {
	return &models.Run{
		ID:            id,
		Manuscripts:   r.Manuscripts,
		Classified:    r.PatternLabels + r.AILabels,
		Events:        events,
		PatternLabels: r.PatternLabels,
		AILabels:      r.AILabels,
		Unclassified:  r.Unclassified,
		DurationMS:    durationMS,
		CreatedAt:     time.Now().UTC(),
	}
}

type LabelStore interface {
	LabelCounts(ctx context.Context) ([]models.LabelCount, error)
}

type Evaluator struct {
	db LabelStore
}

func NewEvaluator(db LabelStore) *Evaluator {
	return &Evaluator{db: db}
}

// LabelDistribution aggregates stored classifications into per-source shares across all runs.
func (e *Evaluator) LabelDistribution(ctx context.Context) (map[string]float64, []models.LabelCount, error) {
	counts, err := e.db.LabelCounts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load label counts: %w", err)
	}

	bySource := make(map[string]int)
	total := 0
	for _, c := range counts {
		bySource[c.Source] += c.Count
		total += c.Count
	}

	shares := make(map[string]float64, len(bySource))
	for source, n := range bySource {
		shares[source] = share(n, total)
	}

	logger.Info("Label distribution computed",
		zap.Int("labels", len(counts)),
		zap.Int("classifications", total),
	)
	return shares, counts, nil
}
