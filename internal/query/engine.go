package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/hebrew"
	"github.com/hebrew-ms/backend/internal/kg/neo4j"
	domain "github.com/hebrew-ms/backend/internal/models"
	"github.com/hebrew-ms/backend/internal/storage/models"
	"github.com/hebrew-ms/backend/pkg/logger"
)

const DefaultLimit = 50

var ErrEmptyQuery = errors.New("query value is empty")

type Store interface {
	GetManuscript(ctx context.Context, id string) (*models.Manuscript, error)
	ListByEntity(ctx context.Context, entityType domain.EntityType, value, label string, limit int) ([]models.ManuscriptSummary, error)
	RecentRuns(ctx context.Context, limit int) ([]models.Run, error)
}

type Graph interface {
	ManuscriptsAtPlace(ctx context.Context, placeName string, limit int) ([]neo4j.PlaceManuscript, error)
}

type Engine struct {
	db    Store
	graph Graph
}

type Source struct {
	Type         string `json:"type"`
	ManuscriptID string `json:"manuscript_id"`
	Label        string `json:"label,omitempty"`
	EventClass   string `json:"event_class,omitempty"`
}

type Response struct {
	ID          string   `json:"id"`
	Query       string   `json:"query"`
	Manuscripts []Source `json:"manuscripts"`
	GraphUsed   bool     `json:"graph_used"`
	LatencyMS   int      `json:"latency_ms"`
}

// NewEngine builds an engine over the relational store. graph may be nil when the
// knowledge graph is disabled.
func NewEngine(db Store, graph Graph) *Engine {
	return &Engine{db: db, graph: graph}
}

func normalize(value string) string {
	return hebrew.NFC(hebrew.StripNikud(strings.TrimSpace(value)))
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultLimit*10 {
		return DefaultLimit
	}
	return limit
}

func (e *Engine) Manuscript(ctx context.Context, id string) (*models.Manuscript, error) {
	m, err := e.db.GetManuscript(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get manuscript %s: %w", id, err)
	}
	return m, nil
}

// ManuscriptsAtPlace fuses the relational entity index with graph events at the place.
// Graph failures are logged and the relational results returned alone.
func (e *Engine) ManuscriptsAtPlace(ctx context.Context, place string, limit int) (*Response, error) {
	startTime := time.Now()
	queryID := uuid.New().String()
	place = normalize(place)
	if place == "" {
		return nil, ErrEmptyQuery
	}
	limit = clampLimit(limit)

	logger.Info("Processing place query",
		zap.String("query_id", queryID),
		zap.String("place", place),
	)

	rows, err := e.db.ListByEntity(ctx, domain.EntityLocation, place, "", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list manuscripts at place: %w", err)
	}
	fused := fromStore(rows)

	resp := &Response{ID: queryID, Query: place}
	if e.graph != nil {
		graphRows, err := e.graph.ManuscriptsAtPlace(ctx, place, limit)
		if err != nil {
			logger.Warn("KG retrieval failed", zap.Error(err))
		} else {
			resp.GraphUsed = true
			fused = fuse(fused, graphRows)
		}
	}
	if len(fused) > limit {
		fused = fused[:limit]
	}

	resp.Manuscripts = fused
	resp.LatencyMS = int(time.Since(startTime).Milliseconds())
	logger.Info("Place query processed",
		zap.String("query_id", queryID),
		zap.Int("results", len(fused)),
		zap.Bool("graph_used", resp.GraphUsed),
		zap.Int("latency_ms", resp.LatencyMS),
	)
	return resp, nil
}

// ManuscriptsByPerson lists manuscripts naming the person, optionally restricted to one
// role label such as "scribe".
func (e *Engine) ManuscriptsByPerson(ctx context.Context, name, label string, limit int) (*Response, error) {
	startTime := time.Now()
	name = normalize(name)
	if name == "" {
		return nil, ErrEmptyQuery
	}

	rows, err := e.db.ListByEntity(ctx, domain.EntityPerson, name, strings.TrimSpace(label), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list manuscripts by person: %w", err)
	}

	return &Response{
		ID:          uuid.New().String(),
		Query:       name,
		Manuscripts: fromStore(rows),
		LatencyMS:   int(time.Since(startTime).Milliseconds()),
	}, nil
}

func (e *Engine) RecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	runs, err := e.db.RecentRuns(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get recent runs: %w", err)
	}
	return runs, nil
}

func fromStore(rows []models.ManuscriptSummary) []Source {
	out := make([]Source, 0, len(rows))
	for _, r := range rows {
		out = append(out, Source{Type: "sqlite", ManuscriptID: r.ID, Label: r.Label})
	}
	return out
}

// fuse appends graph results for manuscripts the store did not return. A store row
// without a label takes the graph's event type.
func fuse(rows []Source, graphRows []neo4j.PlaceManuscript) []Source {
	seen := make(map[string]int, len(rows))
	for i, r := range rows {
		seen[r.ManuscriptID] = i
	}
	for _, g := range graphRows {
		if i, ok := seen[g.ManuscriptID]; ok {
			if rows[i].Label == "" {
				rows[i].Label = g.EventType
			}
			rows[i].EventClass = g.EventClass
			continue
		}
		seen[g.ManuscriptID] = len(rows)
		rows = append(rows, Source{
			Type:         "kg",
			ManuscriptID: g.ManuscriptID,
			Label:        g.EventType,
			EventClass:   g.EventClass,
		})
	}
	return rows
}
