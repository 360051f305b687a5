package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	domain "github.com/hebrew-ms/backend/internal/models"
	"github.com/hebrew-ms/backend/internal/storage/models"
	"github.com/hebrew-ms/backend/pkg/logger"
)

var ErrNotFound = errors.New("manuscript not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." && !strings.HasPrefix(dbPath, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// one writer; the pragma above is per connection
	db.SetMaxOpenConns(1)

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS manuscripts (
		id TEXT PRIMARY KEY,
		notes_text TEXT NOT NULL,
		has_colophon INTEGER NOT NULL DEFAULT 0,
		colophon_text TEXT,
		scribe_name TEXT,
		work_title TEXT,
		source_metadata TEXT,
		run_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_manuscripts_run ON manuscripts(run_id);
	CREATE INDEX IF NOT EXISTS idx_manuscripts_updated ON manuscripts(updated_at);

	CREATE TABLE IF NOT EXISTS entities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		manuscript_id TEXT NOT NULL,
		type TEXT NOT NULL,
		value TEXT NOT NULL,
		confidence REAL NOT NULL,
		span_start INTEGER,
		span_end INTEGER,
		metadata TEXT,
		FOREIGN KEY (manuscript_id) REFERENCES manuscripts(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_entities_manuscript ON entities(manuscript_id);
	CREATE INDEX IF NOT EXISTS idx_entities_type_value ON entities(type, value);

	CREATE TABLE IF NOT EXISTS classifications (
		entity_id INTEGER PRIMARY KEY,
		label TEXT NOT NULL,
		source TEXT NOT NULL,
		event_class TEXT,
		property TEXT,
		mapping TEXT,
		FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_classifications_label ON classifications(label);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		manuscript_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_class TEXT NOT NULL,
		date TEXT,
		place_name TEXT,
		place_uri TEXT,
		lat REAL,
		lon REAL,
		actor_name TEXT,
		actor_role TEXT,
		properties TEXT,
		FOREIGN KEY (manuscript_id) REFERENCES manuscripts(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_events_manuscript ON events(manuscript_id);
	CREATE INDEX IF NOT EXISTS idx_events_place ON events(place_name);

	CREATE TABLE IF NOT EXISTS extraction_runs (
		id TEXT PRIMARY KEY,
		manuscripts INTEGER NOT NULL,
		classified INTEGER NOT NULL,
		events INTEGER NOT NULL,
		pattern_labels INTEGER NOT NULL,
		ai_labels INTEGER NOT NULL,
		unclassified INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON extraction_runs(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

type entityKey struct {
	typ   domain.EntityType
	value string
}

// SaveManuscript replaces the stored manuscript, its entities and its events in one
// transaction. Classifications attach to the first entity with the same type and value.
func (c *Client) SaveManuscript(ctx context.Context, m domain.Manuscript, classified []domain.ClassifiedEntity, runID string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	var colophonText, scribe, title string
	if m.Colophon != nil {
		colophonText, scribe = m.Colophon.Text, m.Colophon.ScribeName
	}
	if m.Work != nil {
		title = m.Work.Title
	}
	metaJSON, err := json.Marshal(m.SourceMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal source metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO manuscripts (id, notes_text, has_colophon, colophon_text, scribe_name, work_title, source_metadata, run_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			notes_text = excluded.notes_text,
			has_colophon = excluded.has_colophon,
			colophon_text = excluded.colophon_text,
			scribe_name = excluded.scribe_name,
			work_title = excluded.work_title,
			source_metadata = excluded.source_metadata,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`, m.ID, m.NotesText, boolInt(m.HasColophon()), colophonText, scribe, title, string(metaJSON), runID, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert manuscript: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM classifications WHERE entity_id IN (SELECT id FROM entities WHERE manuscript_id = ?)`, m.ID)
	if err != nil {
		return fmt.Errorf("failed to clear classifications: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE manuscript_id = ?`, m.ID); err != nil {
		return fmt.Errorf("failed to clear entities: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE manuscript_id = ?`, m.ID); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}

	ids := make(map[entityKey]int64)
	insert := func(e domain.ExtractedEntity) error {
		var start, end sql.NullInt64
		if span, ok := e.Span(); ok {
			start = sql.NullInt64{Int64: int64(span.Start), Valid: true}
			end = sql.NullInt64{Int64: int64(span.End), Valid: true}
		}
		meta, err := json.Marshal(e.Metadata())
		if err != nil {
			return fmt.Errorf("failed to marshal entity metadata: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO entities (manuscript_id, type, value, confidence, span_start, span_end, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, m.ID, string(e.Type()), e.Value(), e.Confidence(), start, end, string(meta))
		if err != nil {
			return fmt.Errorf("failed to insert entity: %w", err)
		}
		k := entityKey{e.Type(), e.Value()}
		if _, seen := ids[k]; !seen {
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read entity id: %w", err)
			}
			ids[k] = id
		}
		return nil
	}

	for _, e := range m.Dates {
		if err := insert(e); err != nil {
			return err
		}
	}
	for _, e := range m.Locations {
		if err := insert(e); err != nil {
			return err
		}
	}
	for _, p := range m.Persons {
		e, err := domain.NewExtractedEntity(p.Name, domain.EntityPerson, 1.0, "", domain.WithMetadata(map[string]string{
			"patronymic": p.Patronymic,
			"role":       p.Role,
		}))
		if err != nil {
			continue
		}
		if err := insert(e); err != nil {
			return err
		}
	}

	for _, ce := range classified {
		id, ok := ids[entityKey{ce.Type(), ce.Value()}]
		if !ok {
			continue
		}
		mapping, err := json.Marshal(ce.Mapping)
		if err != nil {
			return fmt.Errorf("failed to marshal mapping: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO classifications (entity_id, label, source, event_class, property, mapping)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(entity_id) DO NOTHING
		`, id, ce.Label, string(ce.Source), ce.Mapping.EventClass, ce.Mapping.Property, string(mapping))
		if err != nil {
			return fmt.Errorf("failed to insert classification: %w", err)
		}
	}

	for _, ev := range m.Events {
		if err := insertEvent(ctx, tx, m.ID, ev); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit manuscript: %w", err)
	}

	logger.Debug("Manuscript stored",
		zap.String("manuscript_id", m.ID),
		zap.Int("classified", len(classified)),
		zap.Int("events", len(m.Events)),
	)
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, manuscriptID string, ev domain.Event) error {
	var placeName, placeURI, actorName, actorRole string
	var lat, lon sql.NullFloat64
	if ev.Place != nil {
		placeName = ev.Place.Name
		placeURI = ev.Place.WikidataURI
		if placeURI == "" {
			placeURI = ev.Place.GeoNamesURI
		}
		if la, lo, ok := ev.Place.Coordinates(); ok {
			lat = sql.NullFloat64{Float64: la, Valid: true}
			lon = sql.NullFloat64{Float64: lo, Valid: true}
		}
	}
	if ev.Actor != nil {
		actorName, actorRole = ev.Actor.FullName(), ev.Actor.Role
	}
	props, err := json.Marshal(ev.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal event properties: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, manuscript_id, event_type, event_class, date, place_name, place_uri, lat, lon, actor_name, actor_role, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), manuscriptID, ev.EventType, string(ev.EventClass), ev.Date,
		placeName, placeURI, lat, lon, actorName, actorRole, string(props))
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (c *Client) GetManuscript(ctx context.Context, id string) (*models.Manuscript, error) {
	query := `SELECT id, notes_text, has_colophon, colophon_text, scribe_name, work_title, source_metadata, run_id, created_at, updated_at FROM manuscripts WHERE id = ?`

	var m models.Manuscript
	var hasColophon int
	var colophon, scribe, title, meta, runID sql.NullString
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.NotesText,
		&hasColophon,
		&colophon,
		&scribe,
		&title,
		&meta,
		&runID,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manuscript: %w", err)
	}

	m.HasColophon = hasColophon == 1
	m.ColophonText, m.ScribeName, m.WorkTitle, m.RunID = colophon.String, scribe.String, title.String, runID.String
	m.CreatedAt = time.Unix(createdAt, 0)
	m.UpdatedAt = time.Unix(updatedAt, 0)
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &m.SourceMetadata); err != nil {
			return nil, fmt.Errorf("failed to decode source metadata: %w", err)
		}
	}

	if m.Entities, err = c.entities(ctx, id); err != nil {
		return nil, err
	}
	if m.Events, err = c.events(ctx, id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) entities(ctx context.Context, manuscriptID string) ([]models.Entity, error) {
	query := `
		SELECT e.id, e.manuscript_id, e.type, e.value, e.confidence, e.span_start, e.span_end, e.metadata,
			c.label, c.source, c.event_class, c.property
		FROM entities e
		LEFT JOIN classifications c ON c.entity_id = e.id
		WHERE e.manuscript_id = ?
		ORDER BY e.id
	`

	rows, err := c.db.QueryContext(ctx, query, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entities: %w", err)
	}
	defer rows.Close()

	var out []models.Entity
	for rows.Next() {
		var e models.Entity
		var start, end sql.NullInt64
		var meta, label, source, eventClass, property sql.NullString

		err := rows.Scan(&e.ID, &e.ManuscriptID, &e.Type, &e.Value, &e.Confidence, &start, &end, &meta,
			&label, &source, &eventClass, &property)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if start.Valid && end.Valid {
			s, en := int(start.Int64), int(end.Int64)
			e.SpanStart, e.SpanEnd = &s, &en
		}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			json.Unmarshal([]byte(meta.String), &e.Metadata)
		}
		e.Label, e.Source, e.EventClass, e.Property = label.String, source.String, eventClass.String, property.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *Client) events(ctx context.Context, manuscriptID string) ([]models.Event, error) {
	query := `
		SELECT id, manuscript_id, event_type, event_class, date, place_name, place_uri, lat, lon, actor_name, actor_role, properties
		FROM events WHERE manuscript_id = ? ORDER BY rowid
	`

	rows, err := c.db.QueryContext(ctx, query, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var ev models.Event
		var date, place, placeURI, actor, role, props sql.NullString
		var lat, lon sql.NullFloat64

		err := rows.Scan(&ev.ID, &ev.ManuscriptID, &ev.EventType, &ev.EventClass, &date, &place, &placeURI,
			&lat, &lon, &actor, &role, &props)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		ev.Date, ev.PlaceName, ev.PlaceURI = date.String, place.String, placeURI.String
		ev.ActorName, ev.ActorRole = actor.String, role.String
		if lat.Valid && lon.Valid {
			la, lo := lat.Float64, lon.Float64
			ev.Lat, ev.Lon = &la, &lo
		}
		if props.Valid && props.String != "" {
			json.Unmarshal([]byte(props.String), &ev.Properties)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ListByEntity returns manuscripts holding an entity of the given type and value, newest
// first. An empty label matches any classification, including none.
func (c *Client) ListByEntity(ctx context.Context, entityType domain.EntityType, value, label string, limit int) ([]models.ManuscriptSummary, error) {
	query := `
		SELECT DISTINCT m.id, COALESCE(c.label, ''), e.value, m.updated_at
		FROM entities e
		JOIN manuscripts m ON m.id = e.manuscript_id
		LEFT JOIN classifications c ON c.entity_id = e.id
		WHERE e.type = ? AND e.value = ? AND (? = '' OR c.label = ?)
		ORDER BY m.updated_at DESC, m.id
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, string(entityType), value, label, label, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list manuscripts: %w", err)
	}
	defer rows.Close()

	var out []models.ManuscriptSummary
	for rows.Next() {
		var s models.ManuscriptSummary
		var updatedAt int64
		if err := rows.Scan(&s.ID, &s.Label, &s.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// LabelCounts aggregates stored classifications by entity type, label and source.
func (c *Client) LabelCounts(ctx context.Context) ([]models.LabelCount, error) {
	query := `
		SELECT e.type, c.label, c.source, COUNT(*)
		FROM classifications c
		JOIN entities e ON e.id = c.entity_id
		GROUP BY e.type, c.label, c.source
		ORDER BY COUNT(*) DESC, e.type, c.label
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count labels: %w", err)
	}
	defer rows.Close()

	var out []models.LabelCount
	for rows.Next() {
		var lc models.LabelCount
		if err := rows.Scan(&lc.Type, &lc.Label, &lc.Source, &lc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

func (c *Client) RecordRun(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO extraction_runs (id, manuscripts, classified, events, pattern_labels, ai_labels, unclassified, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		run.ID,
		run.Manuscripts,
		run.Classified,
		run.Events,
		run.PatternLabels,
		run.AILabels,
		run.Unclassified,
		run.DurationMS,
		run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	logger.Info("Extraction run recorded",
		zap.String("run_id", run.ID),
		zap.Int("manuscripts", run.Manuscripts),
		zap.Int("classified", run.Classified),
	)
	return nil
}

func (c *Client) RecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	query := `
		SELECT id, manuscripts, classified, events, pattern_labels, ai_labels, unclassified, duration_ms, created_at
		FROM extraction_runs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var r models.Run
		var createdAt int64
		err := rows.Scan(&r.ID, &r.Manuscripts, &r.Classified, &r.Events, &r.PatternLabels, &r.AILabels,
			&r.Unclassified, &r.DurationMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
