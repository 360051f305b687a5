package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/models"
)

const (
	Unclassified    = "unclassified"
	ExtractedPerson = "extracted_person"

	DefaultPrefix       = "manuscript_extraction"
	DefaultMinFrequency = 2
	frequencyTopN       = 100
)

type Writer struct {
	dir          string
	prefix       string
	minFrequency int
	logger       *zap.Logger
}

func NewWriter(dir, prefix string, logger *zap.Logger) *Writer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, prefix: prefix, minFrequency: DefaultMinFrequency, logger: logger}
}

// WriteAll writes the entity, event, summary and frequency tables and returns the saved
// paths keyed by table name. The detailed entities table is written only when
// classifications are present.
func (w *Writer) WriteAll(result models.ExtractionResult, classified map[string][]models.ClassifiedEntity) (map[string]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	saved := make(map[string]string)
	write := func(key, name string, header []string, rows [][]string) error {
		path := filepath.Join(w.dir, name)
		if err := writeCSV(path, header, rows); err != nil {
			return err
		}
		saved[key] = path
		w.logger.Info("Table saved", zap.String("table", key), zap.String("path", path), zap.Int("rows", len(rows)))
		return nil
	}

	header, rows := EntityRows(result.Manuscripts, classified)
	if err := write("entities", w.prefix+"_entities.csv", header, rows); err != nil {
		return nil, err
	}

	if len(classified) > 0 {
		header, rows = DetailedEntityRows(result.Manuscripts, classified)
		if err := write("entities_detailed", w.prefix+"_entities_detailed.csv", header, rows); err != nil {
			return nil, err
		}
	}

	header, rows = EventRows(result.Manuscripts)
	if err := write("events", w.prefix+"_events.csv", header, rows); err != nil {
		return nil, err
	}

	header, rows = SummaryRows(result)
	if err := write("summary", w.prefix+"_summary.csv", header, rows); err != nil {
		return nil, err
	}

	freqHeader := []string{"value", "count"}
	for _, t := range []models.EntityType{models.EntityDate, models.EntityLocation} {
		counts := Frequencies(result.Manuscripts, t, w.minFrequency)
		if len(counts) > frequencyTopN {
			counts = counts[:frequencyTopN]
		}
		rows := make([][]string, len(counts))
		for i, c := range counts {
			rows[i] = []string{c.Value, strconv.Itoa(c.Count)}
		}
		key := string(t) + "s"
		if err := write(key, key+"_frequency.csv", freqHeader, rows); err != nil {
			return nil, err
		}
	}

	return saved, nil
}

type labelKey struct {
	t     models.EntityType
	value string
}

func labelIndex(classified []models.ClassifiedEntity) map[labelKey]string {
	idx := make(map[labelKey]string, len(classified))
	for _, c := range classified {
		idx[labelKey{c.Type(), c.Value()}] = c.Label
	}
	return idx
}

func personLabel(labels map[labelKey]string, p models.Person) string {
	if l, ok := labels[labelKey{models.EntityPerson, p.Name}]; ok {
		return l
	}
	if p.Role != "" {
		return p.Role
	}
	return ExtractedPerson
}

func entry(value, label, source string) string {
	return value + " | " + label + " | " + source
}

type entityColumns struct {
	dates, locations, persons []string
}

func columns(m models.Manuscript, labels map[labelKey]string, fullNames bool) entityColumns {
	var c entityColumns
	for _, e := range m.Dates {
		c.dates = append(c.dates, entry(e.Value(), labelOr(labels, models.EntityDate, e.Value()), SourceField(e.Value(), m.SourceMetadata, models.EntityDate)))
	}
	for _, e := range m.Locations {
		c.locations = append(c.locations, entry(e.Value(), labelOr(labels, models.EntityLocation, e.Value()), SourceField(e.Value(), m.SourceMetadata, models.EntityLocation)))
	}
	for _, p := range m.Persons {
		name := p.Name
		if fullNames {
			name = p.FullName()
		}
		c.persons = append(c.persons, entry(name, personLabel(labels, p), SourceField(p.Name, m.SourceMetadata, models.EntityPerson)))
	}
	return c
}

func labelOr(labels map[labelKey]string, t models.EntityType, value string) string {
	if l, ok := labels[labelKey{t, value}]; ok {
		return l
	}
	return Unclassified
}

// EntityRows is the manuscript-level table: one row per manuscript with its entities in
// "value | label | source" form, structured facts, event counts and every catalog field.
func EntityRows(manuscripts []models.Manuscript, classified map[string][]models.ClassifiedEntity) ([]string, [][]string) {
	metaCols := metadataColumns(manuscripts)
	header := append([]string{
		"manuscript_id", "notes_text", "dates", "locations", "persons",
		"has_colophon", "scribe_name", "work_title", "num_events", "production_events",
	}, metaCols...)

	rows := make([][]string, 0, len(manuscripts))
	for _, m := range manuscripts {
		c := columns(m, labelIndex(classified[m.ID]), true)
		scribe := ""
		if p, ok := m.PrimaryScribe(); ok {
			scribe = p.FullName()
		}
		title := ""
		if m.Work != nil {
			title = m.Work.Title
		}
		row := []string{
			m.ID, m.NotesText,
			strings.Join(c.dates, ", "), strings.Join(c.locations, ", "), strings.Join(c.persons, ", "),
			strconv.FormatBool(m.HasColophon()), scribe, title,
			strconv.Itoa(len(m.Events)), strconv.Itoa(len(m.ProductionEvents())),
		}
		for _, col := range metaCols {
			row = append(row, m.SourceMetadata[col])
		}
		rows = append(rows, row)
	}
	return header, rows
}

// DetailedEntityRows lists only manuscripts with at least one entity.
func DetailedEntityRows(manuscripts []models.Manuscript, classified map[string][]models.ClassifiedEntity) ([]string, [][]string) {
	header := []string{"manuscript_id", "dates", "locations", "persons"}
	var rows [][]string
	for _, m := range manuscripts {
		c := columns(m, labelIndex(classified[m.ID]), false)
		if len(c.dates)+len(c.locations)+len(c.persons) == 0 {
			continue
		}
		rows = append(rows, []string{
			m.ID, strings.Join(c.dates, ", "), strings.Join(c.locations, ", "), strings.Join(c.persons, ", "),
		})
	}
	return header, rows
}

func EventRows(manuscripts []models.Manuscript) ([]string, [][]string) {
	header := []string{
		"manuscript_id", "event_type", "event_class", "date", "place", "actor",
		"has_temporal_info", "has_spatial_info",
	}
	var rows [][]string
	for _, m := range manuscripts {
		for _, e := range m.Events {
			place, actor := "", ""
			if e.Place != nil {
				place = e.Place.Name
			}
			if e.Actor != nil {
				actor = e.Actor.FullName()
			}
			rows = append(rows, []string{
				m.ID, e.EventType, string(e.EventClass), e.Date, place, actor,
				strconv.FormatBool(e.HasTemporalInfo()), strconv.FormatBool(e.HasSpatialInfo()),
			})
		}
	}
	return header, rows
}

func SummaryRows(result models.ExtractionResult) ([]string, [][]string) {
	summary := result.Summary()
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	header := append(keys, "extracted_at")
	row := make([]string, 0, len(header))
	for _, k := range keys {
		row = append(row, strconv.Itoa(summary[k]))
	}
	row = append(row, result.ExtractedAt.UTC().Format(time.RFC3339))
	return header, [][]string{row}
}

type ValueCount struct {
	Value string
	Count int
}

// Frequencies counts entity values of type t across manuscripts, keeping values seen at
// least minCount times, most frequent first.
func Frequencies(manuscripts []models.Manuscript, t models.EntityType, minCount int) []ValueCount {
	counts := make(map[string]int)
	for _, m := range manuscripts {
		var entities []models.ExtractedEntity
		switch t {
		case models.EntityDate:
			entities = m.Dates
		case models.EntityLocation:
			entities = m.Locations
		}
		for _, e := range entities {
			counts[e.Value()]++
		}
	}

	out := make([]ValueCount, 0, len(counts))
	for v, n := range counts {
		if n >= minCount {
			out = append(out, ValueCount{Value: v, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func metadataColumns(manuscripts []models.Manuscript) []string {
	seen := make(map[string]struct{})
	for _, m := range manuscripts {
		for k := range m.SourceMetadata {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func writeCSV(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	// UTF-8 BOM so spreadsheet tools detect the Hebrew text
	buf.WriteString("\uFEFF")

	writer := csv.NewWriter(&buf)
	if err := writer.Write(sanitizeRow(header)); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write(sanitizeRow(r)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func sanitizeRow(row []string) []string {
	out := make([]string, len(row))
	for i, f := range row {
		out[i] = sanitizeCSVField(f)
	}
	return out
}

// sanitizeCSVField neutralises spreadsheet formula injection.
func sanitizeCSVField(field string) string {
	if field == "" {
		return field
	}
	if strings.HasPrefix(field, "=") || strings.HasPrefix(field, "+") ||
		strings.HasPrefix(field, "-") || strings.HasPrefix(field, "@") {
		return "'" + field
	}
	return field
}
