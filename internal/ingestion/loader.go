package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const noteSeparator = " | "

var (
	ErrMissingIDColumn = errors.New("id column not found in input")
	ErrNoNoteColumns   = errors.New("none of the note columns found in input")
	ErrEmptyID         = errors.New("row has an empty id")

	whitespace = regexp.MustCompile(`\s+`)
	markup     = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
)

// Record is one catalog row: the combined note text plus every non-blank field.
type Record struct {
	ID     string
	Notes  string
	Fields map[string]string
}

type Options struct {
	IDColumn    string
	NoteColumns []string
	Limit       int
}

// DefaultNoteColumns covers the free-text notes plus the structured fields where
// places, persons and dates also appear.
var DefaultNoteColumns = []string{
	"957$a", "500$a", "561$a", "518$a", "561$3", "544$a", "541$a",
	"245$a", "245$c", "260$a", "264$a", "651$a", "751$a", "700$e", "710$e",
}

var DefaultOptions = Options{
	IDColumn:    "001",
	NoteColumns: DefaultNoteColumns,
}

// Result carries the loaded records. RowErrors aggregates rows that could not be read;
// those rows are dropped while the rest load normally.
type Result struct {
	Records     []Record
	NoteColumns []string
	Skipped     int
	RowErrors   *multierror.Error
}

type Loader struct {
	opts   Options
	logger *zap.Logger
}

func NewLoader(opts Options, logger *zap.Logger) *Loader {
	if opts.IDColumn == "" {
		opts.IDColumn = DefaultOptions.IDColumn
	}
	if len(opts.NoteColumns) == 0 {
		opts.NoteColumns = DefaultOptions.NoteColumns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{opts: opts, logger: logger}
}

func (l *Loader) LoadFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	res, err := l.Load(ctx, f)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Input loaded",
		zap.String("path", path),
		zap.Int("records", len(res.Records)),
		zap.Int("skipped", res.Skipped),
		zap.Strings("note_columns", res.NoteColumns),
	)
	if res.RowErrors != nil {
		l.logger.Warn("Input rows rejected",
			zap.Int("count", len(res.RowErrors.Errors)),
			zap.Error(res.RowErrors),
		)
	}
	return res, nil
}

func (l *Loader) Load(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read input header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	idCol := indexOf(header, l.opts.IDColumn)
	if idCol < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingIDColumn, l.opts.IDColumn)
	}

	var noteCols []string
	for _, c := range l.opts.NoteColumns {
		if indexOf(header, c) >= 0 {
			noteCols = append(noteCols, c)
		}
	}
	if len(noteCols) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoNoteColumns, l.opts.NoteColumns)
	}

	res := &Result{NoteColumns: noteCols}
	row := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if l.opts.Limit > 0 && len(res.Records) >= l.opts.Limit {
			break
		}

		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			res.RowErrors = multierror.Append(res.RowErrors, fmt.Errorf("row %d: %w", row, err))
			continue
		}

		fields := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) && h != "" {
				if v := strings.TrimSpace(rec[i]); v != "" {
					fields[h] = v
				}
			}
		}

		id := fields[l.opts.IDColumn]
		if id == "" {
			res.RowErrors = multierror.Append(res.RowErrors, fmt.Errorf("row %d: %w", row, ErrEmptyID))
			continue
		}

		notes := CombineNotes(fields, noteCols)
		if notes == "" {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, Record{ID: id, Notes: notes, Fields: fields})
	}
	return res, nil
}

// CombineNotes joins the non-blank note fields, in column order, with " | ".
func CombineNotes(fields map[string]string, columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		if v := CleanText(fields[c]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, noteSeparator)
}

// CleanText strips HTML markup from catalog fields exported with formatting.
// Plain text is only trimmed.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if !markup.MatchString(s) {
		return s
	}
	return cleanHTML(s)
}

func cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
	doc.Find("br, p, div, li").Each(func(i int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})

	text := doc.Find("body").Text()
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
