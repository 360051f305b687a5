package gazetteer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Set is a flat list of known place names used by the token matcher.
type Set map[string]struct{}

func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

func (s Set) Add(name string) {
	if name = strings.TrimSpace(name); name != "" {
		s[name] = struct{}{}
	}
}

func (s Set) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

var ErrMissingLocationColumn = errors.New("gazetteer csv has no location column")

// LoadSet reads a CSV with a "location" header column.
func LoadSet(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gazetteer: %w", err)
	}
	defer f.Close()
	return ReadSet(f)
}

func ReadSet(r io.Reader) (Set, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read gazetteer header: %w", err)
	}
	col := -1
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == "location" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrMissingLocationColumn
	}

	set := make(Set)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read gazetteer row: %w", err)
		}
		if col < len(rec) {
			set.Add(rec[col])
		}
	}
	return set, nil
}
