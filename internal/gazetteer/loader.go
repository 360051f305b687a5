package gazetteer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var ErrMasterMissing = errors.New("kima places file not found")

type Files struct {
	Dir      string
	Master   string
	Variants string
	Forms    string
}

func DefaultFiles(dir string) Files {
	return Files{
		Dir:      dir,
		Master:   "20251015 Kima places.tsv",
		Variants: "Kima-Hebrew-Variants-20250929.tsv",
		Forms:    "Maagarim-Zurot-&-Arachim.tsv",
	}
}

// Load reads the master places file (required) plus the variants and textual-forms
// tables (optional, skipped with a warning).
func Load(files Files, cacheSize int, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	masterPath := filepath.Join(files.Dir, files.Master)
	places, err := readPlaces(masterPath)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]string, len(places))
	for _, p := range places {
		byID[p.ID] = p.Hebrew
	}

	variants := map[string]string{}
	variantsPath := filepath.Join(files.Dir, files.Variants)
	err = eachRow(variantsPath, func(row map[string]string) {
		if canonical, ok := byID[row["PlaceId"]]; ok && row["variant"] != "" {
			variants[row["variant"]] = canonical
		}
	})
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load variants: %w", err)
		}
		logger.Warn("Kima variants file not found", zap.String("path", variantsPath))
	}

	forms := map[string]string{}
	formsPath := filepath.Join(files.Dir, files.Forms)
	err = eachRow(formsPath, func(row map[string]string) {
		if row["ZURA"] != "" {
			forms[row["ZURA"]] = row["word"]
		}
	})
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load textual forms: %w", err)
		}
		logger.Warn("Maagarim forms file not found", zap.String("path", formsPath))
	}

	ix, err := NewIndex(places, forms, variants, cacheSize, logger)
	if err != nil {
		return nil, err
	}

	stats := ix.Statistics()
	logger.Info("Gazetteer loaded",
		zap.Int("places", stats.TotalPlaces),
		zap.Int("variants", stats.TotalVariants),
		zap.Int("textual_forms", stats.TotalTextualForms),
	)
	return ix, nil
}

func readPlaces(path string) ([]Place, error) {
	var places []Place
	err := eachRow(path, func(row map[string]string) {
		if row["primary_heb_full"] == "" {
			return
		}
		places = append(places, Place{
			ID:          row["Id"],
			Hebrew:      row["primary_heb_full"],
			Romanized:   row["primary_rom_full"],
			VIAF:        row["VIAF_ID"],
			GeoNames:    row["Geoname_ID"],
			Wikidata:    row["WD"],
			Lat:         row["lat"],
			Lon:         row["lon"],
			Description: row["Desc"],
			MazalID:     row["MAZAL_ID"],
		})
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMasterMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load places: %w", err)
	}
	return places, nil
}

// eachRow streams a tab-separated file with a header row as column maps.
func eachRow(path string, fn func(map[string]string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return readTSV(f, fn)
}

func readTSV(r io.Reader, fn func(map[string]string)) error {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		fn(row)
	}
}
