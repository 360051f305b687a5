package gazetteer

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/hebrew"
)

type BuildOptions struct {
	MinOccurrences int
	MinLength      int
}

var DefaultBuildOptions = BuildOptions{MinOccurrences: 5, MinLength: 3}

type NameCount struct {
	Name  string
	Count int
}

// Builder derives a flat gazetteer from NLI authority MARCXML dumps, counting how
// many files mention each geographic subdivision ($z).
type Builder struct {
	opts   BuildOptions
	logger *zap.Logger
}

func NewBuilder(opts BuildOptions, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{opts: opts, logger: logger}
}

func (b *Builder) BuildFromDirectory(ctx context.Context, dir string) ([]NameCount, error) {
	var files []string
	for _, pattern := range []string{"*.xml", "*.xml.gz"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list xml files: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	b.logger.Info("Building gazetteer", zap.String("dir", dir), zap.Int("files", len(files)))

	counts := map[string]int{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		names, err := b.namesFromFile(path)
		if err != nil {
			// One corrupt dump should not sink the whole build.
			b.logger.Warn("Failed to process authority file", zap.String("path", path), zap.Error(err))
			continue
		}
		for name := range names {
			counts[name]++
		}
		b.logger.Debug("Processed authority file", zap.String("path", path), zap.Int("locations", len(names)))
	}

	out := b.filter(counts)
	b.logger.Info("Gazetteer built", zap.Int("unique", len(counts)), zap.Int("kept", len(out)))
	return out, nil
}

func (b *Builder) namesFromFile(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return ExtractSubfieldZ(r)
}

// ExtractSubfieldZ collects distinct <subfield code="z"> values longer than three letters.
func ExtractSubfieldZ(r io.Reader) (map[string]struct{}, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse xml: %w", err)
	}
	names := map[string]struct{}{}
	doc.Find(`subfield[code="z"]`).Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		if hebrew.RuneLen(name) > 3 {
			names[name] = struct{}{}
		}
	})
	return names, nil
}

func (b *Builder) filter(counts map[string]int) []NameCount {
	var out []NameCount
	for name, c := range counts {
		if c > b.opts.MinOccurrences && hebrew.RuneLen(name) > b.opts.MinLength {
			out = append(out, NameCount{Name: name, Count: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// WriteCSV writes the location,count table read back by LoadSet.
func WriteCSV(w io.Writer, names []NameCount) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"location", "count"}); err != nil {
		return err
	}
	for _, n := range names {
		if err := cw.Write([]string{n.Name, strconv.Itoa(n.Count)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
