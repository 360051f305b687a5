package gazetteer

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterTSV = "Id\tprimary_heb_full\tprimary_rom_full\tVIAF_ID\tGeoname_ID\tWD\tlat\tlon\tDesc\tMAZAL_ID\n" +
	"1\tירושלים\tJerusalem\t123\t281184\tQ1218\t31.77\t35.21\tcity\t987\n" +
	"2\tקנדיה\tCandia\t\t\tQ160544\t35.33\t25.13\t\t\n" +
	"3\tונציה (איטליה)\tVenice\t\t3164603\t\t\t\t\t\n"

const variantsTSV = "variant\tPlaceId\n" +
	"ירושלם\t1\n" +
	"ויניציאה\t3\n" +
	"unknown\t99\n"

const formsTSV = "word\tZURA\n" +
	"קנדיה\tקנדיאה\n"

func writeFixture(t *testing.T, withOptional bool) Files {
	t.Helper()
	dir := t.TempDir()
	files := DefaultFiles(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, files.Master), []byte(masterTSV), 0o644))
	if withOptional {
		require.NoError(t, os.WriteFile(filepath.Join(dir, files.Variants), []byte(variantsTSV), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, files.Forms), []byte(formsTSV), 0o644))
	}
	return files
}

func TestLoadRequiresMaster(t *testing.T) {
	_, err := Load(DefaultFiles(t.TempDir()), 0, nil)
	assert.ErrorIs(t, err, ErrMasterMissing)
}

func TestLoadWithoutOptionalTables(t *testing.T) {
	ix, err := Load(writeFixture(t, false), 0, nil)
	require.NoError(t, err)

	stats := ix.Statistics()
	assert.Equal(t, 3, stats.TotalPlaces)
	assert.Zero(t, stats.TotalVariants)
	assert.Zero(t, stats.TotalTextualForms)

	_, ok := ix.Lookup("ירושלם")
	assert.False(t, ok)
}

func TestLookupCascade(t *testing.T) {
	ix, err := Load(writeFixture(t, true), 0, nil)
	require.NoError(t, err)

	tests := []struct {
		in        string
		canonical string
	}{
		{"ירושלים", "ירושלים"},
		{"ירושלם", "ירושלים"},
		{"קנדיאה", "קנדיה"},
		{"בקנדיה", "קנדיה"},
		{"ובירושלים", "ירושלים"},
		{"ויניציאה", "ונציה (איטליה)"},
	}
	for _, tt := range tests {
		p, ok := ix.Lookup(tt.in)
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.canonical, p.Hebrew, tt.in)
	}

	p, _ := ix.Lookup("ירושלים")
	assert.Equal(t, "Q1218", p.Wikidata)
	lat, lon, ok := p.Coordinates()
	assert.True(t, ok)
	assert.InDelta(t, 31.77, lat, 1e-9)
	assert.InDelta(t, 35.21, lon, 1e-9)
}

func TestLookupIsIdempotentAndTerminates(t *testing.T) {
	ix, err := NewIndex([]Place{{ID: "1", Hebrew: "צפת"}}, nil, nil, 2, nil)
	require.NoError(t, err)

	for _, in := range []string{"בבבבבבבבבב", "ששששש", "", "x", "לצפת", "צפת"} {
		p1, ok1 := ix.Lookup(in)
		p2, ok2 := ix.Lookup(in)
		assert.Equal(t, ok1, ok2, in)
		assert.Equal(t, p1, p2, in)
	}

	p, ok := ix.Lookup("לצפת")
	assert.True(t, ok)
	assert.Equal(t, "צפת", p.Hebrew)

	hits, misses := ix.MemoStats()
	assert.Positive(t, hits)
	assert.Positive(t, misses)
}

func TestStatisticsAndAllNames(t *testing.T) {
	ix, err := Load(writeFixture(t, true), 0, nil)
	require.NoError(t, err)

	assert.Equal(t, Statistics{
		TotalPlaces:       3,
		TotalVariants:     2,
		TotalTextualForms: 1,
		TotalLookups:      6,
		WithVIAF:          1,
		WithGeoNames:      2,
		WithWikidata:      2,
		WithCoordinates:   2,
	}, ix.Statistics())

	names := ix.AllNames()
	assert.True(t, names.Contains("ירושלם"))
	assert.True(t, names.Contains("קנדיאה"))
	assert.False(t, names.Contains("unknown"))
}

func TestReadSet(t *testing.T) {
	set, err := ReadSet(strings.NewReader("location,count\nקנדיה,12\nארץ ישראל,7\n"))
	require.NoError(t, err)
	assert.True(t, set.Contains("קנדיה"))
	assert.True(t, set.Contains("ארץ ישראל"))

	_, err = ReadSet(strings.NewReader("place\nקנדיה\n"))
	assert.ErrorIs(t, err, ErrMissingLocationColumn)
}

func authorityXML(names ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><collection><record>`)
	for _, n := range names {
		b.WriteString(`<datafield tag="651"><subfield code="a">x</subfield><subfield code="z">` + n + `</subfield></datafield>`)
	}
	b.WriteString(`</record></collection>`)
	return b.String()
}

func TestBuilderCountsFilesPerName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), []byte(authorityXML("ירושלים", "ירושלים", "צפת", "קנדיה")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.xml"), []byte(authorityXML("ירושלים", "קנדיה")), 0o644))

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(authorityXML("ירושלים")))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.xml.gz"), gz.Bytes(), 0o644))

	b := NewBuilder(BuildOptions{MinOccurrences: 1, MinLength: 3}, nil)
	got, err := b.BuildFromDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []NameCount{{Name: "ירושלים", Count: 3}, {Name: "קנדיה", Count: 2}}, got)

	var out bytes.Buffer
	require.NoError(t, WriteCSV(&out, got))
	set, err := ReadSet(&out)
	require.NoError(t, err)
	assert.Len(t, set, 2)
}
