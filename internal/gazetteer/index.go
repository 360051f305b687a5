package gazetteer

import (
	"fmt"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/hebrew"
	"github.com/hebrew-ms/backend/internal/metrics"
)

const DefaultCacheSize = 10000

type Place struct {
	ID          string `json:"id"`
	Hebrew      string `json:"hebrew"`
	Romanized   string `json:"romanized,omitempty"`
	VIAF        string `json:"viaf,omitempty"`
	GeoNames    string `json:"geonames,omitempty"`
	Wikidata    string `json:"wikidata,omitempty"`
	Lat         string `json:"lat,omitempty"`
	Lon         string `json:"lon,omitempty"`
	Description string `json:"description,omitempty"`
	MazalID     string `json:"mazal_id,omitempty"`
}

func (p Place) Coordinates() (lat, lon float64, ok bool) {
	if p.Lat == "" || p.Lon == "" {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(p.Lat, 64)
	lon, err2 := strconv.ParseFloat(p.Lon, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

type Statistics struct {
	TotalPlaces       int `json:"total_places"`
	TotalVariants     int `json:"total_variants"`
	TotalTextualForms int `json:"total_textual_forms"`
	TotalLookups      int `json:"total_lookups"`
	WithVIAF          int `json:"places_with_viaf"`
	WithGeoNames      int `json:"places_with_geonames"`
	WithWikidata      int `json:"places_with_wikidata"`
	WithCoordinates   int `json:"places_with_coords"`
}

type lookupEntry struct {
	place Place
	found bool
}

// Index resolves surface forms to canonical places: master names first, then
// attested textual forms, then variants, then the prefix-stripped form.
// Tables are read-only after construction; the memo is safe for concurrent use.
type Index struct {
	places   map[string]Place
	forms    map[string]string
	variants map[string]string
	memo     *lru.Cache[string, lookupEntry]
	hits     atomic.Int64
	misses   atomic.Int64
	logger   *zap.Logger
}

// NewIndex builds an index from loaded tables. forms and variants map a surface form
// to a canonical Hebrew name.
func NewIndex(places []Place, forms, variants map[string]string, cacheSize int, logger *zap.Logger) (*Index, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	memo, err := lru.New[string, lookupEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup memo: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ix := &Index{
		places:   make(map[string]Place, len(places)),
		forms:    make(map[string]string, len(forms)),
		variants: make(map[string]string, len(variants)),
		memo:     memo,
		logger:   logger,
	}
	for _, p := range places {
		ix.places[p.Hebrew] = p
	}
	for k, v := range forms {
		ix.forms[k] = v
	}
	for k, v := range variants {
		ix.variants[k] = v
	}
	return ix, nil
}

func (ix *Index) Lookup(name string) (Place, bool) {
	if e, ok := ix.memo.Get(name); ok {
		ix.hits.Add(1)
		metrics.CacheHits.WithLabelValues("gazetteer").Inc()
		return e.place, e.found
	}
	ix.misses.Add(1)
	metrics.CacheMisses.WithLabelValues("gazetteer").Inc()

	p, found := ix.resolve(name)
	ix.memo.Add(name, lookupEntry{place: p, found: found})
	if found {
		metrics.GazetteerLookups.WithLabelValues("found").Inc()
	} else {
		metrics.GazetteerLookups.WithLabelValues("not_found").Inc()
	}
	return p, found
}

func (ix *Index) resolve(name string) (Place, bool) {
	if p, ok := ix.places[name]; ok {
		return p, true
	}
	if canonical, ok := ix.forms[name]; ok {
		if p, ok := ix.places[canonical]; ok {
			return p, true
		}
	}
	if canonical, ok := ix.variants[name]; ok {
		if p, ok := ix.places[canonical]; ok {
			return p, true
		}
	}
	// StripPrefix only ever shortens, so this recursion terminates.
	if stripped := hebrew.StripPrefix(name); stripped != name {
		return ix.Lookup(stripped)
	}
	return Place{}, false
}

// AllNames returns every surface form the index knows.
func (ix *Index) AllNames() Set {
	names := make(Set, len(ix.places)+len(ix.forms)+len(ix.variants))
	for k := range ix.places {
		names.Add(k)
	}
	for k := range ix.variants {
		names.Add(k)
	}
	for k := range ix.forms {
		names.Add(k)
	}
	return names
}

func (ix *Index) Statistics() Statistics {
	s := Statistics{
		TotalPlaces:       len(ix.places),
		TotalVariants:     len(ix.variants),
		TotalTextualForms: len(ix.forms),
	}
	s.TotalLookups = s.TotalPlaces + s.TotalVariants + s.TotalTextualForms
	for _, p := range ix.places {
		if p.VIAF != "" {
			s.WithVIAF++
		}
		if p.GeoNames != "" {
			s.WithGeoNames++
		}
		if p.Wikidata != "" {
			s.WithWikidata++
		}
		if p.Lat != "" && p.Lon != "" {
			s.WithCoordinates++
		}
	}
	return s
}

// MemoStats reports memo hits and misses since construction.
func (ix *Index) MemoStats() (hits, misses int64) {
	return ix.hits.Load(), ix.misses.Load()
}
