package classification

import (
	"sort"

	"github.com/hebrew-ms/backend/internal/models"
)

type labelSet map[string]struct{}

func newLabelSet(labels ...string) labelSet {
	s := make(labelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

func (s labelSet) has(label string) bool {
	_, ok := s[label]
	return ok
}

func (s labelSet) sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

var dateLabels = newLabelSet(
	// work, expression and manifestation creation
	"work creation date",
	"work composition date",
	"intellectual creation date",
	"expression creation date",
	"text creation date",
	"version creation date",
	"manifestation creation date",
	"edition creation date",
	"manuscript production date",
	"copying date",
	"writing date",
	"scribal date",

	"publication date",
	"printing date",
	"print date",
	"press date",

	"binding date",
	"restoration date",
	"repair date",
	"modification date",
	"rebinding date",
	"illumination date",
	"decoration date",

	"transfer of custody date",
	"acquisition date",
	"purchase date",
	"sale date",
	"donation date",
	"bequest date",
	"gift date",
	"loan date",
	"auction date",
	"confiscation date",

	"cataloging date",
	"reference date",
	"citation date",
	"scholarly reference date",
	"catalog entry date",
	"digitization date",
	"imaging date",
	"photographing date",
	"microfilming date",
	"exhibition date",
	"display date",

	"birth date",
	"death date",
	"floruit date",
	"active date",
	"marriage date",

	"colophon date",
	"colophon completion date",
	"colophon inscription date",

	"annotation date",
	"inscription date",
	"marginal note date",
	"gloss date",
	"dedication date",
	"signature date",

	"reading date",
	"study date",
	"censorship date",
	"examination date",
)

// Places are labelled by the event they take part in; there is no "colophon place".
var locationLabels = newLabelSet(
	"production place",
	"written in",
	"copied in",
	"scribed in",
	"created in",
	"produced in",
	"published in",
	"printed in",
	"press location",

	"bound in",
	"restored in",
	"repaired in",
	"illuminated in",
	"decorated in",

	"moved to",
	"moved from",
	"transferred to",
	"transferred from",
	"brought from",
	"sent to",
	"dispatched to",
	"shipped from",

	"born in",
	"died in",
	"birth place",
	"death place",
	"lived in",
	"resided in",
	"dwelling in",
	"domiciled in",
	"worked in",
	"active in",
	"studied in",
	"taught in",

	"preserved in",
	"kept in",
	"stored in",
	"held in",
	"housed in",
	"located in",
	"owned in",
	"possession in",
	"repository",
	"library location",
	"archive location",
	"collection location",

	"mentioned place",
	"referenced place",
	"cited place",
	"place reference",

	"visited",
	"traveled to",
	"journeyed to",
	"passed through",

	"cataloged in",
	"documented in",
	"examined in",
	"photographed in",
	"digitized in",

	"exhibited in",
	"displayed in",
	"shown in",
)

var personLabels = newLabelSet(
	"scribe",
	"copyist",
	"illuminator",
	"author",
	"translator",
	"commentator",
	"owner",
	"previous owner",
	"donor",
	"purchaser",
	"seller",
	"cataloger",
	"censor",
	"patron",
	"dedicatee",
	"colophon scribe",
	"mentioned person",
)

func DateLabels() []string     { return dateLabels.sorted() }
func LocationLabels() []string { return locationLabels.sorted() }
func PersonLabels() []string   { return personLabels.sorted() }

func labelsOf(t models.EntityType) labelSet {
	switch t {
	case models.EntityDate:
		return dateLabels
	case models.EntityLocation:
		return locationLabels
	case models.EntityPerson:
		return personLabels
	default:
		return nil
	}
}

// LabelsFor returns the closed vocabulary for an entity type, sorted. Types without a
// vocabulary get none and cannot be classified.
func LabelsFor(t models.EntityType) []string {
	return labelsOf(t).sorted()
}

func IsAllowed(t models.EntityType, label string) bool {
	return labelsOf(t).has(label)
}
