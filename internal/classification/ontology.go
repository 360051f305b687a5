package classification

import (
	"github.com/hebrew-ms/backend/internal/models"
)

type mapping = models.OntologyMapping

const (
	levelWork         = "work"
	levelExpression   = "expression"
	levelManifest     = "manifestation"
	levelManifestItem = "manifestation_singleton"
)

var (
	workCreation       = mapping{EventClass: "F27_Work_Creation", Property: "R16_created", Level: levelWork}
	expressionCreation = mapping{EventClass: "F28_Expression_Creation", Property: "R17_created", Level: levelExpression}
	manifestCreation   = mapping{EventClass: "F30_Manifestation_Creation", Property: "R24_created", Level: levelManifest}
	itemProduction     = mapping{EventClass: "E12_Production", Property: "P108_has_produced", Level: levelManifestItem}
	modification       = mapping{EventClass: "E11_Modification", Property: "P31_has_modified"}
	custodyTransfer    = mapping{EventClass: "E10_Transfer_of_Custody", Property: "P30_transferred_custody_of"}
	acquisition        = mapping{EventClass: "E8_Acquisition", Property: "P24_transferred_title_of"}
	reference          = mapping{EventClass: "Reference_Event", Property: "P67_refers_to"}
	colophonMention    = mapping{EventClass: "Colophon", Property: "mentions_date"}
)

var dateOntology = map[string]mapping{
	"work creation date":         workCreation,
	"work composition date":      workCreation,
	"intellectual creation date": workCreation,

	"expression creation date": expressionCreation,
	"text creation date":       expressionCreation,
	"copying date":             expressionCreation,

	"manifestation creation date": manifestCreation,
	"edition creation date":       manifestCreation,
	"printing date":               manifestCreation,
	"publication date":            manifestCreation,

	"manuscript production date": {
		EventClass: "F32_Item_Production_Event",
		CRMClass:   "E12_Production",
		Property:   "R27_materialized",
		Level:      levelManifestItem,
	},
	"writing date": itemProduction,
	"scribal date": itemProduction,

	"binding date":      modification,
	"restoration date":  modification,
	"illumination date": modification,
	"annotation date":   modification,
	"inscription date":  modification,

	"transfer of custody date": custodyTransfer,
	"donation date":            custodyTransfer,
	"gift date":                custodyTransfer,

	"acquisition date": acquisition,
	"purchase date":    acquisition,
	"sale date":        acquisition,

	"reference date":    reference,
	"cataloging date":   reference,
	"digitization date": {EventClass: "E31_Document", Property: "P16_used_specific_object"},

	"birth date": {EventClass: "E67_Birth", Property: "P98_brought_into_life"},
	"death date": {EventClass: "E69_Death", Property: "P100_was_death_of"},

	"colophon date":            colophonMention,
	"colophon completion date": colophonMention,
}

var (
	tookPlaceAtProduction = mapping{EventClass: "E12_Production", Property: "P7_took_place_at"}
	tookPlaceAtManifest   = mapping{EventClass: "F30_Manifestation_Creation", Property: "P7_took_place_at"}
	residence             = mapping{Property: "P74_has_current_or_former_residence"}
)

var locationOntology = map[string]mapping{
	"production place": tookPlaceAtProduction,
	"written in":       tookPlaceAtProduction,
	"copied in":        tookPlaceAtProduction,
	"published in":     tookPlaceAtManifest,
	"printed in":       tookPlaceAtManifest,

	"born in":    {EventClass: "E67_Birth", Property: "P7_took_place_at"},
	"died in":    {EventClass: "E69_Death", Property: "P7_took_place_at"},
	"resided in": residence,
	"lived in":   residence,

	"moved to":   {EventClass: "E9_Move", Property: "P26_moved_to"},
	"moved from": {EventClass: "E9_Move", Property: "P27_moved_from"},
	"sent to":    {EventClass: "E10_Transfer_of_Custody", Property: "P26_moved_to"},

	"preserved in":    {Property: "P55_has_current_location"},
	"mentioned place": {Property: "mentions_place"},
}

const carriedOutBy = "P14_carried_out_by"

var personOntology = map[string]mapping{
	"scribe":      {Property: "has_scribe", EventRole: carriedOutBy, EventClass: "E12_Production"},
	"copyist":     {Property: "has_scribe", EventRole: carriedOutBy, EventClass: "F28_Expression_Creation"},
	"illuminator": {Property: "has_illuminator", EventRole: carriedOutBy, EventClass: "E11_Modification"},

	"author":      {Property: "has_author", EventRole: carriedOutBy, EventClass: "F27_Work_Creation"},
	"translator":  {Property: "has_translator", EventRole: carriedOutBy, EventClass: "F28_Expression_Creation"},
	"commentator": {Property: "has_commentator", EventRole: carriedOutBy, EventClass: "F28_Expression_Creation"},

	"owner":          {Property: "has_owner", EventRole: "P29_custody_received_by", EventClass: "E10_Transfer_of_Custody"},
	"previous owner": {Property: "has_previous_owner", EventRole: "P28_custody_surrendered_by", EventClass: "E10_Transfer_of_Custody"},
	"donor":          {Property: "has_donor", EventRole: "P28_custody_surrendered_by", EventClass: "E10_Transfer_of_Custody"},
	"purchaser":      {Property: "has_purchaser", EventRole: "P22_acquired_title_to", EventClass: "E8_Acquisition"},
	"seller":         {Property: "has_seller", EventRole: "P23_transferred_title_from", EventClass: "E8_Acquisition"},

	"cataloger": {Property: "has_cataloger", EventRole: carriedOutBy, EventClass: "Reference_Event"},
	"censor":    {Property: "has_censor", EventRole: carriedOutBy, EventClass: "E7_Activity"},
	"patron":    {Property: "has_patron", EventRole: carriedOutBy, EventClass: "E7_Activity"},
	"dedicatee": {Property: "has_dedicatee"},

	"colophon scribe":  {Property: "mentions_scribe", Context: "Colophon", EventRole: carriedOutBy, EventClass: "E12_Production"},
	"mentioned person": {Property: "mentions_person"},
}

var fallbackMapping = mapping{EventClass: string(models.E7Activity)}

// OntologyMapping looks a label up in the date, location and person tables in that
// order. Labels in none of them map to a generic activity.
func OntologyMapping(label string) models.OntologyMapping {
	if m, ok := dateOntology[label]; ok {
		return m
	}
	if m, ok := locationOntology[label]; ok {
		return m
	}
	if m, ok := personOntology[label]; ok {
		return m
	}
	return fallbackMapping
}
