package utils

import (
	"fmt"
	"net/url"
	"strings"
)

var uriReplacer = strings.NewReplacer(" ", "_", "בן", "ben", `"`, "", "'", "")

// NormalizeForURI turns a catalog value into a percent-encoded identifier segment.
func NormalizeForURI(text string) string {
	return url.QueryEscape(uriReplacer.Replace(strings.TrimSpace(text)))
}

func ManuscriptURI(base, manuscriptID string) string {
	return base + "MS_" + NormalizeForURI(manuscriptID)
}

func EventURI(base, manuscriptID, eventType string, index int) string {
	cleanType := strings.ReplaceAll(strings.ReplaceAll(eventType, " ", "_"), "_date", "")
	suffix := ""
	if index > 0 {
		suffix = fmt.Sprintf("_%d", index)
	}
	return fmt.Sprintf("%sMS_%s_%s_Event%s", base, NormalizeForURI(manuscriptID), cleanType, suffix)
}

func PersonURI(base, name string) string {
	return base + "Person_" + NormalizeForURI(name)
}

func PlaceURI(base, name string) string {
	return base + "Place_" + NormalizeForURI(name)
}

func TimeSpanURI(base, date string) string {
	return base + "TimeSpan_" + NormalizeForURI(strings.ReplaceAll(date, "-", "_"))
}

func WorkURI(base, title string) string {
	return base + "Work_" + NormalizeForURI(title)
}
