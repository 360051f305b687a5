package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const candiaNote = "נכתב בקנדיה על ידי משה בן יצחק"

func TestClassifyPerson(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		person string
		want   string
	}{
		{"scribe from writing verb", candiaNote, "משה", RoleScribe},
		{"scribe title", "תם ונשלם ביד יוסף בן אברהם הסופר", "יוסף", RoleScribe},
		{"colophon scribe", "קולופון: נשלם ספר זה וכתב אותו שמואל", "שמואל", RoleColophonScribe},
		{"author", "חיבר רבי שלמה את החיבור", "שלמה", RoleAuthor},
		{"owner", "זה הספר של אברהם", "אברהם", RoleOwner},
		{"purchaser", "קנה אותו יעקב בשנה ההיא", "יעקב", RolePurchaser},
		{"name absent uses head of text", "הגהות הצנזור", "דומיניקו", RoleCensor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClassifyPerson(tt.text, tt.person)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyPersonNoMarker(t *testing.T) {
	_, ok := ClassifyPerson("הערה על אברהם", "אברהם")
	assert.False(t, ok)

	_, ok = ClassifyPerson("", "אברהם")
	assert.False(t, ok)
}

func TestPersonRolesAreClosed(t *testing.T) {
	texts := []string{
		candiaNote,
		"זה הספר של אברהם",
		"מכר יצחק את הספר לדוד",
		"הקדיש ראובן לבית הכנסת",
		"רשם שמעון בקטלוג",
		"תרגם יהודה מערבית",
	}
	for _, text := range texts {
		for _, person := range []string{"משה", "אברהם", "יצחק", "ראובן", "שמעון", "יהודה", "דוד"} {
			if role, ok := ClassifyPerson(text, person); ok {
				assert.True(t, IsPersonRole(role), "%q from %q", role, text)
				assert.Contains(t, PersonRoles(), role)
			}
		}
	}
}

func TestClassifyPersonsSkipsUnmatched(t *testing.T) {
	got := ClassifyPersons(candiaNote, []string{"משה", "משה", "יצחק"})
	assert.Equal(t, map[string]string{"משה": RoleScribe, "יצחק": RoleScribe}, got)

	assert.Empty(t, ClassifyPersons("הערה על אברהם", []string{"אברהם"}))
}

func TestClassifyLocation(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		location string
		want     string
	}{
		{"production place", candiaNote, "קנדיה", RelationProduction},
		{"published", "נדפס בויניציה", "ויניציה", RelationPublished},
		{"preserved", "כתב היד נמצא כיום בספריית פרמה", "פרמה", RelationPreserved},
		{"qualified name matches its base", "נולד בפאס ונפטר", "פאס (מרוקו)", RelationBorn},
		{"provenance list", "פאדובה, ומנטובה", "מנטובה", RelationTransferred},
		{"subject heading", "נושא פאדובה", "פאדובה", RelationActive},
		{"early single mention", "פאדובה", "פאדובה", RelationProduction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClassifyLocation(tt.text, tt.location)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyLocationAbsentFromText(t *testing.T) {
	_, ok := ClassifyLocation(candiaNote, "ירושלים")
	assert.False(t, ok)

	assert.Empty(t, ClassifyLocations(candiaNote, []string{"ירושלים"}))
}

func TestLocationPresentIsAlwaysClassified(t *testing.T) {
	texts := []string{
		candiaNote,
		"הערות בשוליים. אלכסנדריה",
		"ספר תהלים עם פירוש, רומא",
		"רומא רומא רומא והערות רבות מאוד בסוף הדף",
	}
	for _, text := range texts {
		for _, loc := range []string{"קנדיה", "אלכסנדריה", "רומא"} {
			if _, present := locationContext(text, loc); !present {
				continue
			}
			rel, ok := ClassifyLocation(text, loc)
			require.True(t, ok, "%q in %q", loc, text)
			assert.Contains(t, LocationRelations(), rel)
		}
	}
}

func TestStatistics(t *testing.T) {
	stats := Statistics()
	assert.Len(t, stats, len(PersonRoles()))
	assert.Equal(t, 8, stats[RoleScribe])
	assert.Equal(t, 1, stats[RoleColophonScribe])
}

func TestMatchAll(t *testing.T) {
	got := MatchAll("נכתב על ידי משה וקנה אותו יעקב")
	assert.Contains(t, got[RoleScribe], "נכתב על ידי")
	assert.Equal(t, []string{"קנה"}, got[RolePurchaser])
	assert.NotContains(t, got, RoleOwner)
}
