package validator

import "github.com/hebrew-ms/backend/internal/hebrew"

func set(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

var hebrewMonths = set(
	"ניסן", "אייר", "סיון", "תמוז", "אב", "אלול",
	"תשרי", "חשון", "כסלו", "טבת", "שבט", "אדר",
	"אדר א", "אדר ב", "ירח",
)

// Words that collide with gazetteer entries but are never places in catalog notes.
var commonWords = set(
	"אני", "או", "אן", "אם", "בר", "מר", "נר",
	"פרט", "סעד", "שנה", "יום", "ירח",
	"רב", "מור", "רבי", "חכם",
	"צמח", "נחם", "אמר", "עזר", "אשר", "נעם",
	"עומר", "שחר", "קדם", "קדמה", "עילם",
	"אור", "עידן", "סעדיה", "עזריה", "מנחם",
	"ספר", "ספאר", "עיר", "קהל", "בית",
	"מים", "אש", "רוח", "עפר",
	"נושא", // matches Neuss in nearly every record
	"בכתבי",
	"כתב", "כתבו", "כתבי",
	"מנחת",
	"מן", "על", "אל", "את", "עם", "של",
	"ב", "ל", "מ", "כ", "ה", "ו", "ש",
	"שמש", "צדק", "נוגה", "שבתאי",
	"א", "ג", "ד", "ז", "ח", "ט", "י",
	"אב", "אג", "אד", "אה", "אז", "אי", "בא",
	"בה", "בו", "גב", "דב", "הב", "וב", "זב",
)

var nonLocationContexts = hebrew.MustCompileAll(
	`לפרט\s+\w+`,
	`לשטרות\s+\w+`,
	`בשנת\s+\w+`,
	`שנת\s+\w+`,
	`מר"ח`,
	`ר"ח`,
	`חדש\s+\w+`,
	`בחדש\s+\w+`,
	`בן\s+\w+`,
	`בר\s+\w+`,
	`בת\s+\w+`,
	`רבי\s+\w+`,
	`הרב\s+\w+`,
	`ר'\s*\w+`,
	`מאת\s+\w+`,
	`אמר\s+\w+`,
)

var personIndicators = hebrew.MustCompileAll(
	`בן\s+\w+`, `בר\s+\w+`, `בת\s+\w+`,
	`רבי\s+\w+`, `הרב\s+\w+`, `ר'\s*\w+`,
	`מאת\s+\w+`, `אמר\s+\w+`, `כתב\s+\w+`,
	`\w+\s+בן\s+`, `\w+\s+בר\s+`,
)

var locationIndicators = hebrew.MustCompileAll(
	`נכתב\s+ב`,
	`נשלם\s+ב`,
	`הועתק\s+ב`,
	`נדפס\s+ב`,
	`בהיותי\s+ב`,
	`בהיותו\s+ב`,
	`גר\s+ב`,
	`ישב\s+ב`,
	`בורח\s+מ`,
	`יצא\s+מ`,
	`בא\s+מ`,
	`עלה\s+מ`,
	`נסע\s+מ`,
	`מ\w+\s+\([\w\s]+\)`,
	`ספריית\s+`,
	`באוסף\s+`,
	`במוזיאון\s+`,
	`בעיר\s+`,
	`בארץ\s+`,
	`במדינת\s+`,
	`לפנים\s+`,
)
