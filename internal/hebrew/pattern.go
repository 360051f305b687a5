package hebrew

import (
	"github.com/dlclark/regexp2"
)

// Pattern wraps a regexp2 expression. Go's regexp lacks Unicode word boundaries and
// look-behind, both of which the catalog patterns rely on.
type Pattern struct {
	re *regexp2.Regexp
}

// Match positions are rune offsets.
type Match struct {
	Text   string
	Start  int
	End    int
	Groups []string
}

func Compile(expr string) (*Pattern, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, err
	}
	return &Pattern{re: re}, nil
}

func MustCompile(expr string) *Pattern {
	return &Pattern{re: regexp2.MustCompile(expr, regexp2.None)}
}

func MustCompileIgnoreCase(expr string) *Pattern {
	return &Pattern{re: regexp2.MustCompile(expr, regexp2.IgnoreCase)}
}

// MustCompileAll compiles a family of expressions, keeping their order.
func MustCompileAll(exprs ...string) []*Pattern {
	out := make([]*Pattern, len(exprs))
	for i, e := range exprs {
		out[i] = MustCompile(e)
	}
	return out
}

func MustCompileAllIgnoreCase(exprs ...string) []*Pattern {
	out := make([]*Pattern, len(exprs))
	for i, e := range exprs {
		out[i] = MustCompileIgnoreCase(e)
	}
	return out
}

func Escape(s string) string {
	return regexp2.Escape(s)
}

func (p *Pattern) String() string {
	return p.re.String()
}

// MatchString reports a match. regexp2 only errors on timeouts, which are not configured.
func (p *Pattern) MatchString(s string) bool {
	ok, err := p.re.MatchString(s)
	return err == nil && ok
}

func (p *Pattern) FindString(s string) (Match, bool) {
	m, err := p.re.FindStringMatch(s)
	if err != nil || m == nil {
		return Match{}, false
	}
	return toMatch(m), true
}

func (p *Pattern) FindAllString(s string) []Match {
	var out []Match
	m, err := p.re.FindStringMatch(s)
	for err == nil && m != nil {
		out = append(out, toMatch(m))
		m, err = p.re.FindNextMatch(m)
	}
	return out
}

// CountString counts non-overlapping matches.
func (p *Pattern) CountString(s string) int {
	return len(p.FindAllString(s))
}

// AnyMatch reports whether any pattern of the family matches s.
func AnyMatch(patterns []*Pattern, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func toMatch(m *regexp2.Match) Match {
	groups := m.Groups()
	out := Match{
		Text:  m.String(),
		Start: m.Index,
		End:   m.Index + m.Length,
	}
	if len(groups) > 1 {
		out.Groups = make([]string, len(groups)-1)
		for i, g := range groups[1:] {
			out.Groups[i] = g.String()
		}
	}
	return out
}
