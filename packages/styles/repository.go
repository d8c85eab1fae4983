package styles

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Repository interns styles by content. a repository belongs to one
// workbook; two workbooks never share one.
type Repository struct {
	byHash map[uint64][]*Style
	count  int
}

// NewRepository returns a repository holding only Default.
func NewRepository() *Repository {
	r := &Repository{byHash: make(map[uint64][]*Style)}
	r.Intern(Default)
	return r
}

// Intern returns the canonical pointer for s. equal styles always return
// the same pointer.
func (r *Repository) Intern(s Style) *Style {
	h := xxhash.Sum64(s.canonical())
	for _, existing := range r.byHash[h] {
		if *existing == s {
			return existing
		}
	}
	p := &s
	r.byHash[h] = append(r.byHash[h], p)
	r.count++
	return p
}

// Default returns the interned default style.
func (r *Repository) Default() *Style {
	return r.Intern(Default)
}

// Len returns the number of distinct styles.
func (r *Repository) Len() int { return r.count }

// builtinFormats are the number formats every workbook knows by id.
var builtinFormats = map[int]string{
	0:  "General",
	1:  "0",
	2:  "0.00",
	3:  "#,##0",
	4:  "#,##0.00",
	9:  "0%",
	10: "0.00%",
	11: "0.00E+00",
	12: "# ?/?",
	13: "# ??/??",
	14: "mm-dd-yy",
	15: "d-mmm-yy",
	16: "d-mmm",
	17: "mmm-yy",
	18: "h:mm AM/PM",
	19: "h:mm:ss AM/PM",
	20: "h:mm",
	21: "h:mm:ss",
	22: "m/d/yy h:mm",
	37: "#,##0 ;(#,##0)",
	38: "#,##0 ;[Red](#,##0)",
	39: "#,##0.00;(#,##0.00)",
	40: "#,##0.00;[Red](#,##0.00)",
	45: "mm:ss",
	46: "[h]:mm:ss",
	47: "mmss.0",
	48: "##0.0E+0",
	49: "@",
}

// BuiltinFormat returns the code of a builtin number format id.
func BuiltinFormat(id int) (string, bool) {
	code, ok := builtinFormats[id]
	return code, ok
}

// IsDateFormat reports whether a number format code renders a date or time.
// quoted literals, escaped characters and bracketed sections other than
// elapsed time are ignored.
func IsDateFormat(code string) bool {
	if code == "" || strings.EqualFold(code, "General") {
		return false
	}
	lower := strings.ToLower(code)
	inQuote := false
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '\\':
			i++
		case c == '[':
			end := strings.IndexByte(lower[i:], ']')
			if end < 0 {
				return false
			}
			section := lower[i+1 : i+end]
			if section == "h" || section == "hh" || section == "m" || section == "mm" || section == "s" || section == "ss" {
				return true
			}
			i += end
		case c == 'd' || c == 'm' || c == 'y' || c == 'h' || c == 's':
			return true
		}
	}
	return false
}

// IsElapsedFormat reports whether code shows an elapsed duration such as
// [h]:mm:ss.
func IsElapsedFormat(code string) bool {
	lower := strings.ToLower(code)
	return strings.Contains(lower, "[h") || strings.Contains(lower, "[m") || strings.Contains(lower, "[s")
}
