package llm

import (
	"maps"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sanitizer applies lenient, schema-friendly fixes to a decoded model
// response and records what it changed.
type Sanitizer struct {
	m       map[string]any
	Dropped []string
}

func NewSanitizer(m map[string]any) *Sanitizer {
	return &Sanitizer{m: m}
}

// Map returns the (mutated) underlying map.
func (s *Sanitizer) Map() map[string]any { return s.m }

// Rename moves from -> to unless to already exists.
func (s *Sanitizer) Rename(from, to string) *Sanitizer {
	if v, ok := s.m[from]; ok {
		if _, exists := s.m[to]; !exists {
			s.m[to] = v
		}
		delete(s.m, from)
		s.Dropped = append(s.Dropped, from+"->"+to)
	}
	return s
}

// DropUnknown removes keys not present in allowed.
func (s *Sanitizer) DropUnknown(allowed map[string]struct{}) *Sanitizer {
	for k := range maps.Clone(s.m) {
		if _, ok := allowed[k]; !ok {
			delete(s.m, k)
			s.Dropped = append(s.Dropped, k+"(unknown)")
		}
	}
	return s
}

// TrimOptionalStrings trims string values and drops null or blank ones.
func (s *Sanitizer) TrimOptionalStrings(keys ...string) *Sanitizer {
	for _, k := range keys {
		v, ok := s.m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case nil:
			delete(s.m, k)
			s.Dropped = append(s.Dropped, k+"(null)")
		case string:
			if trimmed := strings.TrimSpace(t); trimmed == "" {
				delete(s.m, k)
				s.Dropped = append(s.Dropped, k+"(empty)")
			} else {
				s.m[k] = trimmed
			}
		}
	}
	return s
}

// CoerceNumbers turns numeric-looking strings ("$1,234.50") into float64.
// Optional keys that are null or unparseable are dropped; required keys are
// left alone so schema validation can report them.
func (s *Sanitizer) CoerceNumbers(required map[string]bool, keys ...string) *Sanitizer {
	for _, k := range keys {
		v, ok := s.m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
		case string:
			if f, ok := ParseMoney(t); ok {
				s.m[k] = f
			} else if !required[k] {
				delete(s.m, k)
				s.Dropped = append(s.Dropped, k+"(unparseable)")
			}
		case nil:
			if !required[k] {
				delete(s.m, k)
				s.Dropped = append(s.Dropped, k+"(null)")
			}
		default:
			if !required[k] {
				delete(s.m, k)
				s.Dropped = append(s.Dropped, k+"(type)")
			}
		}
	}
	return s
}

// ParseMoney parses amounts like "1,234.50", "$ 99.99", "(12.00)" or the
// comma-decimal "1.234,50 EUR". Currency codes and symbols may surround the
// number but not appear inside it. Exponents, malformed digit grouping and
// repeated decimal marks are rejected rather than guessed.
//
// A lone comma followed by one or two digits is a decimal mark ("12,50");
// followed by three it is a thousands separator ("1,234"). A lone dot is
// always a decimal mark.
func ParseMoney(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	first := strings.IndexFunc(s, isDigit)
	if first < 0 {
		return 0, false
	}
	// a dot directly before the digits is a decimal mark (".50", "$.50")
	// unless it ends an abbreviation ("Rs.100")
	if first > 0 && s[first-1] == '.' {
		r, _ := utf8.DecodeLastRuneInString(s[:first-1])
		if first == 1 || !unicode.IsLetter(r) {
			first--
		}
	}
	last := strings.LastIndexFunc(s, isDigit)
	prefix, core, suffix := s[:first], s[first:last+1], s[last+1:]
	if !isMoneyAffix(prefix, true) || !isMoneyAffix(suffix, false) {
		return 0, false
	}
	if strings.Contains(prefix, "-") {
		negative = true
	}

	num, ok := plainDecimal(digitSpacing.Replace(core))
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if negative && f > 0 {
		f = -f
	}
	return f, true
}

// spaces, no-break spaces and apostrophes group digits ("1 234,50", "1'234.50")
var digitSpacing = strings.NewReplacer(" ", "", "\u00a0", "", "'", "")

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isMoneyAffix(s string, leading bool) bool {
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsSpace(r), unicode.Is(unicode.Sc, r):
		case r == '.' && leading: // "Rs. 100"
		case r == '-' && leading:
		default:
			return false
		}
	}
	return true
}

// plainDecimal rewrites a digit run with grouping and a decimal mark into
// the form strconv.ParseFloat accepts.
func plainDecimal(core string) (string, bool) {
	for _, r := range core {
		if !isDigit(r) && r != '.' && r != ',' {
			return "", false
		}
	}
	lastDot := strings.LastIndexByte(core, '.')
	lastComma := strings.LastIndexByte(core, ',')

	var intPart, frac string
	var group string
	switch {
	case lastDot < 0 && lastComma < 0:
		return core, true
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			intPart, frac, group = core[:lastDot], core[lastDot+1:], ","
		} else {
			intPart, frac, group = core[:lastComma], core[lastComma+1:], "."
		}
	case lastComma >= 0:
		if strings.Count(core, ",") == 1 && len(core)-lastComma-1 <= 2 {
			intPart, frac = core[:lastComma], core[lastComma+1:]
		} else {
			intPart, group = core, ","
		}
	default:
		if strings.Count(core, ".") == 1 {
			intPart, frac = core[:lastDot], core[lastDot+1:]
		} else {
			intPart, group = core, "."
		}
	}

	if group != "" {
		parts := strings.Split(intPart, group)
		for i, p := range parts {
			if p == "" || strings.ContainsAny(p, ".,") {
				return "", false
			}
			if i > 0 && len(p) != 3 {
				return "", false
			}
		}
		if len(parts) > 1 && len(parts[0]) > 3 {
			return "", false
		}
		intPart = strings.Join(parts, "")
	}
	if intPart == "" && frac != "" && group == "" {
		intPart = "0"
	}
	if intPart == "" || strings.ContainsAny(intPart, ".,") || strings.ContainsAny(frac, ".,") {
		return "", false
	}
	if frac == "" {
		return intPart, true
	}
	return intPart + "." + frac, true
}
