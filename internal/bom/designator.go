package bom

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxRangeSpan bounds how many designators a single range token may expand to.
// Larger spans are kept as a literal token.
const MaxRangeSpan = 10000

var (
	// designatorPattern matches a plain designator at the start of a token (C12).
	designatorPattern = regexp.MustCompile(`^[A-Z]+[0-9]+`)

	// designatorFindPattern finds designators embedded in free text.
	designatorFindPattern = regexp.MustCompile(`[A-Z]+[0-9]+`)

	// rangePattern matches R1-5, R1-R5, R1~5, R1～R5 and R1〜R5.
	rangePattern = regexp.MustCompile(`(?i)^([A-Z]+)(\d+)[\s\p{Z}]*[-~～〜][\s\p{Z}]*([A-Z]*)(\d+)$`)

	// tokenSeparators splits a designator cell into tokens. \p{Z} covers the
	// ideographic space (U+3000) that RE2's \s does not.
	tokenSeparators = regexp.MustCompile(`[,、，\s\p{Z}]+`)

	// parenReplacer turns parentheses into separators so "(R1)R2" cannot merge.
	parenReplacer = strings.NewReplacer("(", " ", ")", " ", "（", " ", "）", " ")
)

// IsDesignatorToken reports whether token looks like a designator or a
// designator range and is therefore worth expanding.
func IsDesignatorToken(token string) bool {
	return rangePattern.MatchString(token) || designatorPattern.MatchString(token)
}

// ExpandDesignator converts one token into canonical designators.
//
// Range tokens with matching (or omitted) second prefixes expand to every
// number in the range, ascending. Ranges whose prefixes differ or whose bounds
// cannot be parsed stay a single literal designator. Plain designators pass
// through unchanged and anything else yields nil. Cancelled designators are
// dropped after expansion.
func ExpandDesignator(token string, cancelled CancellationSet) []string {
	var expanded []string

	switch {
	case rangePattern.MatchString(token):
		expanded = expandRange(token)
	case designatorPattern.MatchString(token):
		expanded = []string{token}
	default:
		return nil
	}

	out := expanded[:0]
	for _, d := range expanded {
		if d == "" || cancelled.Contains(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// expandRange expands a token already known to match rangePattern.
func expandRange(token string) []string {
	m := rangePattern.FindStringSubmatch(token)
	prefix, startText, endPrefix, endText := m[1], m[2], m[3], m[4]

	if endPrefix != "" && !strings.EqualFold(prefix, endPrefix) {
		return []string{token}
	}

	start, err := strconv.Atoi(startText)
	if err != nil {
		return []string{token}
	}
	end, err := strconv.Atoi(endText)
	if err != nil {
		return []string{token}
	}
	if end-start >= MaxRangeSpan {
		return []string{token}
	}

	var out []string
	for i := start; i <= end; i++ {
		out = append(out, prefix+strconv.Itoa(i))
	}
	return out
}

// CleanDesignatorCell replaces parentheses in a designator cell with spaces.
// A cell holding only parentheses is still non-empty afterwards.
func CleanDesignatorCell(raw string) string {
	return parenReplacer.Replace(raw)
}

// SplitDesignators splits a cleaned designator cell into tokens that look like
// designators or ranges. Stray punctuation and words are dropped.
func SplitDesignators(cleaned string) []string {
	var tokens []string
	for _, tok := range tokenSeparators.Split(cleaned, -1) {
		if tok != "" && IsDesignatorToken(tok) {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// FindDesignators returns every designator embedded in free text. Format
// readers use it to turn struck-through text into cancellations.
func FindDesignators(text string) []string {
	return designatorFindPattern.FindAllString(text, -1)
}
