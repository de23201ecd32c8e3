package bom

import (
	"sort"
	"strings"
)

// entryKey identifies a BOM entry by exact part and manufacturer.
type entryKey struct {
	Part         string
	Manufacturer string
}

// DisplaySeparator joins designators in Entry.Display.
const DisplaySeparator = ", "

// Aggregate groups records by exact (part, manufacturer) and returns one entry
// per group. Designators within an entry are unique and in natural order.
// Entries appear in the order their group was first seen.
func Aggregate(records []ComponentRecord) []Entry {
	var order []entryKey
	groups := make(map[entryKey]map[string]struct{})

	for _, r := range records {
		k := entryKey{Part: r.Part, Manufacturer: r.Manufacturer}
		set, ok := groups[k]
		if !ok {
			set = make(map[string]struct{})
			groups[k] = set
			order = append(order, k)
		}
		set[r.Designator] = struct{}{}
	}

	entries := make([]Entry, 0, len(order))
	for _, k := range order {
		designators := make([]string, 0, len(groups[k]))
		for d := range groups[k] {
			designators = append(designators, d)
		}
		SortNatural(designators)

		entries = append(entries, Entry{
			Designators:  designators,
			Display:      JoinDesignators(designators),
			Part:         k.Part,
			Manufacturer: k.Manufacturer,
		})
	}
	return entries
}

// JoinDesignators renders designators for display.
func JoinDesignators(designators []string) string {
	return strings.Join(designators, DisplaySeparator)
}

// SortNatural sorts designators so that embedded numbers compare numerically.
func SortNatural(designators []string) {
	sort.SliceStable(designators, func(i, j int) bool {
		return NaturalLess(designators[i], designators[j])
	})
}

// NaturalLess compares a and b segment by segment: digit runs numerically,
// other runs as lowercase strings. R2 sorts before R10.
func NaturalLess(a, b string) bool {
	return naturalCompare(a, b) < 0
}

func naturalCompare(a, b string) int {
	sa, sb := splitNatural(a), splitNatural(b)
	for i := 0; i < len(sa) && i < len(sb); i++ {
		if c := compareSegment(sa[i], sb[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(sa) < len(sb):
		return -1
	case len(sa) > len(sb):
		return 1
	}
	return strings.Compare(a, b)
}

// segment is one run of a natural-order key.
type segment struct {
	text    string
	numeric bool
}

// splitNatural splits s into alternating non-digit and digit runs. Like a
// regexp split on ([0-9]+), the result always starts with a (possibly empty)
// non-digit run, so corresponding positions hold the same kind of segment.
func splitNatural(s string) []segment {
	segs := []segment{{text: ""}}
	for i := 0; i < len(s); {
		j := i
		digit := isDigit(s[i])
		for j < len(s) && isDigit(s[j]) == digit {
			j++
		}
		if digit {
			segs = append(segs, segment{text: s[i:j], numeric: true})
		} else if len(segs) == 1 && segs[0].text == "" {
			segs[0].text = strings.ToLower(s[i:j])
		} else {
			segs = append(segs, segment{text: strings.ToLower(s[i:j])})
		}
		i = j
	}
	return segs
}

func compareSegment(a, b segment) int {
	if a.numeric && b.numeric {
		return compareDigits(a.text, b.text)
	}
	return strings.Compare(a.text, b.text)
}

// compareDigits compares two digit runs by value without overflowing.
func compareDigits(a, b string) int {
	ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	return strings.Compare(ta, tb)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
