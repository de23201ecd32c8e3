package bom

import "strings"

// Inferer guesses a manufacturer from a part number. ok is false when no rule
// applies; callers leave the manufacturer blank in that case.
type Inferer interface {
	Infer(part string) (manufacturer string, ok bool)
}

// InfererFunc adapts a function to the Inferer interface.
type InfererFunc func(part string) (string, bool)

// Infer calls f(part).
func (f InfererFunc) Infer(part string) (string, bool) {
	return f(part)
}

// ManufacturerRule maps a part-number pattern to a manufacturer name.
type ManufacturerRule struct {
	Match        string `yaml:"match"`
	Manufacturer string `yaml:"manufacturer"`
}

// PrefixInferer applies prefix rules (case-insensitive, in order) and then
// substring rules (case-insensitive, in order). The first hit wins.
type PrefixInferer struct {
	Prefixes []ManufacturerRule `yaml:"prefixes"`
	Contains []ManufacturerRule `yaml:"contains"`
}

// DefaultInferer carries the built-in rules for common passive-component makers.
var DefaultInferer = &PrefixInferer{
	Prefixes: []ManufacturerRule{
		{Match: "GRM", Manufacturer: "Murata"},
		{Match: "GCM", Manufacturer: "Murata"},
		{Match: "BLM", Manufacturer: "Murata"},
		{Match: "CGA", Manufacturer: "TDK"},
		{Match: "MCR", Manufacturer: "Rohm"},
		{Match: "CC", Manufacturer: "Yageo"},
	},
	Contains: []ManufacturerRule{
		{Match: "murata", Manufacturer: "Murata"},
		{Match: "tdk", Manufacturer: "TDK"},
		{Match: "rohm", Manufacturer: "Rohm"},
		{Match: "yageo", Manufacturer: "Yageo"},
		{Match: "kyocera", Manufacturer: "Kyocera"},
	},
}

// Infer implements Inferer.
func (p *PrefixInferer) Infer(part string) (string, bool) {
	if p == nil || part == "" {
		return "", false
	}

	upper := strings.ToUpper(part)
	for _, r := range p.Prefixes {
		if r.Match != "" && strings.HasPrefix(upper, strings.ToUpper(r.Match)) {
			return r.Manufacturer, true
		}
	}

	lower := strings.ToLower(part)
	for _, r := range p.Contains {
		if r.Match != "" && strings.Contains(lower, strings.ToLower(r.Match)) {
			return r.Manufacturer, true
		}
	}
	return "", false
}
