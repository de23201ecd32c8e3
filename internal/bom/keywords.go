package bom

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// DefaultKeywords are the header substrings recognised out of the box, in
// priority order per role. Matching is case-insensitive and ignores spaces.
var DefaultKeywords = Keywords{
	RoleDesignator: {
		"部品番号", "ref des", "ロケーション番号", "ref", "記号", "designator",
		"symbol", "リファレンス", "回路記号", "位置番号", "部品記号",
	},
	RolePart: {
		"part number", "メーカー品番", "型番", "型式", "形式", "型格", "定格",
		"part", "value", "品名", "description", "図番", "名称", "パート名",
	},
	RoleManufacturer: {
		"メーカー", "mfg", "maker", "manufacturer", "製造元",
	},
}

// Rules is the on-disk form of the header keywords and manufacturer rules.
// Sections left out of the file keep their defaults.
//
//	keywords:
//	  ref: ["ref des", "designator"]
//	  part: ["part number"]
//	  mfg: ["maker"]
//	manufacturers:
//	  prefixes:
//	    - {match: GRM, manufacturer: Murata}
//	  contains:
//	    - {match: murata, manufacturer: Murata}
type Rules struct {
	Keywords      map[string][]string `yaml:"keywords"`
	Manufacturers *PrefixInferer      `yaml:"manufacturers"`
}

// ParseRules decodes YAML rules and merges them over the defaults.
func ParseRules(data []byte) (Keywords, *PrefixInferer, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, nil, fmt.Errorf("parse rules: %w", err)
	}

	kw := make(Keywords, len(DefaultKeywords))
	for role, list := range DefaultKeywords {
		kw[role] = list
	}
	for key, list := range r.Keywords {
		role := Role(key)
		switch role {
		case RoleDesignator, RolePart, RoleManufacturer:
		default:
			return nil, nil, fmt.Errorf("parse rules: unknown keyword role %q", key)
		}
		if len(list) > 0 {
			kw[role] = list
		}
	}

	inferer := DefaultInferer
	if r.Manufacturers != nil && (len(r.Manufacturers.Prefixes) > 0 || len(r.Manufacturers.Contains) > 0) {
		inferer = r.Manufacturers
	}
	return kw, inferer, nil
}

// LoadRules reads a YAML rules file. An empty path returns the defaults.
func LoadRules(path string) (Keywords, *PrefixInferer, error) {
	if path == "" {
		return DefaultKeywords, DefaultInferer, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}
