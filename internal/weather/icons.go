package weather

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// IconSet selects how condition icons are rendered.
type IconSet string

const (
	IconSetEmojis  IconSet = "emojis"
	IconSetClassic IconSet = "classic"
)

// Valid reports whether s is a known icon set.
func (s IconSet) Valid() bool { return s == IconSetEmojis || s == IconSetClassic }

//go:embed icons.yaml
var iconsRaw []byte

type iconPair struct {
	Emojis  string `yaml:"emojis"`
	Classic string `yaml:"classic"`
}

func (p iconPair) pick(set IconSet) string {
	if set == IconSetClassic {
		return p.Classic
	}
	return p.Emojis
}

type iconTable struct {
	Unknown    iconPair                   `yaml:"unknown"`
	Conditions map[ConditionCode]iconPair `yaml:"conditions"`
}

var icons = mustLoadIcons(iconsRaw)

func mustLoadIcons(raw []byte) iconTable {
	t, err := loadIcons(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func loadIcons(raw []byte) (iconTable, error) {
	var t iconTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return iconTable{}, fmt.Errorf("parsing icon table: %w", err)
	}
	for _, c := range conditionCodes {
		if _, ok := t.Conditions[c]; !ok {
			return iconTable{}, fmt.Errorf("icon table has no entry for %q", c)
		}
	}
	return t, nil
}

// Icon returns the icon for code in the given set; unknown codes get a placeholder.
func Icon(code ConditionCode, set IconSet) string {
	if p, ok := icons.Conditions[code]; ok {
		return p.pick(set)
	}
	return icons.Unknown.pick(set)
}
