package media

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed styles.yaml
var stylesYAML []byte

// StyleProfile names one cinematic look. The table is loaded once at
// process start and never mutated; selection is a pure scoring function
// over document tokens.
type StyleProfile struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Visual   string   `yaml:"visual"`
	Camera   string   `yaml:"camera"`
	Lighting string   `yaml:"lighting"`
	Avoid    string   `yaml:"avoid"`
}

type StyleTable struct {
	Profiles []StyleProfile `yaml:"profiles"`
	Default  StyleProfile   `yaml:"default"`
}

func LoadStyleTable() (*StyleTable, error) {
	var t StyleTable
	if err := yaml.Unmarshal(stylesYAML, &t); err != nil {
		return nil, fmt.Errorf("parse style table: %w", err)
	}
	if t.Default.Name == "" {
		return nil, fmt.Errorf("style table has no default profile")
	}
	return &t, nil
}

// Select scores each profile by how many of its keywords occur in the
// text and returns the best match, or the default when nothing scores.
func (t *StyleTable) Select(text string) StyleProfile {
	tokens := tokenSet(text)
	best := t.Default
	bestScore := 0
	for _, p := range t.Profiles {
		score := 0
		for _, kw := range p.Keywords {
			if tokens[strings.ToLower(kw)] {
				score++
			}
		}
		if score > bestScore {
			best = p
			bestScore = score
		}
	}
	return best
}

func tokenSet(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
