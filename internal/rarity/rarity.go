// Package rarity provides the static species-name-to-ABA-code classification
// used for coloring, sorting, and thresholding.
package rarity

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/featherline/rarity-mapper/internal/model"
)

// Table is an immutable lookup from species common name to rarity code.
type Table struct {
	codes   map[string]model.RarityCode
	maxCode model.RarityCode
}

type tableFile struct {
	MaxCode int            `yaml:"max_code"`
	Codes   map[string]int `yaml:"codes"`
}

// Load reads a classification table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rarity: read table %s", path)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "rarity: parse table %s", path)
	}
	return New(f.Codes, f.MaxCode), nil
}

// New builds a Table from an in-memory code map. Entries with codes below 1
// are dropped: there is no tier 0, absent means unknown.
func New(codes map[string]int, maxCode int) *Table {
	t := &Table{
		codes:   make(map[string]model.RarityCode, len(codes)),
		maxCode: model.RarityCode(maxCode),
	}
	for name, code := range codes {
		if code < 1 {
			continue
		}
		t.codes[strings.TrimSpace(name)] = model.RarityCode(code)
		if model.RarityCode(code) > t.maxCode {
			t.maxCode = model.RarityCode(code)
		}
	}
	return t
}

// Code returns the rarity code for a species common name, or RarityUnknown
// when the species has no entry.
func (t *Table) Code(species string) model.RarityCode {
	if t == nil {
		return model.RarityUnknown
	}
	return t.codes[strings.TrimSpace(species)]
}

// MaxCode returns the highest tier in use, for slider bounds.
func (t *Table) MaxCode() model.RarityCode { return t.maxCode }

// Color returns the marker color hex for a rarity code. Unknown and
// out-of-range codes render gray.
func Color(c model.RarityCode) string {
	switch c {
	case 1:
		return "#16a34a"
	case 2:
		return "#4ade80"
	case 3:
		return "#facc15"
	case 4:
		return "#fb923c"
	case 5, 6:
		return "#ef4444"
	default:
		return "#9ca3af"
	}
}
