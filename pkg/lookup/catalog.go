package lookup

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Paths locates the optional lookup files. Empty paths are skipped.
type Paths struct {
	ItemInfo     string `json:"item_info,omitempty" yaml:"itemInfo,omitempty"`
	CategoryInfo string `json:"category_info,omitempty" yaml:"categoryInfo,omitempty"`
	CuratedSets  string `json:"curated_sets,omitempty" yaml:"curatedSets,omitempty"`
	Citations    string `json:"citations,omitempty" yaml:"citations,omitempty"`
}

// Catalog bundles the read-only lookup tables used to describe scored
// associations. Any table may be nil; lookups then fall back to defaults.
type Catalog struct {
	Items      *Names
	Categories *Ontology
	Curated    *GeneSets
	Citations  *Citations
}

// Load reads every lookup file named in p.
func Load(p Paths) (*Catalog, error) {
	c := &Catalog{}
	var err error

	if p.ItemInfo != "" {
		if c.Items, err = LoadNames(p.ItemInfo); err != nil {
			return nil, err
		}
		slog.Debug("item names loaded", "path", p.ItemInfo, "ids", c.Items.Len())
	}
	if p.CategoryInfo != "" {
		if c.Categories, err = LoadOntology(p.CategoryInfo); err != nil {
			return nil, err
		}
		slog.Debug("ontology loaded", "path", p.CategoryInfo, "terms", c.Categories.Len())
	}
	if p.CuratedSets != "" {
		if c.Curated, err = LoadGeneSets(p.CuratedSets); err != nil {
			return nil, err
		}
		slog.Debug("curated sets loaded", "path", p.CuratedSets, "sets", c.Curated.Len())
	}
	if p.Citations != "" {
		if c.Citations, err = LoadCitations(p.Citations); err != nil {
			return nil, fmt.Errorf("loading citations: %w", err)
		}
		slog.Debug("citations loaded", "path", p.Citations, "pairs", c.Citations.Len())
	}

	return c, nil
}

// ItemName returns the display name of an item id, or the id.
func (c *Catalog) ItemName(id string) string {
	if c == nil {
		return id
	}
	return c.Items.Name(id)
}

// CategoryName returns the display name of a category id, or the id.
func (c *Catalog) CategoryName(id string) string {
	if c == nil {
		return id
	}
	return c.Categories.Name(id)
}

// CategoryTerm returns the ontology metadata for a category id.
func (c *Catalog) CategoryTerm(id string) (*Term, bool) {
	if c == nil {
		return nil, false
	}
	return c.Categories.Term(id)
}

// IsCurated reports whether the curated collection lists the item under the category.
func (c *Catalog) IsCurated(categoryName, itemName string) bool {
	if c == nil {
		return false
	}
	return c.Curated.Contains(categoryName, itemName)
}

// CitationCount returns the number of references backing (item, category).
func (c *Catalog) CitationCount(itemID, categoryID string) int {
	if c == nil {
		return 0
	}
	return c.Citations.Count(itemID, categoryID)
}

// Letter returns the upper case first letter of a display name, used to
// bucket items alphabetically.
func Letter(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}
