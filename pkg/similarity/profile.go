package similarity

import (
	"slices"

	"github.com/mchmarny/gof/pkg/enrich"
)

// Profile is the association table reduced to item -> category -> adjusted
// p-value. Items without categories are never stored.
type Profile struct {
	values map[string]map[string]float64
	names  map[string]string
}

// NewProfile creates an empty profile.
func NewProfile() *Profile {
	return &Profile{
		values: make(map[string]map[string]float64),
		names:  make(map[string]string),
	}
}

// ProfileFromTable builds the profile of an association table. Item display
// names are carried over for the similarity records.
func ProfileFromTable(t *enrich.Table) *Profile {
	p := NewProfile()
	if t == nil {
		return p
	}
	for _, a := range t.Records {
		p.Add(a.ItemID, a.CategoryID, a.AdjustedPValue)
		if a.ItemName != "" {
			p.SetName(a.ItemID, a.ItemName)
		}
	}
	return p
}

// Add records the adjusted p-value of (item, category). A repeated pair
// overwrites the previous value.
func (p *Profile) Add(item, category string, adjusted float64) {
	cats, ok := p.values[item]
	if !ok {
		cats = make(map[string]float64)
		p.values[item] = cats
	}
	cats[category] = adjusted
}

// SetName sets the display name of an item.
func (p *Profile) SetName(item, name string) {
	p.names[item] = name
}

// Name returns the display name of an item, or its id.
func (p *Profile) Name(item string) string {
	if n, ok := p.names[item]; ok {
		return n
	}
	return item
}

// Items returns the item ids in ascending order.
func (p *Profile) Items() []string {
	list := make([]string, 0, len(p.values))
	for id := range p.values {
		list = append(list, id)
	}
	slices.Sort(list)
	return list
}

// Categories returns the categories of an item in ascending order.
func (p *Profile) Categories(item string) []string {
	cats := p.values[item]
	list := make([]string, 0, len(cats))
	for c := range cats {
		list = append(list, c)
	}
	slices.Sort(list)
	return list
}

// Value returns the adjusted p-value of (item, category).
func (p *Profile) Value(item, category string) (float64, bool) {
	v, ok := p.values[item][category]
	return v, ok
}

// Len returns the number of items.
func (p *Profile) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}
