package enrich

import (
	"cmp"
	"slices"
)

// Table is the association table: surviving records ordered by ascending
// adjusted p-value, ties by item id then category id.
type Table struct {
	Records []*Association `json:"records" yaml:"records"`
}

// NewTable sorts the records into table order.
func NewTable(records []*Association) *Table {
	list := slices.Clone(records)
	slices.SortStableFunc(list, func(x, y *Association) int {
		if c := cmp.Compare(x.AdjustedPValue, y.AdjustedPValue); c != 0 {
			return c
		}
		if c := cmp.Compare(x.ItemID, y.ItemID); c != 0 {
			return c
		}
		return cmp.Compare(x.CategoryID, y.CategoryID)
	})
	return &Table{Records: list}
}

// Filter keeps records with adjusted p <= opts.Alpha that either share at
// least opts.MinOverlap contexts or are corroborated externally.
func Filter(records []*Association, opts Options) []*Association {
	list := make([]*Association, 0)
	for _, a := range records {
		if a.AdjustedPValue > opts.Alpha {
			continue
		}
		if a.A >= opts.MinOverlap || a.Corroborated() {
			list = append(list, a)
		}
	}
	return list
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Items returns the distinct item ids in ascending order.
func (t *Table) Items() []string {
	return t.distinct(func(a *Association) string { return a.ItemID })
}

// Categories returns the distinct category ids in ascending order.
func (t *Table) Categories() []string {
	return t.distinct(func(a *Association) string { return a.CategoryID })
}

func (t *Table) distinct(key func(*Association) string) []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{})
	list := make([]string, 0)
	for _, a := range t.Records {
		k := key(a)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		list = append(list, k)
	}
	slices.Sort(list)
	return list
}

// TopForItem returns up to n records of the item matched by id or display
// name, least significant first. n <= 0 returns all of them.
func (t *Table) TopForItem(key string, n int) []*Association {
	return t.top(n, func(a *Association) bool {
		return a.ItemID == key || a.ItemName == key
	})
}

// TopForCategory returns up to n records of the category matched by id or
// display name, least significant first. n <= 0 returns all of them.
func (t *Table) TopForCategory(key string, n int) []*Association {
	return t.top(n, func(a *Association) bool {
		return a.CategoryID == key || a.CategoryName == key
	})
}

func (t *Table) top(n int, match func(*Association) bool) []*Association {
	list := make([]*Association, 0)
	if t == nil {
		return list
	}
	for _, a := range t.Records {
		if match(a) {
			list = append(list, a)
		}
	}
	slices.SortStableFunc(list, func(x, y *Association) int {
		return cmp.Compare(y.AdjustedPValue, x.AdjustedPValue)
	})
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}
