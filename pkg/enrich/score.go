package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mchmarny/gof/pkg/lookup"
	"github.com/mchmarny/gof/pkg/mapping"
	"github.com/mchmarny/gof/pkg/stats"
	"golang.org/x/sync/errgroup"
)

// itemResult holds what one item contributed before the global pass.
type itemResult struct {
	cells       []*Association
	overlapping int
}

// Score runs the association scorer over the item and category mappings.
// The context universe is the union of all item and category contexts.
// Items and categories are visited in ascending id order and per-item work
// fans out over opts.Workers goroutines; the output does not depend on the
// worker count. An input without any overlap yields an empty table.
func Score(ctx context.Context, items, categories *mapping.Mapping, catalog *lookup.Catalog, opts Options) (*Result, error) {
	if items == nil || categories == nil {
		return nil, errors.New("item and category mappings are required")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	start := time.Now()
	test, err := stats.NewFisherTest(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	universe := make(map[string]struct{})
	for _, m := range []*mapping.Mapping{items, categories} {
		for _, c := range m.Contexts() {
			universe[c] = struct{}{}
		}
	}

	cats := make([]*mapping.Entry, 0, categories.Len())
	for _, id := range categories.IDs() {
		e, _ := categories.Get(id)
		cats = append(cats, e)
	}
	itemIDs := items.IDs()

	slog.Debug("scoring associations",
		"items", len(itemIDs),
		"categories", len(cats),
		"contexts", len(universe),
		"workers", opts.Workers,
	)

	results := make([]itemResult, len(itemIDs))
	logEvery := max(len(itemIDs)/10, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, id := range itemIDs {
		item, _ := items.Get(id)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := scoreItem(item, cats, len(universe), test)
			if err != nil {
				return fmt.Errorf("scoring item %s: %w", id, err)
			}
			results[i] = r
			if (i+1)%logEvery == 0 {
				slog.Debug("association progress", "item", i+1, "total", len(itemIDs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		Items:      items.Len(),
		Categories: categories.Len(),
		Contexts:   len(universe),
	}

	scored := make([]*Association, 0)
	for _, r := range results {
		summary.Overlapping += r.overlapping
		scored = append(scored, r.cells...)
	}
	summary.Scored = len(scored)

	floor := minPositive(scored)
	summary.MinAdjustedP = floor
	for _, a := range scored {
		a.EnrichmentScore = EnrichmentScore(a.AdjustedPValue, floor)
		describe(a, items, categories, catalog)
	}

	table := NewTable(Filter(scored, opts))
	summary.Retained = table.Len()
	summary.RetainedItems = len(table.Items())
	summary.RetainedCats = len(table.Categories())

	slog.Info("associations scored",
		"overlapping", summary.Overlapping,
		"scored", summary.Scored,
		"retained", summary.Retained,
		"duration", time.Since(start).String(),
	)

	return &Result{
		Table:   table,
		Scored:  scored,
		Summary: summary,
	}, nil
}

// scoreItem tests the item against every category and adjusts the retained
// p-values as one family.
func scoreItem(item *mapping.Entry, cats []*mapping.Entry, universe int, test *stats.FisherTest) (itemResult, error) {
	var r itemResult
	family := make([]*Association, 0)
	pvalues := make([]float64, 0)

	for _, cat := range cats {
		a := overlap(item, cat)
		if a == 0 {
			continue
		}
		r.overlapping++

		t := stats.Table{
			A: a,
			B: item.Len() - a,
			C: cat.Len() - a,
		}
		t.D = universe - t.A - t.B - t.C

		p, err := test.PValue(t)
		if err != nil {
			return r, err
		}
		if p >= 1.0 {
			continue
		}

		family = append(family, &Association{
			ItemID:     item.ID,
			CategoryID: cat.ID,
			A:          t.A,
			B:          t.B,
			C:          t.C,
			D:          t.D,
			PValue:     p,
		})
		pvalues = append(pvalues, p)
	}

	for i, adj := range AdjustFamily(pvalues) {
		family[i].AdjustedPValue = adj
	}
	r.cells = family
	return r, nil
}

// overlap counts the contexts shared by x and y, walking the smaller set.
func overlap(x, y *mapping.Entry) int {
	if x.Len() > y.Len() {
		x, y = y, x
	}
	n := 0
	for _, c := range x.Contexts {
		if y.Has(c) {
			n++
		}
	}
	return n
}

// describe attaches display names, ontology metadata and the external
// evidence counts. Unknown ids fall back to the mapping names, then the ids.
func describe(a *Association, items, categories *mapping.Mapping, catalog *lookup.Catalog) {
	a.ItemName = catalog.ItemName(a.ItemID)
	if a.ItemName == a.ItemID {
		if e, ok := items.Get(a.ItemID); ok && e.Name != "" {
			a.ItemName = e.Name
		}
	}
	a.Letter = lookup.Letter(a.ItemName)

	a.CategoryName = catalog.CategoryName(a.CategoryID)
	if a.CategoryName == a.CategoryID {
		if e, ok := categories.Get(a.CategoryID); ok && e.Name != "" {
			a.CategoryName = e.Name
		}
	}
	if term, ok := catalog.CategoryTerm(a.CategoryID); ok {
		a.CategoryNamespace = term.Namespace
		a.CategoryLevel = term.Level
		a.CategoryChildren = len(term.Children)
	}

	a.Curated = catalog.IsCurated(a.CategoryName, a.ItemName)
	a.Citations = catalog.CitationCount(a.ItemID, a.CategoryID)
}
