package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TopFractionDefault is the share of pairs kept in the sparse graph view.
const TopFractionDefault = 0.01

// Pair is the similarity of two items sharing at least one category.
type Pair struct {
	Item1ID   string  `json:"item1_id" yaml:"item1Id"`
	Item1Name string  `json:"item1_name,omitempty" yaml:"item1Name,omitempty"`
	Item2ID   string  `json:"item2_id" yaml:"item2Id"`
	Item2Name string  `json:"item2_name,omitempty" yaml:"item2Name,omitempty"`
	Score     float64 `json:"score" yaml:"score"`
	MinMax    float64 `json:"score_minmax" yaml:"scoreMinMax"`
	Standard  float64 `json:"score_standard" yaml:"scoreStandard"`
}

// Has reports whether the item, by id or display name, is a member of the pair.
func (p *Pair) Has(key string) bool {
	return p.Item1ID == key || p.Item2ID == key || p.Item1Name == key || p.Item2Name == key
}

// Summary describes the raw score distribution of a run.
type Summary struct {
	Items  int     `json:"items" yaml:"items"`
	Pairs  int     `json:"pairs" yaml:"pairs"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"stdDev"`
}

// Result holds the similarity table ordered by descending raw score.
type Result struct {
	Pairs   []*Pair  `json:"-" yaml:"-"`
	Summary *Summary `json:"summary" yaml:"summary"`
}

// Compute scores every pair of profile items that share a category.
//
// For items i1 < i2 with shared categories S:
//
//	numerator   = sum over c in S with both p > 0 of ln(p1(c)) * ln(p2(c))
//	denominator = max(1, (|only i1| + |only i2|) / 2)
//
// Candidate pairs come from an inverted category index; the emitted pairs and
// their order match a nested loop over ascending item ids. Rows are scored
// on up to workers goroutines.
func Compute(ctx context.Context, p *Profile, workers int) (*Result, error) {
	if p == nil {
		return nil, errors.New("profile required")
	}
	if workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", workers)
	}

	start := time.Now()
	ids := p.Items()
	index := invert(p, ids)

	slog.Debug("scoring similarity", "items", len(ids), "categories", len(index), "workers", workers)

	rows := make([][]*Pair, len(ids))
	logEvery := max(len(ids)/10, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = scoreRow(p, ids, index, i)
			if (i+1)%logEvery == 0 {
				slog.Debug("similarity progress", "item", i+1, "total", len(ids))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pairs := make([]*Pair, 0)
	for _, row := range rows {
		pairs = append(pairs, row...)
	}

	summary := normalize(pairs)
	summary.Items = len(ids)

	slices.SortStableFunc(pairs, func(x, y *Pair) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		}
		return 0
	})

	slog.Info("similarity scored",
		"items", summary.Items,
		"pairs", summary.Pairs,
		"duration", time.Since(start).String(),
	)

	return &Result{Pairs: pairs, Summary: summary}, nil
}

// invert maps each category to the ascending positions of its items in ids.
func invert(p *Profile, ids []string) map[string][]int {
	index := make(map[string][]int)
	for i, id := range ids {
		for c := range p.values[id] {
			index[c] = append(index[c], i)
		}
	}
	return index
}

// scoreRow returns the pairs (ids[i], ids[j]) for j > i in ascending j.
func scoreRow(p *Profile, ids []string, index map[string][]int, i int) []*Pair {
	cats := p.Categories(ids[i])

	seen := make(map[int]struct{})
	for _, c := range cats {
		for _, j := range index[c] {
			if j > i {
				seen[j] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	partners := make([]int, 0, len(seen))
	for j := range seen {
		partners = append(partners, j)
	}
	slices.Sort(partners)

	first := p.values[ids[i]]
	row := make([]*Pair, 0, len(partners))
	for _, j := range partners {
		second := p.values[ids[j]]

		var numerator float64
		shared := 0
		for _, c := range cats {
			v2, ok := second[c]
			if !ok {
				continue
			}
			shared++
			if v1 := first[c]; v1 > 0 && v2 > 0 {
				numerator += math.Log(v1) * math.Log(v2)
			}
		}

		only := (len(first) - shared) + (len(second) - shared)
		denominator := math.Max(1.0, 0.5*float64(only))

		row = append(row, &Pair{
			Item1ID:   ids[i],
			Item1Name: p.Name(ids[i]),
			Item2ID:   ids[j],
			Item2Name: p.Name(ids[j]),
			Score:     numerator / denominator,
		})
	}
	return row
}

// normalize fills the min-max and standard scores. When every raw score is
// equal both derived scores are 0.
func normalize(pairs []*Pair) *Summary {
	s := &Summary{Pairs: len(pairs)}
	if len(pairs) == 0 {
		return s
	}

	raw := make([]float64, len(pairs))
	for i, p := range pairs {
		raw[i] = p.Score
	}
	s.Min = floats.Min(raw)
	s.Max = floats.Max(raw)
	s.Mean, s.StdDev = stat.PopMeanStdDev(raw, nil)

	if s.Max == s.Min {
		s.StdDev = 0
		return s
	}

	span := s.Max - s.Min
	for _, p := range pairs {
		p.MinMax = (p.Score - s.Min) / span
		if s.StdDev > 0 {
			p.Standard = (p.Score - s.Mean) / s.StdDev
		}
	}
	return s
}

// TopForItem returns up to n pairs containing the item, matched by id or
// display name, lowest raw score first. n <= 0 returns all of them.
func (r *Result) TopForItem(key string, n int) []*Pair {
	list := make([]*Pair, 0)
	if r == nil {
		return list
	}
	for _, p := range r.Pairs {
		if p.Has(key) {
			list = append(list, p)
		}
	}
	slices.SortStableFunc(list, func(x, y *Pair) int {
		switch {
		case x.Score < y.Score:
			return -1
		case x.Score > y.Score:
			return 1
		}
		return 0
	})
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}

// Selection is the top share of the similarity table viewed as a graph.
type Selection struct {
	Fraction float64 `json:"fraction" yaml:"fraction"`
	Nodes    int     `json:"nodes" yaml:"nodes"`
	Edges    int     `json:"edges" yaml:"edges"`
	Pairs    []*Pair `json:"-" yaml:"-"`
}

// Top returns the first int(fraction*len) pairs with the number of distinct
// items (nodes) and pairs (edges) in that cut.
func (r *Result) Top(fraction float64) (*Selection, error) {
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("fraction must be in (0, 1], got %v", fraction)
	}
	s := &Selection{Fraction: fraction}
	if r == nil {
		return s, nil
	}

	n := int(fraction * float64(len(r.Pairs)))
	s.Pairs = r.Pairs[:n]
	s.Edges = n

	nodes := make(map[string]struct{})
	for _, p := range s.Pairs {
		nodes[p.Item1ID] = struct{}{}
		nodes[p.Item2ID] = struct{}{}
	}
	s.Nodes = len(nodes)
	return s, nil
}
