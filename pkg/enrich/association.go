package enrich

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/mchmarny/gof/pkg/stats"
)

const (
	// AlphaDefault is the adjusted p-value cutoff of the association table.
	AlphaDefault = 0.05

	// MinOverlapDefault is the smallest shared context count kept without
	// external corroboration.
	MinOverlapDefault = 5
)

// Association is one scored (item, category) cell.
type Association struct {
	Letter            string  `json:"letter,omitempty" yaml:"letter,omitempty"`
	ItemID            string  `json:"item_id" yaml:"itemId"`
	ItemName          string  `json:"item_name,omitempty" yaml:"itemName,omitempty"`
	CategoryID        string  `json:"category_id" yaml:"categoryId"`
	CategoryNamespace string  `json:"category_namespace,omitempty" yaml:"categoryNamespace,omitempty"`
	CategoryName      string  `json:"category_name,omitempty" yaml:"categoryName,omitempty"`
	A                 int     `json:"a" yaml:"a"`
	B                 int     `json:"b" yaml:"b"`
	C                 int     `json:"c" yaml:"c"`
	D                 int     `json:"d" yaml:"d"`
	PValue            float64 `json:"p_value" yaml:"pValue"`
	AdjustedPValue    float64 `json:"adjusted_p_value" yaml:"adjustedPValue"`
	EnrichmentScore   float64 `json:"enrichment_score" yaml:"enrichmentScore"`
	CategoryLevel     int     `json:"category_level,omitempty" yaml:"categoryLevel,omitempty"`
	CategoryChildren  int     `json:"category_children,omitempty" yaml:"categoryChildren,omitempty"`
	Curated           bool    `json:"curated" yaml:"curated"`
	Citations         int     `json:"citations" yaml:"citations"`
}

// Table returns the contingency table of the cell.
func (a *Association) Table() stats.Table {
	return stats.Table{A: a.A, B: a.B, C: a.C, D: a.D}
}

// Corroborated reports whether an external source backs the association.
func (a *Association) Corroborated() bool {
	return a.Curated || a.Citations > 0
}

// Options tunes the association scorer.
type Options struct {
	Alpha      float64 `json:"alpha" yaml:"alpha"`
	MinOverlap int     `json:"min_overlap" yaml:"minOverlap"`
	Workers    int     `json:"workers" yaml:"workers"`
	CacheSize  int     `json:"cache_size" yaml:"cacheSize"`
}

// DefaultOptions returns the standard scorer settings.
func DefaultOptions() Options {
	return Options{
		Alpha:      AlphaDefault,
		MinOverlap: MinOverlapDefault,
		Workers:    runtime.NumCPU(),
		CacheSize:  stats.CacheSizeDefault,
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.Alpha <= 0 || o.Alpha > 1 {
		return fmt.Errorf("alpha must be in (0, 1], got %v", o.Alpha)
	}
	if o.MinOverlap < 0 {
		return errors.New("min overlap must not be negative")
	}
	if o.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if o.CacheSize < 1 {
		return errors.New("cache size must be at least 1")
	}
	return nil
}

// Summary counts what a scoring run saw and kept.
type Summary struct {
	Items          int     `json:"items" yaml:"items"`
	Categories     int     `json:"categories" yaml:"categories"`
	Contexts       int     `json:"contexts" yaml:"contexts"`
	Overlapping    int     `json:"overlapping" yaml:"overlapping"`
	Scored         int     `json:"scored" yaml:"scored"`
	Retained       int     `json:"retained" yaml:"retained"`
	RetainedItems  int     `json:"retained_items" yaml:"retainedItems"`
	RetainedCats   int     `json:"retained_categories" yaml:"retainedCategories"`
	MinAdjustedP   float64 `json:"min_adjusted_p" yaml:"minAdjustedP"`
}

// Result is the outcome of Score: the filtered table plus every cell that
// passed the exact test, before filtering.
type Result struct {
	Table   *Table         `json:"-" yaml:"-"`
	Scored  []*Association `json:"-" yaml:"-"`
	Summary *Summary       `json:"summary" yaml:"summary"`
}
