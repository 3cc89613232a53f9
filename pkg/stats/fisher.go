package stats

import (
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/stat/combin"
)

const (
	// CacheSizeDefault is the number of distinct tables memoized by default.
	CacheSizeDefault = 1 << 14

	// relative tolerance used when comparing table probabilities, same as R and scipy
	relErr = 1 + 1e-7
)

// Table is a 2x2 contingency table [[A, B], [C, D]].
type Table struct {
	A int `json:"a" yaml:"a"`
	B int `json:"b" yaml:"b"`
	C int `json:"c" yaml:"c"`
	D int `json:"d" yaml:"d"`
}

// Total returns the number of observations in the table.
func (t Table) Total() int {
	return t.A + t.B + t.C + t.D
}

// Validate returns an error when any cell is negative.
func (t Table) Validate() error {
	if t.A < 0 || t.B < 0 || t.C < 0 || t.D < 0 {
		return fmt.Errorf("negative cell in contingency table %+v", t)
	}
	return nil
}

// FisherExact returns the two-sided p-value of Fisher's exact test for t.
// The p-value is the sum of the hypergeometric probabilities of all tables
// with the same margins that are no more likely than the observed one.
func FisherExact(t Table) (float64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	n := t.Total()
	row1 := t.A + t.B
	col1 := t.A + t.C
	if n == 0 || row1 == 0 || col1 == 0 || row1 == n || col1 == n {
		return 1, nil
	}

	lo := max(0, row1+col1-n)
	hi := min(row1, col1)

	norm := combin.LogGeneralizedBinomial(float64(n), float64(row1))
	logPMF := func(x int) float64 {
		return combin.LogGeneralizedBinomial(float64(col1), float64(x)) +
			combin.LogGeneralizedBinomial(float64(n-col1), float64(row1-x)) - norm
	}

	cutoff := logPMF(t.A) + math.Log(relErr)

	var p float64
	excluded := false
	for x := lo; x <= hi; x++ {
		if lp := logPMF(x); lp <= cutoff {
			p += math.Exp(lp)
		} else {
			excluded = true
		}
	}
	if !excluded {
		return 1, nil
	}

	return min(p, 1), nil
}

// FisherTest memoizes FisherExact results. It is safe for concurrent use.
type FisherTest struct {
	cache *lru.Cache[Table, float64]
}

// NewFisherTest creates a memoizing test holding up to size tables.
func NewFisherTest(size int) (*FisherTest, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	c, err := lru.New[Table, float64](size)
	if err != nil {
		return nil, fmt.Errorf("creating fisher cache: %w", err)
	}
	return &FisherTest{cache: c}, nil
}

// PValue returns the two-sided Fisher exact p-value for t.
func (f *FisherTest) PValue(t Table) (float64, error) {
	if p, ok := f.cache.Get(t); ok {
		return p, nil
	}
	p, err := FisherExact(t)
	if err != nil {
		return 0, err
	}
	f.cache.Add(t, p)
	return p, nil
}

// Len returns the number of memoized tables.
func (f *FisherTest) Len() int {
	return f.cache.Len()
}
