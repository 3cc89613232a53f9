package enrich

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mchmarny/gof/pkg/mapping"
)

const (
	colLetter            = "letter"
	colItemID            = "item_id"
	colItemName          = "item_name"
	colCategoryID        = "category_id"
	colCategoryNamespace = "category_namespace"
	colCategoryName      = "category_name"
	colA                 = "a"
	colB                 = "b"
	colC                 = "c"
	colD                 = "d"
	colPValue            = "p_value"
	colAdjustedPValue    = "adjusted_p_value"
	colEnrichmentScore   = "enrichment_score"
	colCategoryLevel     = "category_level"
	colCategoryChildren  = "category_children"
	colCurated           = "curated"
	colCitations         = "citations"
)

var (
	tableHeader = []string{
		colLetter, colItemID, colItemName, colCategoryID, colCategoryNamespace, colCategoryName,
		colA, colB, colC, colD, colPValue, colAdjustedPValue, colEnrichmentScore,
		colCategoryLevel, colCategoryChildren, colCurated, colCitations,
	}

	pvalueHeader = []string{colItemID, colCategoryID, colPValue, colAdjustedPValue}
)

// FormatFloat renders v in the shortest form that parses back to v.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// WriteTable writes the association table as CSV with a header row.
func WriteTable(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if t != nil {
		for _, a := range t.Records {
			rec := []string{
				a.Letter, a.ItemID, a.ItemName, a.CategoryID, a.CategoryNamespace, a.CategoryName,
				strconv.Itoa(a.A), strconv.Itoa(a.B), strconv.Itoa(a.C), strconv.Itoa(a.D),
				FormatFloat(a.PValue), FormatFloat(a.AdjustedPValue), FormatFloat(a.EnrichmentScore),
				strconv.Itoa(a.CategoryLevel), strconv.Itoa(a.CategoryChildren),
				boolFlag(a.Curated), strconv.Itoa(a.Citations),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("writing %s/%s: %w", a.ItemID, a.CategoryID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePValues writes item, category, p-value and adjusted p-value for every
// scored cell.
func WritePValues(w io.Writer, scored []*Association) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(pvalueHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, a := range scored {
		rec := []string{a.ItemID, a.CategoryID, FormatFloat(a.PValue), FormatFloat(a.AdjustedPValue)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing %s/%s: %w", a.ItemID, a.CategoryID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable parses an association table written by WriteTable. Only the
// item_id, category_id and adjusted_p_value columns are required; record
// order is preserved.
func ReadTable(r io.Reader, source string) (*Table, error) {
	if r == nil {
		return nil, errors.New("reader required")
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, mapping.NewFormatError(source, 1, "missing header")
		}
		return nil, fmt.Errorf("reading %s header: %w", source, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range []string{colItemID, colCategoryID, colAdjustedPValue} {
		if _, ok := cols[c]; !ok {
			return nil, mapping.NewFormatError(source, 1, "missing %s column", c)
		}
	}

	records := make([]*Association, 0)
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, mapping.NewFormatError(source, line, "%v", err)
		}

		p := &rowParser{rec: rec, cols: cols}
		a := &Association{
			Letter:            p.strCol(colLetter),
			ItemID:            p.strCol(colItemID),
			ItemName:          p.strCol(colItemName),
			CategoryID:        p.strCol(colCategoryID),
			CategoryNamespace: p.strCol(colCategoryNamespace),
			CategoryName:      p.strCol(colCategoryName),
			A:                 p.intCol(colA),
			B:                 p.intCol(colB),
			C:                 p.intCol(colC),
			D:                 p.intCol(colD),
			PValue:            p.floatCol(colPValue),
			EnrichmentScore:   p.floatCol(colEnrichmentScore),
			CategoryLevel:     p.intCol(colCategoryLevel),
			CategoryChildren:  p.intCol(colCategoryChildren),
			Curated:           p.intCol(colCurated) != 0,
			Citations:         p.intCol(colCitations),
		}
		if a.ItemID == "" || a.CategoryID == "" {
			return nil, mapping.NewFormatError(source, line, "empty item or category id")
		}
		if p.strCol(colAdjustedPValue) == "" {
			return nil, mapping.NewFormatError(source, line, "empty %s", colAdjustedPValue)
		}
		a.AdjustedPValue = p.floatCol(colAdjustedPValue)
		if p.err != nil {
			return nil, mapping.NewFormatError(source, line, "%v", p.err)
		}
		records = append(records, a)
	}

	return &Table{Records: records}, nil
}

// LoadTable reads an association table file.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening association file %s: %w", path, err)
	}
	defer f.Close()
	return ReadTable(f, path)
}

// rowParser reads optional typed columns and keeps the first conversion error.
type rowParser struct {
	rec  []string
	cols map[string]int
	err  error
}

func (p *rowParser) strCol(name string) string {
	i, ok := p.cols[name]
	if !ok || i >= len(p.rec) {
		return ""
	}
	return strings.TrimSpace(p.rec[i])
}

func (p *rowParser) intCol(name string) int {
	s := p.strCol(name)
	if s == "" || p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		p.err = fmt.Errorf("invalid %s %q", name, s)
	}
	return v
}

func (p *rowParser) floatCol(name string) float64 {
	s := p.strCol(name)
	if s == "" || p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("invalid %s %q", name, s)
	}
	return v
}
