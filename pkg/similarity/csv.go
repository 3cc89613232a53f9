package similarity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mchmarny/gof/pkg/enrich"
	"github.com/mchmarny/gof/pkg/mapping"
)

var pairHeader = []string{
	"item1_id", "item1_name", "item2_id", "item2_name", "score", "score_minmax", "score_standard",
}

// WritePairs writes similarity pairs as CSV with a header row.
func WritePairs(w io.Writer, pairs []*Pair) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(pairHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, p := range pairs {
		rec := []string{
			p.Item1ID, p.Item1Name, p.Item2ID, p.Item2Name,
			enrich.FormatFloat(p.Score), enrich.FormatFloat(p.MinMax), enrich.FormatFloat(p.Standard),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing %s/%s: %w", p.Item1ID, p.Item2ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPairs parses a similarity table written by WritePairs.
func ReadPairs(r io.Reader, source string) ([]*Pair, error) {
	if r == nil {
		return nil, errors.New("reader required")
	}

	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, mapping.NewFormatError(source, 1, "missing header")
		}
		return nil, fmt.Errorf("reading %s header: %w", source, err)
	}
	if len(header) != len(pairHeader) || !strings.EqualFold(strings.TrimSpace(header[0]), pairHeader[0]) {
		return nil, mapping.NewFormatError(source, 1, "unexpected header %v", header)
	}

	list := make([]*Pair, 0)
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

		p := &Pair{Item1ID: rec[0], Item1Name: rec[1], Item2ID: rec[2], Item2Name: rec[3]}
		if p.Item1ID == "" || p.Item2ID == "" {
			return nil, mapping.NewFormatError(source, line, "empty item id")
		}
		for i, dst := range []*float64{&p.Score, &p.MinMax, &p.Standard} {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[4+i]), 64)
			if err != nil {
				return nil, mapping.NewFormatError(source, line, "invalid %s %q", pairHeader[4+i], rec[4+i])
			}
			*dst = v
		}
		list = append(list, p)
	}
	return list, nil
}

// LoadPairs reads a similarity table file.
func LoadPairs(path string) ([]*Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening similarity file %s: %w", path, err)
	}
	defer f.Close()
	return ReadPairs(f, path)
}
