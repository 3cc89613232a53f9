package lookup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/mchmarny/gof/pkg/mapping"
)

const (
	citationMinFields   = 7
	citationItemCol     = 1
	citationCategoryCol = 2
	citationRefCol      = 6
	citationRefSep      = "|"
	citationNone        = "-"
	gzipExt             = ".gz"
)

type pairKey struct {
	item     string
	category string
}

// Citations counts literature references backing an (item, category)
// annotation, read from a gene2go style evidence table.
type Citations struct {
	refs map[pairKey]map[string]struct{}
}

// NewCitations creates an empty evidence table.
func NewCitations() *Citations {
	return &Citations{refs: make(map[pairKey]map[string]struct{})}
}

// Add records references for the pair. References are deduplicated.
func (c *Citations) Add(item, category string, refs ...string) {
	k := pairKey{item: item, category: category}
	set, ok := c.refs[k]
	if !ok {
		set = make(map[string]struct{}, len(refs))
		c.refs[k] = set
	}
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" && r != citationNone {
			set[r] = struct{}{}
		}
	}
	if len(set) == 0 {
		delete(c.refs, k)
	}
}

// Count returns the number of distinct references for the pair.
func (c *Citations) Count(item, category string) int {
	if c == nil {
		return 0
	}
	return len(c.refs[pairKey{item: item, category: category}])
}

// Len returns the number of pairs with at least one reference.
func (c *Citations) Len() int {
	if c == nil {
		return 0
	}
	return len(c.refs)
}

// ReadCitations parses a tab separated evidence table with a header row where
// column 2 is the item id, column 3 the category id and column 7 the
// |-joined reference ids ("-" for none).
func ReadCitations(r io.Reader, source string) (*Citations, error) {
	if r == nil {
		return nil, errors.New("reader required")
	}

	c := NewCitations()
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for s.Scan() {
		line++
		text := strings.TrimRight(s.Text(), "\r")
		if line == 1 || strings.HasPrefix(text, "#") || strings.TrimSpace(text) == "" {
			continue
		}
		parts := strings.Split(text, "\t")
		if len(parts) < citationMinFields {
			return nil, mapping.NewFormatError(source, line, "expected %d fields, got %d", citationMinFields, len(parts))
		}
		refs := strings.TrimSpace(parts[citationRefCol])
		if refs == citationNone || refs == "" {
			continue
		}
		c.Add(strings.TrimSpace(parts[citationItemCol]), strings.TrimSpace(parts[citationCategoryCol]),
			strings.Split(refs, citationRefSep)...)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	return c, nil
}

// LoadCitations reads an evidence table from path, decompressing it when the
// file name ends in .gz.
func LoadCitations(path string) (*Citations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening citation file %s: %w", path, err)
	}
	defer f.Close()

	if !strings.HasSuffix(path, gzipExt) {
		return ReadCitations(f, path)
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
	}
	defer zr.Close()
	return ReadCitations(zr, path)
}
