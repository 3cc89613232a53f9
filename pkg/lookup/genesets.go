package lookup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const maxLineBytes = 16 * 1024 * 1024

var setNamePrefixes = []string{"GOBP_", "GOCC_", "GOMF_", "GO_"}

// GeneSets is a curated category -> member collection read from a GMT file.
// Sets are keyed by normalized category name.
type GeneSets struct {
	sets map[string]map[string]struct{}
}

// NormalizeSetName turns a GMT set name like GO_IMMUNE_RESPONSE into the
// lower case display form "immune response".
func NormalizeSetName(name string) string {
	name = strings.TrimSpace(name)
	for _, p := range setNamePrefixes {
		if strings.HasPrefix(name, p) {
			name = strings.TrimPrefix(name, p)
			break
		}
	}
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}

// NewGeneSets builds the collection from set name -> members.
func NewGeneSets(sets map[string][]string) *GeneSets {
	g := &GeneSets{sets: make(map[string]map[string]struct{}, len(sets))}
	for name, members := range sets {
		g.add(name, members)
	}
	return g
}

func (g *GeneSets) add(name string, members []string) {
	key := NormalizeSetName(name)
	set, ok := g.sets[key]
	if !ok {
		set = make(map[string]struct{}, len(members))
		g.sets[key] = set
	}
	for _, m := range members {
		if m = strings.TrimSpace(m); m != "" {
			set[m] = struct{}{}
		}
	}
}

// Contains reports whether member belongs to the set named categoryName.
// The category name is matched case-insensitively.
func (g *GeneSets) Contains(categoryName, member string) bool {
	if g == nil {
		return false
	}
	set, ok := g.sets[strings.ToLower(strings.TrimSpace(categoryName))]
	if !ok {
		return false
	}
	_, ok = set[member]
	return ok
}

// Len returns the number of sets.
func (g *GeneSets) Len() int {
	if g == nil {
		return 0
	}
	return len(g.sets)
}

// ReadGeneSets parses GMT content: one set per line as
// name<TAB>description<TAB>member...
func ReadGeneSets(r io.Reader, source string) (*GeneSets, error) {
	if r == nil {
		return nil, errors.New("reader required")
	}

	g := &GeneSets{sets: make(map[string]map[string]struct{})}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for s.Scan() {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		parts := strings.Split(text, "\t")
		var members []string
		if len(parts) > 2 {
			members = parts[2:]
		}
		g.add(parts[0], members)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	return g, nil
}

// LoadGeneSets reads a GMT file from path.
func LoadGeneSets(path string) (*GeneSets, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening gene set file %s: %w", path, err)
	}
	defer f.Close()
	return ReadGeneSets(f, path)
}
