package lookup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mchmarny/gof/pkg/mapping"
)

// Names maps item identifiers to display names and back.
type Names struct {
	idToName  map[string]string
	nameToID  map[string]string
	canonical map[string]string
}

// NewNames builds the lookup from id -> name pairs. When several ids share a
// name, the name resolves to the largest id and every id of the group is
// canonicalized to it.
func NewNames(pairs map[string]string) *Names {
	byName := make(map[string][]string)
	for id, name := range pairs {
		byName[name] = append(byName[name], id)
	}

	n := &Names{
		idToName:  make(map[string]string, len(pairs)),
		nameToID:  make(map[string]string, len(byName)),
		canonical: make(map[string]string, len(pairs)),
	}
	for name, ids := range byName {
		best := ids[0]
		for _, id := range ids[1:] {
			if idGreater(id, best) {
				best = id
			}
		}
		n.nameToID[name] = best
		for _, id := range ids {
			n.idToName[id] = name
			n.canonical[id] = best
		}
	}
	return n
}

func idGreater(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai > bi
	}
	return a > b
}

// Name returns the display name of id, or id itself when unknown.
func (n *Names) Name(id string) string {
	if n == nil {
		return id
	}
	if v, ok := n.idToName[id]; ok && v != "" {
		return v
	}
	return id
}

// ID returns the identifier for a display name.
func (n *Names) ID(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	id, ok := n.nameToID[name]
	return id, ok
}

// Canonical returns the preferred id for id, or id itself when unknown.
func (n *Names) Canonical(id string) string {
	if n == nil {
		return id
	}
	if v, ok := n.canonical[id]; ok {
		return v
	}
	return id
}

// Len returns the number of known ids.
func (n *Names) Len() int {
	if n == nil {
		return 0
	}
	return len(n.idToName)
}

// ReadNames parses a tab separated file with a header row whose first two
// columns are the id and the display name.
func ReadNames(r io.Reader, source string) (*Names, error) {
	if r == nil {
		return nil, errors.New("reader required")
	}

	pairs := make(map[string]string)
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for s.Scan() {
		line++
		if line == 1 {
			continue
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		parts := strings.Split(text, "\t")
		if len(parts) < 2 {
			return nil, mapping.NewFormatError(source, line, "expected id and name, got %d fields", len(parts))
		}
		pairs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}

	return NewNames(pairs), nil
}

// LoadNames reads an item information file from path.
func LoadNames(path string) (*Names, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening names file %s: %w", path, err)
	}
	defer f.Close()
	return ReadNames(f, path)
}
