package mapping

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

const (
	fieldSeparator   = "\t"
	contextSeparator = ";"
	minFields        = 3
)

// Entry is one mapped entity and the contexts it was observed in.
type Entry struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Contexts []string `json:"contexts" yaml:"contexts"`

	set map[string]struct{}
}

// Has reports whether the entry was observed in ctx.
func (e *Entry) Has(ctx string) bool {
	_, ok := e.set[ctx]
	return ok
}

// Len returns the number of distinct contexts.
func (e *Entry) Len() int {
	return len(e.Contexts)
}

// Mapping maps entity ids to their context sets. Ids iterate in ascending order.
type Mapping struct {
	entries map[string]*Entry
	ids     []string
	sorted  bool
}

// New returns an empty mapping.
func New() *Mapping {
	return &Mapping{entries: make(map[string]*Entry)}
}

// Add inserts an entity. Contexts are trimmed and deduplicated; at least one
// is required and ids must be unique.
func (m *Mapping) Add(id, name string, contexts []string) error {
	if reason := m.add(id, name, contexts); reason != "" {
		return fmt.Errorf("%w: %s", ErrMalformedInput, reason)
	}
	return nil
}

func (m *Mapping) add(id, name string, contexts []string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "empty id"
	}
	if _, ok := m.entries[id]; ok {
		return fmt.Sprintf("duplicate id %s", id)
	}

	set := make(map[string]struct{}, len(contexts))
	list := make([]string, 0, len(contexts))
	for _, c := range contexts {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := set[c]; ok {
			continue
		}
		set[c] = struct{}{}
		list = append(list, c)
	}
	if len(list) == 0 {
		return fmt.Sprintf("no contexts for %s", id)
	}
	slices.Sort(list)

	m.entries[id] = &Entry{
		ID:       id,
		Name:     strings.TrimSpace(name),
		Contexts: list,
		set:      set,
	}
	m.ids = append(m.ids, id)
	m.sorted = false
	return ""
}

// IDs returns the entity ids in ascending order.
func (m *Mapping) IDs() []string {
	if !m.sorted {
		slices.Sort(m.ids)
		m.sorted = true
	}
	return slices.Clone(m.ids)
}

// Get returns the entry for id.
func (m *Mapping) Get(id string) (*Entry, bool) {
	e, ok := m.entries[id]
	return e, ok
}

// Len returns the number of entities.
func (m *Mapping) Len() int {
	return len(m.entries)
}

// Contexts returns the sorted union of all contexts in the mapping.
func (m *Mapping) Contexts() []string {
	seen := make(map[string]struct{})
	list := make([]string, 0)
	for _, e := range m.entries {
		for _, c := range e.Contexts {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			list = append(list, c)
		}
	}
	slices.Sort(list)
	return list
}

// Read parses a tab separated mapping with a header row and
// `id, display name, ;-joined contexts` rows. Any malformed row fails the read.
func Read(r io.Reader, source string) (*Mapping, error) {
	if r == nil {
		return nil, errors.New("reader required")
	}

	m := New()
	br := bufio.NewReader(r)
	line := 0
	for {
		s, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading %s: %w", source, err)
		}
		if s == "" && errors.Is(err, io.EOF) {
			break
		}
		line++

		s = strings.TrimRight(s, "\r\n")
		if line == 1 || strings.TrimSpace(s) == "" {
			if errors.Is(err, io.EOF) {
				break
			}
			continue
		}

		parts := strings.Split(s, fieldSeparator)
		if len(parts) < minFields {
			return nil, NewFormatError(source, line, "expected %d fields, got %d", minFields, len(parts))
		}
		if reason := m.add(parts[0], parts[1], strings.Split(parts[2], contextSeparator)); reason != "" {
			return nil, NewFormatError(source, line, "%s", reason)
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}

	return m, nil
}

// Load reads a mapping file from path.
func Load(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mapping file %s: %w", path, err)
	}
	defer f.Close()

	return Read(f, path)
}

// Write serializes the mapping in the same format Read accepts.
func (m *Mapping) Write(w io.Writer, idColumn, nameColumn string) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s\t%s\tContexts\n", idColumn, nameColumn); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, id := range m.IDs() {
		e := m.entries[id]
		name := e.Name
		if name == "" {
			name = e.ID
		}
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\n", e.ID, name, strings.Join(e.Contexts, contextSeparator)); err != nil {
			return fmt.Errorf("writing %s: %w", id, err)
		}
	}
	return bw.Flush()
}
