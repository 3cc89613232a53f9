package lookup

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

const listSeparator = ";"

// Term is the metadata of one ontology category.
type Term struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Namespace string   `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Level     int      `json:"level,omitempty" yaml:"level,omitempty"`
	Children  []string `json:"children,omitempty" yaml:"children,omitempty"`
	AltIDs    []string `json:"alt_ids,omitempty" yaml:"altIds,omitempty"`
}

// Ontology indexes category terms by id, alternate id and name.
type Ontology struct {
	terms  map[string]*Term
	alt    map[string]string
	byName map[string]string
}

// NewOntology indexes the given terms.
func NewOntology(terms []*Term) *Ontology {
	o := &Ontology{
		terms:  make(map[string]*Term, len(terms)),
		alt:    make(map[string]string),
		byName: make(map[string]string, len(terms)),
	}
	for _, t := range terms {
		if t == nil || t.ID == "" {
			continue
		}
		o.terms[t.ID] = t
		if t.Name != "" {
			o.byName[t.Name] = t.ID
		}
		for _, a := range t.AltIDs {
			o.alt[a] = t.ID
		}
	}
	return o
}

// Term returns the term for id, resolving alternate ids.
func (o *Ontology) Term(id string) (*Term, bool) {
	if o == nil {
		return nil, false
	}
	if t, ok := o.terms[id]; ok {
		return t, true
	}
	if primary, ok := o.alt[id]; ok {
		t, found := o.terms[primary]
		return t, found
	}
	return nil, false
}

// Name returns the display name for id, or id itself when unknown.
func (o *Ontology) Name(id string) string {
	if t, ok := o.Term(id); ok && t.Name != "" {
		return t.Name
	}
	return id
}

// ID returns the id of the term with the given name.
func (o *Ontology) ID(name string) (string, bool) {
	if o == nil {
		return "", false
	}
	id, ok := o.byName[name]
	return id, ok
}

// Len returns the number of primary terms.
func (o *Ontology) Len() int {
	if o == nil {
		return 0
	}
	return len(o.terms)
}

// ReadOntology parses a comma separated term table. The header must name the
// id and name columns; namespace, level, children and alt_ids are optional.
func ReadOntology(r io.Reader, source string) (*Ontology, error) {
	if r == nil {
		return nil, errors.New("reader required")
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewOntology(nil), nil
		}
		return nil, fmt.Errorf("reading %s header: %w", source, err)
	}

	cols := columnIndex(header)
	for _, required := range []string{"id", "name"} {
		if _, ok := cols[required]; !ok {
			return nil, mapping.NewFormatError(source, 1, "missing %s column", required)
		}
	}

	terms := make([]*Term, 0)
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

		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		t := &Term{
			ID:        get("id"),
			Name:      get("name"),
			Namespace: get("namespace"),
			Children:  splitList(get("children")),
			AltIDs:    splitList(get("alt_ids")),
		}
		if t.ID == "" {
			return nil, mapping.NewFormatError(source, line, "empty id")
		}
		if lvl := get("level"); lvl != "" {
			v, convErr := strconv.Atoi(lvl)
			if convErr != nil {
				return nil, mapping.NewFormatError(source, line, "invalid level %q", lvl)
			}
			t.Level = v
		}
		terms = append(terms, t)
	}

	return NewOntology(terms), nil
}

// LoadOntology reads a category information file from path.
func LoadOntology(path string) (*Ontology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ontology file %s: %w", path, err)
	}
	defer f.Close()
	return ReadOntology(f, path)
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	list := make([]string, 0)
	for _, v := range strings.Split(s, listSeparator) {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}
