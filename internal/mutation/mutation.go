package mutation

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// ErrInvalidFullName is returned when a full name has no "module:" prefix or
// no name.
var ErrInvalidFullName = errors.New("invalid mutation full name")

// Mutation is a single schema mutation unit.
//
// Name, Module, Source, Serie and Static are fixed at construction. Derived
// properties are computed once on first access. Always handle a Mutation
// through a pointer.
type Mutation struct {
	Name   string
	Module string
	Source string

	// Serie is the ordinal parsed from a trailing ".N" on the name.
	// Only meaningful when Static is true.
	Serie  int
	Static bool

	// Ghost marks a unit loaded from an audit record that was logged without
	// being executed.
	Ghost bool

	once    sync.Once
	hash    string
	up      []string
	down    []string
	require []string

	errors []string
}

// New creates a mutation unit. A name ending in ".N" makes the unit serial.
func New(name, module, source string) *Mutation {
	m := &Mutation{Name: name, Module: module, Source: source}
	if match := reSerie.FindStringSubmatch(name); match != nil {
		if serie, err := strconv.Atoi(match[2]); err == nil {
			m.Name = match[1]
			m.Serie = serie
			m.Static = true
		}
	}
	return m
}

// FromRecord rebuilds a unit from an audit record keyed by full name.
func FromRecord(fullName, source string, ghost bool) (*Mutation, error) {
	module, name, ok := strings.Cut(fullName, ":")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFullName, fullName)
	}
	m := New(name, module, source)
	m.Ghost = ghost
	return m, nil
}

// FullName returns module:name[.serie], the unit identity.
func (m *Mutation) FullName() string {
	if m.Static {
		return fmt.Sprintf("%s:%s.%d", m.Module, m.Name, m.Serie)
	}
	return m.Module + ":" + m.Name
}

// String implements fmt.Stringer.
func (m *Mutation) String() string {
	return m.FullName()
}

// IsStatic reports whether the unit belongs to a serial chain.
func (m *Mutation) IsStatic() bool {
	return m.Static
}

func (m *Mutation) derive() {
	m.once.Do(func() {
		src := normalizeNewlines(m.Source)
		m.hash = HashSource(src)
		m.up = parseUp(src)
		m.down = parseDown(src)
		if unterminatedDown(src) {
			m.errors = appendUnique(m.errors, "unterminated !down( block: missing \"-- )\" line")
		}

		var descriptors []string
		if m.Static && m.Serie > 1 {
			descriptors = append(descriptors, fmt.Sprintf("%s.%d", m.Name, m.Serie-1))
		}
		m.require = append(descriptors, parseRequires(src)...)
	})
}

// Hash returns the content hash of the source. Sources that differ only in
// plain comments or whitespace share a hash.
func (m *Mutation) Hash() string {
	m.derive()
	return m.hash
}

// ShortHash returns the first n hex characters of Hash.
func (m *Mutation) ShortHash(n int) string {
	h := m.Hash()
	if n > len(h) {
		n = len(h)
	}
	return h[:n]
}

// UpStatements returns the forward statements in source order.
func (m *Mutation) UpStatements() []string {
	m.derive()
	return slices.Clone(m.up)
}

// DownStatements returns the reverse statements, last declared first.
func (m *Mutation) DownStatements() []string {
	m.derive()
	return slices.Clone(m.down)
}

// Requirements returns the requirement descriptors, the implicit serial
// predecessor first.
func (m *Mutation) Requirements() []string {
	m.derive()
	return slices.Clone(m.require)
}

// AddError records a structural problem. Identical messages are kept once.
func (m *Mutation) AddError(msg string) {
	m.derive()
	m.errors = appendUnique(m.errors, msg)
}

// Errors returns the structural problems recorded on the unit, including
// those found while parsing its source.
func (m *Mutation) Errors() []string {
	m.derive()
	return slices.Clone(m.errors)
}

// HasErrors reports whether any structural problem was recorded.
func (m *Mutation) HasErrors() bool {
	m.derive()
	return len(m.errors) > 0
}

func appendUnique(list []string, msg string) []string {
	if slices.Contains(list, msg) {
		return list
	}
	return append(list, msg)
}
