package mutation

import (
	"errors"
	"fmt"
)

// ErrDuplicate is returned when a collection already holds a unit with the
// same full name.
var ErrDuplicate = errors.New("duplicate mutation")

// Collection is a set of units keyed by full name. Iteration follows
// insertion order so reports and plans are deterministic.
type Collection struct {
	items []*Mutation
	index map[string]*Mutation
}

// NewCollection builds a collection from units, rejecting duplicates.
func NewCollection(units ...*Mutation) (*Collection, error) {
	c := newCollection(len(units))
	for _, m := range units {
		if err := c.Add(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func newCollection(size int) *Collection {
	return &Collection{
		items: make([]*Mutation, 0, size),
		index: make(map[string]*Mutation, size),
	}
}

// Add inserts m. It fails with ErrDuplicate when the full name is taken.
func (c *Collection) Add(m *Mutation) error {
	name := m.FullName()
	if _, ok := c.index[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	c.items = append(c.items, m)
	c.index[name] = m
	return nil
}

// Len returns the number of units.
func (c *Collection) Len() int {
	return len(c.items)
}

// All returns the units in insertion order.
func (c *Collection) All() []*Mutation {
	out := make([]*Mutation, len(c.items))
	copy(out, c.items)
	return out
}

// Names returns the full names in insertion order.
func (c *Collection) Names() []string {
	out := make([]string, len(c.items))
	for i, m := range c.items {
		out[i] = m.FullName()
	}
	return out
}

// Get looks a unit up by full name.
func (c *Collection) Get(fullName string) (*Mutation, bool) {
	m, ok := c.index[fullName]
	return m, ok
}

// Has reports whether a unit with this full name exists.
func (c *Collection) Has(fullName string) bool {
	_, ok := c.index[fullName]
	return ok
}

// Difference returns the members of c that are absent from other or present
// there with a different hash.
func (c *Collection) Difference(other *Collection) *Collection {
	return c.filter(func(m *Mutation) bool {
		o, ok := other.Get(m.FullName())
		return !ok || o.Hash() != m.Hash()
	})
}

// Intersection returns the members of c present in other with a different
// hash: units that must be both retracted and applied again.
func (c *Collection) Intersection(other *Collection) *Collection {
	return c.filter(func(m *Mutation) bool {
		o, ok := other.Get(m.FullName())
		return ok && o.Hash() != m.Hash()
	})
}

// Untouched returns the members of c present in other with the same hash.
func (c *Collection) Untouched(other *Collection) *Collection {
	return c.filter(func(m *Mutation) bool {
		o, ok := other.Get(m.FullName())
		return ok && o.Hash() == m.Hash()
	})
}

// Merge returns c followed by the members of other whose full name c does
// not hold. Neither input is modified.
func (c *Collection) Merge(other *Collection) *Collection {
	out := c.filter(func(*Mutation) bool { return true })
	for _, m := range other.items {
		if !out.Has(m.FullName()) {
			out.items = append(out.items, m)
			out.index[m.FullName()] = m
		}
	}
	return out
}

func (c *Collection) filter(keep func(*Mutation) bool) *Collection {
	out := newCollection(len(c.items))
	for _, m := range c.items {
		if keep(m) {
			out.items = append(out.items, m)
			out.index[m.FullName()] = m
		}
	}
	return out
}
