package graph

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/roach88/dmut/internal/mutation"
)

var reDescriptor = regexp.MustCompile(`^(?:([^:\s]+):)?([^:\s]+?)(?:\.(\d+))?$`)

// Descriptor is a parsed requirement of the form [module:]name[.serie].
type Descriptor struct {
	Module   string
	Name     string
	Serie    int
	HasSerie bool
}

// ParseDescriptor parses desc. The module defaults to defaultModule.
func ParseDescriptor(desc, defaultModule string) (Descriptor, error) {
	match := reDescriptor.FindStringSubmatch(desc)
	if match == nil {
		return Descriptor{}, fmt.Errorf("%s is not a valid requirement", desc)
	}
	d := Descriptor{Module: match[1], Name: match[2]}
	if d.Module == "" {
		d.Module = defaultModule
	}
	if match[3] != "" {
		serie, err := strconv.Atoi(match[3])
		if err != nil {
			return Descriptor{}, fmt.Errorf("%s is not a valid requirement", desc)
		}
		d.Serie = serie
		d.HasSerie = true
	}
	return d, nil
}

// Matches reports whether m satisfies the descriptor. Without a serie the
// descriptor matches the bare name and every serie of it.
func (d Descriptor) Matches(m *mutation.Mutation) bool {
	if m.Module != d.Module || m.Name != d.Name {
		return false
	}
	if !d.HasSerie {
		return true
	}
	return m.Static && m.Serie == d.Serie
}

// Resolver maps units to the candidates their requirements name.
// Each unit is resolved once; later calls return the memoized parents.
type Resolver struct {
	pool []*mutation.Mutation
	memo map[*mutation.Mutation][]*mutation.Mutation
}

// NewResolver creates a resolver over an explicit candidate pool.
func NewResolver(pool []*mutation.Mutation) *Resolver {
	return &Resolver{
		pool: pool,
		memo: make(map[*mutation.Mutation][]*mutation.Mutation),
	}
}

// Resolve returns the parents of m in pool order and records structural
// problems on m. A malformed descriptor stops resolution of m; parents found
// before it are kept.
func (r *Resolver) Resolve(m *mutation.Mutation) []*mutation.Mutation {
	if parents, ok := r.memo[m]; ok {
		return parents
	}

	var parents []*mutation.Mutation
	seen := make(map[*mutation.Mutation]bool)

	for _, desc := range m.Requirements() {
		d, err := ParseDescriptor(desc, m.Module)
		if err != nil {
			m.AddError(err.Error())
			break
		}

		found := false
		for _, candidate := range r.pool {
			if candidate == m || !d.Matches(candidate) {
				continue
			}
			found = true
			if m.Static && !candidate.Static {
				m.AddError(fmt.Sprintf("serial migrations cannot depend on non-serial ones (caused by %s)", candidate.FullName()))
			}
			if !seen[candidate] {
				seen[candidate] = true
				parents = append(parents, candidate)
			}
		}

		if !found {
			m.AddError(fmt.Sprintf("requirement %s doesn't match any mutation", desc))
		}
	}

	r.memo[m] = parents
	return parents
}
