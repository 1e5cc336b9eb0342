package graph

import (
	"container/heap"
	"slices"

	"github.com/roach88/dmut/internal/mutation"
)

// Graph is the dependency graph over one pool of units.
//
// A Graph is immutable after Build. Queries take units of the pool; a unit
// that is not a member yields empty results.
type Graph struct {
	units    []*mutation.Mutation
	index    map[*mutation.Mutation]int
	parents  [][]int
	children [][]int
	order    []int
	position []int
	cycles   []*CycleError
}

// Build resolves requirements inside pool and computes a stable topological
// order. Structural errors (unresolved or malformed requirements, serial
// policy, cycles) are recorded on the offending units.
func Build(pool []*mutation.Mutation) *Graph {
	n := len(pool)
	g := &Graph{
		units:    slices.Clone(pool),
		index:    make(map[*mutation.Mutation]int, n),
		parents:  make([][]int, n),
		children: make([][]int, n),
	}
	for i, m := range g.units {
		g.index[m] = i
	}

	resolver := NewResolver(g.units)
	for i, m := range g.units {
		for _, p := range resolver.Resolve(m) {
			g.link(g.index[p], i)
		}
	}

	sccs := tarjanSCC(g.children)
	for _, scc := range sccs {
		if !isCycle(scc, g.children) {
			continue
		}
		cycle := g.cycleError(scc)
		g.cycles = append(g.cycles, cycle)
		for _, v := range scc {
			g.units[v].AddError(cycle.Error())
		}
	}

	g.order = g.topoOrder(sccs)
	g.position = make([]int, n)
	for pos, v := range g.order {
		g.position[v] = pos
	}

	return g
}

// link adds the edge parent -> child, keeping both index sets sorted.
func (g *Graph) link(parent, child int) {
	if pos, found := slices.BinarySearch(g.parents[child], parent); !found {
		g.parents[child] = slices.Insert(g.parents[child], pos, parent)
	}
	if pos, found := slices.BinarySearch(g.children[parent], child); !found {
		g.children[parent] = slices.Insert(g.children[parent], pos, child)
	}
}

// topoOrder runs Kahn's algorithm over the condensation of the graph.
// Ready components are taken by smallest member index, so unrelated units
// keep input order and a cycle is emitted as one block.
func (g *Graph) topoOrder(sccs [][]int) []int {
	comp := make([]int, len(g.units))
	for id, scc := range sccs {
		for _, v := range scc {
			comp[v] = id
		}
	}

	indegree := make([]int, len(sccs))
	for v, children := range g.children {
		for _, c := range children {
			if comp[c] != comp[v] {
				indegree[comp[c]]++
			}
		}
	}

	ready := &componentHeap{sccs: sccs}
	for id := range sccs {
		if indegree[id] == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]int, 0, len(g.units))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(int)
		for _, v := range sccs[id] {
			order = append(order, v)
			for _, c := range g.children[v] {
				if comp[c] == id {
					continue
				}
				indegree[comp[c]]--
				if indegree[comp[c]] == 0 {
					heap.Push(ready, comp[c])
				}
			}
		}
	}

	return order
}

// componentHeap is a min-heap of component ids keyed by smallest member.
type componentHeap struct {
	sccs [][]int
	ids  []int
}

func (h *componentHeap) Len() int { return len(h.ids) }
func (h *componentHeap) Less(i, j int) bool {
	return h.sccs[h.ids[i]][0] < h.sccs[h.ids[j]][0]
}
func (h *componentHeap) Swap(i, j int) { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *componentHeap) Push(x any)    { h.ids = append(h.ids, x.(int)) }
func (h *componentHeap) Pop() any {
	last := h.ids[len(h.ids)-1]
	h.ids = h.ids[:len(h.ids)-1]
	return last
}

// Len returns the number of units in the graph.
func (g *Graph) Len() int { return len(g.units) }

// Units returns the pool in input order.
func (g *Graph) Units() []*mutation.Mutation {
	return slices.Clone(g.units)
}

// Has reports whether m is a member of the graph.
func (g *Graph) Has(m *mutation.Mutation) bool {
	_, ok := g.index[m]
	return ok
}

// Order returns every unit, parents before children.
func (g *Graph) Order() []*mutation.Mutation {
	return g.resolve(g.order)
}

// ReverseOrder returns every unit, children before parents.
func (g *Graph) ReverseOrder() []*mutation.Mutation {
	out := g.Order()
	slices.Reverse(out)
	return out
}

// Parents returns the direct requirements of m in input order.
func (g *Graph) Parents(m *mutation.Mutation) []*mutation.Mutation {
	i, ok := g.index[m]
	if !ok {
		return nil
	}
	return g.resolve(g.parents[i])
}

// Children returns the units directly requiring m in input order.
func (g *Graph) Children(m *mutation.Mutation) []*mutation.Mutation {
	i, ok := g.index[m]
	if !ok {
		return nil
	}
	return g.resolve(g.children[i])
}

// IsLeaf reports whether no unit requires m.
func (g *Graph) IsLeaf(m *mutation.Mutation) bool {
	i, ok := g.index[m]
	return ok && len(g.children[i]) == 0
}

// Descendants returns every unit transitively requiring m, in topological
// order. m itself is excluded even when it sits on a cycle.
func (g *Graph) Descendants(m *mutation.Mutation) []*mutation.Mutation {
	return g.reach(m, g.children)
}

// Ancestors returns every unit m transitively requires, in topological order.
func (g *Graph) Ancestors(m *mutation.Mutation) []*mutation.Mutation {
	return g.reach(m, g.parents)
}

// reach collects nodes reachable from m over adj with an explicit worklist.
func (g *Graph) reach(m *mutation.Mutation, adj [][]int) []*mutation.Mutation {
	start, ok := g.index[m]
	if !ok {
		return nil
	}

	seen := make([]bool, len(g.units))
	seen[start] = true
	work := []int{start}
	var found []int

	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]
		for _, w := range adj[v] {
			if seen[w] {
				continue
			}
			seen[w] = true
			found = append(found, w)
			work = append(work, w)
		}
	}

	slices.SortFunc(found, func(a, b int) int { return g.position[a] - g.position[b] })
	return g.resolve(found)
}

// Sort returns units in graph order. Units outside the graph follow in
// their given order.
func (g *Graph) Sort(units []*mutation.Mutation) []*mutation.Mutation {
	var members []int
	var strangers []*mutation.Mutation
	seen := make(map[*mutation.Mutation]bool, len(units))
	for _, m := range units {
		if seen[m] {
			continue
		}
		seen[m] = true
		if i, ok := g.index[m]; ok {
			members = append(members, i)
		} else {
			strangers = append(strangers, m)
		}
	}
	slices.SortFunc(members, func(a, b int) int { return g.position[a] - g.position[b] })
	return append(g.resolve(members), strangers...)
}

// SortReverse returns units children first. Units outside the graph come
// first, in reverse of their given order.
func (g *Graph) SortReverse(units []*mutation.Mutation) []*mutation.Mutation {
	out := g.Sort(units)
	slices.Reverse(out)
	return out
}

// Cycles returns the requirement cycles found during Build.
func (g *Graph) Cycles() []*CycleError {
	return slices.Clone(g.cycles)
}

func (g *Graph) resolve(indices []int) []*mutation.Mutation {
	out := make([]*mutation.Mutation, len(indices))
	for i, v := range indices {
		out[i] = g.units[v]
	}
	return out
}
