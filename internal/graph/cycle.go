package graph

import (
	"slices"
	"strings"
)

// CycleError describes one requirement cycle.
type CycleError struct {
	Path []string `json:"path"` // ["m:a", "m:b", "m:a"], read as "requires"
}

func (e *CycleError) Error() string {
	return "circular requirement: " + strings.Join(e.Path, " -> ")
}

// tarjanSCC partitions the nodes of adj into strongly connected components.
//
// Nodes are visited in index order so the result is deterministic. Every
// node appears in exactly one component; members are sorted by index.
func tarjanSCC(adj [][]int) [][]int {
	n := len(adj)
	var (
		index   = 0
		stack   []int
		indices = make([]int, n)
		lowlink = make([]int, n)
		onStack = make([]bool, n)
		sccs    [][]int
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if indices[w] < 0 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for v := range n {
		if indices[v] < 0 {
			strongConnect(v)
		}
	}

	return sccs
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(v int, adj [][]int) bool {
	return slices.Contains(adj[v], v)
}

// isCycle reports whether a component is a cycle rather than a lone node.
func isCycle(scc []int, adj [][]int) bool {
	return len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], adj))
}

// reconstructCyclePath returns a shortest closed walk inside the component
// from its smallest member back to itself. The search is breadth first so a
// branch that leads away from the start cannot end the walk early.
func reconstructCyclePath(scc []int, adj [][]int) []int {
	if len(scc) == 0 {
		return nil
	}

	inSCC := make(map[int]bool, len(scc))
	for _, v := range scc {
		inSCC[v] = true
	}

	start := scc[0]
	prev := make(map[int]int, len(scc))
	queue := []int{start}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range adj[v] {
			if !inSCC[w] {
				continue
			}
			if w == start {
				path := []int{start}
				for u := v; u != start; u = prev[u] {
					path = append(path, u)
				}
				path = append(path, start)
				slices.Reverse(path)
				return path
			}
			if _, seen := prev[w]; seen {
				continue
			}
			prev[w] = v
			queue = append(queue, w)
		}
	}

	return []int{start}
}

func (g *Graph) cycleError(scc []int) *CycleError {
	path := reconstructCyclePath(scc, g.parents)
	names := make([]string, len(path))
	for i, v := range path {
		names[i] = g.units[v].FullName()
	}
	return &CycleError{Path: names}
}
