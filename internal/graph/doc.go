// Package graph resolves mutation requirements into a dependency graph.
//
// Units live in an indexed arena; edges are index sets (parents and
// children per unit), so no unit holds a reference to another. A requirement
// "a requires b" yields the edge b -> a: b is a parent of a.
//
// Traversal is a precomputed, stable topological order: parents before
// children, unrelated units in input order. Strongly connected components
// (requirement cycles) are detected with Tarjan's algorithm, reported as
// structural errors on every member, and emitted as one block in input
// order so traversal always terminates.
package graph
