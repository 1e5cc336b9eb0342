// Package planner diffs the locally declared mutations against the ones
// recorded in the database and produces ordered retract and apply lists.
//
// Each side gets its own dependency graph: the local graph over the local
// collection and the remote graph over the audit records. The seeds are
//
//	retract = remote.Difference(local)
//	apply   = local.Difference(remote)
//
// and the sets are grown to a fixpoint:
//
//   - every remote descendant of a retracted unit is retracted;
//   - every local descendant of an applied unit is applied, and its remote
//     copy is retracted;
//   - every retracted unit still declared locally is re-applied.
//
// Retract lists children before parents (remote graph); apply lists parents
// before children (local graph).
package planner
