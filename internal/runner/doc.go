// Package runner executes a reconciliation plan inside one transaction.
//
// A run moves through
//
//	BEGIN -> RETRACT -> APPLY -> TEST -> COMMIT
//
// and falls to ROLLBACK on any failure. RETRACT executes the down statements
// of retracted units (children first) and deletes their audit rows. APPLY
// executes up statements (parents first) and upserts audit rows. TEST checks
// reversibility: for every applied unit it opens a savepoint, replays the
// downs of the unit's applied descendants, the unit's downs and ups, then
// the descendants' ups, and always rolls back to the savepoint. Reversibility
// failures are collected so every unit gets tested, then the run rolls back.
//
// A run is all-or-nothing: either every change commits or the database and
// audit table are left exactly as they were.
package runner
