// Package harness runs reconciliation scenarios end to end.
//
// A scenario replays a sequence of reconciliations against a fresh in-memory
// SQLite database. Each step declares the local units at that point in time;
// the audit table carries the remote state from one step to the next.
//
// # Scenario Format
//
//	name: edit_cascades
//	description: "Editing a parent re-applies its children"
//	module: m
//	records:
//	  - name: m:legacy
//	    source: "create table legacy (id integer);"
//	    ghost: true
//	steps:
//	  - units:
//	      - name: a
//	        source: |
//	          create table a (id integer);
//	          -- !down: drop table a;
//	    options:
//	      skip_test: false
//	    expect:
//	      retract_order: []
//	      apply_order: [m:a]
//	      committed: true
//	assertions:
//	  - type: audit_rows
//	    names: [m:a]
//	  - type: object_exists
//	    object: a
//
// # Step Expectations
//
//   - retract_order, apply_order: exact plan order
//   - committed: whether the run committed
//   - error_contains: substring of the run or plan error
//   - policy_error: the planner refused an in-place serial edit
//   - unit_errors: units carrying structural errors
//
// # Assertion Types
//
//   - audit_rows: exact audit table names in record order
//   - ghost_rows: exact names of ghost records
//   - audit_source: the recorded source of one audit row
//   - object_exists, object_missing: a table, view or index in the schema
//
// # Deterministic Testing
//
// Every scenario runs with testutil.DeterministicClock and a fixed run id, so
// the step traces can be compared against golden files with RunWithGolden.
package harness
