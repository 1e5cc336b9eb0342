// Package mutation provides the mutation unit: one versioned, hashable piece
// of schema change with forward (up) and reverse (down) statements.
//
// A unit is built from raw SQL source annotated with comment directives:
//
//	-- !requires: users, billing:invoices.2
//	create table orders (id int primary key, user_id int references users);
//	-- !down: drop table orders;
//
//	create index orders_user on orders (user_id);
//	-- !down(
//	drop index orders_user;
//	-- )
//
// Directives are recognized by pattern matching over comment lines, never by
// parsing SQL. Every property derived from the source (hash, statement lists,
// requirement descriptors) is computed on first access and cached; the source
// never changes after construction.
//
// Units whose name ends in ".N" are serial (static): they form an append-only
// chain in which "x.3" implicitly requires "x.2".
//
// Collection is the indexed set of units keyed by full name that the
// reconciliation planner diffs.
package mutation
