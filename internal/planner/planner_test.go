package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dmut/internal/mutation"
)

func local(t *testing.T, pairs ...string) *mutation.Collection {
	t.Helper()
	c, err := mutation.NewCollection()
	require.NoError(t, err)
	for i := 0; i < len(pairs); i += 2 {
		require.NoError(t, c.Add(mutation.New(pairs[i], "m", pairs[i+1])))
	}
	return c
}

func remote(t *testing.T, pairs ...string) *mutation.Collection {
	t.Helper()
	c, err := mutation.NewCollection()
	require.NoError(t, err)
	for i := 0; i < len(pairs); i += 2 {
		m, err := mutation.FromRecord(pairs[i], pairs[i+1], false)
		require.NoError(t, err)
		require.NoError(t, c.Add(m))
	}
	return c
}

func names(units []*mutation.Mutation) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.FullName())
	}
	return out
}

const (
	srcA  = "create table a (id int);\n-- !down: drop table a;"
	srcA2 = "create table a (id int, name text);\n-- !down: drop table a;"
	srcB  = "-- !requires: A\ncreate view b as select * from a;\n-- !down: drop view b;"
)

func TestPlan_ScenarioA_NewUnitsParentsFirst(t *testing.T) {
	loc := local(t,
		"A", "-- !requires: B\ncreate view a as select * from b;\n-- !down: drop view a;",
		"B", "create table b (id int);\n-- !down: drop table b;",
	)

	plan, err := New(nil).Plan(loc, remote(t), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"m:B", "m:A"}, names(plan.Apply))
	assert.Empty(t, plan.Retract)
	assert.False(t, plan.HasErrors())
}

func TestPlan_ScenarioB_ChangedUnitRetractedThenApplied(t *testing.T) {
	plan, err := New(nil).Plan(local(t, "A", srcA2), remote(t, "m:A", srcA), Options{})
	require.NoError(t, err)

	require.Len(t, plan.Retract, 1)
	require.Len(t, plan.Apply, 1)
	assert.Equal(t, srcA, plan.Retract[0].Source)
	assert.Equal(t, srcA2, plan.Apply[0].Source)
	assert.Equal(t, []string{"m:A"}, names(plan.Changed))
}

func TestPlan_ScenarioC_UnresolvedRequirementIsCollected(t *testing.T) {
	plan, err := New(nil).Plan(local(t, "A", "-- !requires: nonexistent\nselect 1;"), remote(t), Options{})
	require.NoError(t, err)

	assert.True(t, plan.HasErrors())
	assert.Equal(t, []UnitError{{
		Unit:    "m:A",
		Side:    SideLocal,
		Message: "requirement nonexistent doesn't match any mutation",
	}}, plan.Errors)
}

func TestPlan_UnterminatedDownBlockIsCollected(t *testing.T) {
	plan, err := New(nil).Plan(local(t, "A", "create table a (id int);\n-- !down(\ndrop table a;\n"), remote(t), Options{})
	require.NoError(t, err)

	assert.True(t, plan.HasErrors())
	require.Len(t, plan.Errors, 1)
	assert.Equal(t, "m:A", plan.Errors[0].Unit)
	assert.Contains(t, plan.Errors[0].Message, "unterminated !down( block")
	assert.Equal(t, []string{"create table a (id int);"}, plan.Apply[0].UpStatements())
}

func TestPlan_ScenarioD_SerialEditIsRejected(t *testing.T) {
	loc := local(t, "x.1", "create table x (id int);", "x.2", "alter table x add column b int;")
	rem := remote(t, "m:x.1", "create table x (id int);", "m:x.2", "alter table x add column a int;")

	plan, err := New(nil).Plan(loc, rem, Options{})
	require.Error(t, err)
	assert.Nil(t, plan)
	assert.True(t, IsPolicyError(err))

	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"m:x.2"}, pe.Units)
	assert.Contains(t, err.Error(), "m:x.2")
}

func TestPlan_ScenarioD_OverrideAllowsSerialEdit(t *testing.T) {
	loc := local(t, "x.1", "create table x (id int);", "x.2", "alter table x add column b int;")
	rem := remote(t, "m:x.1", "create table x (id int);", "m:x.2", "alter table x add column a int;")

	plan, err := New(nil).Plan(loc, rem, Options{AllowSerialEdit: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"m:x.2"}, names(plan.Retract))
	assert.Equal(t, []string{"m:x.2"}, names(plan.Apply))
	assert.Equal(t, []string{"m:x.1"}, names(plan.Untouched))
}

func TestPlan_UntouchedWhenHashesMatch(t *testing.T) {
	plan, err := New(nil).Plan(
		local(t, "A", srcA, "B", srcB),
		remote(t, "m:A", srcA, "m:B", srcB),
		Options{},
	)
	require.NoError(t, err)

	assert.True(t, plan.Empty())
	assert.Equal(t, []string{"m:A", "m:B"}, names(plan.Untouched))
}

func TestPlan_CommentOnlyEditIsUntouched(t *testing.T) {
	plan, err := New(nil).Plan(
		local(t, "A", "-- table a\n"+srcA),
		remote(t, "m:A", srcA),
		Options{},
	)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestPlan_ParentChangeCascadesToDescendants(t *testing.T) {
	plan, err := New(nil).Plan(
		local(t, "A", srcA2, "B", srcB),
		remote(t, "m:A", srcA, "m:B", srcB),
		Options{},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"m:B", "m:A"}, names(plan.Retract))
	assert.Equal(t, []string{"m:A", "m:B"}, names(plan.Apply))
	assert.Empty(t, plan.Untouched)

	// The retracted B is the remote copy, the applied B the local one.
	assert.NotSame(t, plan.Retract[0], plan.Apply[1])
}

func TestPlan_DeletedUnitIsOnlyRetracted(t *testing.T) {
	plan, err := New(nil).Plan(
		local(t, "A", srcA),
		remote(t, "m:A", srcA, "m:B", srcB),
		Options{},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"m:B"}, names(plan.Retract))
	assert.Empty(t, plan.Apply)
}

func TestPlan_DeletedParentRetractsRemoteChildren(t *testing.T) {
	srcC := "-- !requires: B\ncreate view c as select * from b;\n-- !down: drop view c;"
	plan, err := New(nil).Plan(
		local(t, "A", srcA, "C", "create view c as select 1;\n-- !down: drop view c;"),
		remote(t, "m:A", srcA, "m:B", srcB, "m:C", srcC),
		Options{},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"m:C", "m:B"}, names(plan.Retract))
	assert.Equal(t, []string{"m:C"}, names(plan.Apply))
	assert.Equal(t, []string{"m:A"}, names(plan.Untouched))
}

func TestPlan_NewChildLeavesParentUntouched(t *testing.T) {
	plan, err := New(nil).Plan(
		local(t, "A", srcA, "B", srcB),
		remote(t, "m:A", srcA),
		Options{},
	)
	require.NoError(t, err)

	assert.Empty(t, plan.Retract)
	assert.Equal(t, []string{"m:B"}, names(plan.Apply))
	assert.Equal(t, []string{"m:A"}, names(plan.Untouched))
}

func TestPlan_RemoteStructuralErrorsAreReported(t *testing.T) {
	plan, err := New(nil).Plan(
		local(t),
		remote(t, "m:B", srcB),
		Options{},
	)
	require.NoError(t, err)

	require.Len(t, plan.Errors, 1)
	assert.Equal(t, SideRemote, plan.Errors[0].Side)
	assert.Equal(t, []string{"m:B"}, names(plan.Retract))
}

func TestPlan_CycleIsStructuralError(t *testing.T) {
	plan, err := New(nil).Plan(
		local(t, "a", "-- !requires: b\nselect 1;", "b", "-- !requires: a\nselect 2;"),
		remote(t),
		Options{},
	)
	require.NoError(t, err)

	require.Len(t, plan.Errors, 2)
	assert.Equal(t, "circular requirement: m:a -> m:b -> m:a", plan.Errors[0].Message)
	assert.Equal(t, []string{"m:a", "m:b"}, names(plan.Apply))
}

func TestPlan_Deterministic(t *testing.T) {
	build := func() *Plan {
		plan, err := New(nil).Plan(
			local(t, "C", "-- !requires: A\nselect 3;", "A", srcA2, "B", srcB, "D", "select 4;"),
			remote(t, "m:A", srcA, "m:B", srcB, "m:E", "select 5;"),
			Options{},
		)
		require.NoError(t, err)
		return plan
	}

	first, second := build(), build()
	assert.Equal(t, names(first.Retract), names(second.Retract))
	assert.Equal(t, names(first.Apply), names(second.Apply))
	assert.Equal(t, []string{"m:A", "m:C", "m:B", "m:D"}, names(first.Apply))
	assert.Equal(t, []string{"m:E", "m:B", "m:A"}, names(first.Retract))
}
