package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dmut/internal/mutation"
)

func unit(name, source string) *mutation.Mutation {
	return mutation.New(name, "m", source)
}

func names(units []*mutation.Mutation) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.FullName()
	}
	return out
}

func TestBuild_ParentsBeforeChildren(t *testing.T) {
	b := unit("B", "-- !requires: A\ncreate table b (id int);")
	a := unit("A", "create table a (id int);")
	c := unit("C", "-- !requires: B\ncreate table c (id int);")

	g := Build([]*mutation.Mutation{c, b, a})

	assert.Equal(t, []string{"m:A", "m:B", "m:C"}, names(g.Order()))
	assert.Equal(t, []string{"m:C", "m:B", "m:A"}, names(g.ReverseOrder()))
	assert.False(t, a.HasErrors())
}

func TestBuild_UnrelatedUnitsKeepInputOrder(t *testing.T) {
	x := unit("x", "")
	y := unit("y", "")
	z := unit("z", "")

	g := Build([]*mutation.Mutation{z, x, y})

	assert.Equal(t, []string{"m:z", "m:x", "m:y"}, names(g.Order()))
}

func TestBuild_Edges(t *testing.T) {
	a := unit("A", "")
	b := unit("B", "-- !requires: A")
	c := unit("C", "-- !requires: A, B")

	g := Build([]*mutation.Mutation{a, b, c})

	assert.Equal(t, []string{"m:B", "m:C"}, names(g.Children(a)))
	assert.Equal(t, []string{"m:A", "m:B"}, names(g.Parents(c)))
	assert.True(t, g.IsLeaf(c))
	assert.False(t, g.IsLeaf(a))
	assert.Equal(t, []string{"m:B", "m:C"}, names(g.Descendants(a)))
	assert.Equal(t, []string{"m:A", "m:B"}, names(g.Ancestors(c)))
}

func TestBuild_DiamondDescendantsTopological(t *testing.T) {
	d := unit("D", "-- !requires: B, C")
	c := unit("C", "-- !requires: A")
	b := unit("B", "-- !requires: A")
	a := unit("A", "")

	g := Build([]*mutation.Mutation{d, c, b, a})

	assert.Equal(t, []string{"m:A", "m:C", "m:B", "m:D"}, names(g.Order()))
	assert.Equal(t, []string{"m:C", "m:B", "m:D"}, names(g.Descendants(a)))
}

func TestBuild_SerialChain(t *testing.T) {
	v1 := unit("v.1", "")
	v2 := unit("v.2", "")
	v3 := unit("v.3", "")

	g := Build([]*mutation.Mutation{v3, v2, v1})

	assert.Equal(t, []string{"m:v.1", "m:v.2", "m:v.3"}, names(g.Order()))
	assert.Equal(t, []string{"m:v.2"}, names(g.Parents(v3)))
	assert.False(t, v3.HasErrors())
}

func TestBuild_BareNameMatchesEverySerie(t *testing.T) {
	v1 := unit("v.1", "")
	v2 := unit("v.2", "")
	view := unit("report", "-- !requires: v")

	g := Build([]*mutation.Mutation{view, v1, v2})

	assert.Equal(t, []string{"m:v.1", "m:v.2"}, names(g.Parents(view)))
	assert.Equal(t, []string{"m:v.1", "m:v.2", "m:report"}, names(g.Order()))
}

func TestBuild_ExplicitSerieMatchesOnlyThatUnit(t *testing.T) {
	v1 := unit("v.1", "")
	v2 := unit("v.2", "")
	view := unit("report", "-- !requires: v.1")

	g := Build([]*mutation.Mutation{v1, v2, view})

	assert.Equal(t, []string{"m:v.1"}, names(g.Parents(view)))
}

func TestBuild_CrossModuleRequirement(t *testing.T) {
	users := mutation.New("users", "auth", "")
	orders := mutation.New("orders", "shop", "-- !requires: auth:users")
	local := mutation.New("users", "shop", "")

	g := Build([]*mutation.Mutation{orders, local, users})

	assert.Equal(t, []string{"auth:users"}, names(g.Parents(orders)))
	assert.Empty(t, orders.Errors())
}

func TestBuild_NamesMatchExactly(t *testing.T) {
	bar := unit("Bar", "")
	a := unit("A", "-- !requires: B")

	Build([]*mutation.Mutation{bar, a})

	assert.Equal(t, []string{"requirement B doesn't match any mutation"}, a.Errors())
}

func TestBuild_UnresolvedRequirement(t *testing.T) {
	a := unit("A", "-- !requires: missing")
	g := Build([]*mutation.Mutation{a})

	assert.Equal(t, []string{"requirement missing doesn't match any mutation"}, a.Errors())
	assert.Equal(t, []string{"m:A"}, names(g.Order()))
}

func TestBuild_InvalidRequirement(t *testing.T) {
	a := unit("A", "-- !requires: shop:\ncreate table a (id int);")
	Build([]*mutation.Mutation{a})

	assert.Equal(t, []string{"shop: is not a valid requirement"}, a.Errors())
}

func TestBuild_SerialCannotRequirePlain(t *testing.T) {
	plain := unit("helpers", "")
	serial := unit("x.1", "-- !requires: helpers")

	g := Build([]*mutation.Mutation{plain, serial})

	assert.Equal(t, []string{"serial migrations cannot depend on non-serial ones (caused by m:helpers)"}, serial.Errors())
	assert.Equal(t, []string{"m:helpers"}, names(g.Parents(serial)))
}

func TestBuild_PlainMayRequireSerial(t *testing.T) {
	serial := unit("x.1", "")
	plain := unit("view", "-- !requires: x.1")

	Build([]*mutation.Mutation{serial, plain})

	assert.False(t, plain.HasErrors())
}

func TestBuild_CycleIsReportedAndTerminates(t *testing.T) {
	a := unit("a", "-- !requires: b")
	b := unit("b", "-- !requires: a")
	c := unit("c", "-- !requires: a")
	free := unit("free", "")

	g := Build([]*mutation.Mutation{c, a, b, free})

	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"m:a", "m:b", "m:a"}, cycles[0].Path)
	assert.Equal(t, "circular requirement: m:a -> m:b -> m:a", cycles[0].Error())

	assert.Contains(t, a.Errors(), "circular requirement: m:a -> m:b -> m:a")
	assert.Contains(t, b.Errors(), "circular requirement: m:a -> m:b -> m:a")
	assert.False(t, c.HasErrors())

	// Every unit appears once; the cycle block precedes its descendant.
	assert.Equal(t, []string{"m:a", "m:b", "m:c", "m:free"}, names(g.Order()))
	assert.Equal(t, []string{"m:b", "m:c"}, names(g.Descendants(a)))
}

func TestReconstructCyclePath_AlwaysCloses(t *testing.T) {
	// 1 branches to 2, which only leads back to 1; the walk must still
	// reach 0 through 3.
	adj := [][]int{{1}, {2, 3}, {1}, {0}}
	assert.Equal(t, []int{0, 1, 3, 0}, reconstructCyclePath([]int{0, 1, 2, 3}, adj))

	assert.Equal(t, []int{4, 4}, reconstructCyclePath([]int{4}, [][]int{4: {4}}))
	assert.Nil(t, reconstructCyclePath(nil, adj))
}

func TestBuild_CycleWithBranchReportsClosedPath(t *testing.T) {
	a := unit("a", "-- !requires: b")
	b := unit("b", "-- !requires: c, d")
	c := unit("c", "-- !requires: b")
	d := unit("d", "-- !requires: a")

	g := Build([]*mutation.Mutation{a, b, c, d})

	for _, cycle := range g.Cycles() {
		require.GreaterOrEqual(t, len(cycle.Path), 2)
		assert.Equal(t, cycle.Path[0], cycle.Path[len(cycle.Path)-1])
	}
	require.Len(t, g.Cycles(), 1)
	assert.Equal(t, []string{"m:a", "m:b", "m:d", "m:a"}, g.Cycles()[0].Path)
}

func TestBuild_SelfRequirementIsIgnored(t *testing.T) {
	a := unit("a", "-- !requires: a")
	Build([]*mutation.Mutation{a})

	assert.Equal(t, []string{"requirement a doesn't match any mutation"}, a.Errors())
}

func TestSort(t *testing.T) {
	a := unit("A", "")
	b := unit("B", "-- !requires: A")
	c := unit("C", "-- !requires: B")
	outsider := unit("Z", "")

	g := Build([]*mutation.Mutation{a, b, c})

	assert.Equal(t, []string{"m:A", "m:C", "m:Z"}, names(g.Sort([]*mutation.Mutation{c, outsider, a, c})))
	assert.Equal(t, []string{"m:Z", "m:C", "m:A"}, names(g.SortReverse([]*mutation.Mutation{a, outsider, c})))
	assert.Nil(t, g.Descendants(outsider))
	assert.False(t, g.Has(outsider))
}

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		desc string
		want Descriptor
	}{
		{"users", Descriptor{Module: "shop", Name: "users"}},
		{"auth:users", Descriptor{Module: "auth", Name: "users"}},
		{"v.2", Descriptor{Module: "shop", Name: "v", Serie: 2, HasSerie: true}},
		{"auth:v.1.12", Descriptor{Module: "auth", Name: "v.1", Serie: 12, HasSerie: true}},
		{"dir/orders", Descriptor{Module: "shop", Name: "dir/orders"}},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := ParseDescriptor(tt.desc, "shop")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDescriptor_Invalid(t *testing.T) {
	for _, desc := range []string{"shop:", ":users", "a:b:c", "two words"} {
		_, err := ParseDescriptor(desc, "shop")
		assert.Error(t, err, desc)
	}
}
