package planner

import (
	"io"
	"log/slog"

	"github.com/roach88/dmut/internal/graph"
	"github.com/roach88/dmut/internal/mutation"
)

// Options controls planning policy.
type Options struct {
	// AllowSerialEdit permits re-applying a serial unit whose source changed.
	AllowSerialEdit bool
}

// Plan is the outcome of reconciling a local and a remote collection.
type Plan struct {
	// Retract holds remote units, children before parents.
	Retract []*mutation.Mutation
	// Apply holds local units, parents before children.
	Apply []*mutation.Mutation
	// Untouched holds local units that are neither retracted nor applied.
	Untouched []*mutation.Mutation
	// Changed holds local units recorded remotely with another hash.
	Changed []*mutation.Mutation

	Errors []UnitError

	Local  *graph.Graph
	Remote *graph.Graph
}

// HasErrors reports whether any structural error was found.
func (p *Plan) HasErrors() bool {
	return len(p.Errors) > 0
}

// Empty reports whether the plan has no database work.
func (p *Plan) Empty() bool {
	return len(p.Retract) == 0 && len(p.Apply) == 0
}

// Planner computes reconciliation plans.
type Planner struct {
	logger *slog.Logger
}

// New creates a planner. A nil logger discards output.
func New(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Planner{logger: logger}
}

// Plan reconciles local against remote.
//
// Structural errors never fail planning; they are collected in Plan.Errors.
// A serial unit whose hash changed returns a *PolicyError unless
// opts.AllowSerialEdit is set.
func (p *Planner) Plan(local, remote *mutation.Collection, opts Options) (*Plan, error) {
	plan := &Plan{
		Local:   graph.Build(local.All()),
		Remote:  graph.Build(remote.All()),
		Changed: local.Intersection(remote).All(),
	}
	plan.Errors = append(collectErrors(plan.Local, SideLocal), collectErrors(plan.Remote, SideRemote)...)

	var offenders []string
	for _, m := range plan.Changed {
		if m.IsStatic() {
			offenders = append(offenders, m.FullName())
		}
	}
	if len(offenders) > 0 && !opts.AllowSerialEdit {
		p.logger.Warn("serial policy violation", "units", offenders)
		return nil, &PolicyError{Units: offenders}
	}

	retract := newUnitSet(remote.Difference(local).All())
	apply := newUnitSet(local.Difference(remote).All())

	for changed := true; changed; {
		changed = false

		for _, r := range plan.Remote.Order() {
			if !retract.has(r) {
				continue
			}
			for _, d := range plan.Remote.Descendants(r) {
				changed = retract.add(d) || changed
			}
			if l, ok := local.Get(r.FullName()); ok {
				changed = apply.add(l) || changed
			}
		}

		for _, a := range plan.Local.Order() {
			if !apply.has(a) {
				continue
			}
			for _, d := range plan.Local.Descendants(a) {
				changed = apply.add(d) || changed
			}
			if r, ok := remote.Get(a.FullName()); ok {
				changed = retract.add(r) || changed
			}
		}
	}

	plan.Retract = plan.Remote.SortReverse(retract.members())
	plan.Apply = plan.Local.Sort(apply.members())
	for _, m := range local.All() {
		if !apply.has(m) {
			plan.Untouched = append(plan.Untouched, m)
		}
	}

	p.logger.Debug("plan computed",
		"retract", len(plan.Retract),
		"apply", len(plan.Apply),
		"untouched", len(plan.Untouched),
		"errors", len(plan.Errors),
	)

	return plan, nil
}

// collectErrors lists structural errors of a graph's units in input order.
func collectErrors(g *graph.Graph, side Side) []UnitError {
	var out []UnitError
	for _, m := range g.Units() {
		for _, msg := range m.Errors() {
			out = append(out, UnitError{Unit: m.FullName(), Side: side, Message: msg})
		}
	}
	return out
}

type unitSet map[*mutation.Mutation]bool

func newUnitSet(units []*mutation.Mutation) unitSet {
	s := make(unitSet, len(units))
	for _, m := range units {
		s[m] = true
	}
	return s
}

func (s unitSet) has(m *mutation.Mutation) bool {
	return s[m]
}

// add inserts m and reports whether it was new.
func (s unitSet) add(m *mutation.Mutation) bool {
	if s[m] {
		return false
	}
	s[m] = true
	return true
}

// members lists the set in no particular order.
func (s unitSet) members() []*mutation.Mutation {
	out := make([]*mutation.Mutation, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	return out
}
