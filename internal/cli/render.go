package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/roach88/dmut/internal/planner"
	"github.com/roach88/dmut/internal/runner"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	staticStyle = lipgloss.NewStyle().Bold(true)
	hashStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	addStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Unit states shown by status.
const (
	StateApplied = "applied"
	StateChanged = "changed"
	StatePending = "pending"
)

// UnitStatus describes one local unit.
type UnitStatus struct {
	Name     string   `json:"name"`
	Hash     string   `json:"hash"`
	Static   bool     `json:"static"`
	State    string   `json:"state,omitempty"`
	Requires []string `json:"requires,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	// BlockedBy lists ancestors carrying structural errors.
	BlockedBy []string `json:"blocked_by,omitempty"`
}

// StatusReport is the payload of the status command.
type StatusReport struct {
	Module string       `json:"module"`
	Units  []UnitStatus `json:"units"`
	// Orphans are recorded in the database but no longer declared.
	Orphans []string `json:"orphans,omitempty"`
}

// RenderText implements textRenderer.
func (r StatusReport) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s\n\n", titleStyle.Render(fmt.Sprintf("Module %s: %d mutation(s)", r.Module, len(r.Units))))

	withState := len(r.Units) > 0 && r.Units[0].State != ""
	header := []string{"Hash", "Name", "Requires", "Errors"}
	if withState {
		header = []string{"Hash", "Name", "State", "Requires", "Errors"}
	}

	table := newTable(w, header)
	for _, u := range r.Units {
		name := u.Name
		if u.Static {
			name = staticStyle.Render(name)
		}
		row := []string{hashStyle.Render(u.Hash), name}
		if withState {
			row = append(row, stateStyle(u.State).Render(u.State))
		}
		problems := u.Errors
		if len(u.BlockedBy) > 0 {
			problems = append(slices.Clone(problems), "blocked by "+strings.Join(u.BlockedBy, ", "))
		}
		row = append(row, strings.Join(u.Requires, ", "), errorStyle.Render(strings.Join(problems, "; ")))
		table.Append(row)
	}
	table.Render()

	if len(r.Orphans) > 0 {
		fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Recorded but not declared:"))
		for _, name := range r.Orphans {
			fmt.Fprintf(w, "  %s %s\n", removeStyle.Render("-"), name)
		}
	}
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case StateApplied:
		return mutedStyle
	case StateChanged:
		return removeStyle
	default:
		return addStyle
	}
}

// PlanReport is the payload of the plan command.
type PlanReport struct {
	Retract   []string            `json:"retract"`
	Apply     []string            `json:"apply"`
	Untouched []string            `json:"untouched"`
	Errors    []planner.UnitError `json:"errors,omitempty"`
}

func newPlanReport(plan *planner.Plan) PlanReport {
	report := PlanReport{
		Retract:   fullNames(plan.Retract),
		Apply:     fullNames(plan.Apply),
		Untouched: fullNames(plan.Untouched),
		Errors:    plan.Errors,
	}
	return report
}

// RenderText implements textRenderer.
func (r PlanReport) RenderText(w io.Writer) {
	if len(r.Retract) == 0 && len(r.Apply) == 0 {
		fmt.Fprintf(w, "%s\n", mutedStyle.Render(fmt.Sprintf("Nothing to do, %d mutation(s) up to date.", len(r.Untouched))))
	} else {
		fmt.Fprintf(w, "%s\n", titleStyle.Render(fmt.Sprintf("Retract (%d):", len(r.Retract))))
		for _, name := range r.Retract {
			fmt.Fprintf(w, "  %s %s\n", removeStyle.Render("-"), name)
		}
		fmt.Fprintf(w, "%s\n", titleStyle.Render(fmt.Sprintf("Apply (%d):", len(r.Apply))))
		for _, name := range r.Apply {
			fmt.Fprintf(w, "  %s %s\n", addStyle.Render("+"), name)
		}
		fmt.Fprintf(w, "%s\n", mutedStyle.Render(fmt.Sprintf("%d mutation(s) untouched.", len(r.Untouched))))
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "\n%s\n", errorStyle.Render(fmt.Sprintf("%d structural error(s):", len(r.Errors))))
		table := newTable(w, []string{"Unit", "Side", "Error"})
		for _, e := range r.Errors {
			table.Append([]string{e.Unit, string(e.Side), e.Message})
		}
		table.Render()
	}
}

// ApplyReport is the payload of the apply command.
type ApplyReport struct {
	Plan   PlanReport     `json:"plan"`
	Run    *runner.Result `json:"run,omitempty"`
	DryRun bool           `json:"dry_run,omitempty"`
	Ghost  bool           `json:"ghost,omitempty"`
}

// RenderText implements textRenderer.
func (r ApplyReport) RenderText(w io.Writer) {
	r.Plan.RenderText(w)
	if r.Run == nil {
		return
	}

	fmt.Fprintln(w)
	summary := fmt.Sprintf("retracted %d, applied %d, tested %d", len(r.Run.Retracted), len(r.Run.Applied), len(r.Run.Tested))
	switch {
	case r.Run.Committed && r.Ghost:
		fmt.Fprintf(w, "%s %s\n", addStyle.Render("Committed (ghost):"), summary)
	case r.Run.Committed:
		fmt.Fprintf(w, "%s %s\n", addStyle.Render("Committed:"), summary)
	case r.DryRun:
		fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("Rolled back (dry run):"), summary)
	default:
		fmt.Fprintf(w, "%s %s\n", removeStyle.Render("Rolled back:"), summary)
	}
	fmt.Fprintf(w, "%s\n", mutedStyle.Render("run "+r.Run.RunID))
}

// renderFailures lists reversibility failures with their replay sequence.
func renderFailures(w io.Writer, failures []*runner.RunError) {
	for _, f := range failures {
		fmt.Fprintf(w, "%s\n", errorStyle.Render(fmt.Sprintf("%s is not reversible: %q failed: %v", f.Unit, f.Statement, f.Err)))
		for _, s := range f.Sequence {
			marker := "  "
			if s.Statement == f.Statement {
				marker = "> "
			}
			fmt.Fprintf(w, "  %s%s %s: %s\n", marker, s.Direction, s.Unit, s.Statement)
		}
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func fullNames[T interface{ FullName() string }](units []T) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.FullName()
	}
	return out
}
