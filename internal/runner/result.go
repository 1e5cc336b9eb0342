package runner

// Phase is a state of the run state machine.
type Phase string

const (
	PhaseBegin    Phase = "BEGIN"
	PhaseRetract  Phase = "RETRACT"
	PhaseApply    Phase = "APPLY"
	PhaseTest     Phase = "TEST"
	PhaseCommit   Phase = "COMMIT"
	PhaseRollback Phase = "ROLLBACK"
)

// Direction tells whether a statement comes from a unit's up or down list.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Step is one statement of a unit.
type Step struct {
	Unit      string    `json:"unit"`
	Direction Direction `json:"direction"`
	Statement string    `json:"statement"`
}

// Entry is one line of the run log. Phase transitions carry no unit.
type Entry struct {
	Phase     Phase     `json:"phase"`
	Unit      string    `json:"unit,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Statement string    `json:"statement,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Result reports what a run did. Unit lists hold full names in execution
// order.
type Result struct {
	RunID     string   `json:"run_id"`
	Retracted []string `json:"retracted"`
	Applied   []string `json:"applied"`
	Tested    []string `json:"tested"`
	Committed bool     `json:"committed"`
	Log       []Entry  `json:"log"`
}

func (r *Result) enter(phase Phase, msg string) {
	r.Log = append(r.Log, Entry{Phase: phase, Message: msg})
}

func (r *Result) step(phase Phase, s Step) {
	r.Log = append(r.Log, Entry{Phase: phase, Unit: s.Unit, Direction: s.Direction, Statement: s.Statement})
}

// Phases returns the phase transitions of the run in order.
func (r *Result) Phases() []Phase {
	var out []Phase
	for _, e := range r.Log {
		if e.Unit == "" {
			out = append(out, e.Phase)
		}
	}
	return out
}
