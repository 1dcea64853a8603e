package raffle

import "fmt"

// State is how far a single draw got through the pipeline.
type State int

const (
	StateIdle State = iota
	StateEligibilityApplied
	StateWeightsComputed
	StateWinnersDrawn
	StateAudited
)

var stateNames = map[State]string{
	StateIdle:               "idle",
	StateEligibilityApplied: "eligibility_applied",
	StateWeightsComputed:    "weights_computed",
	StateWinnersDrawn:       "winners_drawn",
	StateAudited:            "audited",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// advance moves a run forward by exactly one stage.
func (r *run) advance(to State) {
	if to != r.state+1 {
		panic(fmt.Sprintf("raffle: invalid transition %s -> %s", r.state, to))
	}
	r.state = to
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("raffle: unknown state %q", text)
}
