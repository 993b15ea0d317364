package campaign

import "fmt"

// State is the lifecycle position of a Runner.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCancelling
	StateCompleted
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateRunning:    "running",
	StateCancelling: "cancelling",
	StateCompleted:  "completed",
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

func (s *State) UnmarshalText(text []byte) error {
	for st, name := range stateNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown campaign state %q", text)
}

// Active reports whether a dispatch loop owns the runner.
func (s State) Active() bool {
	return s == StateRunning || s == StateCancelling
}
