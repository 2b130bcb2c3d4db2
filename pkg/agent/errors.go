package agent

import "fmt"

// MaxTurnsError is returned when the model is still calling tools after the
// configured number of turns.
type MaxTurnsError struct {
	Turns int
}

func (e *MaxTurnsError) Error() string {
	return fmt.Sprintf("agent stopped after %d turns without finishing", e.Turns)
}
