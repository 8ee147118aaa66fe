package pipeline

import "fmt"

// State is the progress of a pipeline run. States only move forward, one
// step at a time.
type State int

const (
	Init State = iota
	Fetched
	Patched
	Built
	Packaged
)

var stateNames = [...]string{"init", "fetched", "patched", "built", "packaged"}

func (s State) String() string {
	if s < Init || s > Packaged {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// next validates a transition from s to to.
func (s State) next(to State) error {
	if to != s+1 || to > Packaged {
		return fmt.Errorf("invalid state transition %s -> %s", s, to)
	}
	return nil
}
