package registry

import "fmt"

// State is the lifecycle position of a Context.
type State int

const (
	StateUninitialized State = iota
	StateLoaded
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoaded:
		return "loaded"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
