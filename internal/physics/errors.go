package physics

import "errors"

var (
	// ErrInvalidContext is raised (as a panic value) when body state is
	// mutated outside the physics step that owns it.
	ErrInvalidContext = errors.New("physics: body mutated outside the physics step")
	ErrQueueFull      = errors.New("physics: task queue is full")
)
