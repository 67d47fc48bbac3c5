package contracts

import (
	"context"
	"fmt"
)

type LaunchRequest struct {
	Path      string
	Arguments []string
}

type LaunchStatus int

const (
	LaunchSkipped LaunchStatus = iota
	Launched
)

func (this LaunchStatus) String() string {
	if this == Launched {
		return "launched"
	}
	return "skipped"
}

type LaunchOutcome struct {
	Status LaunchStatus
	Path   string
	PID    int
}

type LaunchError struct {
	Path  string
	Cause error
}

func (this *LaunchError) Error() string {
	if this.Path == "" {
		return fmt.Sprintf("relaunch failed: %s", this.Cause)
	}
	return fmt.Sprintf("relaunch of %q failed: %s", this.Path, this.Cause)
}

func (this *LaunchError) Unwrap() error { return this.Cause }

type Launcher interface {
	Launch(ctx context.Context, request LaunchRequest) (LaunchOutcome, error)
}

// Notifier carries the single user-visible message of a run.
type Notifier interface {
	Notify(message string)
}
