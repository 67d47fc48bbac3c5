package shell

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/smarty/liftoff/contracts"
)

// ProcessLauncher starts a program detached from the updater. macOS bundles
// are handed to open(1).
type ProcessLauncher struct {
	command func(name string, arguments ...string) *exec.Cmd
}

func NewProcessLauncher() *ProcessLauncher {
	return &ProcessLauncher{command: exec.Command}
}

func (this *ProcessLauncher) Launch(_ context.Context, request contracts.LaunchRequest) (contracts.LaunchOutcome, error) {
	command := this.command(request.Path, request.Arguments...)
	if strings.EqualFold(filepath.Ext(request.Path), ".app") {
		arguments := append([]string{request.Path}, request.Arguments...)
		if len(request.Arguments) > 0 {
			arguments = append([]string{request.Path, "--args"}, request.Arguments...)
		}
		command = this.command("open", arguments...)
	}
	command.Dir = filepath.Dir(request.Path)
	if err := command.Start(); err != nil {
		return contracts.LaunchOutcome{}, &contracts.LaunchError{Path: request.Path, Cause: err}
	}
	outcome := contracts.LaunchOutcome{
		Status: contracts.Launched,
		Path:   request.Path,
		PID:    command.Process.Pid,
	}
	_ = command.Process.Release()
	return outcome, nil
}
