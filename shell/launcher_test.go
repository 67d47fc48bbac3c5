package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"

	"github.com/smarty/liftoff/contracts"
)

func TestProcessLauncherFixture(t *testing.T) {
	gunit.Run(new(ProcessLauncherFixture), t)
}

type ProcessLauncherFixture struct {
	*gunit.Fixture
	launcher *ProcessLauncher
	commands [][]string
}

func (this *ProcessLauncherFixture) Setup() {
	this.launcher = NewProcessLauncher()
	this.launcher.command = func(name string, arguments ...string) *exec.Cmd {
		this.commands = append(this.commands, append([]string{name}, arguments...))
		return exec.Command(name, arguments...)
	}
}

func (this *ProcessLauncherFixture) TestMissingProgramIsALaunchError() {
	path := filepath.Join(os.TempDir(), "liftoff-missing-program")

	_, err := this.launcher.Launch(context.Background(), contracts.LaunchRequest{Path: path})

	var launchError *contracts.LaunchError
	this.So(errors.As(err, &launchError), should.BeTrue)
	this.So(launchError.Path, should.Equal, path)
}

func (this *ProcessLauncherFixture) TestBundlesAreOpened() {
	this.launcher.command = func(name string, arguments ...string) *exec.Cmd {
		this.commands = append(this.commands, append([]string{name}, arguments...))
		return exec.Command(filepath.Join(os.TempDir(), "liftoff-missing-program"))
	}

	_, _ = this.launcher.Launch(context.Background(), contracts.LaunchRequest{
		Path:      "/Applications/Client.app",
		Arguments: []string{"--updated"},
	})

	this.So(this.commands, should.HaveLength, 2)
	this.So(this.commands[1], should.Resemble, []string{"open", "/Applications/Client.app", "--args", "--updated"})
}

func (this *ProcessLauncherFixture) TestProgramIsStarted() {
	if runtime.GOOS == "windows" {
		return
	}
	directory, err := os.MkdirTemp("", "launcher-")
	this.So(err, should.BeNil)
	defer func() { _ = os.RemoveAll(directory) }()
	program := filepath.Join(directory, "Client")
	this.So(os.WriteFile(program, []byte("#!/bin/sh\nexit 0\n"), 0755), should.BeNil)

	outcome, err := this.launcher.Launch(context.Background(), contracts.LaunchRequest{Path: program})

	this.So(err, should.BeNil)
	this.So(outcome.Status, should.Equal, contracts.Launched)
	this.So(outcome.Path, should.Equal, program)
	this.So(outcome.PID, should.BeGreaterThan, 0)
}

func (this *ProcessLauncherFixture) TestNotifierWritesOneLine() {
	buffer := new(bytes.Buffer)

	NewConsoleNotifier(buffer).Notify("Updating to version 1.0.0 failed.")

	this.So(buffer.String(), should.Equal, "Updating to version 1.0.0 failed.\n")
}
