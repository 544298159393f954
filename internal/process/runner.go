package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	pberrors "pbinstall/internal/errors"
)

// Command describes one external program invocation.
type Command struct {
	Name string
	Args []string
	// Shell runs Name and Args as a single /bin/sh -c command line.
	Shell bool
	// OnScreen sends output to the terminal instead of the install log.
	OnScreen bool
	// Env is appended to the inherited environment, as KEY=VALUE pairs.
	Env []string
	Dir string
	// ErrMessage is shown to the operator if the command fails.
	ErrMessage string
}

// String renders the command the way it is recorded in the install log.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Executor runs external programs on behalf of the installer.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
	Output(ctx context.Context, cmd Command) (string, error)
	LookPath(name string) (string, error)
}

// Runner is the Executor backed by os/exec. Every command line and, unless
// OnScreen is set, all of its output go to the install log.
type Runner struct {
	log     io.Writer
	logName string
	stdout  io.Writer
	stderr  io.Writer
}

// NewRunner creates a Runner that records into log. logName is only used to
// point the operator at the log when a command fails.
func NewRunner(log io.Writer, logName string, stdout, stderr io.Writer) *Runner {
	return &Runner{
		log:     log,
		logName: logName,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// Run executes cmd and returns an InstallError when it exits non-zero.
func (r *Runner) Run(ctx context.Context, cmd Command) error {
	execCmd := r.command(ctx, cmd)
	if cmd.OnScreen {
		execCmd.Stdout = r.stdout
		execCmd.Stderr = r.stderr
	} else {
		execCmd.Stdout = r.log
		execCmd.Stderr = r.log
	}

	slog.Debug("Running command", "command", cmd.String(), "onScreen", cmd.OnScreen)
	if err := execCmd.Run(); err != nil {
		return r.failure(cmd, err)
	}
	return nil
}

// Output executes cmd and returns its standard output. Standard error is
// recorded in the install log.
func (r *Runner) Output(ctx context.Context, cmd Command) (string, error) {
	execCmd := r.command(ctx, cmd)
	var stdout bytes.Buffer
	execCmd.Stdout = io.MultiWriter(&stdout, r.log)
	execCmd.Stderr = r.log

	if err := execCmd.Run(); err != nil {
		return "", r.failure(cmd, err)
	}
	return stdout.String(), nil
}

// LookPath reports where name is found on PATH, like `command -v`.
func (r *Runner) LookPath(name string) (string, error) {
	fmt.Fprintf(r.log, "+ command -v %s\n", name)
	return exec.LookPath(name)
}

func (r *Runner) command(ctx context.Context, cmd Command) *exec.Cmd {
	fmt.Fprintf(r.log, "+ %s\n", cmd.String())

	var execCmd *exec.Cmd
	if cmd.Shell {
		execCmd = exec.CommandContext(ctx, "/bin/sh", "-c", cmd.String())
	} else {
		execCmd = exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	}
	if len(cmd.Env) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Env...)
	}
	execCmd.Dir = cmd.Dir
	return execCmd
}

func (r *Runner) failure(cmd Command, err error) error {
	message := cmd.ErrMessage
	if message == "" {
		message = fmt.Sprintf("Command %q failed", cmd.Name)
	}
	suggestion := "Check the install log for the command output"
	if r.logName != "" {
		suggestion = fmt.Sprintf("Check the install log %s for the command output", r.logName)
	}
	return pberrors.NewRuntimeError(message, err.Error(), suggestion,
		fmt.Errorf("%s: %w", cmd.String(), err))
}
