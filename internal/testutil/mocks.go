// Package testutil holds test doubles shared by the installer's packages.
package testutil

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/stretchr/testify/mock"

	pberrors "pbinstall/internal/errors"
	"pbinstall/internal/process"
	"pbinstall/pkg/runtime"
)

// MockContainerRuntime is a mock implementation of the ContainerRuntime interface
type MockContainerRuntime struct {
	mock.Mock
}

func (m *MockContainerRuntime) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockContainerRuntime) ImageExists(ctx context.Context, ref string) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockContainerRuntime) ListImageTags(ctx context.Context, repository string) ([]string, error) {
	args := m.Called(ctx, repository)
	tags, _ := args.Get(0).([]string)
	return tags, args.Error(1)
}

func (m *MockContainerRuntime) Login(ctx context.Context, auth runtime.RegistryAuth) error {
	args := m.Called(ctx, auth)
	return args.Error(0)
}

func (m *MockContainerRuntime) PullImage(ctx context.Context, ref string, auth *runtime.RegistryAuth, progress io.Writer) error {
	args := m.Called(ctx, ref, auth, progress)
	return args.Error(0)
}

func (m *MockContainerRuntime) TagImage(ctx context.Context, source, target string) error {
	args := m.Called(ctx, source, target)
	return args.Error(0)
}

func (m *MockContainerRuntime) RemoveImage(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockContainerRuntime) RunContainer(ctx context.Context, opts runtime.RunOptions) error {
	args := m.Called(ctx, opts)
	return args.Error(0)
}

func (m *MockContainerRuntime) CopyFromContainer(ctx context.Context, container, srcPath string) (io.ReadCloser, error) {
	args := m.Called(ctx, container, srcPath)
	reader, _ := args.Get(0).(io.ReadCloser)
	return reader, args.Error(1)
}

func (m *MockContainerRuntime) RemoveContainer(ctx context.Context, container string) error {
	args := m.Called(ctx, container)
	return args.Error(0)
}

// FakeExecutor records every command instead of running it.
type FakeExecutor struct {
	Commands []process.Command
	// Outputs maps a rendered command line to what Output returns for it.
	Outputs map[string]string
	// Failures maps a rendered command line prefix to the error it returns.
	Failures map[string]error
	// Paths lists the programs LookPath finds.
	Paths map[string]string
	// OnRun lets a test emulate a command's side effects.
	OnRun func(cmd process.Command) error
}

func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		Outputs:  map[string]string{},
		Failures: map[string]error{},
		Paths:    map[string]string{},
	}
}

func (f *FakeExecutor) Run(ctx context.Context, cmd process.Command) error {
	f.Commands = append(f.Commands, cmd)
	if err := f.failure(cmd); err != nil {
		return err
	}
	if f.OnRun != nil {
		return f.OnRun(cmd)
	}
	return nil
}

func (f *FakeExecutor) Output(ctx context.Context, cmd process.Command) (string, error) {
	f.Commands = append(f.Commands, cmd)
	if err := f.failure(cmd); err != nil {
		return "", err
	}
	return f.Outputs[cmd.String()], nil
}

func (f *FakeExecutor) LookPath(name string) (string, error) {
	if path, ok := f.Paths[name]; ok {
		return path, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// CommandLines returns the rendered form of every recorded command.
func (f *FakeExecutor) CommandLines() []string {
	lines := make([]string, 0, len(f.Commands))
	for _, cmd := range f.Commands {
		lines = append(lines, cmd.String())
	}
	return lines
}

// failure reports the configured error the way process.Runner does: as a
// runtime InstallError carrying the command's ErrMessage.
func (f *FakeExecutor) failure(cmd process.Command) error {
	line := cmd.String()
	for prefix, err := range f.Failures {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		message := cmd.ErrMessage
		if message == "" {
			message = fmt.Sprintf("Command %q failed", cmd.Name)
		}
		return pberrors.NewRuntimeError(message, err.Error(), "Check the install log for the command output",
			fmt.Errorf("%s: %w", line, err))
	}
	return nil
}
