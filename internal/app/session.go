package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	pberrors "pbinstall/internal/errors"
	"pbinstall/internal/probe"
	"pbinstall/internal/process"
	dockerruntime "pbinstall/internal/runtime"
	"pbinstall/internal/ui"
	"pbinstall/pkg/installconfig"
	"pbinstall/pkg/runtime"
)

const (
	// DefaultLogDir holds one pb_install_log_<unix-timestamp>.txt per run.
	DefaultLogDir = "/tmp"
	// LogDirEnv overrides DefaultLogDir.
	LogDirEnv = "PBINSTALL_LOG_DIR"
)

// Session carries everything a single installer run shares between its
// stages. It is created once in main and closed on exit.
type Session struct {
	Config *installconfig.InstallConfig
	// ScriptDir is the directory of the running executable, where EULA.txt
	// and license.bin are shipped.
	ScriptDir   string
	OriginalDir string

	Console  *ui.Console
	Prompter *ui.Prompter
	Exec     process.Executor
	// Docker is nil unless the docker container runtime was selected and a
	// client could be created.
	Docker  runtime.ContainerRuntime
	Log     io.Writer
	LogPath string
	Machine probe.MachineFunc
	Geteuid func() int

	logFile  *os.File
	cleanups []func()
}

// NewSession opens the install log, routes structured logging into it and
// wires the production collaborators.
func NewSession(cfg *installconfig.InstallConfig, scriptDir string, console *ui.Console, asker ui.Asker) (*Session, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, pberrors.NewFileSystemError("Could not determine the current directory", err.Error(), "", err)
	}

	logFile, err := createLogFile()
	if err != nil {
		return nil, pberrors.NewFileSystemError("Could not create the install log", err.Error(),
			fmt.Sprintf("Check that %s is writable or set %s", logDir(), LogDirEnv), err)
	}

	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	s := &Session{
		Config:      cfg,
		ScriptDir:   scriptDir,
		OriginalDir: wd,
		Console:     console,
		Prompter:    ui.NewPrompter(asker, console.Out()),
		Exec:        process.NewRunner(logFile, logFile.Name(), console.Out(), os.Stderr),
		Log:         logFile,
		LogPath:     logFile.Name(),
		Machine:     probe.Uname,
		Geteuid:     os.Geteuid,
		logFile:     logFile,
	}

	if cfg.Container == installconfig.ContainerDocker {
		docker, err := dockerruntime.NewDockerRuntime()
		if err != nil {
			slog.Warn("Docker client unavailable", "error", err)
		} else {
			s.Docker = docker
			s.AddCleanup(func() {
				if err := docker.Close(); err != nil {
					slog.Warn("Failed to close Docker client", "error", err)
				}
			})
		}
	}

	slog.Info("Session started", "log", s.LogPath, "scriptDir", scriptDir, "container", cfg.Container,
		"release", cfg.Release, "uninstall", cfg.Uninstall)
	return s, nil
}

// AddCleanup registers fn to run when the session closes. Cleanups run in
// reverse order of registration.
func (s *Session) AddCleanup(fn func()) {
	s.cleanups = append(s.cleanups, fn)
}

// Close runs the registered cleanups, returns to the original working
// directory and closes the install log.
func (s *Session) Close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
	s.cleanups = nil

	if s.OriginalDir != "" {
		if err := os.Chdir(s.OriginalDir); err != nil {
			slog.Warn("Failed to restore working directory", "dir", s.OriginalDir, "error", err)
		}
	}

	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
}

func logDir() string {
	if dir := os.Getenv(LogDirEnv); dir != "" {
		return dir
	}
	return DefaultLogDir
}

func createLogFile() (*os.File, error) {
	dir := logDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(dir, fmt.Sprintf("pb_install_log_%d.txt", time.Now().Unix()))
	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
