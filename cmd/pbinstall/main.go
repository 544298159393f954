package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"pbinstall/internal/app"
	"pbinstall/internal/config"
	pberrors "pbinstall/internal/errors"
	"pbinstall/internal/ui"
)

// version is set at build time via ldflags
var version = "dev"

// exitCode is set once a session has reported its own outcome.
var exitCode = pberrors.ExitOK

var rootCmd = &cobra.Command{
	Use:     "pbinstall",
	Short:   "Install or uninstall Parabricks as a docker or singularity image",
	Version: version,
	Long: `pbinstall installs Parabricks from the installation package it ships with.
It downloads the Parabricks image for docker or singularity, copies the pbrun
scripts into <install-location>/parabricks and optionally links pbrun into PATH.

Use --uninstall to remove every Parabricks installation from the location.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	config.RegisterFlags(rootCmd.Flags())
}

func run(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper(cmd.Flags())
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	scriptDir, err := installerDir()
	if err != nil {
		return pberrors.NewEnvironmentError("Could not locate the installation package", err.Error(), "", err)
	}

	console := ui.NewConsole()
	session, err := app.NewSession(cfg, scriptDir, console, ui.NewStdinAsker())
	if err != nil {
		return pberrors.NewFileSystemError("Could not create the install log", err.Error(),
			fmt.Sprintf("Set %s to a writable directory", app.LogDirEnv), err)
	}
	defer session.Close()
	// Failures are reported while the install log is still open.
	handler := pberrors.NewErrorHandler(slog.Default(), console)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Uninstall {
		err = app.Uninstall(ctx, session)
	} else {
		_, err = app.Install(ctx, session)
	}
	exitCode = handler.Handle(err)
	return nil
}

// installerDir is the directory holding the pbinstall binary, which is where
// EULA.txt and license.bin are shipped.
func installerDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		exitCode = pberrors.NewErrorHandler(slog.Default(), ui.NewConsole()).Handle(err)
	}
	os.Exit(exitCode)
}
