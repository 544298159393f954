package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"pbinstall/internal/config"
	pberrors "pbinstall/internal/errors"
	"pbinstall/internal/image"
	"pbinstall/internal/scripts"
	"pbinstall/pkg/installconfig"
)

// Install runs the install workflow and returns the final state. Any error
// leaves the state Aborted.
func Install(ctx context.Context, session *Session) (*ExecutionState, error) {
	state := newState(uuid.NewString())
	slog.Info("Starting installation", "runId", state.RunID, "release", session.Config.Release)

	if err := config.ResolveArch(session.Config, session.Machine); err != nil {
		state.abort(err)
		return state, err
	}

	factory := NewComponentFactory(session)
	for _, stage := range buildStages(session, factory) {
		if err := ctx.Err(); err != nil {
			err = pberrors.NewRuntimeError("Installation interrupted", err.Error(), "", err)
			state.abort(err)
			return state, err
		}

		if err := stage.Execute(ctx, state); err != nil {
			state.abort(err)
			return state, err
		}
		if err := state.advance(ExecutionStage(stage.Name())); err != nil {
			state.abort(err)
			return state, err
		}
	}

	slog.Info("Installation completed", "runId", state.RunID, "runtime", state.RuntimeLabel)
	return state, nil
}

func buildStages(session *Session, factory *ComponentFactory) []Stage {
	return []Stage{
		NewEULAStage(session),
		NewConfirmStage(session),
		NewRequirementsStage(session, factory),
		NewImageStage(factory),
		NewScriptsStage(factory),
		NewPersistStage(session),
	}
}

// Uninstall removes installed images, the install directory and the pbrun
// symlink. With nothing installed it succeeds without changes.
func Uninstall(ctx context.Context, session *Session) error {
	cfg := session.Config
	console := session.Console
	slog.Info("Starting uninstallation", "location", cfg.InstallLocation, "container", cfg.Container)
	console.Println("Starting Uninstallation\n")

	if cfg.Container == installconfig.ContainerDocker {
		if session.Docker == nil {
			return pberrors.NewEnvironmentError(
				"docker not found. Please check installation of docker.",
				"no Docker client could be created",
				"Use --container singularity if Parabricks was installed with singularity",
				nil,
			)
		}
		manager := image.NewDockerManager(cfg, session.Docker, console, console.Out())
		if err := manager.RemoveImages(ctx, cfg.KeepReleases); err != nil {
			return err
		}
	}

	dir := cfg.InstallDir()
	if _, err := os.Lstat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return pberrors.NewFileSystemError(fmt.Sprintf("Could not remove %s", dir), err.Error(),
				"Check you have write permissions in "+cfg.InstallLocation, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return pberrors.NewFileSystemError(fmt.Sprintf("Could not inspect %s", dir), err.Error(), "", err)
	}

	if err := scripts.RemoveSymlink(cfg.SymlinkPath); err != nil {
		console.PrintWarning(err.Error())
	}

	console.Println("Parabricks uninstalled from " + cfg.InstallLocation)
	slog.Info("Uninstallation completed", "location", cfg.InstallLocation)
	return nil
}
