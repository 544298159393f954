package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"
	"golang.org/x/sys/unix"

	pberrors "pbinstall/internal/errors"
)

const licenseFileName = "license.bin"

// RequirementsStage checks the host and prepares an empty install directory
// holding the license file.
type RequirementsStage struct {
	session *Session
	factory *ComponentFactory
}

func NewRequirementsStage(session *Session, factory *ComponentFactory) *RequirementsStage {
	return &RequirementsStage{session: session, factory: factory}
}

func (s *RequirementsStage) Name() string {
	return string(StageRequirementsChecked)
}

func (s *RequirementsStage) Execute(ctx context.Context, state *ExecutionState) error {
	cfg := s.session.Config

	label, err := s.factory.Prober().CheckRequirements(ctx, cfg)
	if err != nil {
		return err
	}
	state.RuntimeLabel = label
	slog.Info("Container runtime selected", "runtime", label)

	license := filepath.Join(s.session.ScriptDir, licenseFileName)
	if _, err := os.Stat(license); err != nil {
		return pberrors.NewPreconditionError(
			fmt.Sprintf("License file %s does not exist. Exiting...", license),
			err.Error(),
			"Place license.bin next to the installer",
			err,
		)
	}

	if err := checkInstallDirAvailable(cfg.InstallDir()); err != nil {
		return err
	}

	manager, err := s.factory.ImageManager(label)
	if err != nil {
		return pberrors.NewEnvironmentError("Unsupported container runtime", err.Error(), "", err)
	}
	if err := manager.CheckNotInstalled(ctx); err != nil {
		return err
	}

	dir := cfg.InstallDir()
	if _, err := os.Lstat(dir); errors.Is(err, os.ErrNotExist) {
		s.session.AddCleanup(func() { removeAbortedInstallDir(dir, state) })
	}
	if err := prepareInstallDir(dir); err != nil {
		return err
	}

	return copyLicense(license, filepath.Join(dir, licenseFileName))
}

// removeAbortedInstallDir deletes an install directory this run created once
// the run has aborted, so a plain re-run is not rejected by it.
func removeAbortedInstallDir(dir string, state *ExecutionState) {
	if state.Stage != StageAborted {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to remove partial install directory", "path", dir, "error", err)
		return
	}
	slog.Info("Removed partial install directory", "path", dir)
}

// checkInstallDirAvailable rejects an install directory that already has
// content. An empty directory is reused.
func checkInstallDirAvailable(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return pberrors.NewFileSystemError(
			fmt.Sprintf("Could not inspect %s", dir), err.Error(), "", err)
	}
	if len(entries) > 0 {
		return pberrors.NewPreconditionError(
			fmt.Sprintf("%s already exists. Please remove it and try installation again", dir),
			"the install directory is not empty",
			"Run the installer with --uninstall to remove the previous installation",
			nil,
		)
	}
	return nil
}

func prepareInstallDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pberrors.NewEnvironmentError(
			fmt.Sprintf("Please check you have permissions to create parabricks folder in %s", filepath.Dir(dir)),
			err.Error(), "", err)
	}

	if err := unix.Access(dir, unix.W_OK); err != nil {
		return pberrors.NewEnvironmentError(
			fmt.Sprintf("Please check you have write permissions in %s", dir),
			err.Error(), "", err)
	}
	return nil
}

// copyLicense copies the license into the install directory unless both
// paths already name the same file.
func copyLicense(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return pberrors.NewFileSystemError("Could not read license file", err.Error(), "", err)
	}
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(srcInfo, dstInfo) {
		return nil
	}

	if err := cp.Copy(src, dst); err != nil {
		return pberrors.NewFileSystemError("Could not copy license file", err.Error(), "", err)
	}
	return nil
}
