package app

import (
	"context"
	"os"
	"path/filepath"

	pberrors "pbinstall/internal/errors"
)

const configFileName = "config.txt"

// ImageStage downloads the product image for the selected runtime.
type ImageStage struct {
	factory *ComponentFactory
}

func NewImageStage(factory *ComponentFactory) *ImageStage {
	return &ImageStage{factory: factory}
}

func (s *ImageStage) Name() string {
	return string(StageImageInstalled)
}

func (s *ImageStage) Execute(ctx context.Context, state *ExecutionState) error {
	manager, err := s.factory.ImageManager(state.RuntimeLabel)
	if err != nil {
		return pberrors.NewEnvironmentError("Unsupported container runtime", err.Error(), "", err)
	}
	return manager.InstallImage(ctx)
}

// ScriptsStage copies the launcher scripts out of the installed image.
type ScriptsStage struct {
	factory *ComponentFactory
}

func NewScriptsStage(factory *ComponentFactory) *ScriptsStage {
	return &ScriptsStage{factory: factory}
}

func (s *ScriptsStage) Name() string {
	return string(StageScriptsInstalled)
}

func (s *ScriptsStage) Execute(ctx context.Context, state *ExecutionState) error {
	return s.factory.ScriptInstaller(state.RuntimeLabel).Install(ctx)
}

// PersistStage records the runtime label and architecture the launcher
// scripts read at run time.
type PersistStage struct {
	session *Session
}

func NewPersistStage(session *Session) *PersistStage {
	return &PersistStage{session: session}
}

func (s *PersistStage) Name() string {
	return string(StageConfigPersisted)
}

func (s *PersistStage) Execute(ctx context.Context, state *ExecutionState) error {
	cfg := s.session.Config
	path := filepath.Join(cfg.InstallDir(), configFileName)
	content := state.RuntimeLabel + "\n" + cfg.Arch + "\n"

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return pberrors.NewFileSystemError("Could not write "+path, err.Error(), "", err)
	}

	s.session.Console.PrintSuccess("Installation successful")
	return nil
}
