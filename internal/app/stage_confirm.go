package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	pberrors "pbinstall/internal/errors"
)

const (
	eulaFileName = "EULA.txt"

	eulaNotice = "The software can be used only with the above End User License Agreement stated above."
)

// EULAStage shows the license agreement and asks the operator to accept it.
type EULAStage struct {
	session *Session
}

func NewEULAStage(session *Session) *EULAStage {
	return &EULAStage{session: session}
}

func (s *EULAStage) Name() string {
	return string(StageEULAAccepted)
}

func (s *EULAStage) Execute(ctx context.Context, state *ExecutionState) error {
	eulaPath := filepath.Join(s.session.ScriptDir, eulaFileName)
	eula, err := os.ReadFile(eulaPath)
	if err != nil {
		return pberrors.NewPreconditionError(
			"Inconsistent Installation Package. EULA.txt not found. Exiting...",
			err.Error(),
			fmt.Sprintf("Place EULA.txt next to the installer in %s", s.session.ScriptDir),
			err,
		)
	}

	console := s.session.Console
	console.PrintWrapped(string(eula))
	console.PrintWrapped(eulaNotice)

	if s.session.Config.Force {
		slog.Info("EULA accepted by --force")
		return nil
	}
	return s.session.agree("EULA")
}

// ConfirmStage prints the final selection, asks the operator to confirm it
// and whether to create the pbrun symlink.
type ConfirmStage struct {
	session *Session
}

func NewConfirmStage(session *Session) *ConfirmStage {
	return &ConfirmStage{session: session}
}

func (s *ConfirmStage) Name() string {
	return string(StageParamsConfirmed)
}

func (s *ConfirmStage) Execute(ctx context.Context, state *ExecutionState) error {
	cfg := s.session.Config
	console := s.session.Console

	console.Println("====================================")
	console.Println("Installing Parabricks")
	console.Println("Final Selection:")
	console.Println("Install Directory:      " + cfg.InstallDir())
	console.Println("Install Version:        " + cfg.Release)
	console.Println("Install Container Type: " + cfg.Container)
	console.Println("Install Architecture:   " + cfg.Arch)
	console.Println("Registry:               " + cfg.RegistryHost())
	console.Println("====================================\n")

	if cfg.Force {
		return nil
	}

	console.PrintWrapped("Are the above installation parameters correct?")
	if err := s.session.agree("installation parameters"); err != nil {
		return err
	}

	console.PrintWrapped(fmt.Sprintf("Do you want to create a symlink to %s ?", cfg.SymlinkPath))
	symlink, err := s.session.Prompter.Decide()
	if err != nil {
		return pberrors.NewEnvironmentError("Could not read the answer", err.Error(), "Run with --force for unattended installs", err)
	}
	cfg.Symlink = symlink
	slog.Info("Symlink choice", "symlink", symlink, "path", cfg.SymlinkPath)
	return nil
}

// agree asks for a yes/no answer and turns "no" into a declined error.
func (s *Session) agree(step string) error {
	yes, err := s.Prompter.Decide()
	if err != nil {
		return pberrors.NewEnvironmentError("Could not read the answer", err.Error(), "Run with --force for unattended installs", err)
	}
	if !yes {
		return pberrors.NewDeclinedError(step + " not accepted")
	}
	return nil
}
