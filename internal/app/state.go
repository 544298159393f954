package app

import (
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// ExecutionStage is a step of the install state machine.
type ExecutionStage string

const (
	StageArgsParsed          ExecutionStage = "args_parsed"
	StageEULAAccepted        ExecutionStage = "eula_accepted"
	StageParamsConfirmed     ExecutionStage = "params_confirmed"
	StageRequirementsChecked ExecutionStage = "requirements_checked"
	StageImageInstalled      ExecutionStage = "image_installed"
	StageScriptsInstalled    ExecutionStage = "scripts_installed"
	StageConfigPersisted     ExecutionStage = "config_persisted"
	StageAborted             ExecutionStage = "aborted"
)

// installOrder is the only path through the state machine. Aborted can be
// reached from any stage.
var installOrder = []ExecutionStage{
	StageArgsParsed,
	StageEULAAccepted,
	StageParamsConfirmed,
	StageRequirementsChecked,
	StageImageInstalled,
	StageScriptsInstalled,
	StageConfigPersisted,
}

// ExecutionState tracks one install run in memory.
type ExecutionState struct {
	RunID string
	Stage ExecutionStage
	// RuntimeLabel is set once requirements are checked: "docker",
	// "singularity 2.x" or "singularity 3.x".
	RuntimeLabel  string
	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

func newState(runID string) *ExecutionState {
	now := time.Now()
	return &ExecutionState{
		RunID:         runID,
		Stage:         StageArgsParsed,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// nextStage returns the stage that follows the current one, or "" when the
// run is finished or aborted.
func (s *ExecutionState) nextStage() ExecutionStage {
	i := slices.Index(installOrder, s.Stage)
	if i < 0 || i == len(installOrder)-1 {
		return ""
	}
	return installOrder[i+1]
}

// advance moves the state machine to stage, which must directly follow the
// current stage.
func (s *ExecutionState) advance(stage ExecutionStage) error {
	if next := s.nextStage(); next != stage {
		return fmt.Errorf("invalid stage transition from %s to %s", s.Stage, stage)
	}

	slog.Info("Stage completed", "runId", s.RunID, "from", s.Stage, "to", stage)
	s.Stage = stage
	s.LastUpdatedAt = time.Now()
	return nil
}

func (s *ExecutionState) abort(err error) {
	slog.Error("Run aborted", "runId", s.RunID, "stage", s.Stage, "error", err)
	s.Stage = StageAborted
	s.LastUpdatedAt = time.Now()
}

// Done reports whether the run reached its terminal success stage.
func (s *ExecutionState) Done() bool {
	return s.Stage == StageConfigPersisted
}
