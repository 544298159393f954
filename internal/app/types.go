package app

import (
	"context"
)

// Stage is one step of the install workflow. Name is the ExecutionStage the
// run reaches when Execute succeeds.
type Stage interface {
	Name() string
	Execute(ctx context.Context, state *ExecutionState) error
}
