package stage

import (
	"context"

	"mintline/internal/checkpoint"
)

// Handler describes the contract the orchestrator needs from each stage.
//
// Prepare restores whatever the stage already produced for the run from the
// checkpoint store, so a resumed run can hand complete outputs to later
// stages. Execute performs the remaining work.
type Handler interface {
	Prepare(context.Context, *checkpoint.Run) error
	Execute(context.Context, *checkpoint.Run) error
	HealthCheck(context.Context) Health
}
