package pipeline

import (
	"context"
	"fmt"

	"mintline/internal/checkpoint"
	"mintline/internal/stage"
)

// runState carries stage outputs between stages of one invocation.
type runState struct {
	items      []checkpoint.PreparedItem
	collection CollectionDescriptor
	mechanism  DistributionMechanism
	mints      []checkpoint.MintRecord
}

type preparingStage struct {
	preparer *Preparer
	state    *runState
	count    int
}

func (s *preparingStage) Prepare(ctx context.Context, run *checkpoint.Run) error {
	items, err := s.preparer.Checkpointed(ctx, run)
	if err != nil {
		return err
	}
	s.state.items = items
	return nil
}

func (s *preparingStage) Execute(ctx context.Context, run *checkpoint.Run) error {
	items, err := s.preparer.PrepareAll(ctx, run, s.count)
	if err != nil {
		return err
	}
	s.state.items = items
	return nil
}

func (s *preparingStage) HealthCheck(context.Context) stage.Health {
	if s.preparer == nil || s.preparer.source == nil || s.preparer.uploader == nil {
		return stage.Unhealthy(string(checkpoint.StatusPreparing), "asset source or uploader not configured")
	}
	return stage.Healthy(string(checkpoint.StatusPreparing))
}

type registeringStage struct {
	registrar *Registrar
	state     *runState
}

func (s *registeringStage) Prepare(_ context.Context, run *checkpoint.Run) error {
	if desc, ok := s.registrar.Descriptor(run); ok {
		s.state.collection = desc
	}
	return nil
}

func (s *registeringStage) Execute(ctx context.Context, run *checkpoint.Run) error {
	desc, err := s.registrar.Register(ctx, run)
	if err != nil {
		return err
	}
	s.state.collection = desc
	return nil
}

func (s *registeringStage) HealthCheck(context.Context) stage.Health {
	if s.registrar == nil || s.registrar.ledger == nil {
		return stage.Unhealthy(string(checkpoint.StatusRegisteringCollection), "ledger client not configured")
	}
	return stage.Healthy(string(checkpoint.StatusRegisteringCollection))
}

type initializingStage struct {
	initializer *Initializer
	state       *runState
}

func (s *initializingStage) Prepare(_ context.Context, run *checkpoint.Run) error {
	s.state.mechanism = s.initializer.Mechanism(run)
	return nil
}

func (s *initializingStage) Execute(ctx context.Context, run *checkpoint.Run) error {
	if len(s.state.items) != run.ItemCount {
		return fmt.Errorf("expected %d prepared items, have %d", run.ItemCount, len(s.state.items))
	}
	mechanism, err := s.initializer.Initialize(ctx, run, s.state.collection, s.state.items)
	if err != nil {
		return err
	}
	s.state.mechanism = mechanism
	return nil
}

func (s *initializingStage) HealthCheck(context.Context) stage.Health {
	if s.initializer == nil || s.initializer.ledger == nil {
		return stage.Unhealthy(string(checkpoint.StatusInitializingMechanism), "ledger client not configured")
	}
	return stage.Healthy(string(checkpoint.StatusInitializingMechanism))
}

type mintingStage struct {
	minter   *Minter
	state    *runState
	settings Settings
}

func (s *mintingStage) Prepare(ctx context.Context, run *checkpoint.Run) error {
	mints, err := s.minter.Checkpointed(ctx, run)
	if err != nil {
		return err
	}
	s.state.mints = mints
	return nil
}

func (s *mintingStage) Execute(ctx context.Context, run *checkpoint.Run) error {
	mints, err := s.minter.MintSequential(ctx, run, s.state.mechanism, run.MintCount, s.settings.Pacing)
	s.state.mints = mints
	return err
}

func (s *mintingStage) HealthCheck(context.Context) stage.Health {
	if s.minter == nil || s.minter.ledger == nil {
		return stage.Unhealthy(string(checkpoint.StatusMinting), "ledger client not configured")
	}
	return stage.Healthy(string(checkpoint.StatusMinting))
}
