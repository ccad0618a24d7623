package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mintline/internal/assets"
	"mintline/internal/checkpoint"
	"mintline/internal/ledger"
	"mintline/internal/logging"
	"mintline/internal/notifications"
	"mintline/internal/retry"
	"mintline/internal/services"
	"mintline/internal/stage"
	"mintline/internal/stageexec"
	"mintline/internal/storage"
)

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Settings Settings
	Store    *checkpoint.Store
	Ledger   ledger.Client
	Storage  storage.Uploader
	Source   assets.Source
	// SourceKey describes the asset source for batch identification,
	// e.g. the images and metadata directories.
	SourceKey string
	Notifier  notifications.Service
	Policy    retry.Policy
	// LockDir holds the per-identity lock files. Empty disables locking.
	LockDir string
	// RunLogDir receives one JSON log file per run. Empty disables run logs.
	RunLogDir        string
	LogRetentionDays int
	Logger           *slog.Logger
	// Sleep overrides the inter-mint pause in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RunOptions adjusts one invocation.
type RunOptions struct {
	// Fresh starts a new run even when the batch has an unfinished one.
	Fresh bool
}

// Orchestrator sequences the pipeline stages for a batch. Run is not safe
// for concurrent use; the identity lock serializes runs across processes.
type Orchestrator struct {
	deps        Deps
	base        *slog.Logger
	logger      *slog.Logger
	preparer    *Preparer
	registrar   *Registrar
	initializer *Initializer
	minter      *Minter
}

// NewOrchestrator wires the stage components from deps.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = notifications.Noop()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	o := &Orchestrator{deps: deps}
	o.wire(deps.Logger)
	return o
}

// wire (re)builds the stage components around logger.
func (o *Orchestrator) wire(logger *slog.Logger) {
	deps := o.deps
	uploader := NewAssetUploader(deps.Storage, deps.Policy, logger)
	o.base = logger
	o.logger = logging.NewComponentLogger(logger, "pipeline")
	o.preparer = NewPreparer(deps.Source, uploader, deps.Store, deps.Settings, logger)
	o.registrar = NewRegistrar(deps.Ledger, uploader, deps.Store, deps.Policy, deps.Settings, logger)
	o.initializer = NewInitializer(deps.Ledger, deps.Store, deps.Policy, deps.Settings, logger)
	o.minter = NewMinter(deps.Ledger, deps.Store, deps.Policy, logger, deps.Sleep)
}

// attachRunLog tees the pipeline logger into the run's own log file and
// prunes run logs past retention.
func (o *Orchestrator) attachRunLog(runID string) func() {
	if o.deps.RunLogDir == "" {
		return func() {}
	}
	file, handler, err := logging.OpenRunLog(o.deps.RunLogDir, runID)
	if err != nil {
		logging.WarnWithContext(o.logger, "run log unavailable; continuing without it", "run_log_unavailable",
			logging.String(logging.FieldRunID, runID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
		)
		return func() {}
	}
	o.wire(logging.TeeLogger(o.deps.Logger, handler))
	logging.PruneRunLogs(o.logger, o.deps.RunLogDir, o.deps.LogRetentionDays, runID)
	return func() {
		o.wire(o.deps.Logger)
		if err := file.Close(); err != nil {
			o.logger.Debug("close run log", logging.Error(err))
		}
	}
}

type stageEntry struct {
	status  checkpoint.Status
	handler stage.Handler
}

func (o *Orchestrator) stages(state *runState) []stageEntry {
	return []stageEntry{
		{checkpoint.StatusPreparing, &preparingStage{preparer: o.preparer, state: state, count: o.deps.Settings.ItemCount}},
		{checkpoint.StatusRegisteringCollection, &registeringStage{registrar: o.registrar, state: state}},
		{checkpoint.StatusInitializingMechanism, &initializingStage{initializer: o.initializer, state: state}},
		{checkpoint.StatusMinting, &mintingStage{minter: o.minter, state: state, settings: o.deps.Settings}},
	}
}

func (o *Orchestrator) checkDeps() error {
	switch {
	case o.deps.Store == nil:
		return errors.New("pipeline: checkpoint store is required")
	case o.deps.Ledger == nil:
		return errors.New("pipeline: ledger client is required")
	case o.deps.Storage == nil:
		return errors.New("pipeline: storage uploader is required")
	case o.deps.Source == nil:
		return errors.New("pipeline: asset source is required")
	}
	return nil
}

// Run executes or resumes the batch. Settings are validated before any
// network call. A failing stage is recorded on the run and returned as a
// *StageError; the partial result is returned alongside it.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	if err := o.deps.Settings.Validate(); err != nil {
		return nil, &StageError{Stage: checkpoint.StatusIdle, Err: err}
	}
	if err := o.checkDeps(); err != nil {
		return nil, err
	}

	identity := o.deps.Ledger.Identity().ToBase58()
	if o.deps.LockDir != "" {
		lock, err := acquireIdentityLock(o.deps.LockDir, identity)
		if err != nil {
			return nil, fmt.Errorf("lock identity %s: %w", identity, err)
		}
		defer func() {
			if err := lock.release(); err != nil {
				o.logger.Warn("release identity lock", logging.Error(err))
			}
		}()
	}

	batchKey := BatchKey(o.deps.Settings, o.deps.SourceKey, identity)
	run, done, err := o.selectRun(ctx, batchKey, identity, opts.Fresh)
	if err != nil {
		return nil, err
	}
	ctx = services.WithRunID(ctx, run.ID)
	defer o.attachRunLog(run.ID)()
	logger := logging.WithContext(ctx, o.logger)

	state := &runState{}
	if done {
		logger.Info("batch already complete; pass --fresh to start a new run",
			logging.String("batch_key", batchKey),
		)
		for _, entry := range o.stages(state) {
			if err := entry.handler.Prepare(ctx, run); err != nil {
				return nil, err
			}
		}
		return o.result(run, state), nil
	}

	started := time.Now()
	for _, warning := range o.deps.Settings.Warnings() {
		logging.WarnWithContext(logger, warning, "settings_warning",
			logging.String(logging.FieldImpact, "minting may fail on chain"),
			logging.String(logging.FieldErrorHint, "align mechanism.items_available with mint.item_count"),
		)
	}
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("batch_key", batchKey),
		logging.String("identity", identity),
		logging.String("resume_from", string(run.Status)),
		logging.Int("items", run.ItemCount),
		logging.Int("mints", run.MintCount),
	)
	if err := o.deps.Notifier.NotifyRunStarted(ctx, run.ID, run.ItemCount, run.MintCount); err != nil {
		logger.Debug("run start notification failed", logging.Error(err))
	}

	start := run.Status
	if start == checkpoint.StatusIdle {
		start = checkpoint.StatusPreparing
	}
	for _, entry := range o.stages(state) {
		if entry.status.Precedes(start) {
			if err := entry.handler.Prepare(ctx, run); err != nil {
				return o.result(run, state), &StageError{RunID: run.ID, Stage: entry.status, Err: err}
			}
			continue
		}
		err := stageexec.Run(ctx, stageexec.Options{
			Logger:   o.base,
			Store:    o.deps.Store,
			Notifier: o.deps.Notifier,
			Handler:  entry.handler,
			Stage:    entry.status,
			Run:      run,
		})
		if err != nil {
			return o.result(run, state), &StageError{RunID: run.ID, Stage: entry.status, Err: err}
		}
	}

	completed, err := o.deps.Store.Transition(ctx, run.ID, checkpoint.StatusComplete)
	if err != nil {
		return o.result(run, state), fmt.Errorf("persist completion: %w", err)
	}
	*run = *completed

	result := o.result(run, state)
	minted := len(result.MintedAddresses())
	logger.Info("run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("candy_machine", result.Mechanism.Address),
		logging.Int("minted", minted),
		logging.Duration("elapsed", time.Since(started)),
	)
	if err := o.deps.Notifier.NotifyRunCompleted(ctx, run.ID, result.Mechanism.Address, minted, time.Since(started)); err != nil {
		logger.Debug("run completion notification failed", logging.Error(err))
	}
	return result, nil
}

// selectRun returns the run to work on and whether it is already complete.
func (o *Orchestrator) selectRun(ctx context.Context, batchKey, identity string, fresh bool) (*checkpoint.Run, bool, error) {
	settings := o.deps.Settings
	if !fresh {
		latest, err := o.deps.Store.LatestRunForBatch(ctx, batchKey)
		if err != nil {
			return nil, false, err
		}
		switch {
		case latest == nil:
		case latest.Status == checkpoint.StatusComplete:
			return latest, true, nil
		case latest.Status == checkpoint.StatusFailed:
			resumeAt := latest.ResumeStatus()
			o.logger.Info("resuming failed run",
				logging.String(logging.FieldRunID, latest.ID),
				logging.String("failed_stage", string(latest.FailedStage)),
				logging.String("resume_from", string(resumeAt)),
			)
			run, err := o.deps.Store.Reopen(ctx, latest.ID, resumeAt)
			return run, false, err
		default:
			o.logger.Info("resuming interrupted run",
				logging.String(logging.FieldRunID, latest.ID),
				logging.String("resume_from", string(latest.Status)),
			)
			return latest, false, nil
		}
	}
	run, err := o.deps.Store.CreateRun(ctx, batchKey, identity, settings.ItemCount, settings.MintCount)
	return run, false, err
}

func (o *Orchestrator) result(run *checkpoint.Run, state *runState) *Result {
	mechanism := state.mechanism
	if mechanism.Address == "" && run.MechanismAddress != "" {
		mechanism = o.initializer.Mechanism(run)
	}
	collection := state.collection
	if collection.MintAddress == "" {
		if desc, ok := o.registrar.Descriptor(run); ok {
			collection = desc
		}
	}
	return &Result{
		RunID:      run.ID,
		Collection: collection,
		Mechanism:  mechanism,
		Items:      state.items,
		Mints:      state.mints,
	}
}

// Plan describes what Run would do without touching the network.
type Plan struct {
	BatchKey   string            `json:"batch_key"`
	Identity   string            `json:"identity"`
	Existing   *checkpoint.Run   `json:"existing,omitempty"`
	ResumeFrom checkpoint.Status `json:"resume_from"`
	Health     []stage.Health    `json:"health"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// Plan validates settings and reports the run Run would select.
func (o *Orchestrator) Plan(ctx context.Context, opts RunOptions) (*Plan, error) {
	if err := o.deps.Settings.Validate(); err != nil {
		return nil, &StageError{Stage: checkpoint.StatusIdle, Err: err}
	}
	if err := o.checkDeps(); err != nil {
		return nil, err
	}
	identity := o.deps.Ledger.Identity().ToBase58()
	plan := &Plan{
		BatchKey:   BatchKey(o.deps.Settings, o.deps.SourceKey, identity),
		Identity:   identity,
		ResumeFrom: checkpoint.StatusPreparing,
		Warnings:   o.deps.Settings.Warnings(),
	}
	if !opts.Fresh {
		latest, err := o.deps.Store.LatestRunForBatch(ctx, plan.BatchKey)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			plan.Existing = latest
			plan.ResumeFrom = latest.ResumeStatus()
			if plan.ResumeFrom == checkpoint.StatusIdle {
				plan.ResumeFrom = checkpoint.StatusPreparing
			}
		}
	}
	for _, entry := range o.stages(&runState{}) {
		plan.Health = append(plan.Health, entry.handler.HealthCheck(ctx))
	}
	return plan, nil
}
