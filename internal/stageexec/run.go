package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mintline/internal/checkpoint"
	"mintline/internal/logging"
	"mintline/internal/notifications"
	"mintline/internal/services"
	"mintline/internal/stage"
)

// Options controls stage execution and checkpoint persistence behavior.
type Options struct {
	Logger   *slog.Logger
	Store    *checkpoint.Store
	Notifier notifications.Service
	Handler  stage.Handler
	Stage    checkpoint.Status
	Run      *checkpoint.Run
}

// Run moves the run into the stage, executes the handler, and records a
// failure against the stage when the handler returns an error. On success
// opts.Run reflects the latest persisted state.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.Stage)
	}
	if opts.Store == nil {
		return errors.New("checkpoint store is required")
	}
	if opts.Run == nil {
		return errors.New("run is required")
	}

	stageCtx := services.WithStage(services.WithRunID(ctx, opts.Run.ID), string(opts.Stage))
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	if opts.Run.Status != opts.Stage {
		updated, err := opts.Store.Transition(stageCtx, opts.Run.ID, opts.Stage)
		if err != nil {
			return fmt.Errorf("persist %s transition: %w", opts.Stage, err)
		}
		*opts.Run = *updated
	}

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("stage_label", Label(opts.Stage)),
	)

	if err := opts.Handler.Prepare(stageCtx, opts.Run); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, err)
	}
	if err := opts.Handler.Execute(stageCtx, opts.Run); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, err)
	}

	if refreshed, err := opts.Store.GetRun(stageCtx, opts.Run.ID); err == nil {
		*opts.Run = *refreshed
	} else {
		stageLogger.Warn("reload run after stage failed", logging.Error(err))
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("stage_label", Label(opts.Stage)),
	)
	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, stageErr error) error {
	stageErr = services.StampStage(stageErr, string(opts.Stage))
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = "stage failed"
	}

	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("resolved_status", string(checkpoint.StatusFailed)),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorHint, hintFor(stageErr)),
		logging.Error(stageErr),
	)

	// Persist with a context that survives cancellation of the run.
	persistCtx := context.WithoutCancel(ctx)
	if err := opts.Store.MarkFailed(persistCtx, opts.Run.ID, opts.Stage, message); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	} else {
		opts.Run.Status = checkpoint.StatusFailed
		opts.Run.FailedStage = opts.Stage
		opts.Run.ErrorMessage = message
	}

	if opts.Notifier != nil {
		if err := opts.Notifier.NotifyStageFailed(persistCtx, opts.Run.ID, string(opts.Stage), stageErr); err != nil {
			logger.Debug("stage failure notification failed", logging.Error(err))
		}
	}

	return stageErr
}

func hintFor(err error) string {
	var txErr *services.TransactionError
	switch {
	case errors.As(err, &txErr) && txErr.Ambiguous:
		return "transaction outcome unknown; rerun to resume, existing accounts are adopted"
	case errors.Is(err, services.ErrConfiguration):
		return "fix the configuration and rerun"
	case errors.Is(err, services.ErrUpload):
		return "check storage endpoint and credentials, then rerun to resume"
	case errors.Is(err, services.ErrTransaction):
		return "check signer balance and RPC health, then rerun to resume"
	default:
		return "rerun to resume from this stage"
	}
}

// Label renders a status as a human-readable stage label, e.g.
// "registering_collection" becomes "Registering Collection".
func Label(status checkpoint.Status) string {
	if status == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(status), "_", " "))
}
