package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mintline/internal/assets"
	"mintline/internal/checkpoint"
	"mintline/internal/config"
	"mintline/internal/logging"
	"mintline/internal/notifications"
	"mintline/internal/pipeline"
	"mintline/internal/preflight"
	"mintline/internal/retry"
	"mintline/internal/services"
	"mintline/internal/stage"
	"mintline/internal/statusapi"
)

type runFlags struct {
	fresh         bool
	dryRun        bool
	jsonOut       bool
	serveAPI      bool
	skipPreflight bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run or resume the batch: upload, register, initialize, mint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.fresh, "fresh", false, "Start a new run even when the batch has an earlier one")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Report preflight checks and the resume point without submitting anything")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&flags.serveAPI, "api", false, "Serve the status API on api.bind while the run is in progress")
	cmd.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip the storage, asset, and balance checks")
	return cmd
}

func runBatch(cmd *cobra.Command, ctx *commandContext, flags runFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	settings, err := pipeline.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := cfg.RequireStorage(); err != nil {
		return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
	}

	logger, err := ctx.logger(flags.jsonOut)
	if err != nil {
		return err
	}
	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}

	client, err := ctx.factories.ledger(runCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("load signer: %w", err)
	}
	uploader, err := ctx.factories.storage(runCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build storage backend: %w", err)
	}
	defer closeIfCloser(uploader)

	source := assets.NewDirSource(cfg.Paths.ImagesDir, cfg.Paths.MetadataDir)
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	return ctx.withStore(func(store *checkpoint.Store) error {
		orch := pipeline.NewOrchestrator(pipeline.Deps{
			Settings:         settings,
			Store:            store,
			Ledger:           client,
			Storage:          uploader,
			Source:           source,
			SourceKey:        cfg.Paths.ImagesDir + "|" + cfg.Paths.MetadataDir,
			Notifier:         notifications.NewService(cfg),
			Policy:           retry.PolicyFromConfig(cfg.Retry, logger),
			LockDir:          cfg.Paths.LockDir,
			RunLogDir:        cfg.Paths.LogDir,
			LogRetentionDays: cfg.Logging.RetentionDays,
			Logger:           logger,
		})

		var checks []preflight.Result
		if !flags.skipPreflight {
			checks = preflight.RunAll(runCtx, cfg, client, source)
		}

		if flags.dryRun {
			plan, err := orch.Plan(runCtx, pipeline.RunOptions{Fresh: flags.fresh})
			if err != nil {
				return err
			}
			if flags.jsonOut {
				return writeJSON(cmd, struct {
					Plan      *pipeline.Plan     `json:"plan"`
					Preflight []preflight.Result `json:"preflight"`
				}{plan, checks})
			}
			if len(checks) > 0 {
				writePreflight(out, checks, colorize)
				fmt.Fprintln(out)
			}
			writePlan(out, plan, colorize)
			if !preflight.Passed(checks) {
				return errors.New("preflight checks failed")
			}
			if blocked := stage.Blocked(plan.Health); len(blocked) > 0 {
				return fmt.Errorf("stage %s blocked: %s", blocked[0].Stage, blocked[0].Reason)
			}
			return nil
		}

		if !preflight.Passed(checks) {
			writePreflight(cmd.ErrOrStderr(), checks, shouldColorize(cmd.ErrOrStderr()))
			return errors.New("preflight checks failed; fix the items above or pass --skip-preflight")
		}

		if flags.serveAPI {
			apiCtx, cancel := context.WithCancel(runCtx)
			defer cancel()
			if err := startStatusAPI(apiCtx, cfg, store, ctx.hub, logger); err != nil {
				return err
			}
		}

		result, runErr := orch.Run(runCtx, pipeline.RunOptions{Fresh: flags.fresh})
		if runErr != nil {
			return describeRunError(cmd.ErrOrStderr(), runErr)
		}
		if flags.jsonOut {
			return writeJSON(cmd, result)
		}
		writeResult(out, result, colorize)
		return nil
	})
}

func startStatusAPI(ctx context.Context, cfg *config.Config, store *checkpoint.Store, hub *logging.StreamHub, logger *slog.Logger) error {
	server := statusapi.New(store, hub, logger)
	if err := server.Start(ctx, cfg.API.Bind); err != nil {
		return err
	}
	return nil
}

// describeRunError adds an operator hint for interrupted runs. The error is
// returned unchanged so main reports it and exits non-zero.
func describeRunError(w io.Writer, err error) error {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) && errors.Is(err, context.Canceled) && stageErr.RunID != "" {
		fmt.Fprintf(w, "Interrupted during %s; rerun to resume run %s from its last checkpoint\n", stageErr.Stage, stageErr.RunID)
	}
	return err
}

func writePlan(w io.Writer, plan *pipeline.Plan, colorize bool) {
	for _, line := range renderSectionHeader("Plan", colorize) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, renderStatusLine("Identity", statusInfo, plan.Identity, colorize))
	fmt.Fprintln(w, renderStatusLine("Batch", statusInfo, plan.BatchKey, colorize))
	if plan.Existing != nil {
		fmt.Fprintln(w, renderStatusLine("Existing run", runStatusKind(plan.Existing.Status),
			fmt.Sprintf("%s (%s)", plan.Existing.ID, plan.Existing.Status), colorize))
	} else {
		fmt.Fprintln(w, renderStatusLine("Existing run", statusInfo, "none", colorize))
	}
	fmt.Fprintln(w, renderStatusLine("Resume from", statusInfo, string(plan.ResumeFrom), colorize))
	for _, health := range plan.Health {
		kind := statusOK
		if !health.Ready {
			kind = statusError
		}
		fmt.Fprintln(w, renderStatusLine("Stage "+health.Stage, kind, health.Reason, colorize))
	}
	for _, warning := range plan.Warnings {
		fmt.Fprintln(w, renderStatusLine("Warning", statusWarn, warning, colorize))
	}
}

func writeResult(w io.Writer, result *pipeline.Result, colorize bool) {
	for _, line := range renderSectionHeader("Run "+result.RunID+" complete", colorize) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, renderStatusLine("Collection", statusOK, result.Collection.MintAddress, colorize))
	fmt.Fprintln(w, renderStatusLine("Candy machine", statusOK, result.Mechanism.Address, colorize))
	fmt.Fprintln(w, renderStatusLine("Items loaded", statusInfo,
		fmt.Sprintf("%d/%d", result.Mechanism.ItemsLoaded, result.Mechanism.ItemsAvailable), colorize))

	minted := result.MintedAddresses()
	fmt.Fprintln(w, renderStatusLine("Minted", statusInfo, strconv.Itoa(len(minted)), colorize))
	if len(result.Mints) == 0 {
		return
	}
	rows := make([][]string, 0, len(result.Mints))
	for _, mint := range result.Mints {
		rows = append(rows, []string{
			strconv.Itoa(mint.Sequence),
			mint.InstanceAddress,
			yesNo(mint.Confirmed),
			strings.TrimSpace(mint.Signature),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"#", "Address", "Confirmed", "Signature"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
}
