package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mintline/internal/checkpoint"
	"mintline/internal/statusapi"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statusFilter []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show checkpointed runs, or one run in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *checkpoint.Store) error {
				reqCtx := cmd.Context()
				if reqCtx == nil {
					reqCtx = context.Background()
				}
				if len(args) == 1 {
					return showRun(cmd, reqCtx, store, strings.TrimSpace(args[0]), jsonOut)
				}
				return listRuns(cmd, reqCtx, store, limit, statusFilter, jsonOut)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().StringSliceVar(&statusFilter, "status", nil, "Only list runs in these statuses")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func listRuns(cmd *cobra.Command, ctx context.Context, store *checkpoint.Store, limit int, filter []string, jsonOut bool) error {
	statuses := make([]checkpoint.Status, 0, len(filter))
	for _, value := range filter {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			statuses = append(statuses, checkpoint.Status(trimmed))
		}
	}
	runs, err := store.ListRuns(ctx, limit, statuses...)
	if err != nil {
		return err
	}

	if jsonOut {
		views := make([]statusapi.RunView, 0, len(runs))
		for _, run := range runs {
			views = append(views, statusapi.FromRun(run))
		}
		return writeJSON(cmd, statusapi.RunListResponse{Runs: views})
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		confirmed, err := store.ConfirmedMintCount(ctx, run.ID)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			run.ID,
			colorStatus(run, colorize),
			strconv.Itoa(run.ItemCount),
			fmt.Sprintf("%d/%d", confirmed, run.MintCount),
			fallback(run.MechanismAddress, "-"),
			run.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Status", "Items", "Minted", "Candy Machine", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
	return nil
}

func showRun(cmd *cobra.Command, ctx context.Context, store *checkpoint.Store, id string, jsonOut bool) error {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	items, err := store.PreparedItems(ctx, id)
	if err != nil {
		return err
	}
	mints, err := store.Mints(ctx, id)
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(cmd, statusapi.NewRunDetail(run, items, mints))
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	writeRunSummary(out, run, colorize)

	if len(items) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{strconv.Itoa(item.Index), item.Name, item.MetadataURI})
		}
		fmt.Fprintln(out, renderTable([]string{"#", "Name", "Metadata URI"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft}))
	}
	if len(mints) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(mints))
		for _, mint := range mints {
			rows = append(rows, []string{
				strconv.Itoa(mint.Sequence),
				mint.InstanceAddress,
				yesNo(mint.Confirmed),
				fallback(mint.Signature, "-"),
			})
		}
		fmt.Fprintln(out, renderTable([]string{"#", "Address", "Confirmed", "Signature"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
	}
	return nil
}

func writeRunSummary(w io.Writer, run *checkpoint.Run, colorize bool) {
	for _, line := range renderSectionHeader("Run "+run.ID, colorize) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, renderStatusLine("Status", runStatusKind(run.Status), string(run.Status), colorize))
	if run.Status == checkpoint.StatusFailed {
		fmt.Fprintln(w, renderStatusLine("Failed stage", statusError, string(run.FailedStage), colorize))
		fmt.Fprintln(w, renderStatusLine("Error", statusError, run.ErrorMessage, colorize))
		fmt.Fprintln(w, renderStatusLine("Resumes at", statusInfo, string(run.ResumeStatus()), colorize))
	}
	fmt.Fprintln(w, renderStatusLine("Identity", statusInfo, run.Identity, colorize))
	fmt.Fprintln(w, renderStatusLine("Collection", statusInfo, fallback(run.CollectionMint, "pending"), colorize))
	fmt.Fprintln(w, renderStatusLine("Candy machine", statusInfo, fallback(run.MechanismAddress, "pending"), colorize))
	fmt.Fprintln(w, renderStatusLine("Config lines", statusInfo,
		fmt.Sprintf("%d/%d", run.ConfigLinesLoaded, run.ItemCount), colorize))
}

func colorStatus(run *checkpoint.Run, colorize bool) string {
	label := string(run.Status)
	if run.Status == checkpoint.StatusFailed && run.FailedStage != "" {
		label += " (" + string(run.FailedStage) + ")"
	}
	if !colorize {
		return label
	}
	return statusKindColor(runStatusKind(run.Status)) + label + ansiReset
}

func fallback(value, alt string) string {
	if strings.TrimSpace(value) == "" {
		return alt
	}
	return value
}
