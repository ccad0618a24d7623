package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mintline/internal/logging"
	"mintline/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var opts logs.Options

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log output, from the status API when it is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := logs.NewStreamClient(cfg.API.Bind)
			if err != nil {
				return fmt.Errorf("api bind: %w", err)
			}
			out := cmd.OutOrStdout()
			onEvent := func(evt logging.LogEvent) { fmt.Fprintln(out, formatEvent(evt)) }
			onLine := func(line string) { fmt.Fprintln(out, line) }

			printed, err := logs.Stream(cmd.Context(), client, ctx.logPath(), opts, onEvent, onLine)
			if errors.Is(err, logs.ErrFiltersRequireAPI) && opts.RunID != "" && opts.Component == "" {
				runOpts := opts
				runOpts.RunID = ""
				printed, err = logs.Stream(cmd.Context(), nil, logging.RunLogPath(cfg.Paths.LogDir, opts.RunID), runOpts, onEvent, onLine)
			}
			if err != nil {
				return err
			}
			if !printed && !opts.Follow {
				fmt.Fprintln(out, "No log output yet")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Keep streaming new output")
	cmd.Flags().StringVar(&opts.Component, "component", "", "Only show events from this component (needs the status API)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "Only show events for this run")
	cmd.Flags().DurationVar(&opts.Poll, "poll", 500*time.Millisecond, "File polling interval when following without the API")
	return cmd
}

func formatEvent(evt logging.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format(time.DateTime))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(evt.Level))
	if evt.Component != "" {
		b.WriteString("[" + evt.Component + "] ")
	}
	if subject := logging.FormatSubject(evt.RunID, evt.Stage); subject != "" {
		b.WriteString(subject + " ")
	}
	b.WriteString(evt.Message)
	if evt.Signature != "" {
		b.WriteString(" sig=" + evt.Signature)
	}
	writeFields(&b, evt.Fields)
	return b.String()
}

func writeFields(w io.Writer, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, " %s=%s", key, fields[key])
	}
}
