package logs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mintline/internal/logging"
)

var ErrFiltersRequireAPI = errors.New("log filters require API access")

// Options controls stream behavior.
type Options struct {
	Lines     int
	Follow    bool
	Component string
	RunID     string
	// Poll is the file polling interval in fallback follow mode.
	Poll time.Duration
}

func (o Options) filtered() bool {
	return strings.TrimSpace(o.Component) != "" || strings.TrimSpace(o.RunID) != ""
}

// Stream emits events from the API when it is reachable and falls back to
// tailing logPath. It reports whether anything was emitted.
func Stream(
	ctx context.Context,
	client *StreamClient,
	logPath string,
	opts Options,
	onEvent func(logging.LogEvent),
	onLine func(string),
) (bool, error) {
	printed, err := streamAPI(ctx, client, opts, onEvent)
	if err == nil || !IsAPIUnavailable(err) {
		return printed, err
	}
	if opts.filtered() {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, ErrAPIUnavailable)
	}
	return streamFile(ctx, logPath, opts, onLine)
}

func streamAPI(ctx context.Context, client *StreamClient, opts Options, onEvent func(logging.LogEvent)) (bool, error) {
	query := StreamQuery{
		Limit:     opts.Lines,
		Tail:      true,
		Component: opts.Component,
		RunID:     opts.RunID,
	}
	if query.Limit <= 0 {
		query.Limit = 200
	}

	printed := false
	for {
		resp, err := client.Fetch(ctx, query)
		if err != nil {
			if printed && ctx.Err() != nil {
				return printed, nil
			}
			return printed, err
		}
		for _, evt := range resp.Events {
			onEvent(evt)
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		query.Limit = 200
		query.Tail = false
		query.Follow = true
	}
}

func streamFile(ctx context.Context, path string, opts Options, onLine func(string)) (bool, error) {
	lines, offset, err := LastLines(path, opts.Lines)
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		onLine(line)
	}
	printed := len(lines) > 0
	if !opts.Follow {
		return printed, nil
	}
	err = Follow(ctx, path, offset, opts.Poll, func(line string) {
		printed = true
		onLine(line)
	})
	return printed, err
}
