package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"mintline/internal/config"
)

// Options controls logger construction.
type Options struct {
	Level  string
	Format string // "console" (default) or "json"
	// Outputs lists destinations: "stdout", "stderr" or file paths. Empty means stdout.
	Outputs []string
	// Hub, when set, receives every record for the status API log feed.
	Hub *StreamHub
}

// New builds a logger from opts. Debug level also records call sites.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	withSource := level.Level() <= slog.LevelDebug

	var build func(io.Writer, *slog.LevelVar, bool) slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		build = newPrettyHandler
	case "json":
		build = newJSONHandler
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	w, err := openOutputs(opts.Outputs)
	if err != nil {
		return nil, err
	}
	return slog.New(newStreamHandler(build(w, level, withSource), opts.Hub)), nil
}

// NewFromConfig logs to stdout and, when a log directory is configured, to
// mintline.log inside it.
func NewFromConfig(cfg *config.Config, hub *StreamHub) (*slog.Logger, error) {
	opts := Options{Level: "info", Outputs: []string{"stdout"}, Hub: hub}
	if cfg == nil {
		return New(opts)
	}
	opts.Level = cfg.Logging.Level
	opts.Format = cfg.Logging.Format
	if dir := cfg.Paths.LogDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		opts.Outputs = append(opts.Outputs, filepath.Join(dir, "mintline.log"))
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return parsed
}

// openOutputs resolves destinations, skipping blanks and duplicates.
func openOutputs(outputs []string) (io.Writer, error) {
	var (
		opened  []string
		writers []io.Writer
	)
	for _, dest := range outputs {
		dest = strings.TrimSpace(dest)
		if dest == "" || slices.Contains(opened, dest) {
			continue
		}
		opened = append(opened, dest)
		switch dest {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			file, err := openAppend(dest)
			if err != nil {
				return nil, err
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}
