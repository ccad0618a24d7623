package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders one line per record:
//
//	2006-01-02 15:04:05 INFO  [minter] Run 1f2e3d4c (minting) mint confirmed sig=5x... index=2
//
// component, run_id and stage move into the prefix; signature leads the pairs.
type prettyHandler struct {
	mu         *sync.Mutex
	w          io.Writer
	level      *slog.LevelVar
	withSource bool
	bound      []pair
	groups     []string
}

type pair struct {
	key   string
	value slog.Value
}

func newPrettyHandler(w io.Writer, level *slog.LevelVar, withSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, w: w, level: level, withSource: withSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	pairs := slices.Clone(h.bound)
	record.Attrs(func(attr slog.Attr) bool {
		pairs = appendPairs(pairs, h.groups, attr)
		return true
	})
	pairs = lastWins(pairs)

	var component, runID, stage, signature string
	rest := pairs[:0]
	for _, p := range pairs {
		switch p.key {
		case FieldComponent:
			component = attrString(p.value)
		case FieldRunID:
			runID = attrString(p.value)
		case FieldStage:
			stage = attrString(p.value)
		case FieldSignature:
			signature = attrString(p.value)
		default:
			rest = append(rest, p)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(formatTimestamp(ts))
	b.WriteString(" " + levelLabel(record.Level) + " ")
	if component != "" {
		b.WriteString("[" + component + "] ")
	}
	if subject := FormatSubject(runID, stage); subject != "" {
		b.WriteString(subject + " ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)
	if h.withSource {
		if src := record.Source(); src != nil {
			b.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
		}
	}
	if signature != "" {
		b.WriteString(" sig=" + signature)
	}
	for _, p := range rest {
		b.WriteString(" " + p.key + "=" + formatValue(p.value))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.bound = slices.Clone(h.bound)
	for _, attr := range attrs {
		next.bound = appendPairs(next.bound, h.groups, attr)
	}
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(slices.Clone(h.groups), name)
	return &next
}

// appendPairs flattens attr into dotted keys under groups.
func appendPairs(dst []pair, groups []string, attr slog.Attr) []pair {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		inner := groups
		if attr.Key != "" {
			inner = append(slices.Clone(groups), attr.Key)
		}
		for _, member := range value.Group() {
			dst = appendPairs(dst, inner, member)
		}
		return dst
	}
	path := groups
	if attr.Key != "" {
		path = append(slices.Clone(groups), attr.Key)
	}
	if len(path) == 0 {
		return dst
	}
	return append(dst, pair{key: strings.Join(path, "."), value: value})
}

// lastWins keeps the final value per key at the position the key first appeared.
func lastWins(pairs []pair) []pair {
	seen := make(map[string]int, len(pairs))
	out := pairs[:0:0]
	for _, p := range pairs {
		if i, ok := seen[p.key]; ok {
			out[i] = p
			continue
		}
		seen[p.key] = len(out)
		out = append(out, p)
	}
	return out
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}
