package logging

import (
	"context"
	"log/slog"
	"strings"
)

// hubHandler publishes each record to a StreamHub before passing it on.
type hubHandler struct {
	next   slog.Handler
	hub    *StreamHub
	bound  []slog.Attr
	prefix string
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &hubHandler{next: next, hub: hub}
}

func (h *hubHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *hubHandler) Handle(ctx context.Context, record slog.Record) error {
	h.hub.Publish(h.event(record))
	return h.next.Handle(ctx, record.Clone())
}

func (h *hubHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make([]slog.Attr, 0, len(h.bound)+len(attrs))
	bound = append(bound, h.bound...)
	for _, attr := range attrs {
		bound = append(bound, h.qualify(attr))
	}
	return &hubHandler{next: h.next.WithAttrs(attrs), hub: h.hub, bound: bound, prefix: h.prefix}
}

func (h *hubHandler) WithGroup(name string) slog.Handler {
	prefix := name
	if h.prefix != "" {
		prefix = h.prefix + "." + name
	}
	return &hubHandler{next: h.next.WithGroup(name), hub: h.hub, bound: h.bound, prefix: prefix}
}

// qualify prefixes the key with the open group so grouped keys never shadow
// the promoted fields.
func (h *hubHandler) qualify(attr slog.Attr) slog.Attr {
	if h.prefix != "" {
		attr.Key = h.prefix + "." + attr.Key
	}
	return attr
}

func (h *hubHandler) event(record slog.Record) LogEvent {
	evt := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
	}
	for _, attr := range h.bound {
		evt.set(attr)
	}
	// Call-site attrs win over bound ones.
	record.Attrs(func(attr slog.Attr) bool {
		evt.set(h.qualify(attr))
		return true
	})
	return evt
}

func (evt *LogEvent) set(attr slog.Attr) {
	key := strings.TrimSpace(attr.Key)
	if key == "" {
		return
	}
	value := attrString(attr.Value)
	switch key {
	case FieldRunID:
		evt.RunID = value
	case FieldStage:
		evt.Stage = value
	case FieldCorrelationID:
		evt.CorrelationID = value
	case FieldComponent:
		evt.Component = value
	case FieldSignature:
		evt.Signature = value
	default:
		if evt.Fields == nil {
			evt.Fields = make(map[string]string)
		}
		evt.Fields[key] = value
	}
}
