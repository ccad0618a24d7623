// Package notifications pushes run milestones to ntfy.
//
// The topic comes from the [notifications] section of config.toml. Without a
// topic the service is a no-op, so pipeline code can notify unconditionally.
package notifications
