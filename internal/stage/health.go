package stage

import "strings"

// Health reports whether a pipeline stage has the collaborators it needs.
type Health struct {
	Stage  string `json:"stage"`
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

func Healthy(stage string) Health {
	return Health{Stage: stage, Ready: true}
}

// Unhealthy marks stage as blocked. reason should name the missing piece.
func Unhealthy(stage, reason string) Health {
	return Health{Stage: stage, Reason: strings.TrimSpace(reason)}
}

// Blocked returns the checks that are not ready, preserving order.
func Blocked(checks []Health) []Health {
	var out []Health
	for _, check := range checks {
		if !check.Ready {
			out = append(out, check)
		}
	}
	return out
}
