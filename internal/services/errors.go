package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrUpload        = errors.New("upload failure")
	ErrTransaction   = errors.New("transaction failure")
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// UploadError reports a failed write to the content storage network.
type UploadError struct {
	Name      string
	Cause     error
	Transient bool
}

func (e *UploadError) Error() string {
	msg := "upload failure"
	if name := strings.TrimSpace(e.Name); name != "" {
		msg += ": " + name
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UploadError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrUpload}
	}
	return []error{ErrUpload, e.Cause}
}

// Temporary reports whether retrying the upload may succeed.
func (e *UploadError) Temporary() bool { return e.Transient }

// TransactionError reports a ledger transaction that was rejected, failed, or
// could not be confirmed. Ambiguous marks a transaction that was accepted by
// the node but whose confirmation was never observed; it may still land.
type TransactionError struct {
	Stage     string
	Reason    string
	Signature string
	Transient bool
	Ambiguous bool
	Cause     error
}

func (e *TransactionError) Error() string {
	detail := buildDetail(e.Stage, e.Reason, "")
	if e.Signature != "" {
		detail += " (signature " + e.Signature + ")"
	}
	if e.Cause != nil {
		return "transaction failure: " + detail + ": " + e.Cause.Error()
	}
	return "transaction failure: " + detail
}

func (e *TransactionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTransaction}
	}
	return []error{ErrTransaction, e.Cause}
}

// Temporary reports whether resubmitting the transaction is safe and may succeed.
func (e *TransactionError) Temporary() bool { return e.Transient && !e.Ambiguous }

// ConfigurationError reports a configuration value that violates a constraint.
// It is always detected before any network call is made.
type ConfigurationError struct {
	Field      string
	Constraint string
}

// NewConfigurationError builds a ConfigurationError for field.
func NewConfigurationError(field, constraint string) error {
	return &ConfigurationError{Field: field, Constraint: constraint}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Constraint)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// StampStage stamps a stage on a TransactionError that was produced without one.
// Wrappers above the TransactionError have already fixed their message, so the
// returned error prefixes the stage when err is not the TransactionError itself.
func StampStage(err error, stage string) error {
	var txErr *TransactionError
	if !errors.As(err, &txErr) || txErr.Stage != "" || strings.TrimSpace(stage) == "" {
		return err
	}
	txErr.Stage = stage
	if error(txErr) == err {
		return err
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// IsTransient reports whether err is worth retrying. Typed errors decide for
// themselves; otherwise network timeouts and errors tagged ErrTransient or
// ErrTimeout count as transient. Cancellation of the caller's context never does.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) {
		if _, isNet := temporary.(net.Error); !isNet {
			return temporary.Temporary()
		}
	}
	if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrValidation) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
