package ledger

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"mintline/internal/services"
)

var transientRPCMarkers = []string{
	"blockhash not found",
	"too many requests",
	"429",
	"502",
	"503",
	"504",
	"node is behind",
	"service unavailable",
	"rate limit",
}

var permanentRPCMarkers = []string{
	"insufficient funds",
	"insufficient lamports",
	"simulation failed",
	"custom program error",
	"already in use",
	"invalid",
	"signature verification",
}

// classifyRPC wraps an RPC failure that happened before the transaction could
// have been accepted. Such failures are safe to resubmit when transient.
func classifyRPC(label, op string, err error) error {
	if err == nil {
		return nil
	}
	return &services.TransactionError{
		Reason:    label + ": " + op,
		Transient: rpcTransient(err),
		Cause:     err,
	}
}

// classifySend wraps a sendTransaction failure. A timeout after the request
// was written leaves the outcome unknown, so it is reported as ambiguous.
func classifySend(label string, err error) error {
	if err == nil {
		return nil
	}
	txErr := &services.TransactionError{
		Reason:    label + ": send transaction",
		Transient: rpcTransient(err),
		Cause:     err,
	}
	if sendOutcomeUnknown(err) {
		txErr.Transient = true
		txErr.Ambiguous = true
	}
	return txErr
}

func rpcTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range permanentRPCMarkers {
		if strings.Contains(msg, marker) && !strings.Contains(msg, "blockhash not found") {
			return false
		}
	}
	for _, marker := range transientRPCMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func sendOutcomeUnknown(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
