// Package stageexec runs one pipeline stage against a checkpointed run:
// it persists the status transition, calls the handler, and records failures.
package stageexec
