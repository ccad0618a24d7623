// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging.
//   - The error taxonomy used across the pipeline: sentinel markers, the Wrap
//     helper, and the typed UploadError, TransactionError, and
//     ConfigurationError values.
//   - Transient classification so retry decisions stay in one place.
//
// Use these helpers when wiring new stage logic so failure reporting and
// retries stay uniform across the pipeline.
package services
