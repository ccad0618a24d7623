// Package preflight provides readiness checks for the signer, storage, asset
// files, and filesystem paths that a minting run depends on.
//
// These checks run in two contexts:
//   - "mintline run" calls RunAll before the pipeline starts. A failed check
//     aborts the run before any asset is uploaded.
//   - "mintline run --dry-run" and "mintline status" print the same results.
//
// Network checks use a short timeout and a single attempt.
package preflight
