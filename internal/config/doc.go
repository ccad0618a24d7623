// Package config loads, normalizes, and validates mintline configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MINTLINE_RPC_URL, MINTLINE_KEYPAIR, and IRYS_API_KEY. The Config type
// centralizes every knob the CLI and pipeline need: asset directories, the
// Solana connection and signer, the storage backend, collection and candy
// machine settings, retry policy, and the checkpoint store.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
