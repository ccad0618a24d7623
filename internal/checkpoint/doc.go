// Package checkpoint persists pipeline runs so an interrupted batch can resume
// without re-uploading items or creating duplicate on-chain accounts.
//
// A run row records the current status, the failing stage, and every address
// the pipeline has produced or is about to produce. Prepared items and mint
// records are stored per run as they succeed. SQLite is the default backend;
// a Postgres DSN can be configured when several operators share one history.
//
// Schema changes bump schemaVersion in schema.go; the database is then
// cleared before the new schema is used.
package checkpoint
