// Package statusapi serves a read-only HTTP view of checkpointed runs and the
// live log feed.
//
// Routes:
//
//	GET /healthz           liveness plus store reachability
//	GET /runs              recent runs, newest first (?status=, ?limit=)
//	GET /runs/{id}         one run with prepared items and mint records
//	GET /logs              buffered log events (?since=, ?limit=, ?follow=1, ?tail=1, ?component=, ?run=)
//
// The server never mutates the checkpoint store.
package statusapi
