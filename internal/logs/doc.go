// Package logs reads mintline logs for "mintline logs".
//
// When a status API is reachable (a run started with --api, or "mintline
// serve" sharing the log hub) structured events are fetched from its /logs
// route, with follow mode long-polling for new events. Otherwise the plain
// mintline.log file in the log directory is tailed. Filters need the API
// because the file carries rendered lines only.
package logs
