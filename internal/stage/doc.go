// Package stage defines the handler contract and health reporting shared by
// the pipeline stages.
package stage
