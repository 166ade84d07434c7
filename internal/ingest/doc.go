// Package ingest watches the event spool directory and routes decoded
// envelopes through the batching policy engine.
package ingest
