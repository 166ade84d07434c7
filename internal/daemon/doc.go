// Package daemon binds the ingest watcher and flush orchestrator into a
// single lifecycle with flock-based locking to prevent multiple instances
// from fighting over the queue and render slots.
package daemon
