// Package digest orchestrates batched notification flushes. A flush drains a
// tenant's queued events into one aggregated message, optionally headed by a
// generated replay artifact or fallback stills, and guarantees per-tenant
// mutual exclusion through an in-process lock set.
package digest
