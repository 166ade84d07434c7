// Package queue persists pending notification events in SQLite until a
// digest flush drains them. Items are grouped per tenant and channel kind,
// ordered by enqueue time, and deleted once a send has been attempted.
package queue
