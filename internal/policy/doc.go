// Package policy decides, per channel binding, whether an incoming review
// event is delivered immediately, queued for a later digest, or dropped.
package policy
