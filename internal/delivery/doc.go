// Package delivery routes composed notifications to their channel targets.
// It resolves which of a tenant's channel bindings an event reaches, renders
// events and digests into messages, and ships them over Discord-compatible
// webhooks or Amazon SES email. Transport failures are logged and swallowed.
package delivery
