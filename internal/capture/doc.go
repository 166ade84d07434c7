// Package capture drives a render session through a computed timeline and
// writes the numbered frame sequence the encoder consumes. Static frames are
// duplicated on disk instead of re-rendered.
package capture
