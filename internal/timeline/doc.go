// Package timeline computes deterministic per-frame render states for a
// comment replay: eased camera interpolation, overlay fades, and annotation
// reveal progress across transition and pause phases.
package timeline
