// Package render owns the automation session that drives the asset renderer
// page: a narrow Session interface, a slot-limited Manager that serializes
// digest rendering, and a headless-Chrome implementation.
package render
