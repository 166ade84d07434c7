// Package config loads, validates, and normalizes Vignette's TOML
// configuration. All consumers receive a fully expanded Config with
// directories resolved to absolute paths.
package config
