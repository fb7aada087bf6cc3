// Package config loads, normalizes, and validates sternmux configuration.
//
// It supplies repository defaults, expands tilde paths, reads the optional
// TOML file, and flattens comma-separated list options. Flags always win
// over file values; downstream components receive the resulting Config by
// reference and never mutate it.
package config
