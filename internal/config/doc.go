// Package config loads, normalizes, and validates clipforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a local .env file, and honours
// environment overrides such as CLIPFORGE_TRANSCRIPTION_API_KEY. The Config
// type centralizes every knob the daemon and CLI need so storage backends,
// transcoder limits, and provider credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
