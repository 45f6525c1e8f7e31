// Package config loads the flagsync command configuration from TOML, YAML
// or JSONC files, with environment overrides for secrets.
package config
