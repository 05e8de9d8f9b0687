// Package config provides the chathub-server configuration.
//
//   - spec.go: ServerConfig struct definition and conversions to component configs
//   - default.go: Default configuration values
//   - verify.go: Validation of values and cross-field constraints
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - load.go: Defaults, file, environment and overrides in one call
//
// Configuration is loaded via internal/infra/confloader from a YAML file
// and CHATHUB_ environment variables.
package config
