// Package config defines the clusterjoin configuration model.
//
// A [Config] is assembled in layers: built-in defaults, an optional YAML
// file, CLUSTERJOIN_* environment variables and finally command-line flags
// (applied by the CLI handlers). [Config.Validate] runs once all layers are
// in place.
package config
