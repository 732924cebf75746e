// Package config implements a file/command line based configuration.
//
// Configuration values are defined using a struct, which can be tagged
// to include default values and help strings. Then, values can be read
// from a config file (key = value, TOML or YAML) or specified in the
// command line.
package config
