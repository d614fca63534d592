// Package config loads the launcher configuration.
//
// Loading order:
//  1. Built-in defaults (a usable desktop setup with every optional
//     integration off except the local launch journal)
//  2. The YAML file, if present
//  3. SIM8085_* environment variables
//
// The file is optional on a desktop: LoadOptional returns defaults when it
// does not exist. DefaultPath picks $SIM8085_CONFIG, else
// <user config dir>/sim8085/config.yaml.
//
// Usage:
//
//	cfg, err := config.LoadOptional(config.DefaultPath())
//	if err != nil {
//	    // broken file: log and fall back to config.Default()
//	}
package config
