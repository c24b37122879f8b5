// Package config provides the run configuration for sitecrawler.
//
// A Config is built from defaults (NewConfig), overlaid with command line flags,
// and then with per-site settings from an optional YAML file (.sitecrawler in
// the working directory or the home directory). Validate reports invalid or
// contradictory options as a *model.ConfigurationError before any crawling starts.
package config
