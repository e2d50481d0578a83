// Package config provides configuration structures and utilities for sitegraph.
// It defines the crawl options, their defaults and validation, and the
// optional YAML file holding per-site settings.
package config
