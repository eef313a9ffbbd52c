// Package config loads and merges aidev configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (AIDEV_API_URL, AIDEV_MODEL, AIDEV_API_KEY, etc.)
//  3. Config file ($XDG_CONFIG_HOME/aidev/config.json)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write the config file,
// and [SetField] to update a single key.
package config
