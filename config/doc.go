// Package config loads the runtime configuration from a YAML file,
// a .env file, and WEAVIT_* environment variables, in increasing
// order of precedence.
package config
