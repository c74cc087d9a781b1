// Package config loads the messaging pipeline's configuration from an
// optional YAML file with environment-variable overrides. Defaults live
// in code so a zero config file still yields a working setup; only the
// process secret is mandatory.
package config
