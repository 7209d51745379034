// Package config loads frosttap settings from defaults, an optional config
// file, FROSTTAP_* environment variables and command line flags.
package config
