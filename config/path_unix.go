//go:build !windows

package config

// DefaultPath is the config file location on Unix hosts.
const DefaultPath = "/etc/dantesync/config.json"
