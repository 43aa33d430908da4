//go:build !windows

package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/dantesync/dantesync/config"
)

// runAsService is only meaningful on Windows; --service on other
// platforms is a startup-configuration error.
func runAsService(cfg *config.Config, skipNTP bool) {
	log.Fatal("--service is only supported on Windows")
}
