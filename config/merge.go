/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	log "github.com/sirupsen/logrus"
)

// CLIOverrides holds flag values that, when non-zero, take precedence
// over whatever the config file specified.
type CLIOverrides struct {
	Interface string
	NTPServer string
	SkipNTP   bool
}

// Merge applies CLI flag overrides onto a file-loaded Config, warning
// whenever a flag shadows a value the config file set explicitly.
func Merge(cfg *Config, o CLIOverrides) *Config {
	warn := func(name string) {
		log.Warningf("overriding %s from CLI flag", name)
	}
	if o.Interface != "" && o.Interface != cfg.Interface {
		if cfg.Interface != "" {
			warn("interface")
		}
		cfg.Interface = o.Interface
	}
	if o.NTPServer != "" && o.NTPServer != cfg.NTPServer {
		if cfg.NTPServer != "" {
			warn("ntp_server")
		}
		cfg.NTPServer = o.NTPServer
	}
	if cfg.NTPServer == "" {
		cfg.NTPServer = DefaultNTPServer
	}
	return cfg
}
