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

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	systemdDaemon "github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"

	"github.com/dantesync/dantesync/clock"
	"github.com/dantesync/dantesync/config"
	"github.com/dantesync/dantesync/engine"
	"github.com/dantesync/dantesync/matcher"
	"github.com/dantesync/dantesync/ntp"
	"github.com/dantesync/dantesync/servo"
	"github.com/dantesync/dantesync/status"
)

const version = "1.0.0"

func firstUsableInterface() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 || ifi.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		return ifi.Name, nil
	}
	return "", fmt.Errorf("no usable non-loopback interface found")
}

func buildServoConfig(cfg *config.Config) servo.Config {
	sc := servo.DefaultConfig()
	if cfg.SampleWindowSize > 0 {
		sc.WindowSize = cfg.SampleWindowSize
	}
	if cfg.MinDeltaNS > 0 {
		sc.MinDeltaNS = cfg.MinDeltaNS
	}
	if cfg.CalibrationSamples > 0 {
		sc.CalibrationSamples = cfg.CalibrationSamples
	}
	sc.WarmupSecs = cfg.WarmupDuration(sc.WarmupSecs)
	if cfg.PanicThresholdNSPerS > 0 {
		sc.PanicThresholdNSPerS = cfg.PanicThresholdNSPerS
	}
	return sc
}

func run(cfg *config.Config, skipNTP bool) error {
	adapter, err := clock.NewPlatformAdapter()
	if err != nil {
		return fmt.Errorf("clock adapter: %w", err)
	}

	src, err := newReceiverSource(cfg.Interface)
	if err != nil {
		return fmt.Errorf("opening receiver on %q: %w", cfg.Interface, err)
	}

	m := matcher.New(matcher.DefaultWindow)
	sv := servo.New(adapter, buildServoConfig(cfg))

	pub := status.NewPublisher()

	var tracker *ntp.Tracker
	if !skipNTP {
		ntpClient := ntp.NewClient(cfg.NTPServer)
		tracker = ntp.NewTracker(ntp.TrackerConfig{
			StepThreshold: cfg.StepThreshold(500 * time.Microsecond),
			WarmupPeriod:  cfg.WarmupDuration(10 * time.Second),
		}, ntpClient, adapter, statusObserver{pub}, log.WithField("component", "ntp"))
	}

	srv, err := status.Listen(status.DefaultSocketPath, pub)
	if err != nil {
		return fmt.Errorf("starting status server: %w", err)
	}

	e := engine.New(src, m, sv, tracker, srv, pub, skipNTP)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if ok, err := systemdDaemon.SdNotify(false, systemdDaemon.SdNotifyReady); err != nil {
		log.WithError(err).Debug("systemd notify failed (likely not running under systemd)")
	} else if ok {
		log.Debug("notified systemd readiness")
	}

	return e.Run(ctx)
}

func main() {
	var (
		ifaceFlag     string
		ntpServerFlag string
		skipNTPFlag   bool
		serviceFlag   bool
		versionFlag   bool
		configFlag    string
	)

	flag.StringVar(&ifaceFlag, "interface", "", "network interface to bind to")
	flag.StringVar(&ntpServerFlag, "ntp-server", "", "override the configured NTP server")
	flag.BoolVar(&skipNTPFlag, "skip-ntp", false, "disable the NTP UTC tracker entirely")
	flag.BoolVar(&serviceFlag, "service", false, "run under the Windows service control manager (Windows only)")
	flag.BoolVar(&versionFlag, "version", false, "print the version and exit")
	flag.StringVar(&configFlag, "config", config.DefaultPath, "path to the JSON config file")
	flag.Parse()

	if versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	log.SetLevel(log.InfoLevel)

	cfg, err := config.Load(configFlag)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg = config.Merge(cfg, config.CLIOverrides{Interface: ifaceFlag, NTPServer: ntpServerFlag, SkipNTP: skipNTPFlag})

	if cfg.Interface == "" {
		iface, err := firstUsableInterface()
		if err != nil {
			log.Fatalf("no interface specified and none could be auto-detected: %v", err)
		}
		cfg.Interface = iface
	}

	if serviceFlag {
		runAsService(cfg, skipNTPFlag)
		return
	}

	if err := run(cfg, skipNTPFlag); err != nil {
		log.Fatal(err)
	}
}
