//go:build windows

package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows/svc"

	"github.com/dantesync/dantesync/config"
)

const serviceName = "DanteSync"

type winService struct {
	cfg     *config.Config
	skipNTP bool
}

func (s *winService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(s.cfg, s.skipNTP) }()

	changes <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}

	for {
		select {
		case err := <-errCh:
			if err != nil {
				log.WithError(err).Error("service stopped with error")
			}
			changes <- svc.Status{State: svc.Stopped}
			cancel()
			return false, 0

		case req := <-r:
			switch req.Cmd {
			case svc.Stop, svc.Shutdown:
				changes <- svc.Status{State: svc.StopPending}
				cancel()
				select {
				case <-errCh:
				case <-time.After(5 * time.Second):
				}
				changes <- svc.Status{State: svc.Stopped}
				return false, 0
			case svc.Interrogate:
				changes <- req.CurrentStatus
			}
		}
	}
}

// runAsService registers the daemon with the Windows service control
// manager and blocks until the SCM stops it.
func runAsService(cfg *config.Config, skipNTP bool) {
	isSvc, err := svc.IsWindowsService()
	if err != nil {
		log.Fatalf("determining windows service context: %v", err)
	}
	if !isSvc {
		log.Fatal("--service requires running under the Windows service control manager")
	}
	if err := svc.Run(serviceName, &winService{cfg: cfg, skipNTP: skipNTP}); err != nil {
		log.Fatalf("service run failed: %v", err)
	}
}
