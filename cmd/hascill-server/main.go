// Command hascill-server runs the HASCILL Crypto Race match server: it
// accepts team connections over TCP, serves an optional spectator
// dashboard over HTTP, optionally audits match events to Postgres, and
// exposes the admin console described in spec §4.10 on stdin.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sebastiandperez/hascill-crypto-race/internal/admin"
	"github.com/sebastiandperez/hascill-crypto-race/internal/audit"
	"github.com/sebastiandperez/hascill-crypto-race/internal/config"
	"github.com/sebastiandperez/hascill-crypto-race/internal/dashboard"
	"github.com/sebastiandperez/hascill-crypto-race/internal/match"
	"github.com/sebastiandperez/hascill-crypto-race/internal/metrics"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var auditStore *audit.Store
	if cfg.DatabaseURL != "" {
		auditStore, err = audit.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Printf("audit: disabled, could not connect: %v", err)
			auditStore = nil
		} else {
			defer auditStore.Close()
			if err := auditStore.InitSchema(context.Background()); err != nil {
				log.Printf("audit: schema init failed: %v", err)
			}
		}
	}

	spectators := dashboard.NewHub()
	go spectators.Run()

	met := metrics.New(prometheus.DefaultRegisterer)

	ctl := match.New(match.Config{
		Password:   cfg.Password,
		Message:    cfg.Message,
		Rotate:     cfg.Rotate,
		Disclosure: cfg.Disclosure,
		Audit:      auditStore,
		Spectators: spectators,
		Metrics:    met,
	})
	spectators.SetInfo(ctl)

	if cfg.DashboardAddr != "" {
		router := dashboard.NewRouter(ctl, spectators)
		go func() {
			if err := router.Run(cfg.DashboardAddr); err != nil {
				log.Printf("dashboard: http server exited: %v", err)
			}
		}()
		log.Printf("dashboard listening on %s", cfg.DashboardAddr)
	}

	heartbeatStop := make(chan struct{})
	go ctl.StartHeartbeat(heartbeatStop)
	defer close(heartbeatStop)

	console := admin.New(ctl, met, os.Stdout)
	go console.Run(os.Stdin)

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("listen on %s: %v", addr, err)
	}
	log.Printf("hascill-server listening on %s (rotate=%s)", addr, cfg.Rotate)

	go func() {
		<-console.Done()
		listener.Close()
		os.Exit(0)
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-console.Done():
				return
			default:
			}
			log.Printf("accept: %v", err)
			continue
		}
		go match.RunSession(ctl, conn)
	}
}

