package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exgate.org/internal/audit"
	"exgate.org/internal/config"
	"exgate.org/internal/directory"
	"exgate.org/internal/exchange"
	"exgate.org/internal/httpapi"
	"exgate.org/internal/notify"
	"exgate.org/internal/obs"
	"exgate.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		requests      exchange.RequestStore
		notifications exchange.NotificationStore
		auditStore    audit.Store
		dir           directory.Directory
		probe         httpapi.ReadyProbe
	)

	if cfg.PostgresDSN != "" {
		store, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer func() { _ = store.Close() }()
		requests = store.Requests()
		notifications = store.Notifications()
		auditStore = store.AuditLog()
		dir = store.Institutions()
		probe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		// Local development without a database.
		requests = exchange.NewInMemoryRequests()
		notifications = exchange.NewInMemoryNotifications()
		auditStore = audit.NewInMemory()
		dir = directory.NewInMemory()
	}

	dispatcher := notify.NewDispatcher(notifications)
	service := exchange.NewService(requests, notifications, dispatcher,
		exchange.WithDirectory(dir))
	recorder := audit.NewRecorder(auditStore)

	api := httpapi.New(probe, version, service, recorder, dir)
	api.SetRateLimit(cfg.RateBurst, cfg.RatePerSec)
	api.SetMaxBodyBytes(cfg.MaxBodyBytes)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting exgate-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
