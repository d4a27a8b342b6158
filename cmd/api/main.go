package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"hireview.io/internal/audit"
	"hireview.io/internal/auth"
	"hireview.io/internal/config"
	"hireview.io/internal/httpapi"
	"hireview.io/internal/obs"
)

var version = "0.3.1"

func main() {
	configPath := flag.String("config", os.Getenv("HIREVIEW_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()

	store, err := auth.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	tokenOpts := []auth.TokenOption{
		auth.WithTokenTTL(cfg.Auth.TokenTTL.Std()),
		auth.WithLeeway(cfg.Auth.Leeway.Std()),
		auth.WithIssuer(cfg.Auth.Issuer),
	}
	switch cfg.Revocation.Mode {
	case "memory":
		tokenOpts = append(tokenOpts, auth.WithRevocationSet(auth.NewMemoryRevocationSet()))
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Revocation.RedisAddr})
		tokenOpts = append(tokenOpts, auth.WithRevocationSet(auth.NewRedisRevocationSet(client)))
	}

	tokens, err := auth.NewTokenService(cfg.Auth.Secret, tokenOpts...)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	recorder := audit.NewRecorder(store.DB())

	service, err := auth.NewService(store, tokens, recorder)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(service, recorder, store.DB(), version,
		httpapi.WithLoginRateLimit(cfg.RateLimit.Burst, cfg.RateLimit.PerSecond))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Router(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting hireview-auth %s on %s", version, srv.Addr)

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
