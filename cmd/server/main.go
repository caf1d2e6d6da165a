// Package main is the entry point for the Guest Stay Portal server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guest-stay-portal/backend/internal/api"
	"github.com/guest-stay-portal/backend/internal/clock"
	"github.com/guest-stay-portal/backend/internal/config"
	"github.com/guest-stay-portal/backend/internal/stay"
	"github.com/guest-stay-portal/backend/internal/store"
	"github.com/guest-stay-portal/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	// Parse command-line flags
	dataDir := flag.String("data", "/data", "Data directory for SQLite database")
	staticDir := flag.String("static", "./static", "Directory for static frontend files")
	envFile := flag.String("env", ".env", "Environment file to load")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if os.Getenv("LOG_LEVEL") == "debug" {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Server.Addr); err != nil {
			log.WithError(err).Fatal("Health check failed")
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	log.WithField("version", version).Info("Starting Guest Stay Portal")

	// Initialize database
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.WithError(err).Fatalf("Failed to create data directory %q", *dataDir)
	}
	db, err := store.NewDB(*dataDir + "/guest-stay-portal.db")
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	if err := store.RunMigrations(db, log); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}
	log.Info("Database migrations complete")

	// Initialize WebSocket hub
	hub := websocket.NewHub(log)
	go hub.Run()
	broadcaster := websocket.NewEventBroadcaster(hub, log)

	// Reservation store: the fetch/subscribe source the stay core consumes
	reservationStore := store.NewReservationStore(db, log)

	// Time source: network authority with local fallback
	timeSource := clock.New(cfg.Clock, log)

	// Policy evaluator in the property's time zone
	evaluator := stay.NewEvaluator()
	if cfg.Portal.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Portal.Timezone)
		if err != nil {
			log.WithError(err).Warnf("Unknown timezone %q, using local", cfg.Portal.Timezone)
		} else {
			evaluator = stay.NewEvaluatorWithLocation(loc)
		}
	}

	// Session registry with stage transitions fanned out over the hub
	registry := stay.NewRegistry(reservationStore, timeSource, evaluator, log)
	registry.SetIdleTimeout(cfg.Portal.SessionIdleTimeout)
	registry.OnStageChange(func(session *stay.Session, previous, current stay.Stage, decision stay.AccessDecision) {
		broadcaster.BroadcastStageChanged(websocket.StageChangedPayload{
			SessionID:           session.ID(),
			ReservationID:       session.ReservationID(),
			PreviousStage:       string(previous),
			Stage:               string(current),
			CredentialsReleased: decision.CredentialsReleased,
			IsCheckoutToday:     decision.IsCheckoutToday,
		})
		if current == stay.StageBlocked {
			broadcaster.BroadcastNotification("warning", "Guest session blocked",
				"Reservation "+session.ReservationID()+" has a blocked guest session")
		}
	})

	// Minute-interval re-evaluation of live sessions
	scheduler := stay.NewScheduler(registry, log)
	scheduler.Start()

	router := api.NewRouter(api.Deps{
		DB:          db,
		Store:       reservationStore,
		Registry:    registry,
		Hub:         hub,
		Broadcaster: broadcaster,
		Log:         log,
		TrustedTime: cfg.Clock.UseTrustedTime,
		StaticDir:   *staticDir,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in background
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("Server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	scheduler.Stop()
	registry.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("Server shutdown error")
	}

	log.Info("Server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return http.ErrAbortHandler
	}
	return nil
}
