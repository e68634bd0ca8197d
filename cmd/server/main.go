package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tinysense/sensord/pkg/alert"
	"github.com/tinysense/sensord/pkg/clock"
	"github.com/tinysense/sensord/pkg/config"
	"github.com/tinysense/sensord/pkg/engine"
	"github.com/tinysense/sensord/pkg/persist"
	"github.com/tinysense/sensord/pkg/sensor"
	"github.com/tinysense/sensord/pkg/server"
	"github.com/tinysense/sensord/pkg/storage/badger"
)

func main() {
	log.Println("Starting sensord...")

	cfg := config.Load()
	log.Printf("Configuration: detailed capacity %d (%v / %v), aggregated capacity %d (%v / %v)",
		cfg.DetailedCapacity(), cfg.RetentionWindow, cfg.SampleInterval,
		cfg.AggregatedCapacity(), cfg.AggregateHorizon, cfg.BucketWidth)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	log.Printf("Data directory: %s", cfg.DataDir)

	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Println("BadgerDB snapshot store initialized")

	persister := persist.New(store, config.SnapshotVersion, config.MaxSavedRecords, config.RestoreAgeWindow)

	policy := alert.ParsePolicy(cfg.AlertPolicy)
	alerts := alert.NewEvaluator(policy, config.DefaultTempThreshold, config.DefaultHumidityThreshold)
	log.Printf("Alert policy: %s", policy)

	eng := engine.New(cfg, engine.Options{
		Clock:     clock.NewFallback(clock.System{}),
		Sensor:    sensor.NewSimulated(time.Now().UnixNano(), 0.02),
		Reporter:  engine.NewHeapReporter(cfg.MaxMemoryMB),
		Persister: persister,
		Alerts:    alerts,
	})

	// Rehydrate the aggregated series and alert thresholds before sampling
	// begins. Failures leave empty/default state; boot always proceeds.
	eng.Restore(context.Background())

	hub := server.NewReadingsHub()
	eng.SetReadingSink(hub.BroadcastReading)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	log.Println("WebSocket hub started for live reading updates")

	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()
	log.Println("Engine scheduler started")

	router := server.NewRouter(eng, hub, "./web/")
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received...")

	// Stop the scheduler and hub first; the scheduler takes a final snapshot
	// on its way out.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown warning: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("sensord exited cleanly")
}
