package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	server "freerun/server"
	"freerun/server/internal/combat"
	"freerun/server/internal/logging"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "listen address")
		weaponFile = flag.String("weapons", "", "weapon profile overrides (JSON, optional)")
		logFile    = flag.String("log-file", "", "log file path (optional, stderr only when empty)")
		debug      = flag.Bool("debug", false, "enable debug logging")
		tick       = flag.Int("tick", 0, "simulation ticks per second (0 uses the default)")
	)
	flag.Parse()

	logger := logging.New(*logFile, *debug)
	defer logger.Sync()

	catalog := combat.DefaultCatalog()
	if *weaponFile != "" {
		loaded, err := combat.LoadCatalog(*weaponFile)
		if err != nil {
			logger.Fatal("loading weapon profiles", zap.String("path", *weaponFile), zap.Error(err))
		}
		catalog = loaded
	}

	world, spawns := server.DefaultArena()
	hub := server.NewHub(world, spawns, catalog, logger)
	if *tick > 0 {
		hub.SetTickRate(*tick)
	}

	stop := make(chan struct{})
	go hub.Run(stop)

	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		go func() {
			t := time.NewTicker(10 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-stop:
					return
				case <-t.C:
					snap := hub.Telemetry()
					logger.Info("telemetry",
						zap.Uint64("ticks", snap.Ticks),
						zap.Float64("avgTickMs", snap.AvgTickMillis),
						zap.Float64("maxTickMs", snap.MaxTickMillis),
						zap.Uint64("inputs", snap.InputsLatched),
						zap.Uint64("droppedMessages", snap.DroppedMessages),
						zap.Uint64("droppedSends", snap.DroppedSends),
						zap.Uint64("bytesSent", snap.BytesSent))
				}
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("/diagnostics", hub.DiagnosticsHandler())
	mux.Handle("/metrics", hub.DiagnosticsHandler())
	mux.Handle("/healthz", server.HealthHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	close(stop)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
