// Package main implements the ZuidWest FM image proxy.
//
// The proxy converts and thumbnails images on demand: sources arrive by URL
// or upload, pass through an authorization gate and a response cache, and
// are transformed by a libvips-backed pipeline. The service is stateless
// apart from the response cache and runs behind optional API key
// authentication configured via environment variables or a JSON file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oszuidwest/zwfm-imageproxy/internal/api"
	"github.com/oszuidwest/zwfm-imageproxy/internal/config"
	"github.com/oszuidwest/zwfm-imageproxy/internal/service"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run executes the server lifecycle from initialization through graceful shutdown.
func run() error {
	configFile := flag.String("config", "", "Path to config file (default: config.json if present)")
	port := flag.String("port", "8080", "API server port (default: 8080)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return err
	}

	initLogger(cfg)

	svc := service.New(cfg)
	defer svc.Close()

	scheduler, err := service.NewScheduler(svc)
	if err != nil {
		slog.Error("Scheduler initialization failed", "error", err)
		return err
	}
	scheduler.Start()

	server := api.New(svc, Version)

	return serveUntilShutdown(server, *port, scheduler)
}

// printVersion prints the application version, commit hash, and build time.
func printVersion() {
	fmt.Printf("ZuidWest FM Image Proxy %s (%s)\n", Version, Commit)
	fmt.Printf("Build time: %s\n", BuildTime)
}

// initLogger initializes the global slog logger with the configured level and format.
func initLogger(cfg *config.Config) {
	level := cfg.Log.GetLevel()
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.GetFormat() == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("Logger initialized", "level", level.String(), "format", cfg.Log.GetFormat())
}

// serveUntilShutdown runs the API server until a shutdown signal or error occurs.
func serveUntilShutdown(server *api.Server, port string, scheduler *service.Scheduler) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server started", "port", port)
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
		slog.Info("Shutdown signal received, stopping server...")
	case err := <-serverErr:
		slog.Error("API server error", "error", err)
		return err
	}

	return gracefulShutdown(server, scheduler)
}

// gracefulShutdown performs orderly shutdown of the scheduler and server.
func gracefulShutdown(server *api.Server, scheduler *service.Scheduler) error {
	ctx := scheduler.Stop()
	select {
	case <-ctx.Done():
		if scheduler.HasJobs() {
			slog.Info("Scheduler stopped successfully")
		}
	case <-time.After(15 * time.Second):
		slog.Warn("Scheduler stop timeout, forcing shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		return err
	}

	slog.Info("Server stopped successfully")
	return nil
}
