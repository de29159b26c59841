// Command wirewardend is the control-plane HTTP service: CRUD over
// networks/servers/clients/routes, wg-quick generation for clients, and
// the bearer-authenticated desired-state endpoint the daemon polls.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/wirewarden/wirewarden/internal/httpapi"
	"github.com/wirewarden/wirewarden/internal/keyenvelope"
	"github.com/wirewarden/wirewarden/internal/logging"
	"github.com/wirewarden/wirewarden/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wirewardend: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := logging.Configure(envOrDefault("LOG_LEVEL", logging.LevelInfo), "json"); err != nil {
		return err
	}

	keySecret, ok := os.LookupEnv("WG_KEY_SECRET")
	if !ok {
		return fmt.Errorf("WG_KEY_SECRET is required")
	}
	key, err := keyenvelope.ParseHexKey(keySecret)
	if err != nil {
		return fmt.Errorf("parse WG_KEY_SECRET: %w", err)
	}
	envelope, err := keyenvelope.New(key)
	if err != nil {
		return fmt.Errorf("init key envelope: %w", err)
	}

	dsn := envOrDefault("DATABASE_URL", "wirewarden.db")
	st, err := store.Open(dsn, envelope)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	publicURL := os.Getenv("PUBLIC_URL")
	handler := httpapi.NewHandler(st, publicURL)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(logger.New(logger.Config{Format: "${time} ${status} ${latency} ${method} ${path}\n"}))
	httpapi.RegisterRoutes(app, handler)

	bindAddr := envOrDefault("BIND_ADDR", ":8080")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(bindAddr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sig:
		return app.Shutdown()
	}
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
