package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/irc-ultra/ircultra/internal/api"
	"github.com/irc-ultra/ircultra/internal/config"
	"github.com/irc-ultra/ircultra/internal/dispatch"
	"github.com/irc-ultra/ircultra/internal/gateway"
	"github.com/irc-ultra/ircultra/internal/palette"
	"github.com/irc-ultra/ircultra/internal/store"
	"github.com/irc-ultra/ircultra/internal/sweeper"
	"github.com/irc-ultra/ircultra/internal/wire"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse IRC_LOG_LEVEL: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Str("env", cfg.ServerEnv).Str("server", cfg.ServerName).Msg("Starting IRC Ultra")

	if cfg.SessionSecretEphemeral {
		log.Warn().Msg("IRC_SESSION_SECRET is not set. Resume tokens are signed with a process-local key and will not survive a restart.")
	}

	st, err := store.Open(cfg.StatePath, cfg.FlushDelay(), log.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("Final state flush failed")
		}
	}()

	hub := gateway.NewHub(cfg, log.Logger)
	dispatcher := dispatch.New(cfg, st, hub, palette.New(), log.Logger)
	hub.SetHandler(dispatcher)
	adaptor := wire.New(cfg, st, hub, dispatcher, log.Logger)

	app := newApp(cfg, hub, adaptor)

	// The sweeper gets its own context so the shutdown watcher can stop it
	// after the listener has drained.
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		sw := sweeper.New(st, cfg.RetentionDays, log.Logger)
		if err := sw.Run(sweepCtx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)
		defer stopSweeper()

		select {
		case sig := <-quit:
			log.Info().Str("signal", sig.String()).Msg("Shutting down server")
		case <-ctx.Done():
			// Another worker failed; its error surfaces from g.Wait.
			return nil
		}
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
		hub.Shutdown()
		return nil
	})

	g.Go(func() error {
		addr := cfg.Addr()
		log.Info().Str("addr", addr).Msg("Server listening")
		if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Server stopped cleanly")
	return nil
}

// newApp builds the Fiber application: error rendering, request logging, and
// the three routes. Everything else rides the WebSocket transports.
func newApp(cfg *config.Config, hub *gateway.Hub, adaptor *wire.Adaptor) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: cfg.ServerName,
		// ErrorHandler renders errors that handlers did not map themselves
		// (e.g. Fiber's built-in 404/405) as plain text. errors.AsType is a
		// generic helper added in Go 1.26.
		ErrorHandler: func(c fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			message := "An internal error occurred"
			if e, ok := errors.AsType[*fiber.Error](err); ok {
				status = e.Code
				message = e.Message
			} else {
				log.Error().Err(err).
					Str("method", c.Method()).
					Str("path", c.Path()).
					Msg("Unhandled error")
			}
			return c.Status(status).SendString(message)
		},
	})

	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} ${locals:requestid} ${method} ${path} ${status} ${latency}\n",
		TimeFormat: time.RFC3339,
	}))

	health := api.NewHealthHandler()
	app.Get("/healthz", health.Health)

	gw := api.NewGatewayHandler(cfg, hub, adaptor)
	app.Get("/ws/chat", gw.Chat)
	app.Get("/webirc", gw.Wire)

	return app
}
