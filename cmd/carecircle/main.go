package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Kerhoff/carecircle/internal/auth"
	"github.com/Kerhoff/carecircle/internal/config"
	"github.com/Kerhoff/carecircle/pkg/logger"
)

func main() {
	root := &cli.Command{
		Name:  "carecircle",
		Usage: "Family care notification and escalation engine",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			tokenCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServe(ctx, "")
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the scheduler, HTTP API, Telegram bot and device bridge",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "seed", Usage: "JSON fixture to load into the in-memory store (ignored with DATABASE_URL)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServe(ctx, c.String("seed"))
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "down", Usage: "roll back the latest migration instead"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required to migrate")
			}
			l := logger.New(cfg.LogLevel)

			db, err := config.NewDatabase(ctx, cfg.DatabaseURL, l)
			if err != nil {
				return err
			}
			defer db.Close()

			if c.Bool("down") {
				return db.Rollback(cfg.MigrationsPath)
			}
			return db.Migrate(cfg.MigrationsPath)
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Sign a bearer token for a user (local development)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "user", Required: true, Usage: "user id"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			tok, err := auth.NewJWT(cfg.JWTSecret, c.Duration("ttl")).Sign(int64(c.Int("user")))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.Root().Writer, tok)
			return nil
		},
	}
}
