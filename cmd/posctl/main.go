// Command posctl runs administrative tasks against the POS database and cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/noah-isme/backend-pos/internal/app"
	"github.com/noah-isme/backend-pos/internal/auth"
	"github.com/noah-isme/backend-pos/internal/cache"
	"github.com/noah-isme/backend-pos/internal/config"
	"github.com/noah-isme/backend-pos/internal/db"
	"github.com/noah-isme/backend-pos/internal/feeschedule"
	"github.com/noah-isme/backend-pos/internal/obs"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "posctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "posctl",
		Usage: "administer the point-of-sale backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"OBS_LOG_LEVEL"}},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			feesCommand(),
			tokenCommand(),
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	return cfg, nil
}

func logger(c *cli.Context) zerolog.Logger {
	return obs.NewLogger("console", c.String("log-level"), "posctl")
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back schema migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply every pending migration",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					m, err := db.NewMigrator(cfg.DatabaseURL)
					if err != nil {
						return err
					}
					defer m.Close()
					if err := db.Up(m); err != nil {
						return err
					}
					log := logger(c)
					log.Info().Msg("migrations applied")
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "roll back the given number of migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "migrations to roll back"},
				},
				Action: func(c *cli.Context) error {
					steps := c.Int("steps")
					if steps <= 0 {
						return cli.Exit("--steps must be positive", 2)
					}
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					m, err := db.NewMigrator(cfg.DatabaseURL)
					if err != nil {
						return err
					}
					defer m.Close()
					if err := db.Down(m, steps); err != nil {
						return err
					}
					log := logger(c)
					log.Info().Int("steps", steps).Msg("migrations rolled back")
					return nil
				},
			},
		},
	}
}

func feesCommand() *cli.Command {
	return &cli.Command{
		Name:  "fees",
		Usage: "inspect the card fee and interest schedule",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the schedule in force, as the API would load it",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
					defer cancel()
					pool, err := db.Connect(ctx, cfg.DatabaseURL, nil)
					if err != nil {
						return err
					}
					defer pool.Close()
					// No cache here, so the output reflects the tables.
					provider := feeschedule.NewProvider(feeschedule.NewStore(pool), nil, cfg.Fees, logger(c))
					return writeJSON(c.App.Writer, provider.Schedule(ctx))
				},
			},
			{
				Name:  "invalidate",
				Usage: "drop the cached schedule after editing the fee tables",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
					defer cancel()
					log := logger(c)
					rdb, err := app.NewRedis(ctx, cfg.RedisURL, false, log)
					if err != nil {
						return err
					}
					defer rdb.Close()
					provider := feeschedule.NewProvider(nil, cache.New(rdb, cfg.FeeCacheTTL), cfg.Fees, log)
					if err := provider.Invalidate(ctx); err != nil {
						return err
					}
					log.Info().Msg("fee schedule cache invalidated")
					return nil
				},
			},
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "operator bearer tokens for local testing",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "sign a token for an operator id",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "operator", Required: true},
					&cli.DurationFlag{Name: "ttl", Value: 8 * time.Hour},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTClockSkew)
					if err != nil {
						return err
					}
					token, err := verifier.Sign(c.String("operator"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, token)
					return err
				},
			},
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
