package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/KAsare1/slotbook-server/cmd/api"
	"github.com/KAsare1/slotbook-server/config"
	"github.com/KAsare1/slotbook-server/db"
	"github.com/KAsare1/slotbook-server/repository"
	"github.com/KAsare1/slotbook-server/service/slots"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

func main() {
	app := &cli.App{
		Name:  "slotbook",
		Usage: "Scheduling and booking server",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			clearCommand(),
		},
		// Running the binary with no command starts the server.
		Action: func(c *cli.Context) error {
			return serve(c.Context)
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API",
		Action: func(c *cli.Context) error {
			return serve(c.Context)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update database tables and indexes",
		Action: func(c *cli.Context) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			conn, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer closeDatabase(conn, log)
			return db.Migrate(conn, log)
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear-db",
		Usage: "Drop database tables",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "tables",
				Usage: "tables to drop (default all): " + strings.Join(db.TableNames(), ", "),
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "skip the confirmation prompt",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if !c.Bool("yes") && !confirm("Are you sure you want to clear the database? (yes/no): ") {
				log.Info("database clearing cancelled")
				return nil
			}
			conn, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer closeDatabase(conn, log)
			if err := db.Clear(conn, log, c.StringSlice("tables")); err != nil {
				return err
			}
			log.Info("database cleared")
			return nil
		},
	}
}

func serve(parent context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store repository.Store
		ping  func(context.Context) error
	)
	switch cfg.StorageDriver {
	case config.DriverMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		store = repository.NewMemoryStore()
	default:
		conn, err := openDatabase(cfg, log)
		if err != nil {
			return err
		}
		defer closeDatabase(conn, log)
		store = repository.NewGormStore(conn)
		ping = func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	cache, err := newSlotCache(cfg, log)
	if err != nil {
		return err
	}

	server := api.NewApiServer(cfg, store, cache, log).WithHealthCheck(ping)
	return server.Run(ctx)
}

func newSlotCache(cfg config.Config, log *slog.Logger) (slots.Cache, error) {
	if cfg.RedisURL == "" {
		return slots.NoopCache{}, nil
	}
	client, err := slots.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	log.Info("slot cache enabled", "ttl", cfg.SlotCacheTTL)
	return slots.NewRedisCache(client, cfg.SlotCacheTTL, log), nil
}

func bootstrap() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, setupLogger(cfg), nil
}

func openDatabase(cfg config.Config, log *slog.Logger) (*gorm.DB, error) {
	if cfg.StorageDriver != config.DriverPostgres {
		return nil, errors.New("this command requires STORAGE_DRIVER=postgres")
	}
	conn, err := db.NewPSQLStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.Info("connected to the database")
	return conn, nil
}

func closeDatabase(conn *gorm.DB, log *slog.Logger) {
	if err := db.Close(conn); err != nil {
		log.Warn("closing database failed", "error", err)
		return
	}
	log.Info("database connection closed")
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

func setupLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
