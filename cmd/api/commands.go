package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-intake/cmd/api/book"
	"github.com/book-intake/cmd/api/config"
	"github.com/book-intake/cmd/api/database"
	bookhttp "github.com/book-intake/cmd/api/http"
	"github.com/book-intake/cmd/api/inmemory"
	"github.com/book-intake/cmd/api/notifications"
	"github.com/book-intake/cmd/api/sqlite"
	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "books-api",
		Short:         "Book intake service: validates and stores new books over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(&cfg),
		newMigrateCmd(&cfg),
		newConfigCmd(&cfg),
	)
	return root
}

func newServeCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
}

func newMigrateCmd(cfg **config.Config) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the postgres schema migrations",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				pg := (*cfg).Store.Postgres
				err := database.MigrationUp(pg.URL, pg.MigrationsPath)
				if errors.Is(err, migrate.ErrNoChange) {
					log.Println("No migrations to apply.")
					return nil
				}
				return err
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				pg := (*cfg).Store.Postgres
				err := database.MigrationDown(pg.URL, pg.MigrationsPath)
				if errors.Is(err, migrate.ErrNoChange) {
					return nil
				}
				return err
			},
		},
	)

	migrateCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if (*cfg).Store.Postgres.URL == "" {
			return errors.New("store.postgres.url (or DATABASE_URL) must be set to run migrations")
		}
		return nil
	}
	return migrateCmd
}

func newConfigCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Write(cmd.OutOrStdout(), **cfg)
		},
	}
}

/* Builds the configured store, wires the service and runs the http server until SIGINT or SIGTERM. */
func serve(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	bookService := book.NewService(store, newNotifier(cfg.Notifications), cfg.Notifications.Timeout)
	bookHandler := bookhttp.NewBookHandler(bookService)

	//create and init http server:
	server := bookhttp.NewServer(bookhttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
	}, bookHandler)

	listener, err := bookhttp.Listen(server, cfg.HTTP.MaxConnections)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s (store: %s)", server.Addr, cfg.Store.Backend)
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("unexpected http server error: %w", err)
		}
		close(serverErr)
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sc:
	case err := <-serverErr:
		return err
	}

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	log.Println("Graceful shutdown complete.")
	return nil
}

/* Builds the ntfy publisher. It sends nothing unless notifications are enabled. */
func newNotifier(cfg config.NotificationsConfig) *notifications.Ntfy {
	return notifications.NewNtfy(cfg.Enabled, cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
}

/* Returns the repository selected by store.backend and a func releasing it. */
func openStore(ctx context.Context, cfg *config.Config) (book.Repository, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pg := cfg.Store.Postgres
		//apply migrations:
		err := database.MigrationUp(pg.URL, pg.MigrationsPath)
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, nil, fmt.Errorf("migrating: %w", err)
		}

		//connect to db:
		dbObject, err := database.ConnectDb(ctx, pg.Driver, pg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting with db: %w", err)
		}
		closeDB := func() {
			if err := dbObject.Close(); err != nil {
				log.Println("closing db:", err)
			}
		}
		return database.NewStore(dbObject, cfg.Store.WriteTimeout), closeDB, nil

	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		closeDB := func() {
			if err := store.Close(); err != nil {
				log.Println("closing sqlite:", err)
			}
		}
		return store, closeDB, nil

	default:
		store, err := inmemory.NewInMemoryStore()
		if err != nil {
			return nil, nil, fmt.Errorf("creating in-memory store: %w", err)
		}
		return store, func() {}, nil
	}
}
