// Command formdesk-server runs the PDF template engine API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/formdesk/formdesk/internal/config"
	"github.com/formdesk/formdesk/internal/domain/templates"
	"github.com/formdesk/formdesk/internal/platform/db"
	"github.com/formdesk/formdesk/internal/platform/filestore"
	"github.com/formdesk/formdesk/internal/platform/metrics"
	"github.com/formdesk/formdesk/internal/platform/middleware"
	"github.com/formdesk/formdesk/internal/platform/pdfform"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "formdesk-server",
		Short:   "PDF template engine API",
		Version: version,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	var migrationsDir string
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "migrations", "migrations directory")

	migrateUpCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(migrationsDir, func(ctx context.Context, m *db.Migrator) error {
				n, err := m.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("applied %d migration(s)\n", n)
				return nil
			})
		},
	}

	migrateStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(migrationsDir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, st := range statuses {
					state := "pending"
					if st.Applied {
						state = "applied " + st.AppliedAt.Format(time.RFC3339)
					}
					fmt.Printf("%04d %-40s %s\n", st.Version, st.Name, state)
				}
				return nil
			})
		},
	}

	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	root.AddCommand(serveCmd, migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runMigrate(dir string, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.UsesPostgres() {
		return fmt.Errorf("migrate requires a postgres DATABASE_URL; the sqlite backend creates its schema at startup")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, dir))
}

func buildFileStore(ctx context.Context, cfg *config.Config) (filestore.FileStore, error) {
	switch cfg.StorageBackend {
	case "disk":
		return filestore.NewDiskStore(cfg.TemplateDir)
	case "memory":
		return filestore.NewMemoryStore(), nil
	case "s3":
		return filestore.NewMinioStore(ctx, filestore.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func buildRepository(ctx context.Context, cfg *config.Config) (templates.Repository, func(), error) {
	if cfg.UsesPostgres() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		return templates.NewPgRepository(pool), pool.Close, nil
	}

	sqliteDB, err := db.OpenSQLite(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, nil, err
	}
	return templates.NewSQLiteRepository(sqliteDB), func() { sqliteDB.Close() }, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	repo, closeRepo, err := buildRepository(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeRepo()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	files, err := buildFileStore(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("initialize file storage: %w", err)
	}

	m := metrics.New()
	renderer := &pdfform.Renderer{
		TempDir: cfg.TempDir,
		Logger:  logger,
	}
	svc := templates.NewService(repo, files, renderer, m, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/metrics", m.Handler())

	templates.NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
