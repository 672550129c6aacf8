package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"photomemo/internal/auth"
	"photomemo/internal/blob"
	"photomemo/internal/config"
	"photomemo/internal/db"
	httpx "photomemo/internal/http"
	"photomemo/internal/journal"
	"photomemo/internal/logging"
	"photomemo/internal/sequence"
	"photomemo/internal/store"
)

var skipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not run migrations on start")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log)

	gdb, err := db.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	if !skipMigrate {
		if err := db.AutoMigrateAndIndexes(gdb); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	seq, closeSeq, err := newSequence(ctx, cfg.Sequence, gdb)
	if err != nil {
		return err
	}
	defer closeSeq()
	log.WithField("backend", cfg.Sequence.Backend).Info("post number sequence ready")

	presigner, err := blob.NewS3(ctx, cfg.S3)
	if err != nil {
		return err
	}

	users := &store.Users{DB: gdb}
	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	r := httpx.NewRouter(cfg, httpx.Services{
		JWT:  jwtSvc,
		Auth: &auth.Service{Users: users, JWT: jwtSvc, Log: log},
		Journal: &journal.Service{
			Store:     &store.Journal{DB: gdb},
			Seq:       seq,
			Users:     users,
			Log:       log,
			PublicURL: func(key string) string { return blob.PublicURL(cfg.S3.BaseURL, key) },
		},
		Uploads: &blob.Uploads{Presigner: presigner, BaseURL: cfg.S3.BaseURL},
		Log:     log,
		Ping:    pinger(gdb),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// graceful shutdown
	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// newSequence picks the post number backend. The returned func releases it.
func newSequence(ctx context.Context, cfg config.SequenceConfig, gdb *gorm.DB) (sequence.Generator, func(), error) {
	switch cfg.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		r := sequence.NewRedis(opts)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return &sequence.Postgres{DB: gdb}, func() {}, nil
	}
}

func pinger(gdb *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
