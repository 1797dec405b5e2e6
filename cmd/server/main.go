package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/willemschots/forum/assets"
	"github.com/willemschots/forum/internal/auth"
	authdb "github.com/willemschots/forum/internal/auth/db"
	"github.com/willemschots/forum/internal/buildinfo"
	"github.com/willemschots/forum/internal/db"
	"github.com/willemschots/forum/internal/db/migrate"
	"github.com/willemschots/forum/internal/email"
	"github.com/willemschots/forum/internal/email/mailgun"
	"github.com/willemschots/forum/internal/email/postmark"
	"github.com/willemschots/forum/internal/email/view"
	"github.com/willemschots/forum/internal/krypto"
	"github.com/willemschots/forum/internal/web"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr, env.ToMap(os.Environ())))
}

func run(ctx context.Context, w io.Writer, environ map[string]string) int {
	logger := slog.New(slog.NewTextHandler(w, nil))

	cfg, err := configFromEnv(environ)
	if err != nil {
		logger.Error("failed to get config from environment", "error", err)
		return 1
	}

	conn, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.DB.Driver, "error", err)
		return 1
	}

	defer func() {
		err := conn.Close()
		if err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	if cfg.DB.Migrate {
		err = migrateDB(ctx, logger, conn, cfg.DB.Driver)
		if err != nil {
			logger.Error("failed to migrate database", "error", err)
			return 1
		}
	}

	encryptor, err := krypto.NewEncryptor(cfg.DB.EncryptionKeys)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		return 1
	}

	blindIndex, err := krypto.NewBlindIndex(cfg.DB.BlindIndexKey)
	if err != nil {
		logger.Error("failed to create blind index", "error", err)
		return 1
	}

	emailSvc := email.NewService(
		view.NewFSRenderer(assets.EmailFS),
		newEmailSender(logger, cfg.Email),
		email.ServiceConfig{
			From:    cfg.Email.From,
			BaseURL: &cfg.Email.BaseURL,
		},
	)

	authSvc := auth.NewService(
		authdb.New(conn, cfg.DB.Driver, encryptor, blindIndex),
		emailSvc,
		func(err error) {
			logger.Error("error in auth service", "error", err)
		},
		auth.ServiceConfig{
			WorkerTimeout:     cfg.Auth.WorkerTimeout,
			SignupTokenExpiry: cfg.Auth.SignupTokenExpiry,
			TxMaxRetries:      cfg.Auth.TxMaxRetries,
			TxBackoff:         cfg.Auth.TxBackoff,
		},
	)

	// Wait for emails that are still being sent.
	defer authSvc.Wait()

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Handler: web.NewServer(&web.ServerDeps{
			Logger:      logger,
			AuthService: authSvc,
		}),
	}

	// We need to run three tasks concurrently:
	// - Listen and serving of the HTTP server.
	// - Waiting for a signal to stop the server.
	// - Periodically deleting expired tokens.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTP.Addr, buildinfo.LogAttr())
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutines.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	g.Go(func() error {
		sweepTokens(gCtx, logger, authSvc, cfg.Auth.SweepInterval)
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}

func migrateDB(ctx context.Context, logger *slog.Logger, conn *sql.DB, driver db.Driver) error {
	logger.Info("attempting to migrate database", "driver", driver)

	migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	applied, err := migrate.Up(migrateCtx, conn, driver)
	if err != nil {
		return err
	}

	for _, m := range applied {
		logger.Info("migration ran", "version", m.Version, "filename", m.Filename)
	}

	return nil
}

// sweepTokens deletes expired tokens every interval until ctx is done.
func sweepTokens(ctx context.Context, logger *slog.Logger, svc *auth.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.SweepExpiredTokens(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("failed to sweep expired tokens", "error", err)
				}
				continue
			}

			if n > 0 {
				logger.Info("swept expired tokens", "count", n)
			}
		}
	}
}

func newEmailSender(logger *slog.Logger, cfg emailConfig) email.Sender {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	switch cfg.Sender {
	case senderPostmark:
		return postmark.NewSender(client, postmark.Settings{
			APIURL:        &cfg.Postmark.APIURL,
			ServerToken:   cfg.Postmark.ServerToken,
			MessageStream: cfg.Postmark.MessageStream,
		})
	case senderMailgun:
		return mailgun.NewSender(client, mailgun.Settings{
			APIURL: &cfg.Mailgun.APIURL,
			Domain: cfg.Mailgun.Domain,
			APIKey: cfg.Mailgun.APIKey,
		})
	default:
		logger.Info("emails are logged instead of sent")
		return email.NewLogSender(logger)
	}
}
