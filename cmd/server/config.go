package main

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/willemschots/forum/internal/db"
	"github.com/willemschots/forum/internal/email"
	"github.com/willemschots/forum/internal/krypto"
)

// Email senders that can be selected with EMAIL_SENDER.
const (
	senderLog      = "log"
	senderPostmark = "postmark"
	senderMailgun  = "mailgun"
)

// httpConfig is the configuration for the HTTP server.
type httpConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8888"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// dbConfig is the configuration for the database.
type dbConfig struct {
	Driver  db.Driver `env:"DRIVER" envDefault:"sqlite3"`
	DSN     string    `env:"DSN" envDefault:"forum.db"`
	Migrate bool      `env:"MIGRATE" envDefault:"true"`
	// EncryptionKeys is a comma separated list, the last key is used to
	// encrypt. Older keys are kept to decrypt existing data.
	EncryptionKeys []krypto.Key `env:"ENCRYPTION_KEY,required"`
	BlindIndexKey  krypto.Key   `env:"BLIND_INDEX_KEY,required"`
}

// authConfig is the configuration for the auth service.
type authConfig struct {
	SignupTokenExpiry time.Duration `env:"SIGNUP_TOKEN_EXPIRY" envDefault:"24h"`
	WorkerTimeout     time.Duration `env:"WORKER_TIMEOUT" envDefault:"10s"`
	TxMaxRetries      int           `env:"TX_MAX_RETRIES" envDefault:"5"`
	TxBackoff         time.Duration `env:"TX_BACKOFF" envDefault:"10ms"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
}

type postmarkConfig struct {
	APIURL        url.URL       `env:"API_URL" envDefault:"https://api.postmarkapp.com"`
	ServerToken   krypto.Secret `env:"SERVER_TOKEN"`
	MessageStream string        `env:"MESSAGE_STREAM" envDefault:"outbound"`
}

type mailgunConfig struct {
	APIURL url.URL       `env:"API_URL" envDefault:"https://api.mailgun.net"`
	Domain string        `env:"DOMAIN"`
	APIKey krypto.Secret `env:"API_KEY"`
}

// emailConfig is the configuration for sending emails.
type emailConfig struct {
	BaseURL  url.URL        `env:"BASE_URL" envDefault:"http://localhost:8888"`
	From     email.Address  `env:"EMAIL_FROM,required"`
	Sender   string         `env:"EMAIL_SENDER" envDefault:"log"`
	Postmark postmarkConfig `envPrefix:"POSTMARK_"`
	Mailgun  mailgunConfig  `envPrefix:"MAILGUN_"`
}

// config is the configuration for the server command.
type config struct {
	HTTP  httpConfig `envPrefix:"HTTP_"`
	DB    dbConfig   `envPrefix:"DB_"`
	Auth  authConfig `envPrefix:"AUTH_"`
	Email emailConfig
}

// configFromEnv returns a config with values from environ. It falls back
// to default values for any missing variables.
//
// It does a best effort to validate provided values, so that mistakes are
// caught ASAP. However, there is no guarantee that the returned config
// is valid and will work.
func configFromEnv(environ map[string]string) (config, error) {
	var c config
	err := env.ParseWithOptions(&c, env.Options{
		Environment: environ,
	})
	if err != nil {
		return c, err
	}

	err = c.validate()
	if err != nil {
		return c, err
	}

	return c, nil
}

func (c config) validate() error {
	var errs []error

	durations := []struct {
		name string
		val  time.Duration
		min  time.Duration
	}{
		{"HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout, 0},
		{"HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout, 0},
		{"HTTP_IDLE_TIMEOUT", c.HTTP.IdleTimeout, 0},
		{"HTTP_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout, 0},
		{"AUTH_SIGNUP_TOKEN_EXPIRY", c.Auth.SignupTokenExpiry, time.Minute},
		{"AUTH_WORKER_TIMEOUT", c.Auth.WorkerTimeout, time.Millisecond},
		{"AUTH_TX_BACKOFF", c.Auth.TxBackoff, time.Millisecond},
		{"AUTH_SWEEP_INTERVAL", c.Auth.SweepInterval, time.Second},
	}

	for _, d := range durations {
		if d.val < d.min {
			errs = append(errs, fmt.Errorf("invalid env variable %s: duration %s is less than %s", d.name, d.val, d.min))
		}
	}

	if c.Auth.TxMaxRetries < 0 || c.Auth.TxMaxRetries > 20 {
		errs = append(errs, fmt.Errorf("invalid env variable AUTH_TX_MAX_RETRIES: %d not in range [0, 20] (inclusive)", c.Auth.TxMaxRetries))
	}

	if len(c.DB.EncryptionKeys) == 0 {
		errs = append(errs, errors.New("invalid env variable DB_ENCRYPTION_KEY: at least one key is required"))
	}

	if c.DB.BlindIndexKey.IsZero() {
		errs = append(errs, errors.New("invalid env variable DB_BLIND_INDEX_KEY: a key is required"))
	}

	if c.DB.DSN == "" {
		errs = append(errs, errors.New("invalid env variable DB_DSN: a data source name is required"))
	}

	if c.Email.BaseURL.Scheme != "http" && c.Email.BaseURL.Scheme != "https" {
		errs = append(errs, fmt.Errorf("invalid env variable BASE_URL: unsupported scheme %q", c.Email.BaseURL.Scheme))
	}

	switch c.Email.Sender {
	case senderLog:
	case senderPostmark:
		if c.Email.Postmark.ServerToken.IsZero() {
			errs = append(errs, errors.New("env variable POSTMARK_SERVER_TOKEN is required when using postmark"))
		}
	case senderMailgun:
		if c.Email.Mailgun.Domain == "" || c.Email.Mailgun.APIKey.IsZero() {
			errs = append(errs, errors.New("env variables MAILGUN_DOMAIN and MAILGUN_API_KEY are required when using mailgun"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid env variable EMAIL_SENDER: unsupported sender %q", c.Email.Sender))
	}

	return errors.Join(errs...)
}
