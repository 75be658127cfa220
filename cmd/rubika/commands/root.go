package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	rubika "github.com/rubikalib/client-go"
	"github.com/rubikalib/client-go/internal/config"
	"github.com/rubikalib/client-go/internal/logging"
	"github.com/rubikalib/client-go/internal/session"
)

const sqliteFile = "sessions.db"

// app is the state shared by subcommands for one invocation.
type app struct {
	cfg     config.Config
	phone   string
	envFile string
	logger  *logrus.Logger
	client  *rubika.Client
	closers []io.Closer

	reconnects    int
	reconnectWait time.Duration

	in  io.Reader
	out io.Writer
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return newRootCmd(os.Stdin, os.Stdout).Execute()
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{cfg: config.Default(), in: in, out: out}

	root := &cobra.Command{
		Use:          "rubika",
		Short:        "Rubika account client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.phone, "phone", os.Getenv("RUBIKA_PHONE"), "account phone number (env RUBIKA_PHONE)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load")
	flags.String("session-dir", "", "session directory (default .rubika)")
	flags.String("backend", "", "session backend: file or sqlite")
	flags.String("endpoint-cache", "", "endpoint cache file")
	flags.String("bootstrap-url", "", "getDCs discovery URL")
	flags.Duration("timeout", 0, "per-request timeout")
	flags.Int("retries", 0, "transport retries per call")
	flags.String("log-level", "", "log level")
	flags.String("log-format", "", "log format: text or json")

	root.AddCommand(
		loginCmd(a),
		logoutCmd(a),
		callCmd(a),
		uploadCmd(a),
		downloadCmd(a),
		listenCmd(a),
	)
	return root
}

// setup resolves configuration and opens the client.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if err := overlayFlags(cmd, &cfg); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if a.phone == "" {
		a.phone = os.Getenv("RUBIKA_PHONE")
	}
	if a.phone == "" {
		return errors.New("phone number required (--phone or RUBIKA_PHONE)")
	}

	opts := []rubika.Option{
		rubika.WithSessionDir(cfg.SessionDir),
		rubika.WithEndpointCachePath(cfg.EndpointCachePath()),
		rubika.WithBootstrapURL(cfg.BootstrapURL),
		rubika.WithTimeout(cfg.Timeout),
		rubika.WithRetries(cfg.Retries),
		rubika.WithLogger(a.logger),
		rubika.WithReconnect(a.reconnects, a.reconnectWait),
	}

	if cfg.SessionBackend == config.BackendSQLite {
		if err := os.MkdirAll(cfg.SessionDir, 0o700); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		repo, err := session.OpenSQLite(ctx, filepath.Join(cfg.SessionDir, sqliteFile))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, repo)
		opts = append(opts, rubika.WithSessionRepository(repo))
	}

	a.client, err = rubika.New(a.phone, opts...)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.client)
	return nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// overlayFlags applies flags the user set explicitly.
func overlayFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	strFlags := map[string]*string{
		"session-dir":    &cfg.SessionDir,
		"backend":        &cfg.SessionBackend,
		"endpoint-cache": &cfg.EndpointCache,
		"bootstrap-url":  &cfg.BootstrapURL,
		"log-level":      &cfg.LogLevel,
		"log-format":     &cfg.LogFormat,
	}
	for name, dst := range strFlags {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	if flags.Changed("timeout") {
		d, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = d
	}
	if flags.Changed("retries") {
		n, err := flags.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = n
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
