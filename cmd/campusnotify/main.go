package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/nhle/campusnotify/internal/app"
	"github.com/nhle/campusnotify/internal/credential"
	"github.com/nhle/campusnotify/internal/feed"
	"github.com/nhle/campusnotify/internal/model"
	"github.com/nhle/campusnotify/internal/notify"
	"github.com/nhle/campusnotify/internal/redisfeed"
	"github.com/nhle/campusnotify/internal/session"
	"github.com/nhle/campusnotify/internal/store"
)

type options struct {
	configPath string
	login      string
	logout     bool
	whoami     bool
	issue      string
	email      string
	ttl        time.Duration
}

func main() {
	fs := pflag.NewFlagSet("campusnotify", pflag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to the config file")
	fs.String("backend", "", "notification backend: sqlite or redis")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&opts.login, "login", "", "sign in with an ID token")
	fs.BoolVar(&opts.logout, "logout", false, "forget the stored ID token")
	fs.BoolVar(&opts.whoami, "whoami", false, "print the signed-in user and exit")
	fs.StringVar(&opts.issue, "issue", "", "print a token for the given user id, signed with the configured secret")
	fs.StringVar(&opts.email, "email", "", "email claim for --issue")
	fs.DurationVar(&opts.ttl, "ttl", 0, "lifetime of a token minted with --issue (0 means no expiry)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if err := run(fs, opts); err != nil {
		fmt.Fprintf(os.Stderr, "campusnotify: %v\n", err)
		os.Exit(1)
	}
}

func run(fs *pflag.FlagSet, opts options) error {
	cfg, err := model.LoadConfigWithFlags(opts.configPath, fs)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.UsesDefaultSecret() {
		logger.Warn().Msg("session.token_secret is the built-in development secret; anyone can mint tokens")
		if opts.issue != "" || opts.login != "" {
			fmt.Fprintln(os.Stderr, "warning: session.token_secret is not set; tokens are signed with the public development secret")
		}
	}

	mgr := session.NewManager(cfg.Session.TokenSecret)
	tokens := credential.Keyring{}

	switch {
	case opts.issue != "":
		email := opts.email
		if email == "" {
			email = opts.issue + "@campus.edu"
		}
		token, err := mgr.Issue(opts.issue, email, opts.ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	case opts.logout:
		if err := session.SignOut(tokens); err != nil {
			return err
		}
		logger.Info().Msg("signed out")
		fmt.Println("Signed out.")
		return nil
	case opts.login != "":
		sess, err := mgr.SignIn(tokens, opts.login)
		if err != nil {
			return err
		}
		logger.Info().Str("user", sess.UserID).Msg("signed in")
		fmt.Printf("Signed in as %s (%s).\n", sess.Email, sess.UserID)
		return nil
	}

	sess, err := mgr.Restore(tokens)
	switch {
	case errors.Is(err, session.ErrSignedOut):
		sess = session.Session{}
	case err != nil:
		logger.Warn().Err(err).Msg("stored token rejected")
		sess = session.Session{}
	}

	if opts.whoami {
		if !sess.SignedIn() {
			fmt.Println("Signed out.")
			return nil
		}
		fmt.Printf("%s (%s)\n", sess.Email, sess.UserID)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	backend, closeBackend, err := openBackend(ctx, cfg.Backend, logger)
	cancel()
	if err != nil {
		return err
	}
	defer closeBackend()

	logger.Info().
		Str("backend", cfg.Backend.Kind).
		Bool("signed_in", sess.SignedIn()).
		Msg("starting")

	sync := notify.New(backend, sess, notify.Options{
		ToastDuration: time.Duration(cfg.Display.ToastSeconds) * time.Second,
		Logger:        logger,
	})

	probe := func(ctx context.Context, bc model.BackendConfig) (string, error) {
		_, closeProbe, err := openBackend(ctx, bc, zerolog.Nop())
		if err != nil {
			return "", err
		}
		closeProbe()
		return describeBackend(bc), nil
	}
	root := app.New(sync).WithSettings(*cfg, opts.configPath, probe, tokens)

	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// newLogger opens the log file named in cfg. The returned func closes it.
func newLogger(cfg model.LogConfig) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.File == "" {
		return zerolog.New(io.Discard), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
	}

	logger := zerolog.New(f).Level(level).With().Timestamp().Logger()
	return logger, func() { _ = f.Close() }, nil
}

func openBackend(ctx context.Context, cfg model.BackendConfig, logger zerolog.Logger) (feed.Backend, func(), error) {
	switch cfg.Kind {
	case model.BackendRedis:
		password, err := credential.Resolve(cfg.RedisPassword)
		if err != nil {
			return nil, nil, fmt.Errorf("reading redis password: %w", err)
		}
		client, err := redisfeed.Dial(ctx, cfg.RedisAddr, password, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return redisfeed.New(client, "", logger), func() { _ = client.Close() }, nil
	default:
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
		s, err := store.NewSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
}

func describeBackend(cfg model.BackendConfig) string {
	if cfg.Kind == model.BackendRedis {
		return fmt.Sprintf("redis %s db %d", cfg.RedisAddr, cfg.RedisDB)
	}
	return "sqlite " + cfg.SQLitePath
}
