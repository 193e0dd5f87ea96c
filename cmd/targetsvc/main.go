package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/csrf-target/internal/infra/config"
	"github.com/mkrupp/csrf-target/internal/infra/logging"
	"github.com/mkrupp/csrf-target/internal/infra/transport/http"
	"github.com/mkrupp/csrf-target/internal/repo/session"
	"github.com/mkrupp/csrf-target/internal/repo/user"
	"github.com/mkrupp/csrf-target/internal/svc/profilesvc"
	"github.com/mkrupp/csrf-target/internal/svc/sessionsvc"
)

const (
	appName = "demo"
	svcName = "targetsvc"
)

type Config struct {
	config.EnvConfig

	// Port is used when HTTP_SERVER_ADDR is not set
	Port string `env:"PORT" default:"3000"`

	Log     logging.LoggerConfig           `envPrefix:"LOG_"`
	HTTP    profilesvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	User    user.RepositoryConfig          `envPrefix:"USER_"`
	Session sessionsvc.SessionConfig       `envPrefix:"SESSION_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.LoadDotEnv(".env"); err != nil {
		panic(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.targetsvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

	log.InfoContext(ctx, "configuration loaded",
		"namespace", cfg.Namespace(),
		logging.Group("source",
			"port", cfg.Source("PORT"),
			"sessionSecret", cfg.Source("SESSION_SECRET"),
			"userBackend", cfg.Source("USER_BACKEND"),
			"sessionBackend", cfg.Source("SESSION_BACKEND"),
		),
	)

	profileSvc, err := profilesvc.NewProfileService(ctx, user.NewRepositoryFactory(cfg.User))
	if err != nil {
		return fmt.Errorf("new profile service: %w", err)
	}
	defer profileSvc.Close()

	sessionSvc, err := sessionsvc.NewSessionService(ctx, session.NewRepositoryFactory(cfg.Session.Store), cfg.Session)
	if err != nil {
		return fmt.Errorf("new session service: %w", err)
	}
	defer sessionSvc.Close()

	httpTransport, err := profilesvc.NewHTTPTransport(profileSvc, sessionSvc, cfg.HTTP)
	if err != nil {
		return fmt.Errorf("new http transport: %w", err)
	}

	addr := cfg.HTTP.Addr(cfg.Port)

	log.InfoContext(ctx, "server starting",
		"addr", addr,
		"csrf", "disabled",
		"userBackend", cfg.User.Backend,
		"sessionBackend", cfg.Session.Store.Backend,
	)

	if err := http.ListenAndServe(ctx, httpTransport, addr, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
