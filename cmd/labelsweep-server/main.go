package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshsymonds/labelsweep/internal/authflow"
	"github.com/joshsymonds/labelsweep/internal/httpapi"
	"github.com/joshsymonds/labelsweep/internal/mailbox"
	"github.com/joshsymonds/labelsweep/internal/rate"
	"github.com/joshsymonds/labelsweep/internal/runtime"
	"github.com/joshsymonds/labelsweep/internal/secrets"
	"github.com/joshsymonds/labelsweep/internal/session"
)

type serverConfig struct {
	addr         string
	envFile      string
	waitTimeout  time.Duration
	rps          int
	allowRelogin bool
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("labelsweep-server failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() serverConfig {
	addr := flag.String("addr", ":8000", "listen address")
	envFile := flag.String("env", "", "optional .env file with secrets")
	waitTimeout := flag.Duration("wait-timeout", 120*time.Second, "how long /token waits for a credential")
	rps := flag.Int("rps", 4, "max outbound Gmail requests per second")
	allowRelogin := flag.Bool("allow-relogin", false, "let a second login replace the session credential")
	flag.Parse()

	return serverConfig{
		addr:         *addr,
		envFile:      *envFile,
		waitTimeout:  *waitTimeout,
		rps:          *rps,
		allowRelogin: *allowRelogin,
	}
}

func run(cfg serverConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()

	store, err := secrets.Load(cfg.envFile)
	if err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}
	google, err := store.Google()
	if err != nil {
		return fmt.Errorf("oauth configuration: %w", err)
	}
	signing, err := store.Session()
	if err != nil {
		return fmt.Errorf("signing configuration: %w", err)
	}

	policy := session.KeepFirst
	if cfg.allowRelogin {
		policy = session.Overwrite
	}
	issuer, err := session.NewIssuer(session.Config{
		Secret:    signing.Secret,
		WebSecret: signing.WebSecret,
		Algorithm: signing.Algorithm,
		TTL:       signing.TTL,
		Reissue:   policy,
	})
	if err != nil {
		return fmt.Errorf("create issuer: %w", err)
	}

	// Shared across requests so concurrent handlers cannot multiply the
	// Gmail rate.
	var limiter rate.Limiter
	if cfg.rps > 0 {
		limiter = rate.NewPacer(cfg.rps)
	}

	api := &httpapi.Server{
		Broker: authflow.New(google),
		Issuer: issuer,
		Clients: func(ctx context.Context, accessToken string) (mailbox.Client, error) {
			return runtime.NewBearerClient(ctx, accessToken, limiter)
		},
		Logger:      logger,
		WaitTimeout: cfg.waitTimeout,
	}

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
