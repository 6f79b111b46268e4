package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/labelsweep/internal/apiclient"
	"github.com/joshsymonds/labelsweep/internal/mailbox"
	"github.com/joshsymonds/labelsweep/internal/oracle"
	"github.com/joshsymonds/labelsweep/internal/rate"
	"github.com/joshsymonds/labelsweep/internal/reconcile"
	"github.com/joshsymonds/labelsweep/internal/runtime"
	"github.com/joshsymonds/labelsweep/internal/secrets"
	"github.com/joshsymonds/labelsweep/internal/session"
)

type reconcileConfig struct {
	mode    string
	cfgDir  string
	apiBase string
	envFile string
	pages   int
	rps     int
	dryRun  bool
	jsonOut string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("labelsweep-reconcile failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() reconcileConfig {
	mode := flag.String("mode", "local", `mailbox access mode: "local" (cached credentials) or "server" (running labelsweep-server)`)
	cfgDir := flag.String("config", os.ExpandEnv("$HOME/.gmailctl"), "gmailctl auth directory (local mode)")
	apiBase := flag.String("api", "http://localhost:8000", "labelsweep-server base URL (server mode)")
	envFile := flag.String("env", "", "optional .env file with secrets")
	pages := flag.Int("pages", 1, "page budget for this run")
	rps := flag.Int("rps", 4, "max requests per second")
	dryRun := flag.Bool("dry-run", false, "log only; skip label mutations")
	jsonOut := flag.String("json", "", "write JSON report to path")
	flag.Parse()

	return reconcileConfig{
		mode:    *mode,
		cfgDir:  *cfgDir,
		apiBase: *apiBase,
		envFile: *envFile,
		pages:   *pages,
		rps:     *rps,
		dryRun:  *dryRun,
		jsonOut: *jsonOut,
	}
}

func run(cfg reconcileConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()

	store, err := secrets.Load(cfg.envFile)
	if err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}
	oracleCfg, err := store.Oracle()
	if err != nil {
		return fmt.Errorf("oracle configuration: %w", err)
	}

	client, err := buildClient(ctx, cfg, store)
	if err != nil {
		return fmt.Errorf("create mailbox client: %w", err)
	}

	var limiter rate.Limiter
	if cfg.rps > 0 {
		limiter = rate.NewPacer(cfg.rps)
	}

	svc := reconcile.NewService(client, oracle.NewOpenAILabeler(oracleCfg), limiter, logger)
	rep, runErr := svc.Run(ctx, reconcile.Options{PageBudget: cfg.pages, DryRun: cfg.dryRun})

	if printErr := reconcile.PrintHuman(rep, os.Stdout); printErr != nil {
		return fmt.Errorf("print report: %w", printErr)
	}
	if cfg.jsonOut != "" {
		if writeErr := writeReportFile(rep, cfg.jsonOut); writeErr != nil {
			return fmt.Errorf("write json: %w", writeErr)
		}
	}
	if runErr != nil {
		return fmt.Errorf("run reconcile: %w", runErr)
	}
	return nil
}

func writeReportFile(rep reconcile.Report, path string) error {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return reconcile.WriteJSON(rep, f)
}

func buildClient(ctx context.Context, cfg reconcileConfig, store *secrets.Store) (mailbox.Client, error) {
	switch cfg.mode {
	case "local":
		return runtime.NewLocalClient(ctx, cfg.cfgDir)
	case "server":
		signing, err := store.Session()
		if err != nil {
			return nil, fmt.Errorf("signing configuration: %w", err)
		}
		cred, err := apiclient.FetchToken(ctx, cfg.apiBase, nil)
		if err != nil {
			return nil, err
		}
		bearer, err := session.Wrap(cred, signing.WebSecret, signing.Algorithm)
		if err != nil {
			return nil, err
		}
		return apiclient.New(cfg.apiBase, bearer, nil), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.mode)
	}
}
