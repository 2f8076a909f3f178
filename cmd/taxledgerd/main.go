package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taxledger/config"
	"taxledger/core"
	"taxledger/core/events"
	"taxledger/core/genesis"
	"taxledger/core/journal"
	"taxledger/native/token"
	"taxledger/native/upgrade"
	"taxledger/observability"
	"taxledger/observability/logging"
	"taxledger/rpc"
	"taxledger/storage"
)

const (
	genesisPathEnv = "TAXLEDGER_GENESIS"
	rpcTokenEnv    = "TAXLEDGER_RPC_TOKEN"
	environmentEnv = "TAXLEDGER_ENV"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides TAXLEDGER_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv(environmentEnv)); override != "" {
		env = override
	}
	logger := logging.Setup("taxledgerd", env, cfg.Log.FileOptions())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile, *genesisFlag, cfg, logger); err != nil {
		logger.Error("taxledgerd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, genesisFlag string, cfg *config.Config, logger *slog.Logger) error {
	engineAddr, err := cfg.Engine()
	if err != nil {
		return err
	}
	logics, err := loadLogics(configPath, cfg.LogicManifests)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return err
	}
	defer db.Close()

	jr, err := journal.Open(cfg.JournalDSN)
	if err != nil {
		return err
	}

	node, err := core.NewNode(db, jr, core.Options{
		EngineAddress: engineAddr,
		Logics:        logics,
		Logger:        logger,
		Emitters:      []events.Emitter{observability.Events()},
	})
	if err != nil {
		_ = jr.Close()
		return err
	}
	defer node.Close()

	if !node.Initialized() {
		path := resolveGenesisPath(genesisFlag, cfg.GenesisFile, configPath, os.LookupEnv)
		if path == "" {
			return errors.New("ledger is not initialized and no genesis file is configured")
		}
		spec, err := genesis.LoadSpec(path)
		if err != nil {
			return err
		}
		if err := node.Bootstrap(ctx, spec); err != nil {
			return fmt.Errorf("bootstrap genesis: %w", err)
		}
	}
	logger.Info("ledger ready", "state_root", node.StateRoot().Hex())

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		go serveMetrics(ctx, addr, logger)
	}

	authToken := cfg.RPCAuthToken
	if token, ok := os.LookupEnv(rpcTokenEnv); ok {
		authToken = token
	}
	if strings.TrimSpace(authToken) == "" {
		logger.Warn("RPC auth token not configured; token_submit is disabled")
	}
	server := rpc.NewServer(node, rpc.Options{
		AuthToken: authToken,
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             cfg.RateLimit.Burst,
			TrustProxyHeaders: cfg.RateLimit.TrustProxyHeaders,
		},
		Logger: logger,
	})
	return server.Start(ctx, cfg.RPCAddress)
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", slog.Any("error", err))
	}
}

// loadLogics builds the upgrade targets named by the configured manifests.
// Relative paths resolve against the config file's directory.
func loadLogics(configPath string, manifests []string) ([]token.Logic, error) {
	out := make([]token.Logic, 0, len(manifests))
	for _, path := range manifests {
		manifest, err := upgrade.LoadManifest(relativeTo(configPath, path))
		if err != nil {
			return nil, err
		}
		logic, err := token.NewManifestLogic(manifest)
		if err != nil {
			return nil, fmt.Errorf("logic manifest %s: %w", path, err)
		}
		out = append(out, logic)
	}
	return out, nil
}

// resolveGenesisPath picks the flag, then the environment, then the config
// value.
func resolveGenesisPath(flagValue, cfgValue, configPath string, lookup func(string) (string, bool)) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	if trimmed := strings.TrimSpace(cfgValue); trimmed != "" {
		return relativeTo(configPath, trimmed)
	}
	return ""
}

func relativeTo(configPath, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(configPath), path)
}
