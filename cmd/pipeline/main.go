// Command pipeline is the operator entry point for one processing run:
// claim pending tips, ensure the worker is awake, process, persist,
// promote, and exit. It is meant to be invoked by cron/systemd, not left
// running.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/monlai-dev/tip-pipeline/internal/config"
	"github.com/monlai-dev/tip-pipeline/internal/coordinator"
	"github.com/monlai-dev/tip-pipeline/internal/infra"
	"github.com/monlai-dev/tip-pipeline/internal/obslog"
	"github.com/monlai-dev/tip-pipeline/internal/pipeline"
	"github.com/monlai-dev/tip-pipeline/internal/promotion"
	"github.com/monlai-dev/tip-pipeline/internal/storage/postgres"
	"github.com/monlai-dev/tip-pipeline/internal/wake"
	"github.com/monlai-dev/tip-pipeline/internal/workerclient"
)

func main() {
	var (
		noWake      = pflag.Bool("no-wake", false, "do not send a magic packet; abort if the worker fails its health probe")
		noPromotion = pflag.Bool("no-promotion", false, "run processing only, skip the promotion pass")
		sleepAfter  = pflag.Bool("sleep-worker", false, "suspend the worker host over SSH after the run")
		sleepUser   = pflag.String("sleep-user", "", "SSH user for --sleep-worker")
		sleepKey    = pflag.String("sleep-key", "", "path to a private key file for --sleep-worker")
	)
	pflag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := obslog.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pipeline: logger setup:", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := infra.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("pipeline: database connection failed", zap.Error(err))
	}
	defer infra.ClosePostgresql(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &coordinator.Coordinator{
		Gateway: postgres.New(db),
		Prober:  wake.NewHTTPProber(cfg.WorkerBaseURL, cfg.WakeProbeTimeout),
		WakeConfig: wake.Config{
			Enabled:      cfg.WakeEnabled && !*noWake,
			MAC:          cfg.WorkerMAC,
			BroadcastIP:  cfg.WorkerIP,
			PollInterval: 5 * time.Second,
			PollTimeout:  cfg.WakePollTimeout,
			WakeInterval: 2 * time.Second,
		},
		Worker: workerclient.New(cfg.WorkerBaseURL, &http.Client{Timeout: cfg.RequestTimeout}),
		PromotionCfg: promotion.Config{
			SimilarityThreshold: cfg.SimilarityThreshold,
			MinMentions:         cfg.MinMentions,
		},
		Config: coordinator.Config{
			WakeEnabled:         cfg.WakeEnabled && !*noWake,
			BatchSize:           cfg.BatchSize,
			Fanout:              cfg.Fanout,
			PerRunLimit:         cfg.PerRunLimit,
			RequestTimeout:      cfg.RequestTimeout,
			MaxAttemptsPerBatch: cfg.MaxAttemptsPerBatch,
			ShutdownGrace:       cfg.ShutdownGrace,
			SkipPromotion:       *noPromotion,
		},
		Log: log,
	}

	stats, runErr := c.Run(ctx)
	if err := json.NewEncoder(os.Stdout).Encode(stats); err != nil {
		log.Warn("pipeline: stats summary encode failed", zap.Error(err))
	}

	if (*sleepAfter || cfg.SleepWorkerAfter) && runErr == nil {
		sleeper := buildSleeper(cfg, *sleepUser, *sleepKey)
		if err := sleeper.Sleep(); err != nil {
			log.Error("pipeline: worker sleep request failed", zap.Error(err))
		}
	}

	if runErr != nil {
		if pipeline.Is(runErr, pipeline.KindWorkerUnavailable) {
			log.Error("pipeline: run aborted, worker never became ready", zap.Error(runErr))
			os.Exit(2)
		}
		log.Error("pipeline: run finished with an error", zap.Error(runErr))
		os.Exit(1)
	}
}

// buildSleeper authenticates with the private key file given by
// --sleep-key; without one, the returned Sleeper fails with an error (there
// is no SSH agent fallback). WorkerIP is reused as the SSH target since the
// worker host is the same machine the wake protocol addresses.
func buildSleeper(cfg *config.Config, user, keyPath string) wake.Sleeper {
	auth, err := sshAuthMethod(keyPath)
	if err != nil {
		return loggingFailSleeper{err: err}
	}
	return &wake.SSHSleeper{
		Host:       cfg.WorkerIP,
		User:       user,
		AuthMethod: auth,
		Timeout:    10 * time.Second,
	}
}

func sshAuthMethod(keyPath string) (ssh.AuthMethod, error) {
	if keyPath == "" {
		return nil, fmt.Errorf("pipeline: --sleep-key is required for --sleep-worker")
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read ssh key %q: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parse ssh key %q: %w", keyPath, err)
	}
	return ssh.PublicKeys(signer), nil
}

// loggingFailSleeper defers a sleeper construction error to Sleep() so
// main's flow stays linear regardless of whether the key could be loaded.
type loggingFailSleeper struct{ err error }

func (s loggingFailSleeper) Sleep() error { return s.err }
