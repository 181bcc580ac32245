// Package wake brings the Processing Worker from asleep/off to ready, or
// fails fatally.
package wake

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/monlai-dev/tip-pipeline/internal/pipeline"
)

// State is the remote host's readiness as observed by the coordinator.
type State string

const (
	StateUnknown     State = "unknown"
	StateProbing     State = "probing"
	StateAwake       State = "awake"
	StateReady       State = "ready"
	StateUnreachable State = "unreachable"
)

// Prober checks the worker's health endpoint.
type Prober interface {
	Probe(ctx context.Context) (healthy bool, err error)
}

// HTTPProber probes a worker's /health endpoint with a bounded timeout.
type HTTPProber struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPProber builds a Prober against baseURL, following the same
// shared-client-with-deadline construction this codebase's AI clients use.
func NewHTTPProber(baseURL string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

func (p *HTTPProber) Probe(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("wake: build health request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return false, nil // transport failure just means "not yet healthy"
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

// Config drives one Ensure call.
type Config struct {
	Enabled       bool
	MAC           string
	BroadcastIP   string
	PollInterval  time.Duration
	PollTimeout   time.Duration
	WakeInterval  time.Duration
}

// DefaultConfig returns the protocol's literal defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		PollTimeout:  120 * time.Second,
		WakeInterval: 2 * time.Second,
	}
}

// Ensure runs the full protocol: probe, and if not ready and waking is
// enabled, send the magic packet and poll until ready or the poll window
// expires. It returns pipeline.ErrWorkerUnavailable (kind
// KindWorkerUnavailable) on failure.
func Ensure(ctx context.Context, prober Prober, cfg Config, log *zap.Logger) (State, error) {
	healthy, err := prober.Probe(ctx)
	if err != nil {
		log.Warn("wake: probe error", zap.Error(err))
	}
	if healthy {
		return StateReady, nil
	}

	if !cfg.Enabled {
		log.Warn("wake: worker not ready and wake is disabled")
		return StateUnreachable, pipeline.ErrWorkerUnavailable
	}

	log.Info("wake: sending magic packet", zap.String("mac", cfg.MAC), zap.String("broadcast", cfg.BroadcastIP))
	if err := SendMagicPacketWithRetries(cfg.BroadcastIP, cfg.MAC, cfg.WakeInterval); err != nil {
		log.Warn("wake: magic packet send had at least one error", zap.Error(err))
	}

	deadline := time.Now().Add(cfg.PollTimeout)
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return StateUnreachable, pipeline.New(pipeline.KindCancelledByOperator, "wake", ctx.Err())
		case <-ticker.C:
			healthy, err = prober.Probe(ctx)
			if err != nil {
				log.Debug("wake: poll probe error", zap.Error(err))
				continue
			}
			if healthy {
				return StateReady, nil
			}
		}
	}

	return StateUnreachable, pipeline.ErrWorkerUnavailable
}
