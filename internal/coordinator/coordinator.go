// Package coordinator drives one processing run: drain pending tips,
// ensure the worker is awake, fan batches out concurrently, persist
// results, retry transient failures, and promote.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/monlai-dev/tip-pipeline/internal/domain"
	"github.com/monlai-dev/tip-pipeline/internal/pipeline"
	"github.com/monlai-dev/tip-pipeline/internal/promotion"
	"github.com/monlai-dev/tip-pipeline/internal/storage"
	"github.com/monlai-dev/tip-pipeline/internal/wake"
	"github.com/monlai-dev/tip-pipeline/internal/workerclient"
)

// Config holds one run's tunable options.
type Config struct {
	WakeEnabled         bool
	BatchSize           int
	Fanout              int
	PerRunLimit         int
	RequestTimeout      time.Duration
	MaxAttemptsPerBatch int
	ShutdownGrace       time.Duration
	SkipPromotion       bool
}

// DefaultConfig returns the coordinator's literal defaults.
func DefaultConfig() Config {
	return Config{
		WakeEnabled:         true,
		BatchSize:           20,
		Fanout:              4,
		PerRunLimit:         100,
		RequestTimeout:      120 * time.Second,
		MaxAttemptsPerBatch: 3,
		ShutdownGrace:       30 * time.Second,
	}
}

// Coordinator wires the Persistence Gateway, Wake Protocol and Processing
// Worker client together into one run.
type Coordinator struct {
	Gateway      storage.Gateway
	Prober       wake.Prober
	WakeConfig   wake.Config
	Worker       workerclient.Client
	PromotionCfg promotion.Config
	Config       Config
	Log          *zap.Logger
}

// Stats summarizes one run's outcome, mirroring the original job's per-run
// stats dict (processed/translated/errors/promoted), a SUPPLEMENTED
// feature this implementation surfaces as the run's final structured log.
type Stats struct {
	RunID     string `json:"run_id"`
	Claimed   int    `json:"claimed"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Promoted  int    `json:"locations_promoted"`
}

// Run executes one end-to-end pass: claim, wake, process, persist, retry,
// promote. ctx should be derived from signal.NotifyContext by the caller
// so a shutdown signal is observable here as ctx.Done().
func (c *Coordinator) Run(ctx context.Context) (Stats, error) {
	stats := Stats{RunID: uuid.New().String()}

	baseLog := c.Log
	c.Log = baseLog.With(zap.String("run_id", stats.RunID))
	defer func() { c.Log = baseLog }()

	tips, err := c.Gateway.ClaimPending(ctx, c.Config.PerRunLimit)
	if err != nil {
		return stats, fmt.Errorf("coordinator: claim_pending: %w", err)
	}
	stats.Claimed = len(tips)
	if len(tips) == 0 {
		c.Log.Info("coordinator: no pending tips, nothing to do")
		return stats, nil
	}
	c.Log.Info("coordinator: claimed tips", zap.Int("count", len(tips)))

	wakeCfg := c.WakeConfig
	wakeCfg.Enabled = c.Config.WakeEnabled
	state, err := wake.Ensure(ctx, c.Prober, wakeCfg, c.Log)
	if err != nil {
		c.Log.Error("coordinator: worker unavailable, compensating claimed tips", zap.Error(err))
		if revertErr := c.revert(tipIDs(tips)); revertErr != nil {
			c.Log.Error("coordinator: compensation failed", zap.Error(revertErr))
		}
		return stats, fmt.Errorf("%w: %w", pipeline.ErrPipelineAborted, err)
	}
	c.Log.Info("coordinator: worker ready", zap.String("state", string(state)))

	batches := partition(tips, c.Config.BatchSize)
	resultsCh := make(chan batchOutcome, len(batches))

	g := new(errgroup.Group)
	g.SetLimit(c.Config.Fanout)

	var dispatchedIDs []int64
	var skipped []domain.Tip
	for _, batch := range batches {
		if ctx.Err() != nil {
			skipped = append(skipped, batch...)
			continue
		}
		batch := batch
		dispatchedIDs = append(dispatchedIDs, tipIDs(batch)...)

		// In-flight work survives a shutdown signal (it is awaited with a
		// grace period below, not killed outright); each call is still
		// bounded by RequestTimeout inside callWithRetry.
		workCtx := context.WithoutCancel(ctx)
		g.Go(func() error {
			resultsCh <- c.processBatch(workCtx, batch)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.Log.Warn("coordinator: shutdown signal received, awaiting in-flight batches", zap.Duration("grace", c.Config.ShutdownGrace))
		select {
		case <-done:
		case <-time.After(c.Config.ShutdownGrace):
			c.Log.Warn("coordinator: shutdown grace period expired, abandoning in-flight batches")
		}
	}

	resolved := make(map[int64]bool)
	locationsSeen := make(map[int64]bool)
drain:
	for {
		select {
		case outcome := <-resultsCh:
			for _, r := range outcome.persisted {
				resolved[r.tipID] = true
				locationsSeen[r.locationID] = true
				if r.success {
					stats.Processed++
				} else {
					stats.Failed++
				}
			}
		default:
			break drain
		}
	}

	toRevert := tipIDs(skipped)
	for _, id := range dispatchedIDs {
		if !resolved[id] {
			toRevert = append(toRevert, id)
		}
	}
	if len(toRevert) > 0 {
		c.Log.Warn("coordinator: compensating unresolved tips", zap.Int("count", len(toRevert)))
		if err := c.revert(toRevert); err != nil {
			c.Log.Error("coordinator: compensation failed", zap.Error(err))
		}
	}

	if c.Config.SkipPromotion {
		c.Log.Info("coordinator: promotion pass skipped by configuration")
	} else {
		for locID := range locationsSeen {
			if err := c.runPromotion(context.Background(), locID); err != nil {
				c.Log.Error("coordinator: promotion failed", zap.Int64("location_id", locID), zap.Error(err))
				continue
			}
			stats.Promoted++
		}
	}

	c.Log.Info("coordinator: run complete",
		zap.Int("claimed", stats.Claimed),
		zap.Int("processed", stats.Processed),
		zap.Int("failed", stats.Failed),
		zap.Int("locations_promoted", stats.Promoted),
	)

	if ctx.Err() != nil && len(toRevert) > 0 {
		return stats, pipeline.New(pipeline.KindCancelledByOperator, "coordinator.Run", ctx.Err())
	}
	return stats, nil
}

type persistedResult struct {
	tipID      int64
	locationID int64
	success    bool
}

type batchOutcome struct {
	persisted []persistedResult
}

// processBatch sends one batch to the worker with retries, then persists
// every item's outcome, applying the BatchTransportError and
// ItemProcessingError retry/failure policies.
func (c *Coordinator) processBatch(ctx context.Context, batch []domain.Tip) batchOutcome {
	items := make([]workerclient.Item, len(batch))
	byID := make(map[int64]domain.Tip, len(batch))
	for i, t := range batch {
		items[i] = workerclient.Item{ID: t.ID, Text: t.RawText}
		byID[t.ID] = t
	}

	var outcome batchOutcome

	results, err := c.callWithRetry(ctx, items)
	if err != nil {
		c.Log.Error("coordinator: batch exhausted retries, recording failures",
			zap.Int("batch_size", len(batch)), zap.Error(err))
		for _, t := range batch {
			if recErr := c.Gateway.RecordFailure(ctx, t.ID, "batch_exhausted"); recErr != nil {
				c.Log.Error("coordinator: record_failure error", zap.Int64("tip_id", t.ID), zap.Error(recErr))
			}
			outcome.persisted = append(outcome.persisted, persistedResult{tipID: t.ID, locationID: t.LocationID, success: false})
		}
		return outcome
	}

	for _, r := range results {
		tip, ok := byID[r.ID]
		if !ok {
			continue
		}
		if r.Failed() {
			if err := c.Gateway.RecordFailure(ctx, r.ID, r.Error); err != nil {
				c.Log.Error("coordinator: record_failure error", zap.Int64("tip_id", r.ID), zap.Error(err))
			}
			outcome.persisted = append(outcome.persisted, persistedResult{tipID: r.ID, locationID: tip.LocationID, success: false})
			continue
		}

		vec, err := workerclient.ResultToEmbedding(r)
		if err != nil {
			c.Log.Error("coordinator: malformed vector, recording failure", zap.Int64("tip_id", r.ID), zap.Error(err))
			_ = c.Gateway.RecordFailure(ctx, r.ID, "malformed_vector")
			outcome.persisted = append(outcome.persisted, persistedResult{tipID: r.ID, locationID: tip.LocationID, success: false})
			continue
		}

		if err := c.Gateway.RecordResult(ctx, r.ID, r.DetectedLanguage, r.TranslatedText, vec); err != nil {
			c.Log.Error("coordinator: record_result error", zap.Int64("tip_id", r.ID), zap.Error(err))
			outcome.persisted = append(outcome.persisted, persistedResult{tipID: r.ID, locationID: tip.LocationID, success: false})
			continue
		}
		outcome.persisted = append(outcome.persisted, persistedResult{tipID: r.ID, locationID: tip.LocationID, success: true})
	}
	return outcome
}

// callWithRetry retries ProcessBatch on transport/5xx error with
// exponential backoff (base 1s, factor 2, jitter +-20%), up to
// MaxAttemptsPerBatch, via github.com/cenkalti/backoff/v5.
func (c *Coordinator) callWithRetry(ctx context.Context, items []workerclient.Item) ([]workerclient.Result, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.2

	callCtx, cancel := context.WithTimeout(ctx, c.Config.RequestTimeout)
	defer cancel()

	return backoff.Retry(callCtx, func() ([]workerclient.Result, error) {
		results, err := c.Worker.ProcessBatch(callCtx, items)
		if err == nil {
			return results, nil
		}
		var transportErr *workerclient.TransportError
		if errors.As(err, &transportErr) {
			return nil, err // retryable
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(c.Config.MaxAttemptsPerBatch)))
}

func (c *Coordinator) runPromotion(ctx context.Context, locationID int64) error {
	processed, err := c.Gateway.ListProcessed(ctx, locationID)
	if err != nil {
		return fmt.Errorf("list_processed(%d): %w", locationID, err)
	}
	if len(processed) == 0 {
		// PromotionInputEmpty: silent no-op, existing promotions retained.
		return nil
	}

	promotions := promotion.Cluster(processed, c.PromotionCfg)
	now := time.Now()
	stamped := make([]domain.Promotion, len(promotions))
	for i, p := range promotions {
		p.PromotedAt = now
		stamped[i] = p
	}

	if err := c.Gateway.ReplacePromotions(ctx, locationID, stamped); err != nil {
		return fmt.Errorf("replace_promotions(%d): %w", locationID, err)
	}
	return nil
}

// revert compensates tips back to pending using a fresh, short-lived
// context so compensation isn't itself blocked by whatever canceled the
// run's context.
func (c *Coordinator) revert(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Gateway.RevertToPending(ctx, ids)
}

func partition(tips []domain.Tip, size int) [][]domain.Tip {
	if size <= 0 {
		size = len(tips)
	}
	var batches [][]domain.Tip
	for i := 0; i < len(tips); i += size {
		end := i + size
		if end > len(tips) {
			end = len(tips)
		}
		batches = append(batches, tips[i:end])
	}
	return batches
}

func tipIDs(tips []domain.Tip) []int64 {
	ids := make([]int64, len(tips))
	for i, t := range tips {
		ids[i] = t.ID
	}
	return ids
}
