package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/monlai-dev/tip-pipeline/internal/domain"
	"github.com/monlai-dev/tip-pipeline/internal/pipeline"
	"github.com/monlai-dev/tip-pipeline/internal/promotion"
	"github.com/monlai-dev/tip-pipeline/internal/storage/memory"
	"github.com/monlai-dev/tip-pipeline/internal/wake"
	"github.com/monlai-dev/tip-pipeline/internal/workerclient"
)

// fakeWorker is a scriptable workerclient.Client for coordinator tests.
type fakeWorker struct {
	healthy    bool
	process    func(items []workerclient.Item) ([]workerclient.Result, error)
	callCount  int
}

func (f *fakeWorker) Health(ctx context.Context) (bool, error) { return f.healthy, nil }

func (f *fakeWorker) ProcessBatch(ctx context.Context, items []workerclient.Item) ([]workerclient.Result, error) {
	f.callCount++
	return f.process(items)
}

type alwaysReadyProber struct{}

func (alwaysReadyProber) Probe(ctx context.Context) (bool, error) { return true, nil }

func successResults(items []workerclient.Item) ([]workerclient.Result, error) {
	results := make([]workerclient.Result, len(items))
	vec := make([]float32, domain.EmbeddingDim)
	vec[0] = 1.0
	for i, it := range items {
		results[i] = workerclient.Result{
			ID:               it.ID,
			DetectedLanguage: "en",
			TranslatedText:   it.Text,
			Vector:           vec,
		}
	}
	return results, nil
}

func newTestCoordinator(gw *memory.Gateway, worker workerclient.Client) *Coordinator {
	return &Coordinator{
		Gateway:      gw,
		Prober:       alwaysReadyProber{},
		WakeConfig:   wake.DefaultConfig(),
		Worker:       worker,
		PromotionCfg: promotion.DefaultConfig(),
		Config:       DefaultConfig(),
		Log:          zap.NewNop(),
	}
}

func TestRun_EmptyQueueReturnsZeroCounts(t *testing.T) {
	gw := memory.New()
	worker := &fakeWorker{healthy: true, process: successResults}
	c := newTestCoordinator(gw, worker)

	stats, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, stats.RunID)
	assert.Zero(t, stats.Claimed)
	assert.Zero(t, stats.Processed)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Promoted)
	assert.Equal(t, 0, worker.callCount)
}

func TestRun_HappyPath_AllProcessed(t *testing.T) {
	gw := memory.New()
	base := time.Now()
	for i := 0; i < 5; i++ {
		gw.SeedTip(1, "tip text", base.Add(time.Duration(i)*time.Second))
	}
	worker := &fakeWorker{healthy: true, process: successResults}
	c := newTestCoordinator(gw, worker)

	stats, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, stats.Claimed)
	assert.Equal(t, 5, stats.Processed)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 1, stats.Promoted) // location 1 had processed tips, promotion attempted

	for i := int64(1); i <= 5; i++ {
		tip, ok := gw.Tip(i)
		require.True(t, ok)
		assert.Equal(t, domain.TipProcessed, tip.Status)
		require.NotNil(t, tip.ProcessedAt)
	}
}

func TestRun_PartialItemFailure(t *testing.T) {
	gw := memory.New()
	base := time.Now()
	for i := 0; i < 4; i++ {
		gw.SeedTip(1, "tip text", base.Add(time.Duration(i)*time.Second))
	}
	worker := &fakeWorker{
		healthy: true,
		process: func(items []workerclient.Item) ([]workerclient.Result, error) {
			results, _ := successResults(items)
			for i, it := range items {
				if it.ID == 2 {
					results[i] = workerclient.Result{ID: it.ID, Error: "translation failed"}
				}
			}
			return results, nil
		},
	}
	c := newTestCoordinator(gw, worker)

	stats, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, stats.Claimed)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.Failed)

	failed, ok := gw.Tip(2)
	require.True(t, ok)
	assert.Equal(t, domain.TipFailed, failed.Status)
	require.NotNil(t, failed.ProcessedAt)
}

func TestRun_WorkerUnreachable_CompensatesToPending(t *testing.T) {
	gw := memory.New()
	base := time.Now()
	for i := 0; i < 3; i++ {
		gw.SeedTip(1, "tip text", base.Add(time.Duration(i)*time.Second))
	}
	worker := &fakeWorker{healthy: false, process: successResults}
	c := newTestCoordinator(gw, worker)
	c.Prober = unhealthyProber{}
	c.Config.WakeEnabled = false

	stats, err := c.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrPipelineAborted)
	assert.Equal(t, 3, stats.Claimed)
	assert.Equal(t, 0, stats.Processed)

	for i := int64(1); i <= 3; i++ {
		tip, ok := gw.Tip(i)
		require.True(t, ok)
		assert.Equal(t, domain.TipPending, tip.Status)
	}
}

type unhealthyProber struct{}

func (unhealthyProber) Probe(ctx context.Context) (bool, error) { return false, nil }

func TestRun_TransientTransportErrorRetriesThenSucceeds(t *testing.T) {
	gw := memory.New()
	gw.SeedTip(1, "tip text", time.Now())

	attempts := 0
	worker := &fakeWorker{
		healthy: true,
		process: func(items []workerclient.Item) ([]workerclient.Result, error) {
			attempts++
			if attempts < 2 {
				return nil, &workerclient.TransportError{Err: context.DeadlineExceeded}
			}
			return successResults(items)
		},
	}
	c := newTestCoordinator(gw, worker)

	stats, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestRun_BatchExhaustsRetries_RecordsFailedBatchExhausted(t *testing.T) {
	gw := memory.New()
	gw.SeedTip(1, "tip text", time.Now())

	worker := &fakeWorker{
		healthy: true,
		process: func(items []workerclient.Item) ([]workerclient.Result, error) {
			return nil, &workerclient.TransportError{Err: context.DeadlineExceeded}
		},
	}
	c := newTestCoordinator(gw, worker)
	c.Config.MaxAttemptsPerBatch = 2

	stats, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	tip, ok := gw.Tip(1)
	require.True(t, ok)
	assert.Equal(t, domain.TipFailed, tip.Status)
}

func TestRun_PerRunLimitZero_NoOp(t *testing.T) {
	gw := memory.New()
	gw.SeedTip(1, "tip text", time.Now())
	worker := &fakeWorker{healthy: true, process: successResults}
	c := newTestCoordinator(gw, worker)
	c.Config.PerRunLimit = 0

	stats, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, stats.RunID)
	assert.Zero(t, stats.Claimed)
	assert.Zero(t, stats.Processed)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Promoted)

	tip, ok := gw.Tip(1)
	require.True(t, ok)
	assert.Equal(t, domain.TipPending, tip.Status)
}
