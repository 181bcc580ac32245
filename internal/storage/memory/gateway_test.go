package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monlai-dev/tip-pipeline/internal/domain"
)

func TestRecordResult_AccumulatesLanguageAttemptsAcrossReprocessing(t *testing.T) {
	g := New()
	id := g.SeedTip(1, "bonjour le monde", time.Now())

	claimed, err := g.ClaimPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Empty(t, claimed[0].LanguageAttempts)

	var vec [domain.EmbeddingDim]float32
	require.NoError(t, g.RecordResult(context.Background(), id, "fra_Latn", "hello world", vec))

	tip, ok := g.Tip(id)
	require.True(t, ok)
	assert.Equal(t, []string{"fra_Latn"}, tip.LanguageAttempts)

	// Simulate an operator moving the processed tip back to pending
	// (RevertToPending only compensates tips still in processing) and a
	// later run reprocessing it with a different guess.
	g.mu.Lock()
	tip.Status = domain.TipPending
	g.tips[id] = tip
	g.mu.Unlock()
	claimed, err = g.ClaimPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, []string{"fra_Latn"}, claimed[0].LanguageAttempts)

	require.NoError(t, g.RecordResult(context.Background(), id, "eng_Latn", "hello world", vec))

	tip, ok = g.Tip(id)
	require.True(t, ok)
	assert.Equal(t, []string{"fra_Latn", "eng_Latn"}, tip.LanguageAttempts)
}

func TestListProcessed_DoesNotLeakLanguageAttemptsIntoProjection(t *testing.T) {
	g := New()
	id := g.SeedTip(1, "hola", time.Now())
	_, err := g.ClaimPending(context.Background(), 10)
	require.NoError(t, err)

	var vec [domain.EmbeddingDim]float32
	require.NoError(t, g.RecordResult(context.Background(), id, "spa_Latn", "hi", vec))

	out, err := g.ListProcessed(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, id, out[0].TipID)
}
