package wake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/monlai-dev/tip-pipeline/internal/pipeline"
)

type fakeProber struct {
	responses []bool
	calls     int
}

func (f *fakeProber) Probe(ctx context.Context) (bool, error) {
	if f.calls >= len(f.responses) {
		return false, nil
	}
	v := f.responses[f.calls]
	f.calls++
	return v, nil
}

func TestEnsure_AlreadyReady(t *testing.T) {
	prober := &fakeProber{responses: []bool{true}}
	log := zap.NewNop()

	state, err := Ensure(context.Background(), prober, DefaultConfig(), log)

	require.NoError(t, err)
	assert.Equal(t, StateReady, state)
	assert.Equal(t, 1, prober.calls)
}

func TestEnsure_WakeDisabled_NotReady(t *testing.T) {
	prober := &fakeProber{responses: []bool{false}}
	cfg := DefaultConfig()
	cfg.Enabled = false
	log := zap.NewNop()

	state, err := Ensure(context.Background(), prober, cfg, log)

	require.Error(t, err)
	assert.True(t, pipeline.Is(err, pipeline.KindWorkerUnavailable))
	assert.Equal(t, StateUnreachable, state)
}

func TestEnsure_WakesAndBecomesReadyOnPoll(t *testing.T) {
	prober := &fakeProber{responses: []bool{false, false, true}}
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.MAC = "AA:BB:CC:DD:EE:FF"
	cfg.BroadcastIP = "127.255.255.255"
	cfg.PollInterval = 10 * time.Millisecond
	cfg.PollTimeout = time.Second
	cfg.WakeInterval = time.Millisecond
	log := zap.NewNop()

	state, err := Ensure(context.Background(), prober, cfg, log)

	require.NoError(t, err)
	assert.Equal(t, StateReady, state)
}

func TestEnsure_PollWindowExpires(t *testing.T) {
	prober := &fakeProber{responses: []bool{false}}
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.MAC = "AA:BB:CC:DD:EE:FF"
	cfg.BroadcastIP = "127.255.255.255"
	cfg.PollInterval = 5 * time.Millisecond
	cfg.PollTimeout = 30 * time.Millisecond
	cfg.WakeInterval = time.Millisecond
	log := zap.NewNop()

	state, err := Ensure(context.Background(), prober, cfg, log)

	require.Error(t, err)
	assert.True(t, pipeline.Is(err, pipeline.KindWorkerUnavailable))
	assert.Equal(t, StateUnreachable, state)
}

func TestBuildMagicPacket(t *testing.T) {
	packet, err := buildMagicPacket("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.Len(t, packet, 102)

	for i := 0; i < 6; i++ {
		assert.Equal(t, byte(0xFF), packet[i])
	}
	mac := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	for rep := 0; rep < 16; rep++ {
		offset := 6 + rep*6
		assert.Equal(t, mac, packet[offset:offset+6])
	}
}

func TestParseMAC_Invalid(t *testing.T) {
	_, err := parseMAC("not-a-mac")
	assert.Error(t, err)
}
