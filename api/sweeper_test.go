package api

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/coin-engine/coin"
	"github.com/warp/coin-engine/coin/store"
)

func TestSweeper_StopIsIdempotent(t *testing.T) {
	bridge := coin.NewBridgeService(store.NewMemory())
	sweeper := NewSweeper(bridge, zerolog.Nop())
	sweeper.CheckInterval = time.Hour

	sweeper.Start()
	sweeper.Stop()

	assert.NotPanics(t, func() { sweeper.Stop() })
}

func TestSweeper_RunNowDeletesExpired(t *testing.T) {
	mem := store.NewMemory()
	bridge := coin.NewBridgeService(mem)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	bridge.Now = func() time.Time { return now }

	_, err := bridge.Stage(context.Background(), coin.StageInput{SessionID: "sess-1", BillAmount: 100})
	require.NoError(t, err)

	now = now.Add(coin.DefaultStagingTTL + time.Minute)

	sweeper := NewSweeper(bridge, zerolog.Nop())
	sweeper.RunNow()

	claimed, err := bridge.Claim(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)
	assert.Nil(t, claimed, "expired record must be gone after the sweep")
}
