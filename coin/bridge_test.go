package coin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/coin-engine/coin"
	"github.com/warp/coin-engine/coin/store"
)

func newBridgeFixture(t *testing.T) (*coin.BridgeService, *clock) {
	t.Helper()
	clk := &clock{now: testNow}
	bridge := coin.NewBridgeService(store.NewMemory())
	bridge.Now = clk.Now
	return bridge, clk
}

// clock lets tests move time forward.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time            { return c.now }
func (c *clock) Advance(d time.Duration)   { c.now = c.now.Add(d) }

func stageInput(sessionID string) coin.StageInput {
	return coin.StageInput{
		SessionID:  sessionID,
		BrandID:    "brand-1",
		BillAmount: 750,
		ReceiptRef: "receipt-001",
		FileName:   "bill.jpg",
	}
}

// =============================================================================
// STAGING
// =============================================================================

func TestStage_CreatesRecordWithExpiry(t *testing.T) {
	bridge, _ := newBridgeFixture(t)

	staged, err := bridge.Stage(context.Background(), stageInput("sess-1"))
	require.NoError(t, err)

	assert.NotEmpty(t, staged.ID)
	assert.Equal(t, "sess-1", staged.SessionID)
	assert.Equal(t, int64(750), staged.BillAmount)
	assert.False(t, staged.Claimed)
	assert.Equal(t, testNow.Add(coin.DefaultStagingTTL), staged.ExpiresAt)
}

func TestStage_RequiresSession(t *testing.T) {
	bridge, _ := newBridgeFixture(t)

	_, err := bridge.Stage(context.Background(), stageInput(""))
	assert.ErrorIs(t, err, coin.ErrInvalidInput)
}

func TestStage_SameSessionUpdatesInPlace(t *testing.T) {
	// GIVEN: a staged record for a session
	// WHEN: the same session stages again with corrected data
	// THEN: one record exists, updated, with a fresh expiry

	bridge, clk := newBridgeFixture(t)
	ctx := context.Background()

	first, err := bridge.Stage(ctx, stageInput("sess-1"))
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	in := stageInput("sess-1")
	in.BillAmount = 900
	second, err := bridge.Stage(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same record updated, not a second one")
	assert.Equal(t, int64(900), second.BillAmount)
	assert.Equal(t, clk.Now().Add(coin.DefaultStagingTTL), second.ExpiresAt, "expiry extended")
}

// =============================================================================
// CLAIMING
// =============================================================================

func TestClaim_AttachesToUserOnce(t *testing.T) {
	bridge, _ := newBridgeFixture(t)
	ctx := context.Background()

	_, err := bridge.Stage(ctx, stageInput("sess-1"))
	require.NoError(t, err)

	claimed, err := bridge.Claim(ctx, "sess-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.True(t, claimed.Claimed)
	assert.Equal(t, "user-1", claimed.ClaimedBy)
	require.NotNil(t, claimed.ClaimedAt)

	// A second claim, even by the same user, finds nothing
	again, err := bridge.Claim(ctx, "sess-1", "user-2")
	require.NoError(t, err)
	assert.Nil(t, again, "claim is irreversible and single-shot")
}

func TestClaim_UnknownSessionIsNotAnError(t *testing.T) {
	bridge, _ := newBridgeFixture(t)

	claimed, err := bridge.Claim(context.Background(), "no-such-session", "user-1")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestClaim_ExpiredRecordIsDeleted(t *testing.T) {
	bridge, clk := newBridgeFixture(t)
	ctx := context.Background()

	_, err := bridge.Stage(ctx, stageInput("sess-1"))
	require.NoError(t, err)

	clk.Advance(coin.DefaultStagingTTL + time.Minute)

	claimed, err := bridge.Claim(ctx, "sess-1", "user-1")
	require.NoError(t, err)
	assert.Nil(t, claimed, "expired data must not be claimable")

	// The record is gone: staging the session again starts fresh
	clk.Advance(time.Minute)
	staged, err := bridge.Stage(ctx, stageInput("sess-1"))
	require.NoError(t, err)
	assert.False(t, staged.Claimed)
	assert.Equal(t, clk.Now().Add(coin.DefaultStagingTTL), staged.ExpiresAt)
}

func TestStage_AfterClaimStartsNewRecord(t *testing.T) {
	// A claimed record is frozen; the same session staging again gets a new
	// unclaimed record rather than mutating the claimed one.

	bridge, _ := newBridgeFixture(t)
	ctx := context.Background()

	first, err := bridge.Stage(ctx, stageInput("sess-1"))
	require.NoError(t, err)

	_, err = bridge.Claim(ctx, "sess-1", "user-1")
	require.NoError(t, err)

	second, err := bridge.Stage(ctx, stageInput("sess-1"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, second.Claimed)
}

// =============================================================================
// SWEEPS
// =============================================================================

func TestSweepExpired_DeletesOnlyExpiredUnclaimed(t *testing.T) {
	bridge, clk := newBridgeFixture(t)
	ctx := context.Background()

	_, err := bridge.Stage(ctx, stageInput("sess-old"))
	require.NoError(t, err)

	clk.Advance(20 * time.Hour)
	_, err = bridge.Stage(ctx, stageInput("sess-fresh"))
	require.NoError(t, err)

	// sess-old expires at +24h; move past it but keep sess-fresh alive
	clk.Advance(5 * time.Hour)

	deleted, err := bridge.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// The swept session is gone for good
	gone, err := bridge.Claim(ctx, "sess-old", "user-1")
	require.NoError(t, err)
	assert.Nil(t, gone, "swept record must not be claimable")

	fresh, err := bridge.Claim(ctx, "sess-fresh", "user-1")
	require.NoError(t, err)
	assert.NotNil(t, fresh, "unexpired record survives the sweep")
}

func TestSweepOldClaimed_RespectsRetention(t *testing.T) {
	bridge, clk := newBridgeFixture(t)
	ctx := context.Background()

	_, err := bridge.Stage(ctx, stageInput("sess-1"))
	require.NoError(t, err)
	_, err = bridge.Claim(ctx, "sess-1", "user-1")
	require.NoError(t, err)

	// Within retention: nothing to delete
	clk.Advance(6 * 24 * time.Hour)
	deleted, err := bridge.SweepOldClaimed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	// Past retention: the claimed record goes
	clk.Advance(2 * 24 * time.Hour)
	deleted, err = bridge.SweepOldClaimed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
