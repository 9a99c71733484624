/*
bridge.go - Pre-authentication staging for receipt submissions

PURPOSE:
  Bill-receipt capture happens before authentication in the product flow.
  The bridge stages receipt data under an opaque, caller-supplied session
  identifier, to be claimed exactly once by an authenticated user. The
  claimer then runs the regular submission workflow with the staged data;
  claim itself never touches the ledger, so no anonymous ledger entries
  exist.

LIFECYCLE:
  stage -> (re-stage updates in place, expiry extended) -> claim (once)
  Expired unclaimed records and claimed records older than the retention
  window are removed by the periodic sweeps.
*/
package coin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Staging defaults.
const (
	DefaultStagingTTL       = 24 * time.Hour
	DefaultClaimedRetention = 7 * 24 * time.Hour
)

// StageInput is the payload an unauthenticated visitor stages.
type StageInput struct {
	SessionID  string
	BrandID    string
	BillAmount int64
	ReceiptRef string
	FileName   string
}

// BridgeService stages and claims pending submissions.
type BridgeService struct {
	Store Store

	// TTL for unclaimed records; ClaimedRetention for claimed ones.
	// Zero values fall back to the defaults.
	TTL              time.Duration
	ClaimedRetention time.Duration

	Now func() time.Time
}

func NewBridgeService(store Store) *BridgeService {
	return &BridgeService{Store: store}
}

func (s *BridgeService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *BridgeService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultStagingTTL
}

func (s *BridgeService) retention() time.Duration {
	if s.ClaimedRetention > 0 {
		return s.ClaimedRetention
	}
	return DefaultClaimedRetention
}

// Stage upserts the staging record for a session. A second stage with the
// same unclaimed session identifier updates the existing record rather than
// creating a duplicate, and extends its expiry.
func (s *BridgeService) Stage(ctx context.Context, in StageInput) (*PendingSubmission, error) {
	if in.SessionID == "" {
		return nil, &kindError{kind: ErrInvalidInput, msg: "session identifier is required"}
	}
	now := s.now()

	var staged PendingSubmission
	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		existing, err := tx.GetPendingSubmission(ctx, in.SessionID)
		switch {
		case err == nil:
			existing.BrandID = in.BrandID
			existing.BillAmount = in.BillAmount
			existing.ReceiptRef = in.ReceiptRef
			existing.FileName = in.FileName
			existing.ExpiresAt = now.Add(s.ttl())
			existing.UpdatedAt = now
			if err := tx.UpdatePendingSubmission(ctx, *existing); err != nil {
				return fmt.Errorf("failed to update staged submission: %w", err)
			}
			staged = *existing
			return nil
		case errors.Is(err, ErrNotFound):
			staged = PendingSubmission{
				ID:         uuid.NewString(),
				SessionID:  in.SessionID,
				BrandID:    in.BrandID,
				BillAmount: in.BillAmount,
				ReceiptRef: in.ReceiptRef,
				FileName:   in.FileName,
				ExpiresAt:  now.Add(s.ttl()),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.InsertPendingSubmission(ctx, staged); err != nil {
				return fmt.Errorf("failed to stage submission: %w", err)
			}
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &staged, nil
}

// Claim attaches the unclaimed staging record for a session to a user,
// irreversibly. Returns nil (no error) when nothing claimable exists: no
// record, already claimed, or expired. An expired record is deleted on the
// way out.
func (s *BridgeService) Claim(ctx context.Context, sessionID, userID string) (*PendingSubmission, error) {
	now := s.now()

	var claimed *PendingSubmission
	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		existing, err := tx.GetPendingSubmission(ctx, sessionID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if existing.Expired(now) {
			return tx.DeletePendingSubmission(ctx, existing.ID)
		}

		existing.Claimed = true
		existing.ClaimedBy = userID
		existing.ClaimedAt = &now
		existing.UpdatedAt = now
		if err := tx.UpdatePendingSubmission(ctx, *existing); err != nil {
			return fmt.Errorf("failed to claim staged submission: %w", err)
		}
		claimed = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// SweepExpired deletes unclaimed records past their expiry.
func (s *BridgeService) SweepExpired(ctx context.Context) (int64, error) {
	return s.Store.DeleteExpiredPendingSubmissions(ctx, s.now())
}

// SweepOldClaimed deletes claimed records older than the retention window.
func (s *BridgeService) SweepOldClaimed(ctx context.Context) (int64, error) {
	return s.Store.DeleteClaimedPendingSubmissionsBefore(ctx, s.now().Add(-s.retention()))
}
