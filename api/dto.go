/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupled from the domain types.
  One explicit response schema per operation; no ad hoc envelope unwrapping.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
*/
package api

import (
	"time"

	"github.com/warp/coin-engine/coin"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type SubmitRewardRequest struct {
	BrandID       string `json:"brand_id"`
	BillAmount    int64  `json:"bill_amount"`
	BillDate      string `json:"bill_date"` // YYYY-MM-DD
	ReceiptRef    string `json:"receipt_ref"`
	CoinsToRedeem int64  `json:"coins_to_redeem,omitempty"`
	PayoutID      string `json:"payout_id,omitempty"`
}

type AdjustBalanceRequest struct {
	UserID string `json:"user_id"`
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

type ApproveRequest struct {
	Note string `json:"note,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type MarkPaidRequest struct {
	PaymentRef string `json:"payment_ref"`
	Note       string `json:"note,omitempty"`
}

type StageSubmissionRequest struct {
	SessionID  string `json:"session_id"`
	BrandID    string `json:"brand_id"`
	BillAmount int64  `json:"bill_amount"`
	ReceiptRef string `json:"receipt_ref"`
	FileName   string `json:"file_name,omitempty"`
}

type ClaimSubmissionRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type CreateUserRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type CreateBrandRequest struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	Category                string `json:"category,omitempty"`
	Active                  bool   `json:"active"`
	EarningPercentage       string `json:"earning_percentage"`    // e.g. "10" or "2.5"
	RedemptionPercentage    string `json:"redemption_percentage"` // e.g. "50"
	MaxEarnPerTransaction   int64  `json:"max_earn_per_tx,omitempty"`
	MaxRedeemPerTransaction int64  `json:"max_redeem_per_tx,omitempty"`
	MinRedemption           int64  `json:"min_redemption,omitempty"`
	MaxRedemption           int64  `json:"max_redemption,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type BalanceDTO struct {
	UserID        string `json:"user_id"`
	Balance       int64  `json:"balance"`
	TotalEarned   int64  `json:"total_earned"`
	TotalRedeemed int64  `json:"total_redeemed"`
}

type TransactionDTO struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	BrandID         string `json:"brand_id,omitempty"`
	Type            string `json:"type"`
	Status          string `json:"status"`
	BillAmount      int64  `json:"bill_amount,omitempty"`
	BillDate        string `json:"bill_date,omitempty"`
	ReceiptRef      string `json:"receipt_ref,omitempty"`
	CoinsEarned     int64  `json:"coins_earned"`
	CoinsRedeemed   int64  `json:"coins_redeemed"`
	PreviousBalance int64  `json:"previous_balance"`
	Amount          int64  `json:"amount"`
	PayoutID        string `json:"payout_id,omitempty"`
	AdminNotes      string `json:"admin_notes,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	PaymentRef      string `json:"payment_ref,omitempty"`
	CreatedAt       string `json:"created_at"`
	ProcessedAt     string `json:"processed_at,omitempty"`
}

// SubmitResultDTO pairs the created transaction with the post-submission
// balance, so clients never compute balances themselves.
type SubmitResultDTO struct {
	Transaction TransactionDTO `json:"transaction"`
	NewBalance  BalanceDTO     `json:"new_balance"`
}

type PendingSubmissionDTO struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	BrandID    string `json:"brand_id,omitempty"`
	BillAmount int64  `json:"bill_amount"`
	ReceiptRef string `json:"receipt_ref,omitempty"`
	FileName   string `json:"file_name,omitempty"`
	ExpiresAt  string `json:"expires_at"`
	Claimed    bool   `json:"claimed"`
	ClaimedBy  string `json:"claimed_by,omitempty"`
}

type BrandDTO struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	Category                string `json:"category,omitempty"`
	Active                  bool   `json:"active"`
	EarningPercentage       string `json:"earning_percentage"`
	RedemptionPercentage    string `json:"redemption_percentage"`
	MaxEarnPerTransaction   int64  `json:"max_earn_per_tx,omitempty"`
	MaxRedeemPerTransaction int64  `json:"max_redeem_per_tx,omitempty"`
	MinRedemption           int64  `json:"min_redemption,omitempty"`
	MaxRedemption           int64  `json:"max_redemption,omitempty"`
}

type SweepResultDTO struct {
	Expired    int64 `json:"expired"`
	OldClaimed int64 `json:"old_claimed"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toBalanceDTO(b coin.Balance) BalanceDTO {
	return BalanceDTO{
		UserID:        b.UserID,
		Balance:       b.Coins,
		TotalEarned:   b.TotalEarned,
		TotalRedeemed: b.TotalRedeemed,
	}
}

func toTransactionDTO(t coin.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:              t.ID,
		UserID:          t.UserID,
		BrandID:         t.BrandID,
		Type:            string(t.Type),
		Status:          string(t.Status),
		BillAmount:      t.BillAmount,
		ReceiptRef:      t.ReceiptRef,
		CoinsEarned:     t.CoinsEarned,
		CoinsRedeemed:   t.CoinsRedeemed,
		PreviousBalance: t.PreviousBalance,
		Amount:          t.Amount,
		PayoutID:        t.PayoutID,
		AdminNotes:      t.AdminNotes,
		RejectionReason: t.RejectionReason,
		PaymentRef:      t.PaymentRef,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
	}
	if !t.BillDate.IsZero() {
		dto.BillDate = t.BillDate.Format("2006-01-02")
	}
	if t.ProcessedAt != nil {
		dto.ProcessedAt = t.ProcessedAt.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTOs(txs []coin.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, t := range txs {
		dtos = append(dtos, toTransactionDTO(t))
	}
	return dtos
}

func toPendingSubmissionDTO(p coin.PendingSubmission) PendingSubmissionDTO {
	return PendingSubmissionDTO{
		ID:         p.ID,
		SessionID:  p.SessionID,
		BrandID:    p.BrandID,
		BillAmount: p.BillAmount,
		ReceiptRef: p.ReceiptRef,
		FileName:   p.FileName,
		ExpiresAt:  p.ExpiresAt.Format(time.RFC3339),
		Claimed:    p.Claimed,
		ClaimedBy:  p.ClaimedBy,
	}
}

func toBrandDTO(b coin.Brand) BrandDTO {
	return BrandDTO{
		ID:                      b.ID,
		Name:                    b.Name,
		Category:                b.Category,
		Active:                  b.Active,
		EarningPercentage:       b.EarningPercentage.String(),
		RedemptionPercentage:    b.RedemptionPercentage.String(),
		MaxEarnPerTransaction:   b.MaxEarnPerTransaction,
		MaxRedeemPerTransaction: b.MaxRedeemPerTransaction,
		MinRedemption:           b.MinRedemption,
		MaxRedemption:           b.MaxRedemption,
	}
}
