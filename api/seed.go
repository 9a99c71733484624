/*
seed.go - Demo data for local development

PURPOSE:
  Populates a fresh database with a small brand catalog and a couple of
  users so the API is usable immediately after first start. Intended for
  local development only, behind the -seed flag.

SEE ALSO:
  - cmd/server/main.go: wires the -seed flag
*/
package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/coin-engine/coin"
)

// Seed inserts demo brands and users. Safe to call on an already seeded
// database: existing records are left alone.
func Seed(ctx context.Context, store coin.Store) error {
	brands := []coin.Brand{
		{
			ID:                      "brand-coffee",
			Name:                    "Daily Grind Coffee",
			Category:                "food",
			Active:                  true,
			EarningPercentage:       decimal.NewFromInt(10),
			RedemptionPercentage:    decimal.NewFromInt(20),
			MaxEarnPerTransaction:   500,
			MaxRedeemPerTransaction: 200,
			MinRedemption:           10,
		},
		{
			ID:                   "brand-grocer",
			Name:                 "Corner Grocer",
			Category:             "grocery",
			Active:               true,
			EarningPercentage:    decimal.NewFromFloat(2.5),
			RedemptionPercentage: decimal.NewFromInt(10),
			MaxRedemption:        1000,
		},
		{
			ID:                "brand-retired",
			Name:              "Closed Outlet",
			Category:          "retail",
			Active:            false,
			EarningPercentage: decimal.NewFromInt(5),
		},
	}

	users := []coin.User{
		{ID: "user-demo", Name: "Demo User", Email: "demo@example.com"},
		{ID: "user-admin", Name: "Demo Admin", Email: "admin@example.com"},
	}

	for _, b := range brands {
		if _, err := store.GetBrand(ctx, b.ID); err == nil {
			continue
		} else if !errors.Is(err, coin.ErrNotFound) {
			return fmt.Errorf("checking brand %s: %w", b.ID, err)
		}
		if err := store.CreateBrand(ctx, b); err != nil {
			return fmt.Errorf("seeding brand %s: %w", b.ID, err)
		}
	}

	for _, u := range users {
		if _, err := store.GetUser(ctx, u.ID); err == nil {
			continue
		} else if !errors.Is(err, coin.ErrNotFound) {
			return fmt.Errorf("checking user %s: %w", u.ID, err)
		}
		if err := store.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("seeding user %s: %w", u.ID, err)
		}
	}

	return nil
}
