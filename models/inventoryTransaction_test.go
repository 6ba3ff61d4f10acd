package models_test

import (
	"testing"
	"time"

	"github.com/rasamasa/franchise_backend/models"
	"github.com/shopspring/decimal"
)

func TestNormalizeTransactionQty(t *testing.T) {
	cases := []struct {
		name    string
		kind    models.TransactionKind
		in      string
		want    string
		wantErr bool
	}{
		{"in keeps magnitude", models.TransactionKindIn, "10", "10", false},
		{"in rejects zero", models.TransactionKindIn, "0", "", true},
		{"in rejects negative", models.TransactionKindIn, "-4", "", true},
		{"out negates magnitude", models.TransactionKindOut, "4", "-4", false},
		{"out rejects negative input", models.TransactionKindOut, "-4", "", true},
		{"spoilage negates magnitude", models.TransactionKindSpoilage, "1.5", "-1.5", false},
		{"spoilage rejects zero", models.TransactionKindSpoilage, "0", "", true},
		{"adjustment keeps positive sign", models.TransactionKindAdjustment, "2.25", "2.25", false},
		{"adjustment keeps negative sign", models.TransactionKindAdjustment, "-2.25", "-2.25", false},
		{"adjustment rejects zero", models.TransactionKindAdjustment, "0", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := models.NormalizeTransactionQty(tc.kind, decimal.RequireFromString(tc.in))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("NormalizeTransactionQty(%s, %s) = %s, want error", tc.kind, tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeTransactionQty(%s, %s): %v", tc.kind, tc.in, err)
			}
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("NormalizeTransactionQty(%s, %s) = %s, want %s", tc.kind, tc.in, got, tc.want)
			}
		})
	}
}

func TestFormatTransactionCode(t *testing.T) {
	date := time.Date(2026, 3, 9, 15, 4, 5, 0, time.UTC)

	got := models.FormatTransactionCode(date, "JKT01", 7, models.TransactionKindSpoilage)
	if got != "INVTRX260309JKT01-007-SPL" {
		t.Fatalf("code = %q, want INVTRX260309JKT01-007-SPL", got)
	}

	// sequence is padded to three digits but not truncated beyond
	got = models.FormatTransactionCode(date, "SB", 1042, models.TransactionKindIn)
	if got != "INVTRX260309SB-1042-IN" {
		t.Fatalf("code = %q, want INVTRX260309SB-1042-IN", got)
	}
}

func TestLedgerCounterKeyResetsDaily(t *testing.T) {
	day1 := time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC)

	if k1, k2 := models.LedgerCounterKey(day1, "JKT"), models.LedgerCounterKey(day2, "JKT"); k1 == k2 {
		t.Fatalf("counter keys for different days collide: %s", k1)
	}
	if k1, k2 := models.LedgerCounterKey(day1, "JKT"), models.LedgerCounterKey(day1, "BDG"); k1 == k2 {
		t.Fatalf("counter keys for different outlets collide: %s", k1)
	}
}

func TestDeriveOrderStatus(t *testing.T) {
	accepted := func(v bool) *bool { return &v }

	none := []*models.OrderItem{{IsAccepted: accepted(false)}, {IsAccepted: accepted(false)}}
	if got := models.DeriveOrderStatus(none); got != models.OrderStatusPending {
		t.Fatalf("no accepts = %s, want PENDING", got)
	}
	some := []*models.OrderItem{{IsAccepted: accepted(true)}, {IsAccepted: accepted(false)}}
	if got := models.DeriveOrderStatus(some); got != models.OrderStatusPartial {
		t.Fatalf("some accepts = %s, want PARTIAL", got)
	}
	all := []*models.OrderItem{{IsAccepted: accepted(true)}, {IsAccepted: accepted(true)}}
	if got := models.DeriveOrderStatus(all); got != models.OrderStatusCompleted {
		t.Fatalf("all accepts = %s, want COMPLETED", got)
	}
	if got := models.DeriveOrderStatus(nil); got != models.OrderStatusPending {
		t.Fatalf("empty order = %s, want PENDING", got)
	}
}

func TestValidateOutletStockUpdateGuardsQuantities(t *testing.T) {
	allowed := map[string]interface{}{"notes": "counted during closing shift"}
	if err := models.ValidateOutletStockUpdate(allowed); err != nil {
		t.Fatalf("notes patch rejected: %v", err)
	}

	for _, key := range []string{"ingredients", "current_qty", "CurrentQty", " qty ", "quantity", "last_quantity_updated"} {
		patch := map[string]interface{}{key: "5"}
		if err := models.ValidateOutletStockUpdate(patch); err == nil {
			t.Fatalf("patch with key %q was not rejected", key)
		}
	}
}
