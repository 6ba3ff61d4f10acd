package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/models"
	"github.com/rasamasa/franchise_backend/utils"
	"github.com/rasamasa/franchise_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func stockQty(t *testing.T, ctx context.Context, outletId, ingredientId int) decimal.Decimal {
	t.Helper()
	stock, err := models.GetOutletStock(ctx, outletId)
	if err != nil {
		t.Fatalf("GetOutletStock: %v", err)
	}
	for _, line := range stock.Ingredients {
		if line.IngredientId == ingredientId {
			return line.CurrentQty
		}
	}
	return decimal.Zero
}

func TestRecordTransactionsUpdateSnapshot(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	outlet, ingredient := seedOutletAndIngredient(t, ctx, "JKT")
	logger := logrus.New()

	in, err := workflow.RecordInventoryTransaction(ctx, logger, &models.NewInventoryTransaction{
		IngredientId: ingredient.ID,
		OutletId:     outlet.ID,
		Kind:         "IN",
		Qty:          "10",
	})
	if err != nil {
		t.Fatalf("record IN: %v", err)
	}
	out, err := workflow.RecordInventoryTransaction(ctx, logger, &models.NewInventoryTransaction{
		IngredientId: ingredient.ID,
		OutletId:     outlet.ID,
		Kind:         "OUT",
		Qty:          "4",
	})
	if err != nil {
		t.Fatalf("record OUT: %v", err)
	}

	// codes: daily sequence shared per outlet, kind abbreviation per entry
	wantPrefix := fmt.Sprintf("INVTRX%sJKT", time.Now().UTC().Format("060102"))
	if in.Code != wantPrefix+"-001-IN" {
		t.Fatalf("IN code = %q, want %q", in.Code, wantPrefix+"-001-IN")
	}
	if out.Code != wantPrefix+"-002-OUT" {
		t.Fatalf("OUT code = %q, want %q", out.Code, wantPrefix+"-002-OUT")
	}

	// stored qty is signed
	if !in.Qty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("IN stored qty = %s, want 10", in.Qty)
	}
	if !out.Qty.Equal(decimal.NewFromInt(-4)) {
		t.Fatalf("OUT stored qty = %s, want -4", out.Qty)
	}
	if in.IsCalculated == nil || !*in.IsCalculated {
		t.Fatalf("IN entry not marked calculated after immediate sync")
	}

	if qty := stockQty(t, ctx, outlet.ID, ingredient.ID); !qty.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("snapshot qty = %s, want 6", qty)
	}
}

func TestInvalidateRevalidateRoundTrip(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	outlet, ingredient := seedOutletAndIngredient(t, ctx, "BDG")
	logger := logrus.New()

	trx, err := workflow.RecordInventoryTransaction(ctx, logger, &models.NewInventoryTransaction{
		IngredientId: ingredient.ID,
		OutletId:     outlet.ID,
		Kind:         "IN",
		Qty:          "7.5",
	})
	if err != nil {
		t.Fatalf("record IN: %v", err)
	}

	if _, err := workflow.SetTransactionValidity(ctx, logger, trx.ID, false); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if qty := stockQty(t, ctx, outlet.ID, ingredient.ID); !qty.IsZero() {
		t.Fatalf("qty after invalidate = %s, want 0", qty)
	}

	// invalidating twice is a no-op
	if _, err := workflow.SetTransactionValidity(ctx, logger, trx.ID, false); err != nil {
		t.Fatalf("double invalidate: %v", err)
	}
	if qty := stockQty(t, ctx, outlet.ID, ingredient.ID); !qty.IsZero() {
		t.Fatalf("qty after double invalidate = %s, want 0", qty)
	}

	restored, err := workflow.SetTransactionValidity(ctx, logger, trx.ID, true)
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if restored.IsValid == nil || !*restored.IsValid {
		t.Fatalf("entry not valid after revalidate")
	}
	want := decimal.RequireFromString("7.5")
	if qty := stockQty(t, ctx, outlet.ID, ingredient.ID); !qty.Equal(want) {
		t.Fatalf("qty after revalidate = %s, want 7.5", qty)
	}
}

func TestDeleteTransactionReversesStock(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	outlet, ingredient := seedOutletAndIngredient(t, ctx, "SBY")
	logger := logrus.New()

	trx, err := workflow.RecordInventoryTransaction(ctx, logger, &models.NewInventoryTransaction{
		IngredientId: ingredient.ID,
		OutletId:     outlet.ID,
		Kind:         "ADJUSTMENT",
		Qty:          "-3",
	})
	if err != nil {
		t.Fatalf("record ADJUSTMENT: %v", err)
	}
	if qty := stockQty(t, ctx, outlet.ID, ingredient.ID); !qty.Equal(decimal.NewFromInt(-3)) {
		t.Fatalf("qty after adjustment = %s, want -3", qty)
	}

	deleted, err := workflow.DeleteInventoryTransaction(ctx, logger, trx.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.IsDeleted == nil || !*deleted.IsDeleted {
		t.Fatalf("entry not marked deleted")
	}
	if qty := stockQty(t, ctx, outlet.ID, ingredient.ID); !qty.IsZero() {
		t.Fatalf("qty after delete = %s, want 0", qty)
	}

	// soft-deleted entries disappear from reads but the row survives
	if _, err := models.GetInventoryTransaction(ctx, trx.ID); err == nil {
		t.Fatalf("deleted entry still readable")
	}
}

func TestConcurrentRecordsSameIngredient(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	outlet, ingredient := seedOutletAndIngredient(t, ctx, "MDN")
	logger := logrus.New()

	const workers = 10
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	codeCh := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trx, err := workflow.RecordInventoryTransaction(ctx, logger, &models.NewInventoryTransaction{
				IngredientId: ingredient.ID,
				OutletId:     outlet.ID,
				Kind:         "IN",
				Qty:          "1",
			})
			if err != nil {
				errCh <- err
				return
			}
			codeCh <- trx.Code
		}()
	}
	wg.Wait()
	close(errCh)
	close(codeCh)
	for err := range errCh {
		t.Fatalf("concurrent record: %v", err)
	}

	codes := map[string]bool{}
	for code := range codeCh {
		if codes[code] {
			t.Fatalf("duplicate code handed out: %s", code)
		}
		codes[code] = true
	}
	if len(codes) != workers {
		t.Fatalf("got %d codes, want %d", len(codes), workers)
	}

	// no lost updates under concurrency
	if qty := stockQty(t, ctx, outlet.ID, ingredient.ID); !qty.Equal(decimal.NewFromInt(workers)) {
		t.Fatalf("qty after concurrent records = %s, want %d", qty, workers)
	}
}

func TestRepairSweepPicksUpUnsyncedEntry(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	outlet, ingredient := seedOutletAndIngredient(t, ctx, "DPS")
	logger := logrus.New()

	// create the entry without driving the sync, simulating a sync failure
	trx, err := models.CreateInventoryTransaction(ctx, &models.NewInventoryTransaction{
		IngredientId: ingredient.ID,
		OutletId:     outlet.ID,
		Kind:         "IN",
		Qty:          "5",
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if trx.IsCalculated != nil && *trx.IsCalculated {
		t.Fatalf("entry unexpectedly calculated before sweep")
	}

	repaired, err := workflow.RunRepairSweep(ctx, logger)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("sweep repaired %d entries, want 1", repaired)
	}
	if qty := stockQty(t, ctx, outlet.ID, ingredient.ID); !qty.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("qty after sweep = %s, want 5", qty)
	}

	// a second sweep must not double-apply
	repaired, err = workflow.RunRepairSweep(ctx, logger)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if repaired != 0 {
		t.Fatalf("second sweep repaired %d entries, want 0", repaired)
	}
	if qty := stockQty(t, ctx, outlet.ID, ingredient.ID); !qty.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("qty after second sweep = %s, want 5", qty)
	}
}

func TestSweepRefreshesIngredientSnapshot(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	outlet, ingredient := seedOutletAndIngredient(t, ctx, "BKS")
	logger := logrus.New()

	// entry created before the master changed, not yet synced
	if _, err := models.CreateInventoryTransaction(ctx, &models.NewInventoryTransaction{
		IngredientId: ingredient.ID,
		OutletId:     outlet.ID,
		Kind:         "IN",
		Qty:          "5",
	}); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := models.UpdateIngredient(ctx, ingredient.ID, &models.NewIngredient{
		Name:  "Bread Flour BKS",
		Unit:  "kg",
		Price: utils.Numeric("42"),
	}); err != nil {
		t.Fatalf("update ingredient: %v", err)
	}

	if _, err := workflow.RunRepairSweep(ctx, logger); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	// re-driving an old entry must stamp the live master, not the entry's
	// creation-time snapshot
	stock, err := models.GetOutletStock(ctx, outlet.ID)
	if err != nil {
		t.Fatalf("GetOutletStock: %v", err)
	}
	var line *models.OutletStockIngredient
	for _, l := range stock.Ingredients {
		if l.IngredientId == ingredient.ID {
			line = l
		}
	}
	if line == nil {
		t.Fatalf("no snapshot line for ingredient %d", ingredient.ID)
	}
	if line.IngredientName != "Bread Flour BKS" {
		t.Fatalf("line name = %q, want %q", line.IngredientName, "Bread Flour BKS")
	}
	if !line.Price.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("line price = %s, want 42", line.Price)
	}
}

func TestDeleteOutletRetiresSnapshot(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	outlet, ingredient := seedOutletAndIngredient(t, ctx, "YGY")
	logger := logrus.New()

	// stock must net to zero before the outlet can go
	for _, rec := range []struct{ kind, qty string }{
		{"IN", "5"},
		{"OUT", "5"},
	} {
		if _, err := workflow.RecordInventoryTransaction(ctx, logger, &models.NewInventoryTransaction{
			IngredientId: ingredient.ID,
			OutletId:     outlet.ID,
			Kind:         rec.kind,
			Qty:          utils.Numeric(rec.qty),
		}); err != nil {
			t.Fatalf("record %s %s: %v", rec.kind, rec.qty, err)
		}
	}

	if _, err := models.DeleteOutlet(ctx, outlet.ID); err != nil {
		t.Fatalf("delete outlet: %v", err)
	}

	// the snapshot follows the outlet: gone from reads, row kept with markers
	if _, err := models.GetOutletStock(ctx, outlet.ID); err == nil {
		t.Fatalf("snapshot of a deleted outlet still readable")
	}
	var stock models.OutletStock
	if err := config.GetDB().Where("outlet_id = ?", outlet.ID).First(&stock).Error; err != nil {
		t.Fatalf("fetch raw snapshot row: %v", err)
	}
	if stock.IsDeleted == nil || !*stock.IsDeleted {
		t.Fatalf("snapshot header not marked deleted")
	}
	if stock.DeletedAt == nil || stock.DeletedBy != "Test Admin" {
		t.Fatalf("snapshot deletion markers = (%v, %q), want a timestamp and %q",
			stock.DeletedAt, stock.DeletedBy, "Test Admin")
	}
}
