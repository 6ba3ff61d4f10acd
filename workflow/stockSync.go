package workflow

import (
	"context"
	"errors"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/models"
	"github.com/rasamasa/franchise_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// claimTransactionForCalculation flips is_calculated inside tx and reports
// whether this caller won. The WHERE clause carries the old flag value, so
// when the immediate sync and the repair sweep race over the same entry only
// one of them gets RowsAffected=1 and applies the delta.
func claimTransactionForCalculation(tx *gorm.DB, trxId int) (bool, error) {
	res := tx.Exec(
		"UPDATE inventory_transactions "+
			"SET is_calculated = 1, calculated_at = NOW(), updated_at = NOW() "+
			"WHERE id = ? AND is_calculated = 0 AND is_valid = 1 AND is_deleted = 0",
		trxId,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CalculateTransaction folds one ledger entry into the outlet stock inside
// the caller's tx. Safe to call for an already-applied entry; it becomes a
// no-op through the claim.
func CalculateTransaction(tx *gorm.DB, trx *models.InventoryTransaction, actorName string) error {
	claimed, err := claimTransactionForCalculation(tx, trx.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	outlet := models.Outlet{ID: trx.OutletId, Name: trx.OutletName}
	if _, err := models.FirstOrCreateOutletStock(tx, &outlet); err != nil {
		return err
	}
	return models.SyncTransactionToStock(tx, trx, actorName)
}

// SyncInventoryTransaction drives one entry through claim-and-apply in its
// own DB transaction. Both the creation path and the repair sweep call this.
func SyncInventoryTransaction(ctx context.Context, logger *logrus.Logger, trxId int, actorName string) error {
	if logger == nil {
		logger = config.GetLogger()
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	trx, err := models.FetchTransactionForChange(tx, trxId)
	if err != nil {
		tx.Rollback()
		return err
	}
	if trx.IsValid == nil || !*trx.IsValid {
		tx.Rollback()
		return errors.New("transaction is not valid")
	}
	if err := CalculateTransaction(tx, trx, actorName); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// RecordInventoryTransaction creates a ledger entry and immediately tries to
// fold it into the stock snapshot. The entry commit and the stock sync are
// separate transactions on purpose: a sync failure must not lose the entry.
// An unsynced entry stays is_calculated=0 and the repair sweep picks it up.
func RecordInventoryTransaction(ctx context.Context, logger *logrus.Logger, input *models.NewInventoryTransaction) (*models.InventoryTransaction, error) {
	if logger == nil {
		logger = config.GetLogger()
	}

	trx, err := models.CreateInventoryTransaction(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := SyncInventoryTransaction(ctx, logger, trx.ID, trx.CreatedByName); err != nil {
		logger.WithFields(logrus.Fields{
			"transaction_id":   trx.ID,
			"transaction_code": trx.Code,
			"outlet_id":        trx.OutletId,
			"error":            err.Error(),
		}).Warn("inv.sync.deferred")
	}

	return models.GetInventoryTransaction(ctx, trx.ID)
}

// SetTransactionValidity toggles is_valid on an entry and keeps the stock
// snapshot consistent with the new state. Invalidating a calculated entry
// reverses its delta; re-validating applies it again. Toggling to the
// current state is a no-op.
func SetTransactionValidity(ctx context.Context, logger *logrus.Logger, trxId int, desired bool) (*models.InventoryTransaction, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	_, actorName, err := models.GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	trx, err := models.FetchTransactionForChange(tx, trxId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	current := trx.IsValid != nil && *trx.IsValid
	if current == desired {
		tx.Rollback()
		return trx, nil
	}

	wasCalculated := trx.IsCalculated != nil && *trx.IsCalculated
	if !desired && wasCalculated {
		if err := models.ReverseTransactionFromStock(tx, trx, actorName); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// either direction resets is_calculated; re-validated entries get
	// re-applied below or by the sweep
	if err := tx.Model(trx).Updates(map[string]interface{}{
		"IsValid":      desired,
		"ValidatedAt":  gorm.Expr("NOW()"),
		"IsCalculated": false,
		"CalculatedAt": nil,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if desired {
		if err := SyncInventoryTransaction(ctx, logger, trxId, actorName); err != nil {
			logger.WithFields(logrus.Fields{
				"transaction_id": trxId,
				"error":          err.Error(),
			}).Warn("inv.sync.deferred")
		}
	}

	return models.GetInventoryTransaction(ctx, trxId)
}

// DeleteInventoryTransaction soft-deletes a ledger entry, reversing its
// stock effect first when it had been applied. Rows never leave the table.
func DeleteInventoryTransaction(ctx context.Context, logger *logrus.Logger, trxId int) (*models.InventoryTransaction, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	_, actorName, err := models.GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	trx, err := models.FetchTransactionForChange(tx, trxId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	isValid := trx.IsValid != nil && *trx.IsValid
	isCalculated := trx.IsCalculated != nil && *trx.IsCalculated
	if isValid && isCalculated {
		if err := models.ReverseTransactionFromStock(tx, trx, actorName); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Model(trx).Updates(map[string]interface{}{
		"IsValid":      false,
		"IsCalculated": false,
		"IsDeleted":    true,
		"DeletedAt":    gorm.Expr("NOW()"),
		"DeletedBy":    actorName,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"transaction_id":   trx.ID,
		"transaction_code": trx.Code,
		"outlet_id":        trx.OutletId,
		"deleted_by":       actorName,
	}).Info("inv.trx.deleted")

	trx.IsValid = utils.NewFalse()
	trx.IsCalculated = utils.NewFalse()
	trx.IsDeleted = utils.NewTrue()
	return trx, nil
}
