package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/models"
	"github.com/sirupsen/logrus"
)

// AcceptOrderItem confirms physical receipt of one order line at the outlet.
// It records an IN ledger entry referencing the order code, folds it into the
// stock snapshot, links the entry to the item, and re-derives the order
// status, all in one DB transaction. If the stock sync fails here the whole
// acceptance aborts; unlike manual entries, acceptance has no partial state.
func AcceptOrderItem(ctx context.Context, logger *logrus.Logger, itemId int) (*models.OrderItem, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	actorId, actorName, err := models.GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	item, order, err := models.FetchOrderItemForChange(tx, itemId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if item.IsAccepted != nil && *item.IsAccepted {
		tx.Rollback()
		return nil, errors.New("order item is already accepted")
	}

	outlet, err := models.GetActiveOutlet(ctx, order.OutletId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	ingredient, err := models.GetActiveIngredient(ctx, item.IngredientId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	trx, err := models.CreateOrderInventoryTransaction(
		tx, ctx, outlet, ingredient, item.Qty, order.Code, actorId, actorName)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := CalculateTransaction(tx, trx, actorName); err != nil {
		tx.Rollback()
		return nil, err
	}

	now := time.Now().UTC()
	err = tx.Model(item).Updates(map[string]interface{}{
		"IsAccepted":             true,
		"AcceptedAt":             &now,
		"AcceptedById":           actorId,
		"AcceptedByName":         actorName,
		"InventoryTransactionId": trx.ID,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := models.RefreshOrderStatus(tx, order.ID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"order_code":       order.Code,
		"order_item_id":    item.ID,
		"transaction_code": trx.Code,
		"accepted_by":      actorName,
	}).Info("order.item.accepted")

	return item, nil
}

// UnacceptOrderItem reverses an acceptance recorded by mistake: the linked
// ledger entry is invalidated, its stock delta reversed, the link cleared,
// and the order status re-derived. One DB transaction, like acceptance.
func UnacceptOrderItem(ctx context.Context, logger *logrus.Logger, itemId int) (*models.OrderItem, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	_, actorName, err := models.GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	item, order, err := models.FetchOrderItemForChange(tx, itemId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if item.IsAccepted == nil || !*item.IsAccepted {
		tx.Rollback()
		return nil, errors.New("order item is not accepted")
	}
	if item.InventoryTransactionId == 0 {
		tx.Rollback()
		return nil, errors.New("order item has no linked transaction, reconciliation required")
	}

	trx, err := models.FetchTransactionForChange(tx, item.InventoryTransactionId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if trx.IsCalculated != nil && *trx.IsCalculated {
		if err := models.ReverseTransactionFromStock(tx, trx, actorName); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	err = tx.Model(trx).Updates(map[string]interface{}{
		"IsValid":      false,
		"ValidatedAt":  time.Now().UTC(),
		"IsCalculated": false,
		"CalculatedAt": nil,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.Model(item).Updates(map[string]interface{}{
		"IsAccepted":             false,
		"AcceptedAt":             nil,
		"AcceptedById":           0,
		"AcceptedByName":         "",
		"InventoryTransactionId": 0,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := models.RefreshOrderStatus(tx, order.ID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"order_code":       order.Code,
		"order_item_id":    item.ID,
		"transaction_code": trx.Code,
		"unaccepted_by":    actorName,
	}).Info("order.item.unaccepted")

	return item, nil
}
