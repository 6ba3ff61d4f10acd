package workflow

import (
	"context"
	"errors"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/models"
	"github.com/rasamasa/franchise_backend/utils"
	"github.com/sirupsen/logrus"
)

// ApproveServiceRequest executes an approved undo: the target document is
// soft-deleted, every ledger entry the document produced is soft-deleted with
// it, and the touched outlets are queued for reconciliation so their
// snapshots are rebuilt without the dead entries. Deciding the ticket and
// deleting the documents commit together; reconciliation runs afterwards
// because it takes its own per-outlet locks.
func ApproveServiceRequest(ctx context.Context, logger *logrus.Logger, runner *BackgroundRunner, requestId int, notes string) (*models.ServiceRequest, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	actorId, actorName, err := models.GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if role, _ := utils.GetUserRoleFromContext(ctx); role != "ADMIN" {
		return nil, errors.New("only an admin can decide a request")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	request, err := models.FetchPendingRequestForDecision(tx, requestId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	var outletIds []int
	switch request.TargetType {
	case models.RequestTargetOrder:
		var order models.Order
		if err := tx.Where("id = ? AND is_deleted = 0", request.TargetId).First(&order).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("order not found")
		}
		if err := models.MarkOrderDeleted(tx, order.ID, actorName); err != nil {
			tx.Rollback()
			return nil, err
		}
		outletIds, err = models.MarkTransactionsDeletedBySource(tx, models.TransactionSourceOrder, order.Code, actorName)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	case models.RequestTargetSale:
		var sale models.Sale
		if err := tx.Where("id = ? AND is_deleted = 0", request.TargetId).First(&sale).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("sale not found")
		}
		if err := models.MarkSaleDeleted(tx, sale.ID, actorName); err != nil {
			tx.Rollback()
			return nil, err
		}
		// sales never write to the ledger, nothing to reverse
	default:
		tx.Rollback()
		return nil, errors.New("unknown request target type")
	}

	if err := models.MarkRequestApproved(tx, request, actorId, actorName, notes); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"request_id":  request.ID,
		"target_type": request.TargetType,
		"target_id":   request.TargetId,
		"decided_by":  actorName,
		"outlets":     outletIds,
	}).Info("request.approved")

	for _, outletId := range outletIds {
		runner.QueueOutletReconcile(logger, outletId, actorName)
	}

	return models.GetServiceRequest(ctx, request.ID)
}

// RejectServiceRequest closes the ticket without touching the target.
func RejectServiceRequest(ctx context.Context, logger *logrus.Logger, requestId int, notes string) (*models.ServiceRequest, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	actorId, actorName, err := models.GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if role, _ := utils.GetUserRoleFromContext(ctx); role != "ADMIN" {
		return nil, errors.New("only an admin can decide a request")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	request, err := models.FetchPendingRequestForDecision(tx, requestId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := models.MarkRequestRejected(tx, request, actorId, actorName, notes); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"request_id": request.ID,
		"decided_by": actorName,
	}).Info("request.rejected")

	return models.GetServiceRequest(ctx, request.ID)
}
