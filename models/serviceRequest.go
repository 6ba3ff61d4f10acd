package models

import (
	"context"
	"errors"
	"time"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ServiceRequest is an approval ticket raised by outlet staff asking the
// franchisor to undo a business document (delete an order or a sale). The
// target stays untouched until an admin approves.
type ServiceRequest struct {
	ID              int               `gorm:"primary_key" json:"id"`
	TargetType      RequestTargetType `gorm:"type:enum('ORDER','SALE');not null;index:idx_svc_req_target,priority:1" json:"target_type"`
	TargetId        int               `gorm:"not null;index:idx_svc_req_target,priority:2" json:"target_id"`
	Reason          string            `gorm:"type:text;not null" json:"reason"`
	Status          RequestStatus     `gorm:"type:enum('PENDING','APPROVED','REJECTED');default:'PENDING';index" json:"status"`
	RequestedById   int               `gorm:"index" json:"requested_by_id"`
	RequestedByName string            `gorm:"size:100" json:"requested_by_name"`
	DecidedById     int               `json:"decided_by_id"`
	DecidedByName   string            `gorm:"size:100" json:"decided_by_name"`
	DecidedAt       *time.Time        `json:"decided_at"`
	DecisionNotes   string            `gorm:"type:text" json:"decision_notes"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewServiceRequest struct {
	TargetType string `json:"target_type" binding:"required"`
	TargetId   int    `json:"target_id" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
}

func CreateServiceRequest(ctx context.Context, input *NewServiceRequest) (*ServiceRequest, error) {

	userId, userName, err := GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	targetType, err := ParseRequestTargetType(input.TargetType)
	if err != nil {
		return nil, err
	}

	// target must exist and not be deleted already
	switch targetType {
	case RequestTargetOrder:
		if _, err := GetOrder(ctx, input.TargetId); err != nil {
			return nil, errors.New("order not found")
		}
	case RequestTargetSale:
		if _, err := GetSale(ctx, input.TargetId); err != nil {
			return nil, errors.New("sale not found")
		}
	}

	// one pending ticket per target
	db := config.GetDB()
	var pending int64
	err = db.WithContext(ctx).Model(&ServiceRequest{}).
		Where("target_type = ? AND target_id = ? AND status = ?",
			targetType, input.TargetId, RequestStatusPending).
		Count(&pending).Error
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, errors.New("a pending request already exists for this document")
	}

	request := ServiceRequest{
		TargetType:      targetType,
		TargetId:        input.TargetId,
		Reason:          input.Reason,
		Status:          RequestStatusPending,
		RequestedById:   userId,
		RequestedByName: userName,
	}
	if err := db.WithContext(ctx).Create(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func GetServiceRequest(ctx context.Context, id int) (*ServiceRequest, error) {
	return utils.FetchModel[ServiceRequest](ctx, id)
}

func ListServiceRequests(ctx context.Context, status *string) ([]*ServiceRequest, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if status != nil && len(*status) > 0 {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*ServiceRequest
	if err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FetchPendingRequestForDecision loads a pending ticket with a row lock so
// two admins cannot decide the same ticket twice.
func FetchPendingRequestForDecision(tx *gorm.DB, id int) (*ServiceRequest, error) {
	var request ServiceRequest
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&request).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if request.Status != RequestStatusPending {
		return nil, errors.New("request has already been decided")
	}
	return &request, nil
}

func (request *ServiceRequest) markDecided(tx *gorm.DB, status RequestStatus, actorId int, actorName, notes string) error {
	now := time.Now().UTC()
	return tx.Model(request).Updates(map[string]interface{}{
		"Status":        status,
		"DecidedById":   actorId,
		"DecidedByName": actorName,
		"DecidedAt":     &now,
		"DecisionNotes": notes,
	}).Error
}

// MarkRequestApproved / MarkRequestRejected persist the decision inside tx.
func MarkRequestApproved(tx *gorm.DB, request *ServiceRequest, actorId int, actorName, notes string) error {
	return request.markDecided(tx, RequestStatusApproved, actorId, actorName, notes)
}

func MarkRequestRejected(tx *gorm.DB, request *ServiceRequest, actorId int, actorName, notes string) error {
	return request.markDecided(tx, RequestStatusRejected, actorId, actorName, notes)
}
