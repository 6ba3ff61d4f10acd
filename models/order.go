package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Order is a purchase document from an outlet to the franchisor. An order
// never moves stock by itself; stock moves when individual items are accepted
// at the outlet, which records IN ledger entries referencing the order code.
type Order struct {
	ID            int          `gorm:"primary_key" json:"id"`
	Code          string       `gorm:"size:50;uniqueIndex;not null" json:"code"`
	OutletId      int          `gorm:"index;not null" json:"outlet_id"`
	OutletName    string       `gorm:"size:100" json:"outlet_name"`
	Status        OrderStatus  `gorm:"type:enum('PENDING','PARTIAL','COMPLETED');default:'PENDING'" json:"status"`
	Notes         string       `gorm:"type:text" json:"notes"`
	CreatedById   int          `gorm:"index" json:"created_by_id"`
	CreatedByName string       `gorm:"size:100" json:"created_by_name"`
	IsDeleted     *bool        `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt     *time.Time   `json:"deleted_at"`
	DeletedBy     string       `gorm:"size:100" json:"deleted_by"`
	Items         []*OrderItem `gorm:"foreignKey:OrderId" json:"items"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	OrderId                int             `gorm:"index;not null" json:"order_id"`
	IngredientId           int             `gorm:"index;not null" json:"ingredient_id"`
	IngredientName         string          `gorm:"size:100" json:"ingredient_name"`
	IngredientUnit         string          `gorm:"size:20" json:"ingredient_unit"`
	Price                  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Qty                    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	IsAccepted             *bool           `gorm:"not null;default:false;index" json:"is_accepted"`
	AcceptedAt             *time.Time      `json:"accepted_at"`
	AcceptedById           int             `json:"accepted_by_id"`
	AcceptedByName         string          `gorm:"size:100" json:"accepted_by_name"`
	InventoryTransactionId int             `gorm:"index" json:"inventory_transaction_id"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrderItem struct {
	IngredientId int           `json:"ingredient_id" binding:"required"`
	Qty          utils.Numeric `json:"qty" binding:"required"`
}

type NewOrder struct {
	OutletId int            `json:"outlet_id" binding:"required"`
	Notes    string         `json:"notes"`
	Items    []NewOrderItem `json:"items" binding:"required,min=1,dive"`
}

func formatOrderCode(date time.Time, outletSuffix string, seq int) string {
	return fmt.Sprintf("ORD%s%s-%03d", date.Format("060102"), outletSuffix, seq)
}

func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {

	userId, userName, err := GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	outlet, err := GetActiveOutlet(ctx, input.OutletId)
	if err != nil {
		return nil, errors.New("outlet not found")
	}

	items := make([]*OrderItem, 0, len(input.Items))
	for _, line := range input.Items {
		ingredient, err := GetActiveIngredient(ctx, line.IngredientId)
		if err != nil {
			return nil, fmt.Errorf("ingredient %d not found", line.IngredientId)
		}
		qty, err := line.Qty.Decimal()
		if err != nil {
			return nil, err
		}
		if !qty.IsPositive() {
			return nil, errors.New("item quantity must be greater than zero")
		}
		items = append(items, &OrderItem{
			IngredientId:   ingredient.ID,
			IngredientName: ingredient.Name,
			IngredientUnit: ingredient.Unit,
			Price:          ingredient.Price,
			Qty:            qty,
			IsAccepted:     utils.NewFalse(),
		})
	}

	order := Order{
		OutletId:      outlet.ID,
		OutletName:    outlet.Name,
		Status:        OrderStatusPending,
		Notes:         input.Notes,
		CreatedById:   userId,
		CreatedByName: userName,
		IsDeleted:     utils.NewFalse(),
		Items:         items,
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	suffix, err := GetOutletCodeSuffix(ctx, outlet.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	seq, err := NextTransactionSequence(tx, OrderCounterKey(time.Now().UTC(), suffix))
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	order.Code = formatOrderCode(time.Now().UTC(), suffix, seq)
	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	db := config.GetDB()
	var order Order
	err := db.WithContext(ctx).Preload("Items").
		Where("id = ? AND is_deleted = 0", id).First(&order).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &order, nil
}

func GetOrderByCode(ctx context.Context, code string) (*Order, error) {
	db := config.GetDB()
	var order Order
	err := db.WithContext(ctx).Preload("Items").
		Where("code = ? AND is_deleted = 0", code).First(&order).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &order, nil
}

func ListOrders(ctx context.Context, outletId int, status *string) ([]*Order, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Items").Where("is_deleted = 0")
	if outletId > 0 {
		dbCtx = dbCtx.Where("outlet_id = ?", outletId)
	}
	if status != nil && len(*status) > 0 {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*Order
	if err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// DeriveOrderStatus computes the order status from its items' acceptance.
func DeriveOrderStatus(items []*OrderItem) OrderStatus {
	accepted := 0
	for _, item := range items {
		if item.IsAccepted != nil && *item.IsAccepted {
			accepted++
		}
	}
	switch {
	case len(items) == 0 || accepted == 0:
		return OrderStatusPending
	case accepted == len(items):
		return OrderStatusCompleted
	default:
		return OrderStatusPartial
	}
}

// RefreshOrderStatus re-derives and persists the order status inside tx.
func RefreshOrderStatus(tx *gorm.DB, orderId int) error {
	var items []*OrderItem
	if err := tx.Where("order_id = ?", orderId).Find(&items).Error; err != nil {
		return err
	}
	return tx.Model(&Order{}).Where("id = ?", orderId).
		Update("status", DeriveOrderStatus(items)).Error
}

// FetchOrderItemForChange loads one item plus its order with row locks.
func FetchOrderItemForChange(tx *gorm.DB, itemId int) (*OrderItem, *Order, error) {
	var item OrderItem
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", itemId).First(&item).Error; err != nil {
		return nil, nil, utils.ErrorRecordNotFound
	}
	var order Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_deleted = 0", item.OrderId).First(&order).Error; err != nil {
		return nil, nil, utils.ErrorRecordNotFound
	}
	return &item, &order, nil
}

// MarkOrderDeleted soft-deletes an order inside tx (approval workflow only).
func MarkOrderDeleted(tx *gorm.DB, orderId int, actorName string) error {
	now := time.Now().UTC()
	res := tx.Model(&Order{}).Where("id = ? AND is_deleted = 0", orderId).
		Updates(map[string]interface{}{
			"IsDeleted": true,
			"DeletedAt": &now,
			"DeletedBy": actorName,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
