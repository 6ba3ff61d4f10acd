package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OutletStock is the derived stock snapshot header for one outlet. It exists
// purely as a fast read model; the ledger is the source of truth and the
// snapshot can always be rebuilt from it.
type OutletStock struct {
	OutletId     int                      `gorm:"primary_key;autoIncrement:false" json:"outlet_id"`
	OutletName   string                   `gorm:"size:100" json:"outlet_name"`
	Notes        string                   `gorm:"type:text" json:"notes"`
	LastSyncedAt *time.Time               `json:"last_synced_at"`
	LastSyncedBy string                   `gorm:"size:100" json:"last_synced_by"`
	IsDeleted    *bool                    `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt    *time.Time               `json:"deleted_at"`
	DeletedBy    string                   `gorm:"size:100" json:"deleted_by"`
	Ingredients  []*OutletStockIngredient `gorm:"foreignKey:OutletId" json:"ingredients"`
	CreatedAt    time.Time                `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                `gorm:"autoUpdateTime" json:"updated_at"`
}

// OutletStockIngredient is one per-ingredient balance line. CurrentQty is only
// ever moved by single-statement relative increments or by a wholesale rebuild
// replace, never by read-modify-write from Go.
type OutletStockIngredient struct {
	OutletId            int             `gorm:"primary_key;autoIncrement:false" json:"outlet_id"`
	IngredientId        int             `gorm:"primary_key;autoIncrement:false" json:"ingredient_id"`
	IngredientName      string          `gorm:"size:100" json:"ingredient_name"`
	IngredientUnit      string          `gorm:"size:20" json:"ingredient_unit"`
	Price               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	CurrentQty          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"current_qty"`
	LastQuantityUpdated *time.Time      `json:"last_quantity_updated"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FirstOrCreateOutletStock makes sure the snapshot header exists inside tx.
func FirstOrCreateOutletStock(tx *gorm.DB, outlet *Outlet) (*OutletStock, error) {
	stock := OutletStock{OutletId: outlet.ID}
	err := tx.Where(OutletStock{OutletId: outlet.ID}).
		Attrs(OutletStock{OutletName: outlet.Name, IsDeleted: utils.NewFalse()}).
		FirstOrCreate(&stock).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// SyncTransactionToStock folds one ledger entry's signed qty into the outlet
// balance inside tx. The increment is a single upsert statement so concurrent
// entries for the same ingredient serialize inside MySQL instead of clobbering
// each other through read-modify-write.
func SyncTransactionToStock(tx *gorm.DB, trx *InventoryTransaction, actorName string) error {

	// line metadata follows the live ingredient master; the entry's
	// creation-time copy is only the fallback when the master is gone.
	// A re-driven old entry must not stamp stale name/unit/price.
	name, unit, price := trx.IngredientName, trx.IngredientUnit, trx.Price
	var ingredient Ingredient
	if err := tx.Where("id = ? AND is_deleted = 0", trx.IngredientId).First(&ingredient).Error; err == nil {
		name = ingredient.Name
		unit = ingredient.Unit
		price = ingredient.Price
	}

	res := tx.Exec(
		"INSERT INTO outlet_stock_ingredients "+
			"(outlet_id, ingredient_id, ingredient_name, ingredient_unit, price, current_qty, last_quantity_updated, created_at, updated_at) "+
			"VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW(), NOW()) "+
			"ON DUPLICATE KEY UPDATE "+
			"current_qty = current_qty + VALUES(current_qty), "+
			"ingredient_name = VALUES(ingredient_name), "+
			"ingredient_unit = VALUES(ingredient_unit), "+
			"price = VALUES(price), "+
			"last_quantity_updated = NOW(), updated_at = NOW()",
		trx.OutletId, trx.IngredientId, name, unit, price, trx.Qty,
	)
	if res.Error != nil {
		return res.Error
	}
	return stampOutletStockHeader(tx, trx.OutletId, actorName)
}

// ReverseTransactionFromStock subtracts a previously applied entry from the
// balance. A missing snapshot or line means snapshot and ledger have drifted
// apart, so the caller gets a loud error and should reconcile the outlet
// rather than guess.
func ReverseTransactionFromStock(tx *gorm.DB, trx *InventoryTransaction, actorName string) error {

	var headerCount int64
	if err := tx.Model(&OutletStock{}).Where("outlet_id = ?", trx.OutletId).Count(&headerCount).Error; err != nil {
		return err
	}
	if headerCount == 0 {
		return fmt.Errorf("stock snapshot missing for outlet %d, reconciliation required", trx.OutletId)
	}

	res := tx.Exec(
		"UPDATE outlet_stock_ingredients "+
			"SET current_qty = current_qty - ?, last_quantity_updated = NOW(), updated_at = NOW() "+
			"WHERE outlet_id = ? AND ingredient_id = ?",
		trx.Qty, trx.OutletId, trx.IngredientId,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("stock line missing for outlet %d ingredient %d, reconciliation required",
			trx.OutletId, trx.IngredientId)
	}
	return stampOutletStockHeader(tx, trx.OutletId, actorName)
}

func stampOutletStockHeader(tx *gorm.DB, outletId int, actorName string) error {
	now := time.Now().UTC()
	return tx.Model(&OutletStock{}).Where("outlet_id = ?", outletId).
		Updates(map[string]interface{}{
			"LastSyncedAt": &now,
			"LastSyncedBy": actorName,
		}).Error
}

// ReplaceOutletStockIngredients swaps the outlet's lines wholesale with the
// replayed balances. Only the rebuild path uses this; it runs under the
// per-outlet rebuild lock.
func ReplaceOutletStockIngredients(tx *gorm.DB, outletId int, lines []*OutletStockIngredient, actorName string) error {
	if err := tx.Where("outlet_id = ?", outletId).Delete(&OutletStockIngredient{}).Error; err != nil {
		return err
	}
	if len(lines) > 0 {
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
	}
	return stampOutletStockHeader(tx, outletId, actorName)
}

func GetOutletStock(ctx context.Context, outletId int) (*OutletStock, error) {
	db := config.GetDB()
	var stock OutletStock
	err := db.WithContext(ctx).Preload("Ingredients").
		Where("outlet_id = ? AND is_deleted = 0", outletId).First(&stock).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &stock, nil
}

// quantity-bearing fields, not patchable from the outside
var guardedStockFields = map[string]bool{
	"ingredients":           true,
	"current_qty":           true,
	"currentqty":            true,
	"qty":                   true,
	"quantity":              true,
	"last_quantity_updated": true,
}

// ValidateOutletStockUpdate rejects any patch that tries to write balances
// directly. Balances move through the ledger only.
func ValidateOutletStockUpdate(patch map[string]interface{}) error {
	for key := range patch {
		if guardedStockFields[strings.ToLower(strings.TrimSpace(key))] {
			return errors.New("stock quantities cannot be edited directly, record an inventory transaction")
		}
	}
	return nil
}

// UpdateOutletStock patches snapshot metadata (notes only, today). Quantity
// keys are refused up front.
func UpdateOutletStock(ctx context.Context, outletId int, patch map[string]interface{}) (*OutletStock, error) {

	if err := ValidateOutletStockUpdate(patch); err != nil {
		return nil, err
	}

	stock, err := GetOutletStock(ctx, outletId)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if notes, ok := patch["notes"]; ok {
		updates["Notes"] = fmt.Sprint(notes)
	}
	if len(updates) == 0 {
		return stock, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&OutletStock{}).
		Where("outlet_id = ?", outletId).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetOutletStock(ctx, outletId)
}
