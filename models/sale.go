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
)

// Sale is a revenue document only. Recording or deleting a sale never touches
// the inventory ledger or the stock snapshot; ingredient consumption is
// tracked through explicit OUT transactions, not inferred from sales.
type Sale struct {
	ID            int         `gorm:"primary_key" json:"id"`
	Code          string      `gorm:"size:50;uniqueIndex;not null" json:"code"`
	OutletId      int         `gorm:"index;not null" json:"outlet_id"`
	OutletName    string      `gorm:"size:100" json:"outlet_name"`
	Total         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	Notes         string      `gorm:"type:text" json:"notes"`
	CreatedById   int         `gorm:"index" json:"created_by_id"`
	CreatedByName string      `gorm:"size:100" json:"created_by_name"`
	IsDeleted     *bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt     *time.Time  `json:"deleted_at"`
	DeletedBy     string      `gorm:"size:100" json:"deleted_by"`
	Items         []*SaleItem `gorm:"foreignKey:SaleId" json:"items"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	SaleId    int             `gorm:"index;not null" json:"sale_id"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	Qty       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Price     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSaleItem struct {
	Name  string        `json:"name" binding:"required"`
	Qty   utils.Numeric `json:"qty" binding:"required"`
	Price utils.Numeric `json:"price"`
}

type NewSale struct {
	OutletId int           `json:"outlet_id" binding:"required"`
	Notes    string        `json:"notes"`
	Items    []NewSaleItem `json:"items" binding:"required,min=1,dive"`
}

func formatSaleCode(date time.Time, outletSuffix string, seq int) string {
	return fmt.Sprintf("SALE%s%s-%03d", date.Format("060102"), outletSuffix, seq)
}

func saleCounterKey(date time.Time, outletSuffix string) string {
	return fmt.Sprintf("sale_%s_%s", date.Format("060102"), outletSuffix)
}

func CreateSale(ctx context.Context, input *NewSale) (*Sale, error) {

	userId, userName, err := GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	outlet, err := GetActiveOutlet(ctx, input.OutletId)
	if err != nil {
		return nil, errors.New("outlet not found")
	}

	total := decimal.Zero
	items := make([]*SaleItem, 0, len(input.Items))
	for _, line := range input.Items {
		qty, err := line.Qty.Decimal()
		if err != nil {
			return nil, err
		}
		if !qty.IsPositive() {
			return nil, errors.New("item quantity must be greater than zero")
		}
		price := decimal.Zero
		if !line.Price.IsZeroValue() {
			if price, err = line.Price.Decimal(); err != nil {
				return nil, err
			}
		}
		total = total.Add(price.Mul(qty))
		items = append(items, &SaleItem{
			Name:  line.Name,
			Qty:   qty,
			Price: price,
		})
	}

	sale := Sale{
		OutletId:      outlet.ID,
		OutletName:    outlet.Name,
		Total:         total,
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
	seq, err := NextTransactionSequence(tx, saleCounterKey(time.Now().UTC(), suffix))
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	sale.Code = formatSaleCode(time.Now().UTC(), suffix, seq)
	if err := tx.Create(&sale).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func GetSale(ctx context.Context, id int) (*Sale, error) {
	db := config.GetDB()
	var sale Sale
	err := db.WithContext(ctx).Preload("Items").
		Where("id = ? AND is_deleted = 0", id).First(&sale).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &sale, nil
}

func ListSales(ctx context.Context, outletId int, dateFrom, dateTo *time.Time) ([]*Sale, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Items").Where("is_deleted = 0")
	if outletId > 0 {
		dbCtx = dbCtx.Where("outlet_id = ?", outletId)
	}
	if dateFrom != nil {
		dbCtx = dbCtx.Where("created_at >= ?", dateFrom)
	}
	if dateTo != nil {
		dbCtx = dbCtx.Where("created_at <= ?", dateTo)
	}
	var results []*Sale
	if err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MarkSaleDeleted soft-deletes a sale inside tx (approval workflow only).
func MarkSaleDeleted(tx *gorm.DB, saleId int, actorName string) error {
	now := time.Now().UTC()
	res := tx.Model(&Sale{}).Where("id = ? AND is_deleted = 0", saleId).
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
