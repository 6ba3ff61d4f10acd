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

// InventoryTransaction is one signed ingredient movement at one outlet.
// Rows are append-only by convention: they are deactivated through
// IsValid/IsDeleted, never rewritten or physically removed, so the ledger
// stays replayable. The ingredient/outlet columns are snapshots taken at
// recording time and do not follow later master-data edits.
type InventoryTransaction struct {
	ID             int                   `gorm:"primary_key" json:"id"`
	Code           string                `gorm:"size:50;uniqueIndex;not null" json:"code"`
	IngredientId   int                   `gorm:"index;not null" json:"ingredient_id"`
	IngredientName string                `gorm:"size:100" json:"ingredient_name"`
	IngredientUnit string                `gorm:"size:20" json:"ingredient_unit"`
	Price          decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"price"`
	OutletId       int                   `gorm:"index;not null" json:"outlet_id"`
	OutletName     string                `gorm:"size:100" json:"outlet_name"`
	OutletAddress  string                `gorm:"type:text" json:"outlet_address"`
	SourceType     TransactionSourceType `gorm:"type:enum('ORDER','SALE','MANUAL');default:'MANUAL';index:idx_inv_trx_source,priority:1" json:"source_type"`
	SourceRef      string                `gorm:"size:100;index:idx_inv_trx_source,priority:2" json:"source_ref"`
	Kind           TransactionKind       `gorm:"type:enum('IN','OUT','ADJUSTMENT','SPOILAGE');not null" json:"kind"`
	Qty            decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"qty"`
	Notes          string                `gorm:"type:text" json:"notes"`
	EvidenceUrl    string                `gorm:"size:255" json:"evidence_url"`
	CreatedById    int                   `gorm:"index" json:"created_by_id"`
	CreatedByName  string                `gorm:"size:100" json:"created_by_name"`
	IsValid        *bool                 `gorm:"not null;default:true;index" json:"is_valid"`
	ValidatedAt    *time.Time            `json:"validated_at"`
	IsCalculated   *bool                 `gorm:"not null;default:false;index" json:"is_calculated"`
	CalculatedAt   *time.Time            `json:"calculated_at"`
	IsDeleted      *bool                 `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt      *time.Time            `json:"deleted_at"`
	DeletedBy      string                `gorm:"size:100" json:"deleted_by"`
	CorrelationId  string                `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt      time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryTransaction struct {
	IngredientId int           `json:"ingredient_id" binding:"required"`
	OutletId     int           `json:"outlet_id" binding:"required"`
	SourceType   string        `json:"source_type"`
	SourceRef    string        `json:"source_ref"`
	Kind         string        `json:"kind" binding:"required"`
	Qty          utils.Numeric `json:"qty" binding:"required"`
	Notes        string        `json:"notes"`
	EvidenceUrl  string        `json:"evidence_url"`
}

// NormalizeTransactionQty applies the sign convention exactly once, at
// recording time: IN stores a positive magnitude, OUT and SPOILAGE store a
// negative magnitude, ADJUSTMENT keeps the caller's sign (it may move stock
// in either direction). Signed kinds reject a magnitude <= 0.
func NormalizeTransactionQty(kind TransactionKind, qty decimal.Decimal) (decimal.Decimal, error) {
	switch kind {
	case TransactionKindIn:
		if !qty.IsPositive() {
			return decimal.Zero, errors.New("quantity must be greater than zero")
		}
		return qty, nil
	case TransactionKindOut, TransactionKindSpoilage:
		if !qty.IsPositive() {
			return decimal.Zero, errors.New("quantity must be greater than zero")
		}
		return qty.Neg(), nil
	case TransactionKindAdjustment:
		if qty.IsZero() {
			return decimal.Zero, errors.New("quantity must not be zero")
		}
		return qty, nil
	}
	return decimal.Zero, errors.New("invalid transaction kind")
}

// FormatTransactionCode renders INVTRX<YYMMDD><SUFFIX>-<seq3>-<KIND>.
func FormatTransactionCode(date time.Time, outletSuffix string, seq int, kind TransactionKind) string {
	return fmt.Sprintf("INVTRX%s%s-%03d-%s", date.Format("060102"), outletSuffix, seq, kind.Abbr())
}

// NextTransactionCode reserves the next daily sequence for the outlet and
// returns the rendered code. Must run inside the caller's tx so a failed
// creation does not hold locks (the counter gap it leaves is acceptable).
func NextTransactionCode(tx *gorm.DB, ctx context.Context, outletId int, date time.Time, kind TransactionKind) (string, error) {
	suffix, err := GetOutletCodeSuffix(ctx, outletId)
	if err != nil {
		return "", err
	}
	seq, err := NextTransactionSequence(tx, LedgerCounterKey(date, suffix))
	if err != nil {
		return "", err
	}
	return FormatTransactionCode(date, suffix, seq, kind), nil
}

func (input *NewInventoryTransaction) sourceType() (TransactionSourceType, error) {
	if input.SourceType == "" {
		return TransactionSourceManual, nil
	}
	return ParseTransactionSourceType(input.SourceType)
}

// CreateInventoryTransaction validates and persists one ledger entry with
// is_valid=true, is_calculated=false. It does NOT fold the entry into the
// outlet stock; the synchronization engine (workflow package) does that
// immediately after, or the repair sweep does it later if that fails.
func CreateInventoryTransaction(ctx context.Context, input *NewInventoryTransaction) (*InventoryTransaction, error) {

	userId, userName, err := GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	kind, err := ParseTransactionKind(input.Kind)
	if err != nil {
		return nil, err
	}
	sourceType, err := input.sourceType()
	if err != nil {
		return nil, err
	}
	rawQty, err := input.Qty.Decimal()
	if err != nil {
		return nil, err
	}
	qty, err := NormalizeTransactionQty(kind, rawQty)
	if err != nil {
		return nil, err
	}

	ingredient, err := GetActiveIngredient(ctx, input.IngredientId)
	if err != nil {
		return nil, errors.New("ingredient not found")
	}
	outlet, err := GetActiveOutlet(ctx, input.OutletId)
	if err != nil {
		return nil, errors.New("outlet not found")
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	trx := InventoryTransaction{
		IngredientId:   ingredient.ID,
		IngredientName: ingredient.Name,
		IngredientUnit: ingredient.Unit,
		Price:          ingredient.Price,
		OutletId:       outlet.ID,
		OutletName:     outlet.Name,
		OutletAddress:  outlet.Address,
		SourceType:     sourceType,
		SourceRef:      input.SourceRef,
		Kind:           kind,
		Qty:            qty,
		Notes:          input.Notes,
		EvidenceUrl:    input.EvidenceUrl,
		CreatedById:    userId,
		CreatedByName:  userName,
		IsValid:        utils.NewTrue(),
		IsCalculated:   utils.NewFalse(),
		IsDeleted:      utils.NewFalse(),
		CorrelationId:  correlationId,
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	code, err := NextTransactionCode(tx, ctx, outlet.ID, time.Now().UTC(), kind)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	trx.Code = code
	if err := tx.Create(&trx).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &trx, nil
}

// CreateOrderInventoryTransaction persists an IN entry for an accepted order
// item inside the caller's transaction. Used by the fulfillment workflow,
// where ledger and order state must commit or fail together.
func CreateOrderInventoryTransaction(tx *gorm.DB, ctx context.Context, outlet *Outlet, ingredient *Ingredient, qty decimal.Decimal, orderCode string, actorId int, actorName string) (*InventoryTransaction, error) {

	normalized, err := NormalizeTransactionQty(TransactionKindIn, qty)
	if err != nil {
		return nil, err
	}
	code, err := NextTransactionCode(tx, ctx, outlet.ID, time.Now().UTC(), TransactionKindIn)
	if err != nil {
		return nil, err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	trx := InventoryTransaction{
		Code:           code,
		IngredientId:   ingredient.ID,
		IngredientName: ingredient.Name,
		IngredientUnit: ingredient.Unit,
		Price:          ingredient.Price,
		OutletId:       outlet.ID,
		OutletName:     outlet.Name,
		OutletAddress:  outlet.Address,
		SourceType:     TransactionSourceOrder,
		SourceRef:      orderCode,
		Kind:           TransactionKindIn,
		Qty:            normalized,
		CreatedById:    actorId,
		CreatedByName:  actorName,
		IsValid:        utils.NewTrue(),
		IsCalculated:   utils.NewFalse(),
		IsDeleted:      utils.NewFalse(),
		CorrelationId:  correlationId,
	}
	if err := tx.Create(&trx).Error; err != nil {
		return nil, err
	}
	return &trx, nil
}

type InventoryTransactionFilter struct {
	OutletId     int
	IngredientId int
	Kind         string
	SourceType   string
	DateFrom     *time.Time
	DateTo       *time.Time
	IsValid      *bool
	IsCalculated *bool
}

func ListInventoryTransactions(ctx context.Context, filter *InventoryTransactionFilter) ([]*InventoryTransaction, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("is_deleted = 0")

	if filter != nil {
		if filter.OutletId > 0 {
			dbCtx = dbCtx.Where("outlet_id = ?", filter.OutletId)
		}
		if filter.IngredientId > 0 {
			dbCtx = dbCtx.Where("ingredient_id = ?", filter.IngredientId)
		}
		if filter.Kind != "" {
			kind, err := ParseTransactionKind(filter.Kind)
			if err != nil {
				return nil, err
			}
			dbCtx = dbCtx.Where("kind = ?", kind)
		}
		if filter.SourceType != "" {
			sourceType, err := ParseTransactionSourceType(filter.SourceType)
			if err != nil {
				return nil, err
			}
			dbCtx = dbCtx.Where("source_type = ?", sourceType)
		}
		if filter.DateFrom != nil {
			dbCtx = dbCtx.Where("created_at >= ?", filter.DateFrom)
		}
		if filter.DateTo != nil {
			dbCtx = dbCtx.Where("created_at <= ?", filter.DateTo)
		}
		if filter.IsValid != nil {
			dbCtx = dbCtx.Where("is_valid = ?", *filter.IsValid)
		}
		if filter.IsCalculated != nil {
			dbCtx = dbCtx.Where("is_calculated = ?", *filter.IsCalculated)
		}
	}

	var results []*InventoryTransaction
	if err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetInventoryTransaction(ctx context.Context, id int) (*InventoryTransaction, error) {
	db := config.GetDB()
	var trx InventoryTransaction
	err := db.WithContext(ctx).Where("id = ? AND is_deleted = 0", id).First(&trx).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &trx, nil
}

// FetchTransactionForChange loads one entry with a row lock inside tx.
func FetchTransactionForChange(tx *gorm.DB, id int) (*InventoryTransaction, error) {
	var trx InventoryTransaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_deleted = 0", id).
		First(&trx).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &trx, nil
}

// ListReplayableTransactions returns every valid, non-deleted entry for the
// outlet in creation order. This is the reconciliation input.
func ListReplayableTransactions(tx *gorm.DB, outletId int) ([]*InventoryTransaction, error) {
	var results []*InventoryTransaction
	err := tx.Where("outlet_id = ? AND is_valid = 1 AND is_deleted = 0", outletId).
		Order("created_at, id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CountCalculatedTransactionsOutsideSet counts valid, non-deleted, calculated
// entries for the outlet whose ids are not in the given set. The locking read
// bypasses the transaction's repeatable-read snapshot, so a rebuild can spot
// entries another session applied after its replay started.
func CountCalculatedTransactionsOutsideSet(tx *gorm.DB, outletId int, ids []int) (int64, error) {
	dbCtx := tx.Model(&InventoryTransaction{}).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("outlet_id = ? AND is_valid = 1 AND is_deleted = 0 AND is_calculated = 1", outletId)
	if len(ids) > 0 {
		dbCtx = dbCtx.Where("id NOT IN ?", ids)
	}
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListUncalculatedTransactionIds returns entries the repair sweep should
// re-drive: valid, not deleted, not yet folded into the outlet stock.
func ListUncalculatedTransactionIds(ctx context.Context, limit int) ([]int, error) {
	db := config.GetDB()
	var ids []int
	dbCtx := db.WithContext(ctx).Model(&InventoryTransaction{}).
		Where("is_valid = 1 AND is_calculated = 0 AND is_deleted = 0").
		Order("id")
	if limit > 0 {
		dbCtx = dbCtx.Limit(limit)
	}
	if err := dbCtx.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkTransactionsDeletedBySource soft-deletes every entry originating from
// the given document. Returns the distinct outlet ids touched so the caller
// can schedule reconciliation for them.
func MarkTransactionsDeletedBySource(tx *gorm.DB, sourceType TransactionSourceType, sourceRef string, actorName string) ([]int, error) {
	var outletIds []int
	if err := tx.Model(&InventoryTransaction{}).
		Where("source_type = ? AND source_ref = ? AND is_deleted = 0", sourceType, sourceRef).
		Distinct().
		Pluck("outlet_id", &outletIds).Error; err != nil {
		return nil, err
	}
	if len(outletIds) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	if err := tx.Model(&InventoryTransaction{}).
		Where("source_type = ? AND source_ref = ? AND is_deleted = 0", sourceType, sourceRef).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": &now,
			"deleted_by": actorName,
		}).Error; err != nil {
		return nil, err
	}
	return outletIds, nil
}
