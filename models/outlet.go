package models

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/utils"
)

type Outlet struct {
	ID        int        `gorm:"primary_key" json:"id"`
	Name      string     `gorm:"size:100;not null" json:"name"`
	Code      string     `gorm:"size:10;uniqueIndex;not null" json:"code"`
	Address   string     `gorm:"type:text" json:"address"`
	Phone     string     `gorm:"size:20" json:"phone"`
	IsActive  *bool      `gorm:"not null;default:true" json:"is_active"`
	IsDeleted *bool      `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at"`
	DeletedBy string     `gorm:"size:100" json:"deleted_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOutlet struct {
	Name    string `json:"name" binding:"required"`
	Code    string `json:"code" binding:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

var outletCodePattern = regexp.MustCompile(`^[A-Z0-9]{2,5}$`)

// validate input for both create & update. (id = 0 for create)

func (input *NewOutlet) validate(ctx context.Context, id int) error {
	// name
	if err := utils.ValidateUnique[Outlet](ctx, "name", input.Name, id); err != nil {
		return err
	}
	// code is used as the suffix inside transaction codes
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	if !outletCodePattern.MatchString(input.Code) {
		return errors.New("outlet code must be 2-5 uppercase letters or digits")
	}
	if err := utils.ValidateUnique[Outlet](ctx, "code", input.Code, id); err != nil {
		return err
	}
	// phone
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	return nil
}

func CreateOutlet(ctx context.Context, input *NewOutlet) (*Outlet, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	outlet := Outlet{
		Name:      input.Name,
		Code:      input.Code,
		Address:   input.Address,
		Phone:     input.Phone,
		IsActive:  utils.NewTrue(),
		IsDeleted: utils.NewFalse(),
	}

	// db action
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&outlet).Error; err != nil {
		return nil, err
	}
	return &outlet, nil
}

func UpdateOutlet(ctx context.Context, id int, input *NewOutlet) (*Outlet, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	outlet, err := GetActiveOutlet(ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&outlet).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Code":    input.Code,
		"Address": input.Address,
		"Phone":   input.Phone,
	}).Error
	if err != nil {
		return nil, err
	}

	// transaction codes embed the outlet code; drop the cached suffix
	config.RemoveRedisKey(outletCodeCacheKey(id))

	return outlet, nil
}

func DeleteOutlet(ctx context.Context, id int) (*Outlet, error) {

	outlet, err := GetActiveOutlet(ctx, id)
	if err != nil {
		return nil, err
	}

	_, actorName, err := GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	// do not delete while the outlet still holds stock
	var count int64
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&OutletStockIngredient{}).
		Where("outlet_id = ? AND current_qty <> 0", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("outlet has stock on hand")
	}

	now := time.Now().UTC()
	markers := map[string]interface{}{
		"IsDeleted": true,
		"DeletedAt": &now,
		"DeletedBy": actorName,
	}

	// the stock snapshot header follows the outlet's lifecycle
	tx := db.WithContext(ctx).Begin()
	if err := tx.Model(&outlet).Updates(markers).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Model(&OutletStock{}).Where("outlet_id = ?", id).Updates(markers).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	config.RemoveRedisKey(outletCodeCacheKey(id))
	return outlet, nil
}

// fetch outlet that is active and not soft-deleted
func GetActiveOutlet(ctx context.Context, id int) (*Outlet, error) {
	db := config.GetDB()
	var outlet Outlet
	err := db.WithContext(ctx).
		Where("id = ? AND is_deleted = 0", id).
		First(&outlet).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if outlet.IsActive != nil && !*outlet.IsActive {
		return nil, errors.New("outlet is inactive")
	}
	return &outlet, nil
}

func ListOutlets(ctx context.Context, name *string) ([]*Outlet, error) {
	db := config.GetDB()
	var results []*Outlet

	dbCtx := db.WithContext(ctx).Where("is_deleted = 0")
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ListActiveOutletIds(ctx context.Context) ([]int, error) {
	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&Outlet{}).
		Where("is_deleted = 0 AND is_active = 1").
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func outletCodeCacheKey(outletId int) string {
	return "outletCode:" + fmt.Sprint(outletId)
}

// get outlet code suffix for transaction codes, redis or db
func GetOutletCodeSuffix(ctx context.Context, outletId int) (string, error) {
	var code string
	redisKey := outletCodeCacheKey(outletId)
	exists, err := config.GetRedisObject(redisKey, &code)
	if err != nil {
		return "", err
	}
	if !exists {
		db := config.GetDB()
		if err := db.WithContext(ctx).Model(&Outlet{}).
			Where("id = ?", outletId).Select("code").Scan(&code).Error; err != nil {
			return "", err
		}
		if code == "" {
			return "", errors.New("outlet code not found")
		}
		if err := config.SetRedisObject(redisKey, &code, 0); err != nil {
			return "", err
		}
	}
	return code, nil
}
