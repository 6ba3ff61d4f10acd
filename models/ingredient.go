package models

import (
	"context"
	"errors"
	"time"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/utils"
	"github.com/shopspring/decimal"
)

type Ingredient struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	Unit      string          `gorm:"size:20;not null" json:"unit"`
	Price     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
	IsDeleted *bool           `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time      `json:"deleted_at"`
	DeletedBy string          `gorm:"size:100" json:"deleted_by"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewIngredient struct {
	Name  string        `json:"name" binding:"required"`
	Unit  string        `json:"unit" binding:"required"`
	Price utils.Numeric `json:"price"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewIngredient) validate(ctx context.Context, id int) error {
	// name
	if err := utils.ValidateUnique[Ingredient](ctx, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func (input *NewIngredient) price() (decimal.Decimal, error) {
	if input.Price.IsZeroValue() {
		return decimal.Zero, nil
	}
	return input.Price.Decimal()
}

func CreateIngredient(ctx context.Context, input *NewIngredient) (*Ingredient, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	price, err := input.price()
	if err != nil {
		return nil, err
	}

	ingredient := Ingredient{
		Name:      input.Name,
		Unit:      input.Unit,
		Price:     price,
		IsActive:  utils.NewTrue(),
		IsDeleted: utils.NewFalse(),
	}

	// db action
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&ingredient).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func UpdateIngredient(ctx context.Context, id int, input *NewIngredient) (*Ingredient, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	price, err := input.price()
	if err != nil {
		return nil, err
	}

	ingredient, err := GetActiveIngredient(ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&ingredient).Updates(map[string]interface{}{
		"Name":  input.Name,
		"Unit":  input.Unit,
		"Price": price,
	}).Error
	if err != nil {
		return nil, err
	}

	return ingredient, nil
}

func DeleteIngredient(ctx context.Context, id int) (*Ingredient, error) {

	ingredient, err := GetActiveIngredient(ctx, id)
	if err != nil {
		return nil, err
	}

	_, actorName, err := GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&ingredient).Updates(map[string]interface{}{
		"IsDeleted": true,
		"DeletedAt": &now,
		"DeletedBy": actorName,
	}).Error
	if err != nil {
		return nil, err
	}
	return ingredient, nil
}

// fetch ingredient that is active and not soft-deleted
func GetActiveIngredient(ctx context.Context, id int) (*Ingredient, error) {
	db := config.GetDB()
	var ingredient Ingredient
	err := db.WithContext(ctx).
		Where("id = ? AND is_deleted = 0", id).
		First(&ingredient).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if ingredient.IsActive != nil && !*ingredient.IsActive {
		return nil, errors.New("ingredient is inactive")
	}
	return &ingredient, nil
}

func ListIngredients(ctx context.Context, name *string) ([]*Ingredient, error) {
	db := config.GetDB()
	var results []*Ingredient

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
