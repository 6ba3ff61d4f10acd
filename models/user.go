package models

import (
	"context"
	"errors"
	"time"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/utils"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Username  string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Role      string    `gorm:"size:50;default:'STAFF'" json:"role"`
	OutletId  int       `gorm:"index" json:"outlet_id"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
	OutletId int    `json:"outlet_id"`
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (input *NewUser) validate(ctx context.Context, id int) error {
	if err := utils.ValidateUnique[User](ctx, "username", input.Username, id); err != nil {
		return err
	}
	if input.OutletId != 0 {
		if err := utils.ValidateResourceId[Outlet](ctx, input.OutletId); err != nil {
			return errors.New("outlet not found")
		}
	}
	return nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = "STAFF"
	}

	user := User{
		Name:     input.Name,
		Username: input.Username,
		Password: string(hashed),
		Role:     role,
		OutletId: input.OutletId,
		IsActive: utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func Login(ctx context.Context, input *LoginInput) (string, *User, error) {

	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("username = ?", input.Username).First(&user).Error; err != nil {
		return "", nil, errors.New("invalid username or password")
	}
	if user.IsActive != nil && !*user.IsActive {
		return "", nil, errors.New("user is inactive")
	}
	if err := utils.ComparePassword(user.Password, input.Password); err != nil {
		return "", nil, errors.New("invalid username or password")
	}

	token, err := utils.JwtGenerate(user.ID, user.Name, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchModel[User](ctx, id)
}

func ListUsers(ctx context.Context) ([]*User, error) {
	return utils.FetchAllModels[User](ctx)
}

// resolve actor identity from request context
// (may return an error when the token did not carry a user)
func GetActorFromContext(ctx context.Context) (int, string, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return 0, "", errors.New("user id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)
	return userId, userName, nil
}
