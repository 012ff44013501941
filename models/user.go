package models

import (
	"context"
	"errors"
	"time"

	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"index;not null" json:"tenant_id" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:255;not null" json:"email" binding:"required"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"type:enum('owner', 'admin', 'staff');not null;default:'staff'" json:"role"`
	Phone     string    `gorm:"size:20" json:"phone"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Role     UserRole `json:"role"`
	Phone    string   `json:"phone"`
}

type SigninInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthPayload struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (obj User) GetId() int {
	return obj.ID
}

func (u User) GetCursor() string {
	return u.CreatedAt.String()
}

func (input *NewUser) validate(ctx context.Context, tenantId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[User](ctx, tenantId, id); err != nil {
			return err
		}
	}
	if !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email")
	}
	// sign-in is email-keyed, so email is unique across tenants
	if err := utils.ValidateUnique[User](ctx, "", "email", input.Email, id); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	return nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}

	tx := db.Begin()
	if err := ValidateTierQuota(ctx, tx, tenantId, "users"); err != nil {
		tx.Rollback()
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = UserRoleStaff
	}

	user := User{
		TenantId: tenantId,
		Name:     input.Name,
		Email:    input.Email,
		Password: string(hashed),
		Role:     role,
		Phone:    input.Phone,
		IsActive: utils.NewTrue(),
	}

	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateDefaultOwner seeds the owner account inside the business-creation
// transaction.
func CreateDefaultOwner(tx *gorm.DB, ctx context.Context, tenantId string, name string, email string, password string) (*User, error) {

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := User{
		TenantId: tenantId,
		Name:     name,
		Email:    email,
		Password: string(hashed),
		Role:     UserRoleOwner,
		IsActive: utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SigninUser verifies credentials and returns a signed token. Sign-in happens
// before any tenant context exists, so the lookup is unscoped.
func SigninUser(ctx context.Context, input *SigninInput) (*AuthPayload, error) {
	db := config.GetDB()

	skipCtx := utils.SetSkipTenantScopeInContext(ctx, true)

	var user User
	err := db.WithContext(skipCtx).Where("email = ?", input.Email).First(&user).Error
	if err != nil {
		return nil, errors.New("invalid credentials")
	}
	if user.IsActive == nil || !*user.IsActive {
		return nil, errors.New("user is inactive")
	}

	if err := utils.ComparePassword(user.Password, input.Password); err != nil {
		return nil, errors.New("invalid credentials")
	}

	token, err := utils.JwtGenerate(user.ID, user.TenantId, string(user.Role))
	if err != nil {
		return nil, err
	}

	return &AuthPayload{Token: token, User: &user}, nil
}

func UpdateUser(ctx context.Context, id int, input *NewUser) (*User, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}

	user, err := utils.FetchModel[User](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"Name":  input.Name,
		"Email": input.Email,
		"Phone": input.Phone,
	}
	if input.Role != "" {
		updates["Role"] = input.Role
	}
	if input.Password != "" {
		hashed, err := utils.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		updates["Password"] = string(hashed)
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func ToggleActiveUser(ctx context.Context, id int, isActive bool) (*User, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	user, err := utils.FetchModel[User](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if user.Role == UserRoleOwner && !isActive {
		return nil, errors.New("cannot deactivate the owner")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"IsActive": isActive,
	}).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	return utils.FetchModel[User](ctx, tenantId, id)
}

func GetUsers(ctx context.Context, name *string) ([]*User, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	var results []*User
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
