package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
)

type Business struct {
	ID              uuid.UUID        `gorm:"primary_key" json:"id"`
	Name            string           `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName     string           `gorm:"size:100" json:"contact_name"`
	Email           string           `gorm:"size:255;not null" json:"email" binding:"required"`
	Phone           string           `gorm:"size:20" json:"phone"`
	Address         string           `gorm:"type:text" json:"address"`
	Abn             string           `gorm:"size:20" json:"abn"`
	Tier            SubscriptionTier `gorm:"type:enum('free', 'pro', 'team', 'trial');not null;default:'free'" json:"tier"`
	Timezone        string           `gorm:"size:50" json:"timezone"`
	IsGstRegistered *bool            `gorm:"not null;default:true" json:"is_gst_registered"`

	// monthly usage counters, reset lazily when a write crosses the boundary
	UsagePeriod       string `gorm:"size:7" json:"usage_period"`
	JobsThisMonth     int    `gorm:"not null;default:0" json:"jobs_this_month"`
	InvoicesThisMonth int    `gorm:"not null;default:0" json:"invoices_this_month"`
	QuotesThisMonth   int    `gorm:"not null;default:0" json:"quotes_this_month"`

	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name          string           `json:"name" binding:"required"`
	ContactName   string           `json:"contact_name"`
	Email         string           `json:"email" binding:"required"`
	Phone         string           `json:"phone"`
	Address       string           `json:"address"`
	Abn           string           `json:"abn"`
	Tier          SubscriptionTier `json:"tier"`
	Timezone      string           `json:"timezone"`
	OwnerName     string           `json:"owner_name" binding:"required"`
	OwnerPassword string           `json:"owner_password" binding:"required"`
}

func (business *Business) StoreRedis() error {
	return config.SetRedisObject("Business:"+fmt.Sprint(business.ID), business, 0)
}

func (business *Business) RemoveRedis() error {
	return config.RemoveRedisKey("Business:" + fmt.Sprint(business.ID))
}

func (input *NewBusiness) validate(ctx context.Context, id string) error {
	// name
	if err := utils.ValidateUnique[Business](ctx, "", "name", input.Name, id); err != nil {
		return err
	}
	// email
	if !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email")
	}
	if err := utils.ValidateUnique[Business](ctx, "", "email", input.Email, id); err != nil {
		return err
	}
	// phone
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
		if err := utils.ValidateUnique[Business](ctx, "", "phone", input.Phone, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	// When creating a business,
	// - create 'Owner' user
	// - seed the built-in message templates as the tenant's active set
	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}
	db := config.GetDB()

	tx := db.Begin()

	BID := uuid.New()
	timezone := "Australia/Sydney"
	if input.Timezone != "" {
		timezone = input.Timezone
	}

	// Defaults to satisfy MySQL enum constraints.
	tier := input.Tier
	if tier == "" {
		tier = SubscriptionTierFree
	}

	business := Business{
		ID:              BID,
		Name:            input.Name,
		ContactName:     input.ContactName,
		Email:           input.Email,
		Phone:           input.Phone,
		Address:         input.Address,
		Abn:             input.Abn,
		Tier:            tier,
		Timezone:        timezone,
		IsGstRegistered: utils.NewTrue(),
		UsagePeriod:     usagePeriodFor(time.Now(), timezone),
		IsActive:        utils.NewTrue(),
	}

	// create business
	err := tx.WithContext(ctx).Create(&business).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	tenantId := business.ID.String()
	ctx = utils.SetTenantIdInContext(ctx, tenantId)

	_, err = CreateDefaultOwner(tx, ctx, tenantId, input.OwnerName, business.Email, input.OwnerPassword)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := CreateDefaultTemplates(tx, ctx, tenantId); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err = tx.Commit().Error; err != nil {
		return nil, err
	}

	return &business, nil
}

func UpdateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var business Business
	if err := db.WithContext(ctx).Where("id = ?", tenantId).First(&business).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	tx := db.Begin()
	err := tx.WithContext(ctx).Model(&business).Updates(map[string]interface{}{
		"Name":        input.Name,
		"ContactName": input.ContactName,
		"Email":       input.Email,
		"Phone":       input.Phone,
		"Address":     input.Address,
		"Abn":         input.Abn,
		// Tier and Timezone change through their own paths
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := business.RemoveRedis(); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &business, tx.Commit().Error
}

func GetBusinessById(ctx context.Context, id string) (*Business, error) {

	var result Business

	exists, err := config.GetRedisObject("Business:"+id, &result)
	if err != nil {
		return nil, err
	}

	if !exists {
		db := config.GetDB()
		err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
		if err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		// caching
		if err := result.StoreRedis(); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

func GetBusiness(ctx context.Context) (*Business, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return GetBusinessById(ctx, tenantId)
}

/* tier quotas */

// usagePeriodFor buckets a timestamp into the tenant's local calendar month.
func usagePeriodFor(t time.Time, timezone string) string {
	localDate, err := utils.ConvertToDate(t, timezone)
	if err != nil {
		localDate = t
	}
	return localDate.Format("2006-01")
}

// ensureUsagePeriod resets the monthly counters when the stored period is
// stale. The reset is lazy; it happens on the first quota-checked write after
// the boundary, never on a clock tick.
func ensureUsagePeriod(ctx context.Context, tx *gorm.DB, business *Business) error {
	period := usagePeriodFor(time.Now(), business.Timezone)
	if business.UsagePeriod == period {
		return nil
	}

	err := tx.WithContext(ctx).Model(business).Updates(map[string]interface{}{
		"UsagePeriod":       period,
		"JobsThisMonth":     0,
		"InvoicesThisMonth": 0,
		"QuotesThisMonth":   0,
	}).Error
	if err != nil {
		return err
	}
	business.UsagePeriod = period
	business.JobsThisMonth = 0
	business.InvoicesThisMonth = 0
	business.QuotesThisMonth = 0

	return business.RemoveRedis()
}

// ValidateTierQuota checks whether the tenant may create one more of the
// given resource this month. Resource is one of jobs/invoices/quotes/clients/users.
func ValidateTierQuota(ctx context.Context, tx *gorm.DB, tenantId string, resource string) error {
	if !config.EnforceTierLimits() {
		return nil
	}

	business, err := GetBusinessById(ctx, tenantId)
	if err != nil {
		return err
	}
	if err := ensureUsagePeriod(ctx, tx, business); err != nil {
		return err
	}

	limit := config.GetTierLimit(string(business.Tier))

	var used, max int
	switch resource {
	case "jobs":
		used, max = business.JobsThisMonth, limit.JobsPerMonth
	case "invoices":
		used, max = business.InvoicesThisMonth, limit.InvoicesPerMonth
	case "quotes":
		used, max = business.QuotesThisMonth, limit.QuotesPerMonth
	case "clients":
		count, err := utils.ResourceCountWhere[Client](ctx, tenantId, "archived_at IS NULL")
		if err != nil {
			return err
		}
		used, max = int(count), limit.MaxClients
	case "users":
		count, err := utils.ResourceCountWhere[User](ctx, tenantId, "is_active = true")
		if err != nil {
			return err
		}
		used, max = int(count), limit.TeamSeats
	default:
		return errors.New("invalid quota resource")
	}

	// zero means unlimited
	if max > 0 && used >= max {
		return fmt.Errorf("%s limit reached for the %s plan", resource, business.Tier)
	}
	return nil
}

// incrementUsage bumps a monthly counter inside the caller's transaction.
func incrementUsage(ctx context.Context, tx *gorm.DB, tenantId string, column string) error {
	err := tx.WithContext(ctx).Model(&Business{}).Where("id = ?", tenantId).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
	if err != nil {
		return err
	}
	return config.RemoveRedisKey("Business:" + tenantId)
}
