package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
)

// BusinessTemplate is a tenant's own copy of a document or message template.
// At most one template per (tenant, family, purpose) is active; resolution
// falls back to the built-in system template when none is.
type BusinessTemplate struct {
	ID        int            `gorm:"primary_key" json:"id"`
	TenantId  string         `gorm:"index;not null" json:"tenant_id" binding:"required"`
	Family    TemplateFamily `gorm:"type:enum('terms_conditions', 'warranty', 'email', 'sms', 'safety_form', 'checklist', 'payment_notice');not null" json:"family"`
	Purpose   string         `gorm:"size:50;not null;default:'general'" json:"purpose"`
	Name      string         `gorm:"size:100;not null" json:"name" binding:"required"`
	Subject   string         `gorm:"size:255" json:"subject"`
	Body      string         `gorm:"type:text" json:"body"`
	IsActive  *bool          `gorm:"not null;default:false" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusinessTemplate struct {
	Family  TemplateFamily `json:"family" binding:"required"`
	Purpose string         `json:"purpose"`
	Name    string         `json:"name" binding:"required"`
	Subject string         `json:"subject"`
	Body    string         `json:"body"`
}

func (obj BusinessTemplate) GetId() int {
	return obj.ID
}

func (t BusinessTemplate) GetCursor() string {
	return t.CreatedAt.String()
}

func (t BusinessTemplate) GetTenantId() string {
	return t.TenantId
}

// familyPurposes fixes the purpose vocabulary per family. Document families
// carry the single "general" purpose; message families enumerate the events
// automations can send for.
var familyPurposes = map[TemplateFamily][]string{
	TemplateFamilyEmail: {
		"quote_sent", "invoice_sent", "payment_reminder",
		"job_confirmation", "job_completed", "quote_accepted", "quote_declined",
	},
	TemplateFamilySms: {
		"sms_quote_sent", "sms_invoice_sent", "sms_payment_reminder",
		"sms_job_confirmation", "sms_job_completed",
		"sms_quote_accepted", "sms_quote_declined",
	},
}

// GetValidPurposesForFamily returns the purpose list for a family. Families
// without an entry take the "general" purpose only.
func GetValidPurposesForFamily(family TemplateFamily) []string {
	if purposes, ok := familyPurposes[family]; ok {
		return purposes
	}
	return []string{"general"}
}

func IsValidPurposeForFamily(family TemplateFamily, purpose string) bool {
	for _, p := range GetValidPurposesForFamily(family) {
		if p == purpose {
			return true
		}
	}
	return false
}

func (input *NewBusinessTemplate) validate(ctx context.Context, tenantId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[BusinessTemplate](ctx, tenantId, id); err != nil {
			return err
		}
	}
	if input.Purpose == "" {
		input.Purpose = "general"
	}
	if !IsValidPurposeForFamily(input.Family, input.Purpose) {
		return fmt.Errorf("purpose %s is not valid for family %s", input.Purpose, input.Family)
	}
	return nil
}

func CreateBusinessTemplate(ctx context.Context, input *NewBusinessTemplate) (*BusinessTemplate, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}

	template := BusinessTemplate{
		TenantId: tenantId,
		Family:   input.Family,
		Purpose:  input.Purpose,
		Name:     input.Name,
		Subject:  input.Subject,
		Body:     input.Body,
		IsActive: utils.NewFalse(),
	}

	if err := db.WithContext(ctx).Create(&template).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

func UpdateBusinessTemplate(ctx context.Context, id int, input *NewBusinessTemplate) (*BusinessTemplate, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}

	template, err := utils.FetchModel[BusinessTemplate](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&template).Updates(map[string]interface{}{
		"Family":  input.Family,
		"Purpose": input.Purpose,
		"Name":    input.Name,
		"Subject": input.Subject,
		"Body":    input.Body,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[BusinessTemplate](id); err != nil {
		return nil, err
	}
	return template, nil
}

// ActivateBusinessTemplate makes the template the single active one for its
// (family, purpose) slot. The deactivate and activate run in one transaction
// so concurrent activations settle on exactly one winner; the per-tenant lock
// keeps them from interleaving in the first place.
func ActivateBusinessTemplate(ctx context.Context, id int) (*BusinessTemplate, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	template, err := utils.FetchModel[BusinessTemplate](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	locker := config.GetRedisLock()
	lockKey := fmt.Sprintf("template-activate:%s:%s:%s", tenantId, template.Family, template.Purpose)
	lock, err := locker.Obtain(ctx, lockKey, 10*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 10),
	})
	if err == nil {
		defer lock.Release(ctx)
	}

	db := config.GetDB()
	tx := db.Begin()

	err = tx.WithContext(ctx).Model(&BusinessTemplate{}).
		Where("tenant_id = ? AND family = ? AND purpose = ? AND id <> ?", tenantId, template.Family, template.Purpose, id).
		Update("is_active", false).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.WithContext(ctx).Model(&template).Update("is_active", true).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(ctx), "UPDATE", id, "business_templates", nil, template, "template activated"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[BusinessTemplate](id); err != nil {
		return nil, err
	}
	return template, nil
}

func DeactivateBusinessTemplate(ctx context.Context, id int) (*BusinessTemplate, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	template, err := utils.FetchModel[BusinessTemplate](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&template).Update("is_active", false).Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[BusinessTemplate](id); err != nil {
		return nil, err
	}
	return template, nil
}

func DeleteBusinessTemplate(ctx context.Context, id int) (*BusinessTemplate, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	template, err := utils.FetchModel[BusinessTemplate](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&template).Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[BusinessTemplate](id); err != nil {
		return nil, err
	}
	return template, nil
}

// ResolveActiveTemplate returns the tenant's active template for the slot, or
// nil when none exists. A miss is not an error; callers fall back to the
// system template.
func ResolveActiveTemplate(ctx context.Context, tx *gorm.DB, tenantId string, family TemplateFamily, purpose string) (*BusinessTemplate, error) {

	var template BusinessTemplate
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND family = ? AND purpose = ? AND is_active = ?", tenantId, family, purpose, true).
		Order("updated_at DESC").
		First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &template, nil
}

// ResolveTemplateContent resolves the subject and body for a slot: the
// tenant's active template when there is one, otherwise the built-in system
// default. Returns an error only when the slot has no default either.
func ResolveTemplateContent(ctx context.Context, tx *gorm.DB, tenantId string, family TemplateFamily, purpose string) (string, string, error) {

	template, err := ResolveActiveTemplate(ctx, tx, tenantId, family, purpose)
	if err != nil {
		return "", "", err
	}
	if template != nil {
		return template.Subject, template.Body, nil
	}

	system, ok := config.GetSystemTemplate(string(family), purpose)
	if !ok {
		return "", "", fmt.Errorf("no template available for %s/%s", family, purpose)
	}
	return system.Subject, system.Body, nil
}

// RenderTemplate substitutes {{placeholder}} tokens. Unknown tokens are left
// in place so a bad template is visible rather than silently blank.
func RenderTemplate(content string, data map[string]string) string {
	for key, value := range data {
		content = strings.ReplaceAll(content, "{{"+key+"}}", value)
	}
	return content
}

func GetBusinessTemplate(ctx context.Context, id int) (*BusinessTemplate, error) {
	return GetResource[BusinessTemplate](ctx, id)
}

func GetBusinessTemplates(ctx context.Context, family *TemplateFamily) ([]*BusinessTemplate, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	var results []*BusinessTemplate
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if family != nil && *family != "" {
		dbCtx = dbCtx.Where("family = ?", *family)
	}
	err := dbCtx.Order("family, purpose, created_at").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

