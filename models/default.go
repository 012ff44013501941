package models

import (
	"context"

	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
)

// CreateDefaultTemplates seeds a new tenant with its own copy of every
// built-in template, active from day one. Runs inside the business-creation
// transaction.
func CreateDefaultTemplates(tx *gorm.DB, ctx context.Context, tenantId string) error {

	for _, system := range config.ListSystemTemplates() {
		template := BusinessTemplate{
			TenantId: tenantId,
			Family:   TemplateFamily(system.Family),
			Purpose:  system.Purpose,
			Name:     "Default " + system.Purpose,
			Subject:  system.Subject,
			Body:     system.Body,
			IsActive: utils.NewTrue(),
		}
		if err := tx.WithContext(ctx).Create(&template).Error; err != nil {
			return err
		}
	}
	return nil
}
