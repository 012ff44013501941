// seed-admin creates or resets the owner account of the first business in the
// database. Intended for fresh environments where sign-in is otherwise
// impossible.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/models"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
)

const (
	adminEmail    = "owner@tradietrack.local"
	adminPassword = "Tr@dieTrackOwner"
	adminName     = "TradieTrack Owner"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	var biz models.Business
	if err := db.WithContext(ctx).Model(&models.Business{}).Select("id").First(&biz).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			fmt.Fprintln(os.Stderr, "no businesses found in DB. Sign up a business first, then rerun seed-admin.")
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "failed to lookup business: %v\n", err)
		os.Exit(1)
	}

	tenantId := biz.ID.String()
	ctx = utils.SetTenantIdInContext(ctx, tenantId)
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("email = ?", adminEmail).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			TenantId: tenantId,
			Name:     adminName,
			Email:    adminEmail,
			Password: string(hashed),
			Role:     models.UserRoleOwner,
			IsActive: utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create owner user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created owner user: email=%q\n", adminEmail)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", adminEmail).Updates(map[string]interface{}{
		"password":  string(hashed),
		"name":      adminName,
		"is_active": utils.NewTrue(),
		"tenant_id": tenantId,
		"role":      models.UserRoleOwner,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update owner user: %v\n", err)
		os.Exit(1)
	}
	_ = utils.RemoveRedisItem[models.User](existing.ID)
	fmt.Printf("Updated owner user: email=%q\n", adminEmail)
}
