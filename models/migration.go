package models

import (
	"github.com/tradietrack/tradietrack_backend/config"
)

// MigrateTable creates or updates every table. Run on startup.
func MigrateTable() error {
	db := config.GetDB()

	return db.AutoMigrate(
		&Business{},
		&User{},
		&Client{},
		&Job{},
		&Quote{},
		&QuoteDetail{},
		&Invoice{},
		&InvoiceDetail{},
		&BusinessTemplate{},
		&Automation{},
		&AutomationAction{},
		&AutomationLog{},
		&RecurringContract{},
		&RecurringSchedule{},
		&NotificationOutbox{},
		&History{},
	)
}
