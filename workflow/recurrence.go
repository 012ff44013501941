package workflow

import (
	"context"
	"time"

	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/models"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
)

// NextOccurrence advances a due date by interval pattern units. Month-based
// patterns clamp to the last day of a short month (Jan 31 + 1 month =
// Feb 28/29) rather than spilling into the next one.
func NextOccurrence(due time.Time, pattern models.RecurrencePattern, interval int) time.Time {
	if interval < 1 {
		interval = 1
	}

	switch pattern {
	case models.RecurrencePatternWeekly:
		return due.AddDate(0, 0, 7*interval)
	case models.RecurrencePatternFortnightly:
		return due.AddDate(0, 0, 14*interval)
	case models.RecurrencePatternMonthly:
		return addMonthsClamped(due, interval)
	case models.RecurrencePatternQuarterly:
		return addMonthsClamped(due, 3*interval)
	case models.RecurrencePatternYearly:
		return addMonthsClamped(due, 12*interval)
	}
	return due
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// seriesCompleted reports whether advancing past nextDue runs the series off
// its end date.
func seriesCompleted(nextDue time.Time, endDate *time.Time) bool {
	return endDate != nil && nextDue.After(*endDate)
}

// RunDueRecurringJobs materializes children for every active recurring job
// whose next date is due. Each parent is processed in its own transaction
// under the tenant lock; one bad parent never stalls the rest.
func RunDueRecurringJobs(ctx context.Context, asOf time.Time) (int, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	skipCtx := utils.SetSkipTenantScopeInContext(ctx, true)

	var parents []*models.Job
	err := db.WithContext(skipCtx).
		Where("recurrence_status = ? AND next_recurrence_date <= ?", models.RecurrenceStatusActive, asOf).
		Find(&parents).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for _, parent := range parents {
		if err := runRecurringJob(ctx, parent); err != nil {
			config.LogError(logger, "workflow", "RunDueRecurringJobs", "materialize", map[string]interface{}{
				"job_id": parent.ID, "tenant_id": parent.TenantId,
			}, err)
			continue
		}
		created++
	}
	return created, nil
}

func runRecurringJob(ctx context.Context, parent *models.Job) error {
	db := config.GetDB()

	unlock, err := ObtainTenantLock(ctx, parent.TenantId, "recurrence")
	if err != nil {
		return err
	}
	defer unlock()

	dueDate := *parent.NextRecurrenceDate

	return db.Transaction(func(tx *gorm.DB) error {
		exists, err := models.ChildJobExists(ctx, tx, parent.ID, dueDate)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := models.MaterializeChildJob(ctx, tx, parent, dueDate); err != nil {
				return err
			}
		}
		return advanceJobSeries(ctx, tx, parent, dueDate)
	})
}

func advanceJobSeries(ctx context.Context, tx *gorm.DB, parent *models.Job, dueDate time.Time) error {
	nextDue := NextOccurrence(dueDate, *parent.RecurrencePattern, parent.RecurrenceInterval)

	updates := map[string]interface{}{
		"NextRecurrenceDate": nextDue,
	}
	if seriesCompleted(nextDue, parent.RecurrenceEndDate) {
		updates["RecurrenceStatus"] = models.RecurrenceStatusCompleted
		updates["NextRecurrenceDate"] = nil
	}
	if err := tx.WithContext(ctx).Model(parent).Updates(updates).Error; err != nil {
		return err
	}
	return utils.RemoveRedisItem[models.Job](parent.ID)
}

// RunDueRecurringInvoices is the invoice counterpart of RunDueRecurringJobs.
func RunDueRecurringInvoices(ctx context.Context, asOf time.Time) (int, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	skipCtx := utils.SetSkipTenantScopeInContext(ctx, true)

	var parents []*models.Invoice
	err := db.WithContext(skipCtx).
		Where("recurrence_status = ? AND next_recurrence_date <= ?", models.RecurrenceStatusActive, asOf).
		Find(&parents).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for _, parent := range parents {
		if err := runRecurringInvoice(ctx, parent); err != nil {
			config.LogError(logger, "workflow", "RunDueRecurringInvoices", "materialize", map[string]interface{}{
				"invoice_id": parent.ID, "tenant_id": parent.TenantId,
			}, err)
			continue
		}
		created++
	}
	return created, nil
}

func runRecurringInvoice(ctx context.Context, parent *models.Invoice) error {
	db := config.GetDB()

	unlock, err := ObtainTenantLock(ctx, parent.TenantId, "recurrence")
	if err != nil {
		return err
	}
	defer unlock()

	dueDate := *parent.NextRecurrenceDate

	return db.Transaction(func(tx *gorm.DB) error {
		exists, err := models.ChildInvoiceExists(ctx, tx, parent.ID, dueDate)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := models.MaterializeChildInvoice(ctx, tx, parent, dueDate); err != nil {
				return err
			}
		}

		nextDue := NextOccurrence(dueDate, *parent.RecurrencePattern, parent.RecurrenceInterval)
		updates := map[string]interface{}{
			"NextRecurrenceDate": nextDue,
		}
		if seriesCompleted(nextDue, parent.RecurrenceEndDate) {
			updates["RecurrenceStatus"] = models.RecurrenceStatusCompleted
			updates["NextRecurrenceDate"] = nil
		}
		if err := tx.WithContext(ctx).Model(parent).Updates(updates).Error; err != nil {
			return err
		}
		return utils.RemoveRedisItem[models.Invoice](parent.ID)
	})
}

// RunDueRecurringContracts creates jobs for contracts whose next job date is
// due. The RecurringSchedule unique key makes a concurrent or repeated run a
// no-op.
func RunDueRecurringContracts(ctx context.Context, asOf time.Time) (int, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	skipCtx := utils.SetSkipTenantScopeInContext(ctx, true)

	var contracts []*models.RecurringContract
	err := db.WithContext(skipCtx).
		Where("status = ? AND next_job_date <= ?", models.RecurrenceStatusActive, asOf).
		Find(&contracts).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for _, contract := range contracts {
		if err := runRecurringContract(ctx, contract); err != nil {
			config.LogError(logger, "workflow", "RunDueRecurringContracts", "materialize", map[string]interface{}{
				"contract_id": contract.ID, "tenant_id": contract.TenantId,
			}, err)
			continue
		}
		created++
	}
	return created, nil
}

func runRecurringContract(ctx context.Context, contract *models.RecurringContract) error {
	db := config.GetDB()

	unlock, err := ObtainTenantLock(ctx, contract.TenantId, "recurrence")
	if err != nil {
		return err
	}
	defer unlock()

	dueDate := *contract.NextJobDate

	return db.Transaction(func(tx *gorm.DB) error {
		if _, _, err := models.MaterializeContractJob(ctx, tx, contract, dueDate); err != nil {
			return err
		}

		nextDue := NextOccurrence(dueDate, contract.Pattern, contract.Interval)
		updates := map[string]interface{}{
			"NextJobDate": nextDue,
		}
		if seriesCompleted(nextDue, contract.EndDate) {
			updates["Status"] = models.RecurrenceStatusCompleted
			updates["NextJobDate"] = nil
		}
		if err := tx.WithContext(ctx).Model(contract).Updates(updates).Error; err != nil {
			return err
		}
		return utils.RemoveRedisItem[models.RecurringContract](contract.ID)
	})
}

// RunAllDueRecurrences is the cron entry point.
func RunAllDueRecurrences(ctx context.Context, asOf time.Time) (int, error) {
	total := 0

	jobs, err := RunDueRecurringJobs(ctx, asOf)
	total += jobs
	if err != nil {
		return total, err
	}

	invoices, err := RunDueRecurringInvoices(ctx, asOf)
	total += invoices
	if err != nil {
		return total, err
	}

	contracts, err := RunDueRecurringContracts(ctx, asOf)
	total += contracts
	return total, err
}
