package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/models"
	"github.com/tradietrack/tradietrack_backend/utils"
	"github.com/tradietrack/tradietrack_backend/workflow"
)

func startIntegrationStack(t *testing.T) context.Context {
	t.Helper()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "tradietrack_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return ctx
}

// Full-stack regression: activating template A then template B for the same
// slot leaves exactly one active row (B), and deactivating the slot entirely
// falls back to the built-in system content.
func TestTemplateActivation_SwapLeavesSingleActive(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := startIntegrationStack(t)

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:          "Pipes & Co",
		Email:         "owner@pipes.test",
		OwnerName:     "Owner",
		OwnerPassword: "test-password-1",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	tenantId := biz.ID.String()
	ctx = utils.SetTenantIdInContext(ctx, tenantId)

	a, err := models.CreateBusinessTemplate(ctx, &models.NewBusinessTemplate{
		Family:  models.TemplateFamilyEmail,
		Purpose: "invoice_sent",
		Name:    "Friendly",
		Subject: "Invoice {{invoice_number}} from {{business_name}}",
		Body:    "Hi {{client_name}}, invoice {{invoice_number}} is ready.",
	})
	if err != nil {
		t.Fatalf("CreateBusinessTemplate A: %v", err)
	}
	b, err := models.CreateBusinessTemplate(ctx, &models.NewBusinessTemplate{
		Family:  models.TemplateFamilyEmail,
		Purpose: "invoice_sent",
		Name:    "Formal",
		Subject: "Tax invoice {{invoice_number}}",
		Body:    "Dear {{client_name}}, please find invoice {{invoice_number}} for {{total}}.",
	})
	if err != nil {
		t.Fatalf("CreateBusinessTemplate B: %v", err)
	}

	if _, err := models.ActivateBusinessTemplate(ctx, a.ID); err != nil {
		t.Fatalf("ActivateBusinessTemplate A: %v", err)
	}
	if _, err := models.ActivateBusinessTemplate(ctx, b.ID); err != nil {
		t.Fatalf("ActivateBusinessTemplate B: %v", err)
	}

	db := config.GetDB()

	var activeCount int64
	if err := db.WithContext(ctx).Model(&models.BusinessTemplate{}).
		Where("tenant_id = ? AND family = ? AND purpose = ? AND is_active = ?",
			tenantId, models.TemplateFamilyEmail, "invoice_sent", true).
		Count(&activeCount).Error; err != nil {
		t.Fatalf("count active templates: %v", err)
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly 1 active template for the slot, got %d", activeCount)
	}

	active, err := models.ResolveActiveTemplate(ctx, db, tenantId, models.TemplateFamilyEmail, "invoice_sent")
	if err != nil {
		t.Fatalf("ResolveActiveTemplate: %v", err)
	}
	if active == nil || active.ID != b.ID {
		t.Fatalf("expected template B (%d) to be the active one, got %+v", b.ID, active)
	}

	subject, body, err := models.ResolveTemplateContent(ctx, db, tenantId, models.TemplateFamilyEmail, "invoice_sent")
	if err != nil {
		t.Fatalf("ResolveTemplateContent: %v", err)
	}
	if subject != b.Subject || body != b.Body {
		t.Fatalf("resolution must return the active template's content, got subject %q", subject)
	}

	// Empty the slot; resolution must fall back to the built-in default.
	if _, err := models.DeactivateBusinessTemplate(ctx, b.ID); err != nil {
		t.Fatalf("DeactivateBusinessTemplate: %v", err)
	}

	active, err = models.ResolveActiveTemplate(ctx, db, tenantId, models.TemplateFamilyEmail, "invoice_sent")
	if err != nil {
		t.Fatalf("ResolveActiveTemplate after deactivate: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active template, got id %d", active.ID)
	}

	system, ok := config.GetSystemTemplate(string(models.TemplateFamilyEmail), "invoice_sent")
	if !ok {
		t.Fatal("expected a built-in default for email/invoice_sent")
	}
	subject, body, err = models.ResolveTemplateContent(ctx, db, tenantId, models.TemplateFamilyEmail, "invoice_sent")
	if err != nil {
		t.Fatalf("ResolveTemplateContent fallback: %v", err)
	}
	if subject != system.Subject || body != system.Body {
		t.Fatalf("expected the system default content, got subject %q", subject)
	}
}

// Full-stack regression: re-running the recurrence pass over the same due date
// creates exactly one child job. Simulates a crash between child creation and
// series advancement by winding next_recurrence_date back.
func TestRecurringJobMaterialization_RerunCreatesOneChild(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := startIntegrationStack(t)

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:          "Mow Town",
		Email:         "owner@mowtown.test",
		OwnerName:     "Owner",
		OwnerPassword: "test-password-1",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	tenantId := biz.ID.String()
	ctx = utils.SetTenantIdInContext(ctx, tenantId)

	client, err := models.CreateClient(ctx, &models.NewClient{Name: "Strata 42"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	weekly := models.RecurrencePatternWeekly
	scheduled := time.Now().Add(-14 * 24 * time.Hour).Truncate(time.Second)
	due := scheduled.Add(7 * 24 * time.Hour)
	parent, err := models.CreateJob(ctx, &models.NewJob{
		ClientId:           client.ID,
		Title:              "Weekly mow",
		ScheduledAt:        scheduled,
		RecurrencePattern:  &weekly,
		RecurrenceInterval: 1,
		NextRecurrenceDate: &due,
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	created, err := workflow.RunDueRecurringJobs(ctx, time.Now())
	if err != nil {
		t.Fatalf("RunDueRecurringJobs: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 materialized parent, got %d", created)
	}

	db := config.GetDB()

	countChildren := func() int64 {
		var n int64
		if err := db.WithContext(ctx).Model(&models.Job{}).
			Where("parent_job_id = ?", parent.ID).
			Count(&n).Error; err != nil {
			t.Fatalf("count children: %v", err)
		}
		return n
	}
	if n := countChildren(); n != 1 {
		t.Fatalf("expected 1 child job after first run, got %d", n)
	}

	// Wind the parent back to the already-materialized due date, as if the
	// series advance never committed, and run the pass again.
	if err := db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", parent.ID).
		Updates(map[string]interface{}{
			"NextRecurrenceDate": due,
			"RecurrenceStatus":   models.RecurrenceStatusActive,
		}).Error; err != nil {
		t.Fatalf("rewind parent: %v", err)
	}
	if err := utils.RemoveRedisItem[models.Job](parent.ID); err != nil {
		t.Fatalf("drop cached parent: %v", err)
	}

	created, err = workflow.RunDueRecurringJobs(ctx, time.Now())
	if err != nil {
		t.Fatalf("RunDueRecurringJobs rerun: %v", err)
	}
	if created != 1 {
		t.Fatalf("rerun should process the parent without error, got %d", created)
	}
	if n := countChildren(); n != 1 {
		t.Fatalf("expected the rerun to skip the existing child, got %d children", n)
	}

	var refreshed models.Job
	if err := db.WithContext(ctx).Where("id = ?", parent.ID).First(&refreshed).Error; err != nil {
		t.Fatalf("fetch parent: %v", err)
	}
	if refreshed.NextRecurrenceDate == nil || !refreshed.NextRecurrenceDate.After(due) {
		t.Fatalf("parent series must advance past the materialized date, got %v", refreshed.NextRecurrenceDate)
	}
}
