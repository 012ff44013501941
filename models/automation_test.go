package models

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/tradietrack/tradietrack_backend/config"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-job-7' for key 'uniq_automation_entity'"}

	if !isDuplicateKeyErr(dup) {
		t.Fatal("mysql error 1062 must read as a duplicate key")
	}
	if !isDuplicateKeyErr(fmt.Errorf("create automation log: %w", dup)) {
		t.Fatal("a wrapped 1062 must still read as a duplicate key")
	}
	if isDuplicateKeyErr(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}) {
		t.Fatal("other mysql errors are not duplicate keys")
	}
	if isDuplicateKeyErr(errors.New("connection refused")) {
		t.Fatal("non-mysql errors are not duplicate keys")
	}
	if isDuplicateKeyErr(nil) {
		t.Fatal("nil is not a duplicate key")
	}
}

func TestChannelFamily(t *testing.T) {
	if channelFamily(NotificationChannelSms) != TemplateFamilySms {
		t.Fatal("sms channel must resolve sms templates")
	}
	if channelFamily(NotificationChannelEmail) != TemplateFamilyEmail {
		t.Fatal("email channel must resolve email templates")
	}
}

func TestNewAutomationValidate(t *testing.T) {
	ctx := context.Background()

	valid := func() *NewAutomation {
		return &NewAutomation{
			Name:       "Invoice sent notice",
			EntityType: AutomationEntityTypeInvoice,
			ToStatus:   string(InvoiceStatusSent),
			Actions: []NewAutomationAction{
				{Channel: NotificationChannelEmail, TemplatePurpose: "invoice_sent"},
			},
		}
	}

	if err := valid().validate(ctx, "tenant-1", 0); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	input := valid()
	input.Actions = nil
	if err := input.validate(ctx, "tenant-1", 0); err == nil {
		t.Fatal("an automation without actions must be rejected")
	}

	input = valid()
	input.DelayMinutes = -5
	if err := input.validate(ctx, "tenant-1", 0); err == nil {
		t.Fatal("a negative delay must be rejected")
	}

	input = valid()
	input.Actions[0].Channel = NotificationChannelSms
	if err := input.validate(ctx, "tenant-1", 0); err == nil {
		t.Fatal("an email purpose on the sms channel must be rejected")
	}
	input.Actions[0].TemplatePurpose = "sms_invoice_sent"
	if err := input.validate(ctx, "tenant-1", 0); err != nil {
		t.Fatalf("sms purpose on the sms channel rejected: %v", err)
	}
}

// Every placeholder a system template uses must be a key automationRenderData
// supplies for that purpose's entity, or the rendered message ships with the
// literal token.
func TestSystemTemplatePlaceholders_Renderable(t *testing.T) {
	common := []string{"business_name", "client_name"}
	perEntity := map[string][]string{
		"job":     {"job_title", "scheduled_date"},
		"quote":   {"quote_number", "total"},
		"invoice": {"invoice_number", "total", "due_date"},
	}

	entityFor := func(purpose string) string {
		p := strings.TrimPrefix(purpose, "sms_")
		switch {
		case strings.HasPrefix(p, "job_"):
			return "job"
		case strings.HasPrefix(p, "quote_"):
			return "quote"
		default:
			// invoice_sent, payment_reminder
			return "invoice"
		}
	}

	tokenRe := regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

	for _, tmpl := range config.ListSystemTemplates() {
		allowed := map[string]bool{}
		for _, k := range common {
			allowed[k] = true
		}
		for _, k := range perEntity[entityFor(tmpl.Purpose)] {
			allowed[k] = true
		}

		for _, m := range tokenRe.FindAllStringSubmatch(tmpl.Subject+"\n"+tmpl.Body, -1) {
			if !allowed[m[1]] {
				t.Fatalf("%s/%s references {{%s}}, which render data never supplies",
					tmpl.Family, tmpl.Purpose, m[1])
			}
		}
	}
}

func TestFormatLocalDate(t *testing.T) {
	// 20:00 UTC on Jan 1 is already Jan 2 in Sydney (UTC+11 in summer).
	utc := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)

	if got := formatLocalDate(utc, "Australia/Sydney"); got != "2024-01-02" {
		t.Fatalf("expected 2024-01-02 in Sydney, got %s", got)
	}
	if got := formatLocalDate(utc, "not/a-zone"); got != "2024-01-01" {
		t.Fatalf("expected UTC fallback 2024-01-01 on a bad zone, got %s", got)
	}
}
