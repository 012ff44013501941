package models_test

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/models"
	"github.com/tradietrack/tradietrack_backend/utils"
)

// Full-stack regression: an automation fires at most once per entity, whatever
// races or duplicate deliveries hit EvaluateStatusChange. The dedup log's
// unique key is the only guard, so this has to run against real MySQL.
func TestAutomationDedup_DuplicateEvaluationFiresOnce(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := startIntegrationStack(t)

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:          "Sparkys R Us",
		Email:         "owner@sparkys.test",
		OwnerName:     "Owner",
		OwnerPassword: "test-password-1",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	tenantId := biz.ID.String()
	ctx = utils.SetTenantIdInContext(ctx, tenantId)

	client, err := models.CreateClient(ctx, &models.NewClient{
		Name:  "Dave Thompson",
		Email: "dave@example.test",
	})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	automation, err := models.CreateAutomation(ctx, &models.NewAutomation{
		Name:       "Job completed notice",
		EntityType: models.AutomationEntityTypeJob,
		ToStatus:   string(models.JobStatusDone),
		Actions: []models.NewAutomationAction{
			{Channel: models.NotificationChannelEmail, TemplatePurpose: "job_completed"},
		},
	})
	if err != nil {
		t.Fatalf("CreateAutomation: %v", err)
	}

	job, err := models.CreateJob(ctx, &models.NewJob{
		ClientId:    client.ID,
		Title:       "Switchboard upgrade",
		ScheduledAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := models.UpdateJobStatus(ctx, job.ID, models.JobStatusInProgress); err != nil {
		t.Fatalf("UpdateJobStatus(in_progress): %v", err)
	}

	// UpdateJobStatus(done) evaluates the automation once; then hammer the
	// same transition concurrently, simulating duplicate deliveries.
	if _, err := models.UpdateJobStatus(ctx, job.ID, models.JobStatusDone); err != nil {
		t.Fatalf("UpdateJobStatus(done): %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			models.EvaluateStatusChange(ctx, models.AutomationEntityTypeJob, job.ID,
				string(models.JobStatusInProgress), string(models.JobStatusDone))
		}()
	}
	wg.Wait()

	db := config.GetDB()

	var logCount int64
	if err := db.WithContext(ctx).Model(&models.AutomationLog{}).
		Where("automation_id = ? AND entity_id = ?", automation.ID, job.ID).
		Count(&logCount).Error; err != nil {
		t.Fatalf("count automation logs: %v", err)
	}
	if logCount != 1 {
		t.Fatalf("expected exactly 1 dedup log row, got %d", logCount)
	}

	var log models.AutomationLog
	if err := db.WithContext(ctx).
		Where("automation_id = ? AND entity_id = ?", automation.ID, job.ID).
		First(&log).Error; err != nil {
		t.Fatalf("fetch automation log: %v", err)
	}
	if log.Result != models.AutomationResultSuccess {
		t.Fatalf("expected result success, got %s (error=%q)", log.Result, log.ErrorMessage)
	}

	var outboxCount int64
	if err := db.WithContext(ctx).Model(&models.NotificationOutbox{}).
		Where("tenant_id = ?", tenantId).
		Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox rows: %v", err)
	}
	if outboxCount != 1 {
		t.Fatalf("expected exactly 1 queued notification, got %d", outboxCount)
	}

	var outbox models.NotificationOutbox
	if err := db.WithContext(ctx).Where("tenant_id = ?", tenantId).First(&outbox).Error; err != nil {
		t.Fatalf("fetch outbox row: %v", err)
	}
	if outbox.Recipient != "dave@example.test" {
		t.Fatalf("expected the client's email as recipient, got %q", outbox.Recipient)
	}
	if strings.Contains(outbox.Body, "{{") {
		t.Fatalf("unresolved placeholder in rendered body: %q", outbox.Body)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("tradietrack-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("tradietrack-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=tradietrack_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
