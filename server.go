package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/middlewares"
	"github.com/tradietrack/tradietrack_backend/models"
	"github.com/tradietrack/tradietrack_backend/models/reports"
	"github.com/tradietrack/tradietrack_backend/utils"
	"github.com/tradietrack/tradietrack_backend/workflow"
)

const defaultPort = "8080"

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func respond(c *gin.Context, result interface{}, err error) {
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func limitQuery(c *gin.Context) *int {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	return &limit
}

func afterQuery(c *gin.Context) *string {
	if v := c.Query("after"); v != "" {
		return &v
	}
	return nil
}

func strQuery(c *gin.Context, name string) *string {
	if v := c.Query(name); v != "" {
		return &v
	}
	return nil
}

func intQuery(c *gin.Context, name string) *int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

func signinHandler(c *gin.Context) {
	var input models.SigninInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	payload, err := models.SigninUser(c.Request.Context(), &input)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, payload)
}

func signupHandler(c *gin.Context) {
	var input models.NewBusiness
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	business, err := models.CreateBusiness(c.Request.Context(), &input)
	respond(c, business, err)
}

// runRecurrencesHandler is the cron trigger. Guarded by a shared secret so
// only the scheduler can hit it.
func runRecurrencesHandler(c *gin.Context) {
	secret := os.Getenv("INTERNAL_API_SECRET")
	if secret == "" || c.GetHeader("x-internal-secret") != secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	asOf := time.Now()
	if v := c.Query("as_of"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid as_of"})
			return
		}
		asOf = parsed
	}

	created, err := workflow.RunAllDueRecurrences(c.Request.Context(), asOf)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "created": created})
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

// notificationsPubSubHandler receives delivery acknowledgements pushed back
// by the notifications subscription.
func notificationsPubSubHandler(c *gin.Context) {
	logger := config.GetLogger()

	var msg PubSubMessage
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		config.LogError(logger, "server.go", "notificationsPubSubHandler", "io.ReadAll", nil, err)
		// malformed request body: ack/drop to avoid infinite retries
		c.Status(http.StatusNoContent)
		return
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		config.LogError(logger, "server.go", "notificationsPubSubHandler", "Unmarshal body", body, err)
		c.Status(http.StatusNoContent)
		return
	}

	var m config.NotificationMessage
	if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
		config.LogError(logger, "server.go", "notificationsPubSubHandler", "Unmarshal message", msg.Message.Data, err)
		c.Status(http.StatusNoContent)
		return
	}
	if m.CorrelationId == "" {
		m.CorrelationId = msg.Message.ID
	}

	if err := models.MarkNotificationSentByCorrelation(c.Request.Context(), m.CorrelationId); err != nil {
		config.LogError(logger, "server.go", "notificationsPubSubHandler", "mark sent", m, err)
		// non-2xx tells Pub/Sub to retry
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

func invoiceRegisterHandler(c *gin.Context) {
	fromDate, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
		return
	}
	toDate, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
		return
	}

	rows, err := reports.GetInvoiceRegisterReport(c.Request.Context(), fromDate, toDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if c.Query("format") == "xlsx" {
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=invoice-register.xlsx")
		if err := reports.ExportInvoiceRegisterXlsx(c.Writer, rows); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, rows)
}

func registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api", middlewares.RequireTenant())

	api.GET("/business", func(c *gin.Context) {
		business, err := models.GetBusiness(c.Request.Context())
		respond(c, business, err)
	})
	api.PUT("/business", func(c *gin.Context) {
		var input models.NewBusiness
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		business, err := models.UpdateBusiness(c.Request.Context(), &input)
		respond(c, business, err)
	})

	api.POST("/users", func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		respond(c, user, err)
	})
	api.GET("/users", func(c *gin.Context) {
		users, err := models.GetUsers(c.Request.Context(), strQuery(c, "name"))
		respond(c, users, err)
	})
	api.PUT("/users/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		user, err := models.UpdateUser(c.Request.Context(), id, &input)
		respond(c, user, err)
	})

	api.POST("/clients", func(c *gin.Context) {
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		client, err := models.CreateClient(c.Request.Context(), &input)
		respond(c, client, err)
	})
	api.GET("/clients", func(c *gin.Context) {
		page, err := models.PaginateClient(c.Request.Context(), limitQuery(c), afterQuery(c),
			strQuery(c, "name"), strQuery(c, "phone"), strQuery(c, "email"), nil)
		respond(c, page, err)
	})
	api.GET("/clients/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		client, err := models.GetClient(c.Request.Context(), id)
		respond(c, client, err)
	})
	api.PUT("/clients/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		client, err := models.UpdateClient(c.Request.Context(), id, &input)
		respond(c, client, err)
	})
	api.POST("/clients/:id/archive", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		client, err := models.ArchiveClient(c.Request.Context(), id)
		respond(c, client, err)
	})
	api.DELETE("/clients/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		client, err := models.DeleteClient(c.Request.Context(), id)
		respond(c, client, err)
	})

	api.POST("/jobs", func(c *gin.Context) {
		var input models.NewJob
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		job, err := models.CreateJob(c.Request.Context(), &input)
		respond(c, job, err)
	})
	api.GET("/jobs", func(c *gin.Context) {
		var status *models.JobStatus
		if v := c.Query("status"); v != "" {
			s := models.JobStatus(v)
			status = &s
		}
		page, err := models.PaginateJob(c.Request.Context(), limitQuery(c), afterQuery(c),
			strQuery(c, "title"), status, intQuery(c, "client_id"))
		respond(c, page, err)
	})
	api.GET("/jobs/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		job, err := models.GetJob(c.Request.Context(), id)
		respond(c, job, err)
	})
	api.PUT("/jobs/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewJob
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		job, err := models.UpdateJob(c.Request.Context(), id, &input)
		respond(c, job, err)
	})
	api.POST("/jobs/:id/status", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input struct {
			Status models.JobStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		job, err := models.UpdateJobStatus(c.Request.Context(), id, input.Status)
		respond(c, job, err)
	})
	api.POST("/jobs/:id/recurrence/pause", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		job, err := models.PauseJobRecurrence(c.Request.Context(), id, true)
		respond(c, job, err)
	})
	api.POST("/jobs/:id/recurrence/resume", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		job, err := models.PauseJobRecurrence(c.Request.Context(), id, false)
		respond(c, job, err)
	})
	api.POST("/jobs/:id/archive", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		job, err := models.ArchiveJob(c.Request.Context(), id)
		respond(c, job, err)
	})

	api.POST("/quotes", func(c *gin.Context) {
		var input models.NewQuote
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		quote, err := models.CreateQuote(c.Request.Context(), &input)
		respond(c, quote, err)
	})
	api.GET("/quotes", func(c *gin.Context) {
		var status *models.QuoteStatus
		if v := c.Query("status"); v != "" {
			s := models.QuoteStatus(v)
			status = &s
		}
		page, err := models.PaginateQuote(c.Request.Context(), limitQuery(c), afterQuery(c),
			strQuery(c, "number"), status, intQuery(c, "client_id"))
		respond(c, page, err)
	})
	api.GET("/quotes/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		quote, err := models.GetQuote(c.Request.Context(), id)
		respond(c, quote, err)
	})
	api.PUT("/quotes/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewQuote
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		quote, err := models.UpdateQuote(c.Request.Context(), id, &input)
		respond(c, quote, err)
	})
	api.POST("/quotes/:id/status", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input struct {
			Status models.QuoteStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		quote, err := models.UpdateQuoteStatus(c.Request.Context(), id, input.Status)
		respond(c, quote, err)
	})
	api.DELETE("/quotes/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		quote, err := models.DeleteQuote(c.Request.Context(), id)
		respond(c, quote, err)
	})

	api.POST("/invoices", func(c *gin.Context) {
		var input models.NewInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		invoice, err := models.CreateInvoice(c.Request.Context(), &input)
		respond(c, invoice, err)
	})
	api.GET("/invoices", func(c *gin.Context) {
		var status *models.InvoiceStatus
		if v := c.Query("status"); v != "" {
			s := models.InvoiceStatus(v)
			status = &s
		}
		page, err := models.PaginateInvoice(c.Request.Context(), limitQuery(c), afterQuery(c),
			strQuery(c, "number"), status, intQuery(c, "client_id"))
		respond(c, page, err)
	})
	api.GET("/invoices/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		invoice, err := models.GetInvoice(c.Request.Context(), id)
		respond(c, invoice, err)
	})
	api.PUT("/invoices/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		invoice, err := models.UpdateInvoice(c.Request.Context(), id, &input)
		respond(c, invoice, err)
	})
	api.POST("/invoices/:id/status", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input struct {
			Status models.InvoiceStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		invoice, err := models.UpdateInvoiceStatus(c.Request.Context(), id, input.Status)
		respond(c, invoice, err)
	})
	api.DELETE("/invoices/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		invoice, err := models.DeleteInvoice(c.Request.Context(), id)
		respond(c, invoice, err)
	})

	api.POST("/templates", func(c *gin.Context) {
		var input models.NewBusinessTemplate
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		template, err := models.CreateBusinessTemplate(c.Request.Context(), &input)
		respond(c, template, err)
	})
	api.GET("/templates", func(c *gin.Context) {
		var family *models.TemplateFamily
		if v := c.Query("family"); v != "" {
			f := models.TemplateFamily(v)
			family = &f
		}
		templates, err := models.GetBusinessTemplates(c.Request.Context(), family)
		respond(c, templates, err)
	})
	api.GET("/templates/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		template, err := models.GetBusinessTemplate(c.Request.Context(), id)
		respond(c, template, err)
	})
	api.PUT("/templates/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewBusinessTemplate
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		template, err := models.UpdateBusinessTemplate(c.Request.Context(), id, &input)
		respond(c, template, err)
	})
	api.POST("/templates/:id/activate", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		template, err := models.ActivateBusinessTemplate(c.Request.Context(), id)
		respond(c, template, err)
	})
	api.POST("/templates/:id/deactivate", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		template, err := models.DeactivateBusinessTemplate(c.Request.Context(), id)
		respond(c, template, err)
	})
	api.DELETE("/templates/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		template, err := models.DeleteBusinessTemplate(c.Request.Context(), id)
		respond(c, template, err)
	})

	api.POST("/automations", func(c *gin.Context) {
		var input models.NewAutomation
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		automation, err := models.CreateAutomation(c.Request.Context(), &input)
		respond(c, automation, err)
	})
	api.GET("/automations", func(c *gin.Context) {
		var entityType *models.AutomationEntityType
		if v := c.Query("entity_type"); v != "" {
			e := models.AutomationEntityType(v)
			entityType = &e
		}
		automations, err := models.GetAutomations(c.Request.Context(), entityType)
		respond(c, automations, err)
	})
	api.GET("/automations/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		automation, err := models.GetAutomation(c.Request.Context(), id)
		respond(c, automation, err)
	})
	api.PUT("/automations/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewAutomation
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		automation, err := models.UpdateAutomation(c.Request.Context(), id, &input)
		respond(c, automation, err)
	})
	api.POST("/automations/:id/activate", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		automation, err := models.ToggleActiveAutomation(c.Request.Context(), id, true)
		respond(c, automation, err)
	})
	api.POST("/automations/:id/deactivate", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		automation, err := models.ToggleActiveAutomation(c.Request.Context(), id, false)
		respond(c, automation, err)
	})
	api.DELETE("/automations/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		automation, err := models.DeleteAutomation(c.Request.Context(), id)
		respond(c, automation, err)
	})
	api.GET("/automation-logs", func(c *gin.Context) {
		var entityType *models.AutomationEntityType
		if v := c.Query("entity_type"); v != "" {
			e := models.AutomationEntityType(v)
			entityType = &e
		}
		logs, err := models.GetAutomationLogs(c.Request.Context(),
			intQuery(c, "automation_id"), entityType, intQuery(c, "entity_id"))
		respond(c, logs, err)
	})

	api.POST("/contracts", func(c *gin.Context) {
		var input models.NewRecurringContract
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		contract, err := models.CreateRecurringContract(c.Request.Context(), &input)
		respond(c, contract, err)
	})
	api.GET("/contracts", func(c *gin.Context) {
		var status *models.RecurrenceStatus
		if v := c.Query("status"); v != "" {
			s := models.RecurrenceStatus(v)
			status = &s
		}
		contracts, err := models.GetRecurringContracts(c.Request.Context(), status, intQuery(c, "client_id"))
		respond(c, contracts, err)
	})
	api.GET("/contracts/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		contract, err := models.GetRecurringContract(c.Request.Context(), id)
		respond(c, contract, err)
	})
	api.PUT("/contracts/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewRecurringContract
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		contract, err := models.UpdateRecurringContract(c.Request.Context(), id, &input)
		respond(c, contract, err)
	})
	api.POST("/contracts/:id/pause", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		contract, err := models.PauseRecurringContract(c.Request.Context(), id, true)
		respond(c, contract, err)
	})
	api.POST("/contracts/:id/resume", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		contract, err := models.PauseRecurringContract(c.Request.Context(), id, false)
		respond(c, contract, err)
	})
	api.DELETE("/contracts/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		contract, err := models.DeleteRecurringContract(c.Request.Context(), id)
		respond(c, contract, err)
	})

	api.GET("/histories", func(c *gin.Context) {
		page, err := models.PaginateHistory(c.Request.Context(), limitQuery(c), afterQuery(c),
			strQuery(c, "reference_type"), intQuery(c, "reference_id"))
		respond(c, page, err)
	})
	api.GET("/outbox", func(c *gin.Context) {
		var status *models.OutboxPublishStatus
		if v := c.Query("status"); v != "" {
			s := models.OutboxPublishStatus(v)
			status = &s
		}
		page, err := models.PaginateNotificationOutbox(c.Request.Context(), limitQuery(c), afterQuery(c), status, nil)
		respond(c, page, err)
	})
	api.GET("/reports/invoice-register", invoiceRegisterHandler)
	api.GET("/reports/job-summary", func(c *gin.Context) {
		summary, err := reports.GetJobSummaryReport(c.Request.Context())
		respond(c, summary, err)
	})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// deny all if not configured in production
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/auth/signup", signupHandler)
	r.POST("/auth/signin", signinHandler)
	r.POST("/internal/run-recurrences", runRecurrencesHandler)
	r.POST("/notifications/pubsub", notificationsPubSubHandler)
	registerAPIRoutes(r)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	// Start listening immediately; Cloud Run's TCP startup check must pass
	// before the DB is reachable.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running it as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Error("migration failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start the outbox dispatcher (delivers AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewNotificationDispatcher(workflow.LogSender{}).Run(dispatcherCtx, 15*time.Second)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while draining.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that errored.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
