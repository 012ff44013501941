package reports

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/models"
	"github.com/tradietrack/tradietrack_backend/utils"
)

type InvoiceRegisterRow struct {
	InvoiceId     int             `json:"InvoiceId"`
	InvoiceNumber string          `json:"InvoiceNumber"`
	InvoiceDate   time.Time       `json:"InvoiceDate"`
	ClientName    *string         `json:"ClientName,omitempty"`
	Status        string          `json:"Status"`
	Subtotal      decimal.Decimal `json:"Subtotal"`
	GstAmount     decimal.Decimal `json:"GstAmount"`
	Total         decimal.Decimal `json:"Total"`
}

// GetInvoiceRegisterReport lists every non-void invoice in the date range
// with its GST split, for BAS preparation.
func GetInvoiceRegisterReport(ctx context.Context, fromDate time.Time, toDate time.Time) ([]*InvoiceRegisterRow, error) {

	sql := `
SELECT
    invoices.id AS invoice_id,
    invoices.invoice_number,
    invoices.invoice_date,
    invoices.status,
    invoices.subtotal,
    invoices.gst_amount,
    invoices.total,
    clients.name AS client_name
FROM
    invoices
        LEFT JOIN
    clients ON clients.id = invoices.client_id
WHERE
    invoices.tenant_id = @tenantId
        AND invoices.invoice_date BETWEEN @fromDate AND @toDate
        AND invoices.status <> @voidStatus
ORDER BY invoices.invoice_date, invoices.id;
`

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if toDate.Before(fromDate) {
		return nil, errors.New("to date must not be before from date")
	}

	var records []*InvoiceRegisterRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"tenantId":   tenantId,
		"fromDate":   fromDate,
		"toDate":     toDate,
		"voidStatus": models.InvoiceStatusVoid,
	}).Scan(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r InvoiceRegisterRow) GetCellValues() []interface{} {
	return []interface{}{
		r.InvoiceNumber,
		r.InvoiceDate.Format("2006-01-02"),
		utils.DereferencePtr(r.ClientName),
		r.Status,
		r.Subtotal,
		r.GstAmount,
		r.Total,
	}
}

type JobSummaryRow struct {
	Status   string `json:"Status"`
	JobCount int    `json:"JobCount"`
}

// GetJobSummaryReport counts jobs per status for the tenant's dashboard.
func GetJobSummaryReport(ctx context.Context) ([]*JobSummaryRow, error) {

	sql := `
SELECT
    status, COUNT(id) AS job_count
FROM
    jobs
WHERE
    tenant_id = @tenantId AND archived_at IS NULL
GROUP BY status;
`

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	var records []*JobSummaryRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"tenantId": tenantId,
	}).Scan(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}
