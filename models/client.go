package models

import (
	"context"
	"errors"
	"time"

	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
)

type Client struct {
	ID         int        `gorm:"primary_key" json:"id"`
	TenantId   string     `gorm:"index;not null" json:"tenant_id" binding:"required"`
	Name       string     `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      string     `gorm:"size:255" json:"email"`
	Phone      string     `gorm:"size:20" json:"phone"`
	Mobile     string     `gorm:"size:20" json:"mobile"`
	Address    string     `gorm:"type:text" json:"address"`
	Notes      string     `gorm:"type:text" json:"notes"`
	IsActive   *bool      `gorm:"not null;default:true" json:"is_active"`
	ArchivedAt *time.Time `gorm:"default:null" json:"archived_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewClient struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

type ClientsEdge Edge[Client]
type ClientsConnection struct {
	Edges    []*ClientsEdge `json:"edges"`
	PageInfo *PageInfo      `json:"pageInfo"`
}

func (obj Client) GetId() int {
	return obj.ID
}

func (c Client) GetCursor() string {
	return c.CreatedAt.String()
}

func (c Client) GetTenantId() string {
	return c.TenantId
}

func (input *NewClient) validate(ctx context.Context, tenantId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Client](ctx, tenantId, id); err != nil {
			return err
		}
	}
	// validate unique name
	if err := utils.ValidateUnique[Client](ctx, tenantId, "name", input.Name, id); err != nil {
		return err
	}
	// validate email
	if input.Email != "" {
		if !utils.IsValidEmail(input.Email) {
			return errors.New("invalid email")
		}
		if err := utils.ValidateUnique[Client](ctx, tenantId, "email", input.Email, id); err != nil {
			return err
		}
	}
	// validate phone
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	if input.Mobile != "" {
		if err := utils.ValidatePhoneNumber(input.Mobile, utils.CountryCode); err != nil {
			return errors.New("invalid mobile number")
		}
	}
	return nil
}

func CreateClient(ctx context.Context, input *NewClient) (*Client, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}

	tx := db.Begin()
	if err := ValidateTierQuota(ctx, tx, tenantId, "clients"); err != nil {
		tx.Rollback()
		return nil, err
	}

	client := Client{
		TenantId: tenantId,
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Mobile:   input.Mobile,
		Address:  input.Address,
		Notes:    input.Notes,
		IsActive: utils.NewTrue(),
	}

	if err := tx.WithContext(ctx).Create(&client).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(ctx), "CREATE", client.ID, "clients", nil, client, "client created"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func UpdateClient(ctx context.Context, id int, input *NewClient) (*Client, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}

	oldClient, err := utils.FetchModel[Client](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	client, err := utils.FetchModel[Client](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&client).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Email":   input.Email,
		"Phone":   input.Phone,
		"Mobile":  input.Mobile,
		"Address": input.Address,
		"Notes":   input.Notes,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(ctx), "UPDATE", id, "clients", oldClient, client, "client updated"); err != nil {
		tx.Rollback()
		return nil, err
	}

	// clear cache
	if err := utils.RemoveRedisItem[Client](id); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return client, nil
}

// ArchiveClient soft-archives; the client keeps its rows and can be restored.
func ArchiveClient(ctx context.Context, id int) (*Client, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	client, err := utils.FetchModel[Client](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	now := time.Now()
	err = db.WithContext(ctx).Model(&client).Updates(map[string]interface{}{
		"ArchivedAt": &now,
		"IsActive":   false,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Client](id); err != nil {
		return nil, err
	}
	return client, nil
}

// DeleteClient hard-deletes the client and cascades to every row it owns.
// This is the only path that removes jobs/quotes/invoices outright.
func DeleteClient(ctx context.Context, id int) (*Client, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	result, err := utils.FetchModel[Client](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()

	// cascade: detail rows first, then the documents, then the jobs
	err = tx.WithContext(ctx).
		Where("quote_id IN (?)", tx.Session(&gorm.Session{NewDB: true}).Model(&Quote{}).Where("tenant_id = ? AND client_id = ?", tenantId, id).Select("id")).
		Delete(&QuoteDetail{}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("tenant_id = ? AND client_id = ?", tenantId, id).Delete(&Quote{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.WithContext(ctx).
		Where("invoice_id IN (?)", tx.Session(&gorm.Session{NewDB: true}).Model(&Invoice{}).Where("tenant_id = ? AND client_id = ?", tenantId, id).Select("id")).
		Delete(&InvoiceDetail{}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("tenant_id = ? AND client_id = ?", tenantId, id).Delete(&Invoice{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.WithContext(ctx).Where("tenant_id = ? AND client_id = ?", tenantId, id).Delete(&Job{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.WithContext(ctx).
		Where("recurring_contract_id IN (?)", tx.Session(&gorm.Session{NewDB: true}).Model(&RecurringContract{}).Where("tenant_id = ? AND client_id = ?", tenantId, id).Select("id")).
		Delete(&RecurringSchedule{}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("tenant_id = ? AND client_id = ?", tenantId, id).Delete(&RecurringContract{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.WithContext(ctx).Delete(&result).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(ctx), "DELETE", id, "clients", result, nil, "client deleted with owned records"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// clear cache
	if err := utils.RemoveRedisItem[Client](id); err != nil {
		return nil, err
	}
	return result, nil
}

func GetClient(ctx context.Context, id int) (*Client, error) {
	return GetResource[Client](ctx, id)
}

func GetClients(ctx context.Context, name *string) ([]*Client, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	var results []*Client
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId).Where("archived_at IS NULL")
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateClient(ctx context.Context, limit *int, after *string,
	name *string, phone *string, email *string, isActive *bool) (*ClientsConnection, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if name != nil && *name != "" {
		dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if phone != nil && *phone != "" {
		dbCtx.Where("phone LIKE ?", "%"+*phone+"%")
	}
	if email != nil && *email != "" {
		dbCtx.Where("email LIKE ?", "%"+*email+"%")
	}
	if isActive != nil {
		dbCtx.Where("is_active = ?", isActive)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Client](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var clientsConnection ClientsConnection
	clientsConnection.PageInfo = pageInfo
	for _, edge := range edges {
		clientEdge := ClientsEdge(edge)
		clientsConnection.Edges = append(clientsConnection.Edges, &clientEdge)
	}

	return &clientsConnection, err
}
