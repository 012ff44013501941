package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
)

// History is the audit trail. Rows are written inside the same transaction as
// the change they describe.
type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	TenantId      string    `gorm:"index;not null" json:"tenant_id"`
	UserId        int       `gorm:"index" json:"user_id"`
	ActionType    string    `gorm:"size:20;not null" json:"action_type"`
	ReferenceId   int       `gorm:"index;not null" json:"reference_id"`
	ReferenceType string    `gorm:"size:50;index;not null" json:"reference_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"size:255" json:"description"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type HistoriesEdge Edge[History]
type HistoriesConnection struct {
	Edges    []*HistoriesEdge `json:"edges"`
	PageInfo *PageInfo        `json:"pageInfo"`
}

func (obj History) GetId() int {
	return obj.ID
}

func (h History) GetCursor() string {
	return h.CreatedAt.String()
}

func marshalSnapshot(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func createHistory(tx *gorm.DB, actionType string, referenceId int, referenceType string,
	before interface{}, after interface{}, description string) error {

	ctx := tx.Statement.Context
	tenantId, _ := utils.GetTenantIdFromContext(ctx)
	userId, _ := utils.GetUserIdFromContext(ctx)

	history := History{
		TenantId:      tenantId,
		UserId:        userId,
		ActionType:    actionType,
		ReferenceId:   referenceId,
		ReferenceType: referenceType,
		Before:        marshalSnapshot(before),
		After:         marshalSnapshot(after),
		Description:   description,
	}
	return tx.Create(&history).Error
}

func PaginateHistory(ctx context.Context, limit *int, after *string,
	referenceType *string, referenceId *int) (*HistoriesConnection, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if referenceType != nil && *referenceType != "" {
		dbCtx.Where("reference_type = ?", *referenceType)
	}
	if referenceId != nil && *referenceId > 0 {
		dbCtx.Where("reference_id = ?", *referenceId)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[History](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var historiesConnection HistoriesConnection
	historiesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		historyEdge := HistoriesEdge(edge)
		historiesConnection.Edges = append(historiesConnection.Edges, &historyEdge)
	}

	return &historiesConnection, err
}
