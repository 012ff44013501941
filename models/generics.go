package models

import (
	"context"
	"errors"

	"github.com/tradietrack/tradietrack_backend/utils"
)

// Resource is any tenant-owned model. The tenant check after a cache hit is
// what keeps one tenant's cached rows invisible to another.
type Resource interface {
	GetTenantId() string
}

// GetResource reads through the cache: redis first, then the database with a
// store-back. Ownership is verified on both paths.
func GetResource[T Resource](ctx context.Context, id int, associations ...string) (*T, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if cached, err := utils.RetrieveRedis[T](id); err == nil && cached != nil {
		if (*cached).GetTenantId() == tenantId {
			return cached, nil
		}
		return nil, utils.ErrorRecordNotFound
	}

	result, err := utils.FetchModel[T](ctx, tenantId, id, associations...)
	if err != nil {
		return nil, err
	}

	if err := utils.StoreRedis[T](result, id); err != nil {
		return nil, err
	}
	return result, nil
}
