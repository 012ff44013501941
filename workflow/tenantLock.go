package workflow

import (
	"context"
	"fmt"

	"github.com/tradietrack/tradietrack_backend/config"
)

const tenantLockTimeoutSeconds = 30

// ObtainTenantLock takes a MySQL advisory lock for one tenant's background
// work. Named locks are connection-scoped, so the same *sql.Conn must hold
// the lock until release; gorm's Connection does that.
//
// Returns the release func. Callers defer it.
func ObtainTenantLock(ctx context.Context, tenantId string, scope string) (func(), error) {
	db := config.GetDB()

	lockName := fmt.Sprintf("%s:%s", scope, tenantId)

	conn, err := db.DB()
	if err != nil {
		return nil, err
	}

	// pin one connection for the lifetime of the lock
	sqlConn, err := conn.Conn(ctx)
	if err != nil {
		return nil, err
	}

	var acquired int
	row := sqlConn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", lockName, tenantLockTimeoutSeconds)
	if err := row.Scan(&acquired); err != nil {
		sqlConn.Close()
		return nil, err
	}
	if acquired != 1 {
		sqlConn.Close()
		return nil, fmt.Errorf("could not obtain lock %s", lockName)
	}

	release := func() {
		_, _ = sqlConn.ExecContext(context.Background(), "SELECT RELEASE_LOCK(?)", lockName)
		sqlConn.Close()
	}
	return release, nil
}
