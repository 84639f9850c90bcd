package voltaictesting

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltaicdata/voltaic/pkg/clickhouse"
	clickhousetesting "github.com/voltaicdata/voltaic/pkg/clickhouse/testing"
)

// ClientInfo holds a migrated test client and its database name.
type ClientInfo struct {
	Client   clickhouse.Client
	Database string
}

// NewClient returns a client bound to a fresh migrated database on the
// shared test container.
func NewClient(t *testing.T, db *clickhousetesting.DB) clickhouse.Client {
	return NewClientWithInfo(t, db).Client
}

// NewClientWithInfo is NewClient plus the generated database name, for tests
// that need to point migrations or raw SQL at the same database.
func NewClientWithInfo(t *testing.T, db *clickhousetesting.DB) *ClientInfo {
	client, database, err := clickhousetesting.NewTestClient(t, db)
	require.NoError(t, err)

	err = clickhouse.Up(t.Context(), NewLogger(), db.MigrationConfig(database))
	require.NoError(t, err)

	return &ClientInfo{
		Client:   client,
		Database: database,
	}
}
