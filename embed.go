// Package voltaic carries assets embedded at the repository root.
package voltaic

import "embed"

//go:embed db/clickhouse/migrations/*.sql
var ClickHouseMigrationsFS embed.FS
