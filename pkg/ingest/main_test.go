package ingest

import (
	"context"
	"os"
	"testing"

	"github.com/voltaicdata/voltaic/pkg/clickhouse"
	clickhousetesting "github.com/voltaicdata/voltaic/pkg/clickhouse/testing"
	"github.com/voltaicdata/voltaic/pkg/voltaictesting"
)

var sharedDB *clickhousetesting.DB

func TestMain(m *testing.M) {
	log := voltaictesting.NewLogger()
	var err error
	sharedDB, err = clickhousetesting.NewDB(context.Background(), log, nil)
	if err != nil {
		log.Error("failed to create shared DB", "error", err)
		os.Exit(1)
	}
	code := m.Run()
	sharedDB.Close()
	os.Exit(code)
}

func testClient(t *testing.T) clickhouse.Client {
	return voltaictesting.NewClient(t, sharedDB)
}
