package persistence

import (
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/petrijr/fluxotrace/internal/testutil"
)

func TestPostgresEventStoreSuite(t *testing.T) {
	dsn := testutil.PostgresDSN(t)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	store, err := NewPostgresEventStore(db)
	require.NoError(t, err)

	suite.Run(t, &EventStoreSuite{
		newStore: func() EventStore { return store },
	})
}
