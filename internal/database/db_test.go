package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyDatabaseURL(t *testing.T) {
	db, err := New("")
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "DATABASE_URL environment variable not set")
}

func TestNewStore_NilHandle(t *testing.T) {
	store, err := NewStore(nil)
	assert.Error(t, err)
	assert.Nil(t, store)
}

// newMockStore returns a store backed by sqlmock, skipping migration
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewStoreWithoutMigrate(db), mock
}
