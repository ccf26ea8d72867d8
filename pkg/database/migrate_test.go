package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testMigrations = fstest.MapFS{
	"002_product_reviews.up.sql":   {Data: []byte("ALTER TABLE products ADD COLUMN reviews JSONB")},
	"001_create_products.up.sql":   {Data: []byte("CREATE TABLE products (id UUID PRIMARY KEY)")},
	"001_create_products.down.sql": {Data: []byte("DROP TABLE products")},
}

const existsQuery = "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)"

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).WithArgs("001_create_products.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).WithArgs("002_product_reviews.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("ALTER TABLE products ADD COLUMN reviews JSONB").
		WillReturnResult(pgxmock.NewResult("ALTER TABLE", 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")).
		WithArgs("002_product_reviews.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, testMigrations, discardLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBackAndIsNotRetried(t *testing.T) {
	noSleep(t)
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).WithArgs("001_create_products.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE products").
		WillReturnError(errors.New("syntax error at or near \"PRIMARY\""))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, testMigrations, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_create_products.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_RetriesConnectionErrors(t *testing.T) {
	waits := noSleep(t)
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnError(errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).WithArgs("001_create_products.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).WithArgs("002_product_reviews.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, RunMigrations(context.Background(), mock, testMigrations, discardLogger()))
	assert.Len(t, *waits, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
