package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarket_import/pkg/dbconnect"
)

func TestDocumentRepository_Insert_PostgresUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	repo := NewDocumentRepository(db)
	_, err = repo.Insert(context.Background(), sampleDocument("S-1"))
	require.Error(t, err)
	assert.True(t, dbconnect.IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
