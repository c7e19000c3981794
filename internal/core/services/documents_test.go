package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarket_import/internal/core/models"
)

func TestUpsert_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	store := env.store()
	ctx := context.Background()

	first, err := store.Upsert(ctx, saleDocument("S-1", "100"), []byte(`{"srid":"S-1","v":1}`))
	require.NoError(t, err)
	assert.True(t, first.Inserted)
	assert.Equal(t, 1, first.DocumentVersion)

	second, err := store.Upsert(ctx, saleDocument("S-1", "150"), []byte(`{"srid":"S-1","v":2}`))
	require.NoError(t, err)
	assert.False(t, second.Inserted)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.DocumentVersion)

	n, err := env.docs.CountByNaturalKey(ctx, models.DocumentTypeWbSale, "S-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("150").Equal(got.Lines[0].Amount))
	assert.Equal(t, 2, got.Metadata.Version)

	raw, err := env.raw.Get(ctx, got.SourceMeta.RawPayloadRef)
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.JSONEq(t, `{"srid":"S-1","v":2}`, raw.RawJSON)
}

func TestUpsert_KeepsCreatedAtAndPosting(t *testing.T) {
	env := newTestEnv(t)
	store := env.store()
	ctx := context.Background()

	res, err := store.Upsert(ctx, saleDocument("S-1", "100"), nil)
	require.NoError(t, err)
	require.NoError(t, env.posting().Post(ctx, res.ID))
	before, err := store.Get(ctx, res.ID)
	require.NoError(t, err)

	_, err = store.Upsert(ctx, saleDocument("S-1", "175.5"), nil)
	require.NoError(t, err)

	after, err := store.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, after.IsPosted)
	assert.True(t, before.Metadata.CreatedAt.Equal(after.Metadata.CreatedAt))

	rows, err := env.projections.ListForDocument(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, decimal.RequireFromString("175.5").Equal(rows[0].Amount))
}

func TestUpsert_InvalidDocument(t *testing.T) {
	env := newTestEnv(t)
	doc := saleDocument("", "100")
	_, err := env.store().Upsert(context.Background(), doc, nil)
	assert.Error(t, err)

	doc = saleDocument("S-1", "100")
	doc.Header.ConnectionID = ""
	_, err = env.store().Upsert(context.Background(), doc, nil)
	assert.Error(t, err)
}

func TestUpsert_ConcurrentSameKey(t *testing.T) {
	env := newTestEnv(t)
	store := env.store()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Upsert(ctx, saleDocument("S-1", "100"), nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := env.docs.CountByNaturalKey(ctx, models.DocumentTypeWbSale, "S-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, err := env.docs.GetByNaturalKey(ctx, models.DocumentTypeWbSale, "S-1")
	require.NoError(t, err)
	assert.Equal(t, 8, doc.SourceMeta.DocumentVersion)
}

// racingRepository имитирует вставку из другого процесса между чтением и записью.
type racingRepository struct {
	DocumentRepository
}

func (r racingRepository) GetByNaturalKey(context.Context, models.DocumentType, string) (*models.Document, error) {
	return nil, nil
}

func (r racingRepository) Insert(context.Context, *models.Document) (string, error) {
	return "", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
}

func TestUpsert_NaturalKeyConflict(t *testing.T) {
	env := newTestEnv(t)
	store := NewDocumentStore(racingRepository{env.docs}, nil, nil, env.log)

	_, err := store.Upsert(context.Background(), saleDocument("S-1", "100"), nil)
	require.Error(t, err)

	var conflict *NaturalKeyConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "S-1", conflict.Key)
	assert.Contains(t, err.Error(), "concurrent imports")
}

func TestPosting_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	posting := env.posting()

	res, err := env.store().Upsert(ctx, saleDocument("S-1", "100"), nil)
	require.NoError(t, err)

	require.NoError(t, posting.Post(ctx, res.ID))
	require.NoError(t, posting.Post(ctx, res.ID))
	n, err := env.projections.CountForDocument(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, posting.Unpost(ctx, res.ID))
	require.NoError(t, posting.Unpost(ctx, res.ID))
	n, err = env.projections.CountForDocument(ctx, res.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	doc, err := env.docs.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, doc.IsPosted)
}

func TestPosting_MissingAndDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := env.store()

	assert.ErrorIs(t, env.posting().Post(ctx, "missing"), ErrDocumentNotFound)

	res, err := store.Upsert(ctx, saleDocument("S-1", "100"), nil)
	require.NoError(t, err)
	require.NoError(t, env.posting().Post(ctx, res.ID))

	deleted, err := store.Delete(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	n, err := env.projections.CountForDocument(ctx, res.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, env.posting().Post(ctx, res.ID), ErrDocumentDeleted)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestKeyedMutex_ReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	unlockB := k.Lock("b")
	unlock()
	unlockB()
	assert.Empty(t, k.locks)
}
