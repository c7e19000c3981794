package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarket_import/internal/core/models"
	"gomarket_import/migrations/core"
	"gomarket_import/pkg/dbconnect"
	"gomarket_import/pkg/dbconnect/migration"
	"gomarket_import/pkg/dbconnect/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.Apply(db, core.All()...))
	return db
}

func sampleDocument(key string) *models.Document {
	event := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	doc := models.NewDocument(models.DocumentTypeWbSale, key,
		models.Header{
			DocumentNo:    key,
			ConnectionID:  "conn-1",
			MarketplaceID: "mp-wb",
			Marketplace:   models.MarketplaceWildberries,
		},
		[]models.Line{{
			SKU:      "123",
			Name:     "Кружка",
			Qty:      decimal.NewFromInt(1),
			Price:    decimal.RequireFromString("450.50"),
			Amount:   decimal.RequireFromString("450.50"),
			Currency: "RUB",
		}},
		models.State{RawStatus: "sale", Status: models.StatusDelivered, EventAt: event},
		event,
	)
	doc.Metadata = models.Metadata{CreatedAt: event, UpdatedAt: event, Version: 1}
	return doc
}

func TestDocumentRepository_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(newTestDB(t))

	doc := sampleDocument("S-1")
	id, err := repo.Insert(ctx, doc)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := repo.GetByNaturalKey(ctx, models.DocumentTypeWbSale, "S-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, models.DocumentTypeWbSale, got.Source)
	assert.Equal(t, "conn-1", got.Header.ConnectionID)
	assert.Equal(t, 1, got.SourceMeta.DocumentVersion)
	require.Len(t, got.Lines, 1)
	assert.True(t, decimal.RequireFromString("450.5").Equal(got.Lines[0].Amount))
	assert.Equal(t, models.StatusDelivered, got.State.Status)

	missing, err := repo.GetByNaturalKey(ctx, models.DocumentTypeWbSale, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDocumentRepository_UniqueNaturalKey(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(newTestDB(t))

	_, err := repo.Insert(ctx, sampleDocument("S-1"))
	require.NoError(t, err)

	_, err = repo.Insert(ctx, sampleDocument("S-1"))
	require.Error(t, err)
	assert.True(t, dbconnect.IsUniqueViolation(err))
}

func TestDocumentRepository_SoftDeleteFreesKey(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(newTestDB(t))

	id, err := repo.Insert(ctx, sampleDocument("S-1"))
	require.NoError(t, err)

	deleted, err := repo.SoftDelete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.SoftDelete(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err := repo.GetByNaturalKey(ctx, models.DocumentTypeWbSale, "S-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = repo.Insert(ctx, sampleDocument("S-1"))
	require.NoError(t, err)

	n, err := repo.CountByNaturalKey(ctx, models.DocumentTypeWbSale, "S-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDocumentRepository_UpdateAndSetPosted(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(newTestDB(t))

	doc := sampleDocument("S-1")
	_, err := repo.Insert(ctx, doc)
	require.NoError(t, err)

	doc.SourceMeta.DocumentVersion = 2
	doc.Metadata.Version = 2
	doc.State.Status = models.StatusReturned
	require.NoError(t, repo.Update(ctx, doc))
	require.NoError(t, repo.SetPosted(ctx, doc.ID, true))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SourceMeta.DocumentVersion)
	assert.Equal(t, 3, got.Metadata.Version)
	assert.Equal(t, models.StatusReturned, got.State.Status)
	assert.True(t, got.IsPosted)

	err = repo.Update(ctx, &models.Document{ID: "missing", Source: models.DocumentTypeWbSale})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(newTestDB(t))

	nom := "nom-1"
	p := &models.ProductReference{
		Code:            "MP-1",
		Description:     "Кружка",
		Marketplace:     models.MarketplaceOzon,
		MarketplaceID:   "mp-ozon",
		ConnectionID:    "conn-1",
		MarketplaceSKU:  "SKU-1",
		Article:         "SKU-1",
		NomenclatureRef: &nom,
	}
	id, err := repo.Insert(ctx, p)
	require.NoError(t, err)

	got, err := repo.GetByMarketplaceSKU(ctx, "mp-ozon", "SKU-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, models.MarketplaceOzon, got.Marketplace)
	require.NotNil(t, got.NomenclatureRef)
	assert.Equal(t, "nom-1", *got.NomenclatureRef)
	assert.Nil(t, got.Barcode)

	other, err := repo.GetByMarketplaceSKU(ctx, "mp-wb", "SKU-1")
	require.NoError(t, err)
	assert.Nil(t, other)

	linked, err := repo.ListByNomenclatureRef(ctx, "nom-1")
	require.NoError(t, err)
	require.Len(t, linked, 1)

	_, err = repo.Insert(ctx, &models.ProductReference{
		Code: "MP-2", Description: "dup", MarketplaceID: "mp-ozon", ConnectionID: "conn-1", MarketplaceSKU: "SKU-1",
	})
	assert.True(t, dbconnect.IsUniqueViolation(err))

	unlinkedID, err := repo.Insert(ctx, &models.ProductReference{
		Code: "MP-3", Description: "без связи", MarketplaceID: "mp-wb", ConnectionID: "conn-2", MarketplaceSKU: "SKU-3",
	})
	require.NoError(t, err)

	n, err := repo.CountActive(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = repo.CountActive(ctx, "mp-wb")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// постранично по id: вторая страница начинается после последнего id первой
	first, err := repo.ListPage(ctx, "", "", 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	second, err := repo.ListPage(ctx, "", first[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	rest, err := repo.ListPage(ctx, "", second[0].ID, 1)
	require.NoError(t, err)
	assert.Empty(t, rest)

	wb, err := repo.ListPage(ctx, "mp-wb", "", 10)
	require.NoError(t, err)
	require.Len(t, wb, 1)
	assert.Equal(t, unlinkedID, wb[0].ID)

	require.NoError(t, repo.SetNomenclatureRef(ctx, unlinkedID, "nom-3"))
	require.NoError(t, repo.ClearNomenclatureRef(ctx, unlinkedID))
	got, err = repo.GetByID(ctx, unlinkedID)
	require.NoError(t, err)
	assert.Nil(t, got.NomenclatureRef)
}

func TestBarcodeRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBarcodeRepository(newTestDB(t))

	nom := "nom-1"
	require.NoError(t, repo.Upsert(ctx, models.BarcodeEntry{
		Barcode: "4600000000017", Source: models.BarcodeSource1C, NomenclatureRef: &nom, IsActive: true,
	}))

	e, err := repo.Find(ctx, "4600000000017", models.BarcodeSource1C)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "nom-1", *e.NomenclatureRef)

	e, err = repo.Find(ctx, "4600000000017", models.BarcodeSourceWB)
	require.NoError(t, err)
	assert.Nil(t, e)

	nom2 := "nom-2"
	require.NoError(t, repo.Upsert(ctx, models.BarcodeEntry{
		Barcode: "4600000000017", Source: models.BarcodeSource1C, NomenclatureRef: &nom2, IsActive: true,
	}))
	e, err = repo.Find(ctx, "4600000000017", models.BarcodeSource1C)
	require.NoError(t, err)
	assert.Equal(t, "nom-2", *e.NomenclatureRef)

	assert.Error(t, repo.Upsert(ctx, models.BarcodeEntry{Barcode: "bad code!", Source: models.BarcodeSource1C}))
}

func TestNomenclatureRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewNomenclatureRepository(newTestDB(t))

	n := models.Nomenclature{RefKey: "ref-1", Code: "0001", Description: "Кружка", Article: "KR-1"}
	inserted, err := repo.Upsert(ctx, n)
	require.NoError(t, err)
	assert.True(t, inserted)

	n.Description = "Кружка белая"
	inserted, err = repo.Upsert(ctx, n)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := repo.GetByRef(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "Кружка белая", got.Description)

	_, err = repo.Upsert(ctx, models.Nomenclature{RefKey: "folder", Article: "KR-1", IsFolder: true})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, models.Nomenclature{RefKey: "no-article", Description: "Без артикула"})
	require.NoError(t, err)
	found, err := repo.ListWithArticle(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ref-1", found[0].RefKey)
}

func TestConnectionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository(newTestDB(t))

	c := models.Connection{
		ID: "conn-1", Name: "WB main", Marketplace: models.MarketplaceWildberries,
		MarketplaceID: "mp-wb", OrganizationID: "org-1", APIKey: "secret",
	}
	require.NoError(t, repo.Upsert(ctx, c))
	c.Name = "WB renamed"
	require.NoError(t, repo.Upsert(ctx, c))

	got, err := repo.GetByID(ctx, "conn-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "WB renamed", got.Name)
	assert.Equal(t, "secret", got.APIKey)
	assert.Equal(t, models.MarketplaceWildberries, got.Marketplace)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRawPayloadRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRawPayloadRepository(newTestDB(t))

	id, err := repo.Save(ctx, "wb", "wb_sale", "S-1", []byte(`{"srid":"S-1"}`), time.Now())
	require.NoError(t, err)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"srid":"S-1"}`, got.RawJSON)
	assert.Equal(t, "S-1", got.DocumentNo)
}

func TestSalesRegisterRepository_Replace(t *testing.T) {
	ctx := context.Background()
	repo := NewSalesRegisterRepository(newTestDB(t))

	doc := sampleDocument("S-1")
	doc.ID = "doc-1"
	rows := models.SalesRegisterRows(doc)

	require.NoError(t, repo.Replace(ctx, "doc-1", rows))
	require.NoError(t, repo.Replace(ctx, "doc-1", rows))

	n, err := repo.CountForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	listed, err := repo.ListForDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, decimal.RequireFromString("450.5").Equal(listed[0].Amount))
	assert.Equal(t, models.MarketplaceWildberries, listed[0].Marketplace)

	require.NoError(t, repo.DeleteForDocument(ctx, "doc-1"))
	n, err = repo.CountForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}
