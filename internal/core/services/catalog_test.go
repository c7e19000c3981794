package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarket_import/internal/core/models"
)

func TestProductCatalog_SyncProduct(t *testing.T) {
	env := newTestEnv(t)
	catalog := NewProductCatalog(env.products, env.barcodes, env.nomenclature, env.log)
	ctx := context.Background()

	item := CatalogItem{
		Marketplace:   models.MarketplaceOzon,
		MarketplaceID: "mp-ozon",
		ConnectionID:  "conn-ozon",
		SKU:           "OFFER-1",
		Title:         "Кружка",
		Barcodes:      []string{"", "4600000000011", "bad barcode!"},
	}
	inserted, err := catalog.SyncProduct(ctx, item)
	require.NoError(t, err)
	assert.True(t, inserted)

	item.Title = "Кружка большая"
	inserted, err = catalog.SyncProduct(ctx, item)
	require.NoError(t, err)
	assert.False(t, inserted)

	product, err := env.products.GetByMarketplaceSKU(ctx, "mp-ozon", "OFFER-1")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "Кружка большая", product.Description)
	require.NotNil(t, product.Barcode)
	assert.Equal(t, "4600000000011", *product.Barcode)

	entry, err := env.barcodes.Find(ctx, "4600000000011", models.BarcodeSourceOzon)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "OFFER-1", *entry.Article)
}

func TestProductCatalog_SyncProduct_RequiresSKU(t *testing.T) {
	env := newTestEnv(t)
	catalog := NewProductCatalog(env.products, env.barcodes, env.nomenclature, env.log)

	_, err := catalog.SyncProduct(context.Background(), CatalogItem{MarketplaceID: "mp", SKU: "  "})
	assert.Error(t, err)
}

func TestProductCatalog_SyncNomenclature_RegistersBarcodes(t *testing.T) {
	env := newTestEnv(t)
	catalog := NewProductCatalog(env.products, env.barcodes, env.nomenclature, env.log)
	ctx := context.Background()

	inserted, err := catalog.SyncNomenclature(ctx, models.Nomenclature{RefKey: "folder-1", Description: "Посуда", IsFolder: true})
	require.NoError(t, err)
	assert.True(t, inserted)

	n := models.Nomenclature{
		RefKey:      "nom-1",
		ParentKey:   "folder-1",
		Description: "Кружка",
		Article:     "MUG-1",
		Barcodes:    []string{"4600000000028"},
	}
	inserted, err = catalog.SyncNomenclature(ctx, n)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = catalog.SyncNomenclature(ctx, n)
	require.NoError(t, err)
	assert.False(t, inserted)

	entry, err := env.barcodes.Find(ctx, "4600000000028", models.BarcodeSource1C)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "nom-1", *entry.NomenclatureRef)

	// теперь товар маркетплейса с тем же штрихкодом находится через 1С
	engine := NewResolutionEngine(env.products, env.barcodes, env.log)
	_, err = catalog.SyncProduct(ctx, CatalogItem{
		Marketplace: models.MarketplaceWildberries, MarketplaceID: "mp-wb", ConnectionID: "c", SKU: "777",
	})
	require.NoError(t, err)
	p, err := env.products.GetByMarketplaceSKU(ctx, "mp-wb", "777")
	require.NoError(t, err)
	require.NoError(t, env.products.SetNomenclatureRef(ctx, p.ID, "nom-1"))

	id, step, err := engine.Resolve(ctx, FindOrCreateParams{
		Marketplace: models.MarketplaceWildberries, MarketplaceID: "mp-wb", ConnectionID: "c",
		SKU: "888", Barcode: "4600000000028",
	})
	require.NoError(t, err)
	assert.Equal(t, ResolvedByBarcode, step)
	assert.Equal(t, p.ID, id)
}

func TestProductCatalog_SyncNomenclature_RequiresRef(t *testing.T) {
	env := newTestEnv(t)
	catalog := NewProductCatalog(env.products, env.barcodes, env.nomenclature, env.log)

	_, err := catalog.SyncNomenclature(context.Background(), models.Nomenclature{})
	assert.Error(t, err)
}
