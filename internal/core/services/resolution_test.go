package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gomarket_import/internal/core/models"
	"gomarket_import/pkg/logger"
)

func ozonParams(sku, barcode string) FindOrCreateParams {
	return FindOrCreateParams{
		Marketplace:   models.MarketplaceOzon,
		MarketplaceID: "mp-ozon",
		ConnectionID:  "conn-ozon",
		SKU:           sku,
		Barcode:       barcode,
		Title:         "Кружка белая",
	}
}

func TestFindOrCreate_Deterministic(t *testing.T) {
	env := newTestEnv(t)
	engine := NewResolutionEngine(env.products, env.barcodes, env.log)
	ctx := context.Background()

	first, step, err := engine.Resolve(ctx, ozonParams("SKU-1", ""))
	require.NoError(t, err)
	assert.Equal(t, ResolvedByCreate, step)

	second, step, err := engine.Resolve(ctx, ozonParams("SKU-1", ""))
	require.NoError(t, err)
	assert.Equal(t, ResolvedBySKU, step)
	assert.Equal(t, first, second)

	created, err := env.products.GetByID(ctx, first)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.Code, "MP-AUTO-"))
	assert.Equal(t, "Кружка белая", created.Description)
	assert.Equal(t, "SKU-1", created.Article)
	assert.Nil(t, created.NomenclatureRef)
	require.NotNil(t, created.Comment)
	assert.Contains(t, *created.Comment, "Автоматически создано при импорте [")
}

func TestFindOrCreate_BlankTitle(t *testing.T) {
	env := newTestEnv(t)
	engine := NewResolutionEngine(env.products, env.barcodes, env.log)

	p := ozonParams("SKU-9", "")
	p.Title = "  "
	id, err := engine.FindOrCreate(context.Background(), p)
	require.NoError(t, err)

	created, err := env.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Артикул: SKU-9", created.Description)
}

func TestFindOrCreate_BarcodeFallbackThrough1C(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engine := NewResolutionEngine(env.products, env.barcodes, env.log)

	existingID, err := env.products.Insert(ctx, &models.ProductReference{
		Code: "P-1", Description: "Кружка", Marketplace: models.MarketplaceOzon,
		MarketplaceID: "mp-ozon", ConnectionID: "conn-ozon", MarketplaceSKU: "OLD-SKU",
		NomenclatureRef: strPtr("nom-1"),
	})
	require.NoError(t, err)
	// тот же товар на другом маркетплейсе не должен подхватываться
	_, err = env.products.Insert(ctx, &models.ProductReference{
		Code: "P-2", Description: "Кружка", Marketplace: models.MarketplaceWildberries,
		MarketplaceID: "mp-wb", ConnectionID: "conn-wb", MarketplaceSKU: "WB-SKU",
		NomenclatureRef: strPtr("nom-1"),
	})
	require.NoError(t, err)

	// штрихкод есть у OZON без связи, у 1С -- со связью
	require.NoError(t, env.barcodes.Upsert(ctx, models.BarcodeEntry{Barcode: "460001", Source: models.BarcodeSourceOzon, IsActive: true}))
	require.NoError(t, env.barcodes.Upsert(ctx, models.BarcodeEntry{
		Barcode: "460001", Source: models.BarcodeSource1C, NomenclatureRef: strPtr("nom-1"), IsActive: true,
	}))

	id, step, err := engine.Resolve(ctx, ozonParams("NEW-SKU", "460001"))
	require.NoError(t, err)
	assert.Equal(t, ResolvedByBarcode, step)
	assert.Equal(t, existingID, id)

	nom, ok := engine.ResolveNomenclature(ctx, id)
	assert.True(t, ok)
	assert.Equal(t, "nom-1", nom)
}

func TestFindOrCreate_BarcodeOfOtherMarketplaceCreates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engine := NewResolutionEngine(env.products, env.barcodes, env.log)

	_, err := env.products.Insert(ctx, &models.ProductReference{
		Code: "P-2", Description: "Кружка", Marketplace: models.MarketplaceWildberries,
		MarketplaceID: "mp-wb", ConnectionID: "conn-wb", MarketplaceSKU: "WB-SKU",
		NomenclatureRef: strPtr("nom-1"),
	})
	require.NoError(t, err)
	require.NoError(t, env.barcodes.Upsert(ctx, models.BarcodeEntry{
		Barcode: "460001", Source: models.BarcodeSource1C, NomenclatureRef: strPtr("nom-1"), IsActive: true,
	}))

	_, step, err := engine.Resolve(ctx, ozonParams("NEW-SKU", "460001"))
	require.NoError(t, err)
	assert.Equal(t, ResolvedByCreate, step)

	_, ok := engine.ResolveNomenclature(ctx, "missing")
	assert.False(t, ok)
}

type mockProducts struct {
	mock.Mock
}

func (m *mockProducts) GetByMarketplaceSKU(ctx context.Context, marketplaceID, sku string) (*models.ProductReference, error) {
	args := m.Called(ctx, marketplaceID, sku)
	p, _ := args.Get(0).(*models.ProductReference)
	return p, args.Error(1)
}

func (m *mockProducts) ListByNomenclatureRef(ctx context.Context, ref string) ([]models.ProductReference, error) {
	args := m.Called(ctx, ref)
	p, _ := args.Get(0).([]models.ProductReference)
	return p, args.Error(1)
}

func (m *mockProducts) GetByID(ctx context.Context, id string) (*models.ProductReference, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.ProductReference)
	return p, args.Error(1)
}

func (m *mockProducts) Insert(ctx context.Context, p *models.ProductReference) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

type mockBarcodes struct {
	mock.Mock
}

func (m *mockBarcodes) Find(ctx context.Context, barcode, source string) (*models.BarcodeEntry, error) {
	args := m.Called(ctx, barcode, source)
	e, _ := args.Get(0).(*models.BarcodeEntry)
	return e, args.Error(1)
}

func TestFindOrCreate_LookupFailuresDegradeToCreate(t *testing.T) {
	products := &mockProducts{}
	barcodes := &mockBarcodes{}
	products.On("GetByMarketplaceSKU", mock.Anything, "mp-ozon", "SKU-1").Return(nil, errors.New("db is locked"))
	barcodes.On("Find", mock.Anything, "460001", mock.Anything).Return(nil, errors.New("db is locked"))
	products.On("Insert", mock.Anything, mock.AnythingOfType("*models.ProductReference")).Return("new-id", nil)

	engine := NewResolutionEngine(products, barcodes, logger.Nop())
	id, step, err := engine.Resolve(context.Background(), ozonParams("SKU-1", "460001"))
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)
	assert.Equal(t, ResolvedByCreate, step)
	barcodes.AssertNumberOfCalls(t, "Find", 2)
	products.AssertExpectations(t)
}

func TestFindOrCreate_ConcurrentCreatorWins(t *testing.T) {
	products := &mockProducts{}
	barcodes := &mockBarcodes{}
	products.On("GetByMarketplaceSKU", mock.Anything, "mp-ozon", "SKU-1").Return(nil, nil).Once()
	products.On("Insert", mock.Anything, mock.Anything).Return("", &pq.Error{Code: "23505"})
	products.On("GetByMarketplaceSKU", mock.Anything, "mp-ozon", "SKU-1").
		Return(&models.ProductReference{ID: "winner"}, nil).Once()

	engine := NewResolutionEngine(products, barcodes, logger.Nop())
	id, err := engine.FindOrCreate(context.Background(), ozonParams("SKU-1", ""))
	require.NoError(t, err)
	assert.Equal(t, "winner", id)
	barcodes.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)
}

func TestFindOrCreate_RequiresSKU(t *testing.T) {
	engine := NewResolutionEngine(&mockProducts{}, &mockBarcodes{}, logger.Nop())
	_, err := engine.FindOrCreate(context.Background(), ozonParams(" ", ""))
	assert.Error(t, err)
}
