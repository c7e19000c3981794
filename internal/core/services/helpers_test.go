package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/storage"
	"gomarket_import/migrations/core"
	"gomarket_import/pkg/dbconnect/migration"
	"gomarket_import/pkg/dbconnect/sqlite"
	"gomarket_import/pkg/logger"
)

type testEnv struct {
	products     *storage.ProductRepository
	barcodes     *storage.BarcodeRepository
	nomenclature *storage.NomenclatureRepository
	docs         *storage.DocumentRepository
	projections  *storage.SalesRegisterRepository
	raw          *storage.RawPayloadRepository
	log          *logger.BaseLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.Apply(db, core.All()...))

	return &testEnv{
		products:     storage.NewProductRepository(db),
		barcodes:     storage.NewBarcodeRepository(db),
		nomenclature: storage.NewNomenclatureRepository(db),
		docs:         storage.NewDocumentRepository(db),
		projections:  storage.NewSalesRegisterRepository(db),
		raw:          storage.NewRawPayloadRepository(db),
		log:          logger.Nop(),
	}
}

func (e *testEnv) posting() *PostingService {
	return NewPostingService(e.docs, e.projections, e.log)
}

func (e *testEnv) store() *DocumentStore {
	return NewDocumentStore(e.docs, e.raw, e.posting(), e.log)
}

func saleDocument(key, amount string) *models.Document {
	event := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return models.NewDocument(models.DocumentTypeWbSale, key,
		models.Header{
			DocumentNo:    key,
			ConnectionID:  "conn-wb",
			MarketplaceID: "mp-wb",
			Marketplace:   models.MarketplaceWildberries,
		},
		[]models.Line{
			{SKU: "111", Name: "Кружка", Qty: decimal.NewFromInt(1), Amount: decimal.RequireFromString(amount), Currency: "RUB"},
			{SKU: "222", Name: "Ложка", Qty: decimal.NewFromInt(2), Amount: decimal.RequireFromString("10"), Currency: "RUB"},
		},
		models.State{RawStatus: "S", Status: models.StatusDelivered, EventAt: event},
		event,
	)
}

func strPtr(s string) *string { return &s }
