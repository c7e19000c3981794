// Package importertest собирает импорт на sqlite в памяти для тестов провайдеров.
package importertest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/services"
	"gomarket_import/internal/core/storage"
	"gomarket_import/internal/importer"
	"gomarket_import/internal/progress"
	"gomarket_import/migrations/core"
	"gomarket_import/pkg/clients"
	"gomarket_import/pkg/dbconnect/migration"
	"gomarket_import/pkg/dbconnect/sqlite"
	"gomarket_import/pkg/logger"
)

type Env struct {
	DB           *sql.DB
	Documents    *storage.DocumentRepository
	Products     *storage.ProductRepository
	Barcodes     *storage.BarcodeRepository
	Nomenclature *storage.NomenclatureRepository
	Connections  *storage.ConnectionRepository
	Raw          *storage.RawPayloadRepository
	Store        *services.DocumentStore
	Resolver     *services.ResolutionEngine
	Catalog      *services.ProductCatalog
	Tracker      *progress.Tracker
}

func New(t testing.TB) *Env {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.Apply(db, core.All()...))

	log := logger.Nop()
	env := &Env{
		DB:           db,
		Documents:    storage.NewDocumentRepository(db),
		Products:     storage.NewProductRepository(db),
		Barcodes:     storage.NewBarcodeRepository(db),
		Nomenclature: storage.NewNomenclatureRepository(db),
		Connections:  storage.NewConnectionRepository(db),
		Raw:          storage.NewRawPayloadRepository(db),
		Tracker:      progress.NewTracker(log),
	}
	posting := services.NewPostingService(env.Documents, storage.NewSalesRegisterRepository(db), log)
	env.Store = services.NewDocumentStore(env.Documents, env.Raw, posting, log)
	env.Resolver = services.NewResolutionEngine(env.Products, env.Barcodes, log)
	env.Catalog = services.NewProductCatalog(env.Products, env.Barcodes, env.Nomenclature, log)
	return env
}

// Settings -- настройки клиента под httptest: без ожидания между запросами и повторами.
func Settings(baseURL string, pageSize int) clients.Settings {
	return clients.Settings{
		BaseURL:           baseURL,
		PageSize:          pageSize,
		RequestsPerMinute: 600000,
		MaxRetries:        1,
		Timeout:           5 * time.Second,
		RetryInterval:     time.Millisecond,
	}
}

func (e *Env) AddConnection(t testing.TB, conn models.Connection) {
	t.Helper()
	require.NoError(t, e.Connections.Upsert(context.Background(), conn))
}

// Run выполняет импорт синхронно и возвращает итоговый прогресс сессии.
func (e *Env) Run(t testing.TB, p importer.Provider, req importer.Request) progress.ImportProgress {
	t.Helper()
	executor := importer.NewExecutor(e.Connections, e.Tracker, nil, logger.Nop(), p)
	resp, err := executor.ImportSync(context.Background(), req)
	require.NoError(t, err)
	snapshot, ok := e.Tracker.GetProgress(resp.SessionID)
	require.True(t, ok)
	return snapshot
}

// Document возвращает живой документ по естественному ключу.
func (e *Env) Document(t testing.TB, source models.DocumentType, key string) *models.Document {
	t.Helper()
	doc, err := e.Documents.GetByNaturalKey(context.Background(), source, key)
	require.NoError(t, err)
	require.NotNil(t, doc, "document %s/%s", source, key)
	return doc
}
