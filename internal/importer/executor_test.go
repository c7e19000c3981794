package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/normalize"
	"gomarket_import/internal/core/services"
	"gomarket_import/internal/core/storage"
	"gomarket_import/internal/progress"
	"gomarket_import/migrations/core"
	"gomarket_import/pkg/dbconnect/migration"
	"gomarket_import/pkg/dbconnect/sqlite"
	"gomarket_import/pkg/logger"
)

type fakeConnections map[string]*models.Connection

func (f fakeConnections) GetByID(_ context.Context, id string) (*models.Connection, error) {
	return f[id], nil
}

type sale struct {
	ID   string
	Date string
}

// fakeProvider отдаёт заранее заданные страницы и сохраняет продажи через DocumentStore.
type fakeProvider struct {
	store    DocumentUpserter
	pages    [][]sale
	fetchErr error
	// cursors -- что возвращать как Next для каждой страницы; по умолчанию номер следующей.
	cursors []string
	// totals -- Page.Total по имени прохода; нет ключа -- итог неизвестен.
	totals map[string]int
}

func (p *fakeProvider) Marketplace() models.Marketplace { return models.MarketplaceWildberries }

func (p *fakeProvider) Aggregates() []AggregateInfo {
	return []AggregateInfo{{Index: "a012_wb_sales", Name: "Продажи WB"}, {Index: "two_pass", Name: "Two passes"}}
}

func (p *fakeProvider) Passes(conn *models.Connection, _ Request, index string, _ logger.Logger) ([]Pass, error) {
	switch index {
	case "a012_wb_sales":
		return []Pass{p.pass(conn, "sales")}, nil
	case "two_pass":
		return []Pass{p.pass(conn, "first"), p.pass(conn, "second")}, nil
	}
	return nil, fmt.Errorf("unknown aggregate %s", index)
}

func (p *fakeProvider) pass(conn *models.Connection, name string) Pass {
	return Pass{
		Name: name,
		Fetch: func(ctx context.Context, cursor string) (*Page, error) {
			if p.fetchErr != nil {
				return nil, p.fetchErr
			}
			i := 0
			if cursor != "" {
				i, _ = strconv.Atoi(cursor)
			}
			if i >= len(p.pages) {
				return &Page{}, nil
			}
			page := &Page{HasMore: i+1 < len(p.pages), Next: strconv.Itoa(i + 1)}
			if total, ok := p.totals[name]; ok {
				page.Total = &total
			}
			if p.cursors != nil {
				page.Next = p.cursors[i]
			}
			for _, s := range p.pages[i] {
				s := s
				page.Records = append(page.Records, Record{
					Label: s.ID,
					Handle: func(ctx context.Context) (Outcome, error) {
						return p.save(ctx, conn, name, s)
					},
				})
			}
			return page, nil
		},
	}
}

func (p *fakeProvider) save(ctx context.Context, conn *models.Connection, pass string, s sale) (Outcome, error) {
	eventAt, err := normalize.RequiredTime(s.ID, "date", s.Date)
	if err != nil {
		return 0, err
	}
	doc := models.NewDocument(models.DocumentTypeWbSale, pass+":"+s.ID,
		models.Header{DocumentNo: s.ID, ConnectionID: conn.ID, MarketplaceID: conn.MarketplaceID, Marketplace: conn.Marketplace},
		[]models.Line{{SKU: "1", Qty: decimal.NewFromInt(1), Amount: decimal.NewFromInt(100)}},
		models.State{Status: models.StatusDelivered, EventAt: eventAt},
		time.Now(),
	)
	res, err := p.store.Upsert(ctx, doc, nil)
	if err != nil {
		return 0, err
	}
	return UpsertOutcome(res), nil
}

type testEnv struct {
	executor *Executor
	tracker  *progress.Tracker
	provider *fakeProvider
	logs     *logger.SessionLogs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.Apply(db, core.All()...))

	store := services.NewDocumentStore(storage.NewDocumentRepository(db), storage.NewRawPayloadRepository(db), nil, logger.Nop())
	provider := &fakeProvider{store: store}
	tracker := progress.NewTracker(logger.Nop())
	logs, err := logger.NewSessionLogs(t.TempDir(), false)
	require.NoError(t, err)

	conns := fakeConnections{
		"conn-wb": {ID: "conn-wb", Marketplace: models.MarketplaceWildberries, MarketplaceID: "mp-wb"},
		"deleted": {ID: "deleted", Marketplace: models.MarketplaceWildberries, MarketplaceID: "mp-wb", IsDeleted: true},
		"conn-ym": {ID: "conn-ym", Marketplace: models.MarketplaceYandex, MarketplaceID: "mp-ym"},
	}
	return &testEnv{
		executor: NewExecutor(conns, tracker, logs, logger.Nop(), provider),
		tracker:  tracker,
		provider: provider,
		logs:     logs,
	}
}

func salesRequest(aggregates ...string) Request {
	if len(aggregates) == 0 {
		aggregates = []string{"a012_wb_sales"}
	}
	return Request{ConnectionID: "conn-wb", Aggregates: aggregates}
}

func TestImport_PartialFailureThenFixedRerun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.provider.pages = [][]sale{{
		{ID: "S-1", Date: "2024-03-01T10:00:00Z"},
		{ID: "S-2", Date: "31.02.2024 99:00"},
		{ID: "S-3", Date: "2024-03-01 12:00:00"},
	}}
	resp, err := env.executor.ImportSync(ctx, salesRequest())
	require.NoError(t, err)
	assert.Equal(t, progress.SessionCompletedWithErrors, resp.Status)

	p, ok := env.tracker.GetProgress(resp.SessionID)
	require.True(t, ok)
	agg := p.Aggregates[0]
	assert.Equal(t, 3, agg.Processed)
	assert.Equal(t, 2, agg.Inserted)
	assert.Equal(t, 0, agg.Updated)
	assert.Equal(t, 1, agg.Errors)
	assert.Equal(t, progress.AggregateCompleted, agg.Status)
	require.Len(t, p.Errors, 1)
	assert.Contains(t, *p.Errors[0].Details, "date")
	assert.Contains(t, *p.Errors[0].Details, "31.02.2024 99:00")

	env.provider.pages[0][1].Date = "2024-03-01T11:00:00Z"
	resp, err = env.executor.ImportSync(ctx, salesRequest())
	require.NoError(t, err)
	assert.Equal(t, progress.SessionCompleted, resp.Status)

	p, _ = env.tracker.GetProgress(resp.SessionID)
	agg = p.Aggregates[0]
	assert.Equal(t, 3, agg.Processed)
	assert.Equal(t, 1, agg.Inserted)
	assert.Equal(t, 2, agg.Updated)
	assert.Zero(t, agg.Errors)
	assert.Equal(t, agg.Processed, agg.Inserted+agg.Updated)
	assert.Nil(t, agg.CurrentItem)

	text, err := env.logs.Read(resp.SessionID)
	require.NoError(t, err)
	assert.Contains(t, text, "import finished")
}

func TestImport_FetchFailureFailsSession(t *testing.T) {
	env := newTestEnv(t)
	env.provider.fetchErr = errors.New("401 unauthorized")

	resp, err := env.executor.ImportSync(context.Background(), salesRequest())
	require.NoError(t, err)
	assert.Equal(t, progress.SessionFailed, resp.Status)

	p, _ := env.tracker.GetProgress(resp.SessionID)
	require.Len(t, p.Errors, 1)
	require.NotNil(t, p.Errors[0].Aggregate)
	assert.Equal(t, "a012_wb_sales", *p.Errors[0].Aggregate)
	assert.Contains(t, p.Errors[0].Message, "401 unauthorized")
	assert.Equal(t, 1, p.TotalErrors)
	assert.Equal(t, progress.AggregateFailed, p.Aggregates[0].Status)
	assert.Equal(t, 1, p.Aggregates[0].Errors)
	assert.NotNil(t, p.CompletedAt)
}

func TestImport_MultiPageAndLoopGuard(t *testing.T) {
	env := newTestEnv(t)
	env.provider.pages = [][]sale{
		{{ID: "A", Date: "2024-01-01"}, {ID: "B", Date: "2024-01-01"}},
		{{ID: "C", Date: "2024-01-01"}},
		{{ID: "never", Date: "2024-01-01"}},
	}
	// курсор после второй страницы не меняется
	env.provider.cursors = []string{"1", "1", ""}

	resp, err := env.executor.ImportSync(context.Background(), salesRequest())
	require.NoError(t, err)
	assert.Equal(t, progress.SessionCompleted, resp.Status)

	p, _ := env.tracker.GetProgress(resp.SessionID)
	assert.Equal(t, 3, p.Aggregates[0].Processed)
	assert.Equal(t, 3, p.TotalInserted)
}

func TestImport_TwoPassesShareCounters(t *testing.T) {
	env := newTestEnv(t)
	env.provider.pages = [][]sale{{{ID: "A", Date: "2024-01-01"}, {ID: "B", Date: "2024-01-01"}}}

	resp, err := env.executor.ImportSync(context.Background(), salesRequest("two_pass"))
	require.NoError(t, err)

	p, _ := env.tracker.GetProgress(resp.SessionID)
	require.Len(t, p.Aggregates, 1)
	assert.Equal(t, 4, p.Aggregates[0].Processed)
	assert.Equal(t, 4, p.Aggregates[0].Inserted)
}

func TestImport_PassWithoutTotalClearsAggregateTotal(t *testing.T) {
	env := newTestEnv(t)
	env.provider.pages = [][]sale{{{ID: "A", Date: "2024-01-01"}, {ID: "B", Date: "2024-01-01"}}}
	// второй проход не знает своего итога, как 1С без $count
	env.provider.totals = map[string]int{"first": 2}

	resp, err := env.executor.ImportSync(context.Background(), salesRequest("two_pass"))
	require.NoError(t, err)

	p, _ := env.tracker.GetProgress(resp.SessionID)
	agg := p.Aggregates[0]
	assert.Equal(t, 4, agg.Processed)
	assert.Nil(t, agg.Total)
}

func TestImport_TotalsSummedAcrossPasses(t *testing.T) {
	env := newTestEnv(t)
	env.provider.pages = [][]sale{{{ID: "A", Date: "2024-01-01"}, {ID: "B", Date: "2024-01-01"}}}
	env.provider.totals = map[string]int{"first": 2, "second": 2}

	resp, err := env.executor.ImportSync(context.Background(), salesRequest("two_pass"))
	require.NoError(t, err)

	p, _ := env.tracker.GetProgress(resp.SessionID)
	require.NotNil(t, p.Aggregates[0].Total)
	assert.Equal(t, 4, *p.Aggregates[0].Total)
	assert.Equal(t, 4, p.Aggregates[0].Processed)
}

func TestImport_UnknownAggregateIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.provider.pages = [][]sale{{{ID: "A", Date: "2024-01-01"}}}

	resp, err := env.executor.ImportSync(context.Background(), salesRequest("a999_unknown", "a012_wb_sales"))
	require.NoError(t, err)
	assert.Equal(t, progress.SessionCompletedWithErrors, resp.Status)

	p, _ := env.tracker.GetProgress(resp.SessionID)
	assert.Equal(t, 1, p.TotalInserted)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "a999_unknown", *p.Errors[0].Aggregate)
	assert.Equal(t, progress.AggregateFailed, p.Aggregates[0].Status)
	assert.Equal(t, 1, p.Aggregates[0].Errors)
	assert.Equal(t, 1, p.TotalErrors)
}

func TestStartImport_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.executor.StartImport(ctx, Request{ConnectionID: "conn-wb"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = env.executor.StartImport(ctx, Request{ConnectionID: "missing", Aggregates: []string{"a012_wb_sales"}})
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	_, err = env.executor.StartImport(ctx, Request{ConnectionID: "deleted", Aggregates: []string{"a012_wb_sales"}})
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	_, err = env.executor.StartImport(ctx, Request{ConnectionID: "conn-ym", Aggregates: []string{"a013_ym_order"}})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = env.executor.StartImport(ctx, Request{
		ConnectionID: "conn-wb", Aggregates: []string{"a012_wb_sales"}, DateFrom: from, DateTo: from.AddDate(0, 0, -1),
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestStartImport_Background(t *testing.T) {
	env := newTestEnv(t)
	env.provider.pages = [][]sale{{{ID: "A", Date: "2024-01-01"}}}

	resp, err := env.executor.StartImport(context.Background(), salesRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.executor.Shutdown(ctx))

	p, ok := env.tracker.GetProgress(resp.SessionID)
	require.True(t, ok)
	assert.Equal(t, progress.SessionCompleted, p.Status)
	assert.Equal(t, 1, p.TotalInserted)
}

func TestCancel_OnlyLabels(t *testing.T) {
	env := newTestEnv(t)
	env.tracker.CreateSession("s1")
	env.tracker.StartSession("s1")
	assert.True(t, env.executor.Cancel("s1"))
	p, _ := env.tracker.GetProgress("s1")
	assert.Equal(t, progress.SessionCancelled, p.Status)
}
