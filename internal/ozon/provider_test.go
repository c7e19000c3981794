package ozon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/importer"
	"gomarket_import/internal/importer/importertest"
	"gomarket_import/internal/progress"
)

type fakeSeller struct {
	t        *testing.T
	fbs      [][]map[string]interface{}
	fbo      [][]map[string]interface{}
	ops      [][]map[string]interface{}
	products map[string][]map[string]interface{}
	calls    map[string]*int32
	status   int
}

func newFakeSeller(t *testing.T) *fakeSeller {
	return &fakeSeller{t: t, calls: map[string]*int32{
		fbsListEndpoint: new(int32), fboListEndpoint: new(int32), transactionEndpoint: new(int32),
		productListEndpoint: new(int32), productInfoEndpoint: new(int32),
	}}
}

func (f *fakeSeller) count(endpoint string) int { return int(atomic.LoadInt32(f.calls[endpoint])) }

func (f *fakeSeller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if c, ok := f.calls[r.URL.Path]; ok {
		atomic.AddInt32(c, 1)
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"message":"denied"}`))
		return
	}
	assert.Equal(f.t, "client-1", r.Header.Get("Client-Id"))
	assert.Equal(f.t, "secret", r.Header.Get("Api-Key"))

	var body map[string]interface{}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	var resp interface{}
	switch r.URL.Path {
	case fbsListEndpoint:
		assert.Equal(f.t, "ASC", body["dir"])
		i := int(body["offset"].(float64)) / int(body["limit"].(float64))
		resp = map[string]interface{}{"result": map[string]interface{}{
			"postings": pageAt(f.fbs, i), "has_next": i+1 < len(f.fbs),
		}}
	case fboListEndpoint:
		i := int(body["offset"].(float64)) / int(body["limit"].(float64))
		resp = map[string]interface{}{"result": pageAt(f.fbo, i)}
	case transactionEndpoint:
		i := int(body["page"].(float64)) - 1
		rows := 0
		for _, p := range f.ops {
			rows += len(p)
		}
		resp = map[string]interface{}{"result": map[string]interface{}{
			"operations": pageAt(f.ops, i), "page_count": len(f.ops), "row_count": rows,
		}}
	case productListEndpoint:
		last, _ := body["last_id"].(string)
		items := f.products[last]
		next := ""
		if len(items) > 0 {
			next = fmt.Sprintf("after-%v", items[len(items)-1]["offer_id"])
		}
		list := make([]map[string]interface{}, 0, len(items))
		for _, it := range items {
			list = append(list, map[string]interface{}{"product_id": it["id"], "offer_id": it["offer_id"]})
		}
		resp = map[string]interface{}{"result": map[string]interface{}{"items": list, "total": 3, "last_id": next}}
	case productInfoEndpoint:
		var items []map[string]interface{}
		for _, page := range f.products {
			for _, it := range page {
				for _, id := range body["product_id"].([]interface{}) {
					if fmt.Sprint(id) == fmt.Sprint(it["id"]) {
						items = append(items, it)
					}
				}
			}
		}
		resp = map[string]interface{}{"items": items}
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(resp))
}

func pageAt(pages [][]map[string]interface{}, i int) []map[string]interface{} {
	if i < 0 || i >= len(pages) {
		return []map[string]interface{}{}
	}
	return pages[i]
}

func posting(number, inProcessAt, status string) map[string]interface{} {
	return map[string]interface{}{
		"posting_number": number,
		"status":         status,
		"in_process_at":  inProcessAt,
		"products": []map[string]interface{}{
			{"sku": 1001, "offer_id": "MUG-1", "name": "Кружка", "quantity": 2, "price": "450.50", "currency_code": "RUB"},
		},
	}
}

type fixture struct {
	env      *importertest.Env
	seller   *fakeSeller
	provider *Provider
}

func newFixture(t *testing.T, pageSize int) *fixture {
	env := importertest.New(t)
	seller := newFakeSeller(t)
	server := httptest.NewServer(seller)
	t.Cleanup(server.Close)

	env.AddConnection(t, models.Connection{
		ID: "conn-ozon", Name: "OZON", Marketplace: models.MarketplaceOzon, MarketplaceID: "mp-ozon",
		OrganizationID: "org-1", ClientID: "client-1", APIKey: "secret",
	})
	provider := NewProvider(importertest.Settings(server.URL, pageSize), env.Store, env.Resolver, env.Catalog)
	return &fixture{env: env, seller: seller, provider: provider}
}

func request(aggregates ...string) importer.Request {
	return importer.Request{ConnectionID: "conn-ozon", Aggregates: aggregates}
}

func TestFBSPostings_PagesAndRecordErrors(t *testing.T) {
	f := newFixture(t, 2)
	f.seller.fbs = [][]map[string]interface{}{
		{posting("0001-1", "2024-03-01T10:00:00Z", "delivered"), posting("0002-1", "2024-03-02T10:00:00Z", "awaiting_packaging")},
		{posting("0003-1", "not a date", "delivering")},
	}

	p := f.env.Run(t, f.provider, request(AggregateFBSPostings))
	assert.Equal(t, progress.SessionCompletedWithErrors, p.Status)
	agg := p.Aggregates[0]
	assert.Equal(t, 3, agg.Processed)
	assert.Equal(t, 2, agg.Inserted)
	assert.Equal(t, 1, agg.Errors)
	assert.Equal(t, 2, f.seller.count(fbsListEndpoint))
	require.Len(t, p.Errors, 1)
	assert.Contains(t, *p.Errors[0].Details, "in_process_at")

	doc := f.env.Document(t, models.DocumentTypeOzonFBSPosting, "0001-1")
	assert.Equal(t, models.StatusDelivered, doc.State.Status)
	assert.Equal(t, "FBS", doc.Header.Scheme)
	assert.Equal(t, "org-1", doc.Header.OrganizationID)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "901", doc.Lines[0].Amount.String())
	assert.NotEmpty(t, doc.Lines[0].MarketplaceProductRef)
	assert.NotEmpty(t, doc.SourceMeta.RawPayloadRef)

	raw, err := f.env.Raw.Get(context.Background(), doc.SourceMeta.RawPayloadRef)
	require.NoError(t, err)
	assert.Contains(t, raw.RawJSON, "0001-1")

	// обе строки ссылаются на одну карточку
	second := f.env.Document(t, models.DocumentTypeOzonFBSPosting, "0002-1")
	assert.Equal(t, doc.Lines[0].MarketplaceProductRef, second.Lines[0].MarketplaceProductRef)
	assert.Equal(t, models.StatusAwaiting, second.State.Status)
}

func TestFBOPostings_ShortPageEnds(t *testing.T) {
	f := newFixture(t, 2)
	f.seller.fbo = [][]map[string]interface{}{
		{posting("1-1", "2024-03-01T10:00:00Z", "delivered"), posting("1-2", "2024-03-01T11:00:00Z", "cancelled")},
		{posting("1-3", "2024-03-01T12:00:00Z", "delivered")},
	}

	p := f.env.Run(t, f.provider, request(AggregateFBOPostings))
	assert.Equal(t, progress.SessionCompleted, p.Status)
	assert.Equal(t, 3, p.Aggregates[0].Inserted)
	assert.Equal(t, 2, f.seller.count(fboListEndpoint))
	assert.Equal(t, models.StatusCancelled, f.env.Document(t, models.DocumentTypeOzonFBOPosting, "1-2").State.Status)

	p = f.env.Run(t, f.provider, request(AggregateFBOPostings))
	assert.Equal(t, 3, p.Aggregates[0].Updated)
	assert.Equal(t, 2, f.env.Document(t, models.DocumentTypeOzonFBOPosting, "1-1").SourceMeta.DocumentVersion)
}

func TestTransactions_PageCount(t *testing.T) {
	f := newFixture(t, 1)
	op := func(id int, amount float64) map[string]interface{} {
		return map[string]interface{}{
			"operation_id": id, "operation_type": "OperationAgentDeliveredToCustomer",
			"operation_type_name": "Доставка покупателю", "operation_date": "2024-03-01 10:00:00",
			"amount": amount, "type": "orders",
			"posting": map[string]interface{}{"posting_number": "0001-1", "delivery_schema": "FBS"},
			"items":   []map[string]interface{}{{"sku": 1001, "name": "Кружка"}},
		}
	}
	f.seller.ops = [][]map[string]interface{}{{op(11, 100.5)}, {op(12, -20)}}

	p := f.env.Run(t, f.provider, request(AggregateTransactions))
	assert.Equal(t, progress.SessionCompleted, p.Status)
	agg := p.Aggregates[0]
	assert.Equal(t, 2, agg.Inserted)
	require.NotNil(t, agg.Total)
	assert.Equal(t, 2, *agg.Total)
	assert.Equal(t, 2, f.seller.count(transactionEndpoint))

	doc := f.env.Document(t, models.DocumentTypeOzonTransaction, "12")
	assert.Equal(t, "-20", doc.Lines[0].Amount.String())
	assert.Equal(t, "1001", doc.Lines[0].SKU)
	assert.Equal(t, "0001-1", doc.Header.Extra["posting_number"])
}

func TestProducts_LastIDCursor(t *testing.T) {
	f := newFixture(t, 2)
	f.seller.products = map[string][]map[string]interface{}{
		"": {
			{"id": 1, "offer_id": "MUG-1", "name": "Кружка", "barcodes": []string{"4600000000011"}},
			{"id": 2, "offer_id": "MUG-2", "name": "Кружка 2", "barcodes": []string{}},
		},
		"after-MUG-2": {{"id": 3, "offer_id": "MUG-3", "name": "", "barcodes": []string{"4600000000035"}}},
	}

	p := f.env.Run(t, f.provider, request(AggregateProducts))
	assert.Equal(t, progress.SessionCompleted, p.Status)
	assert.Equal(t, 3, p.Aggregates[0].Inserted)
	assert.Equal(t, 3, f.seller.count(productListEndpoint))

	ctx := context.Background()
	product, err := f.env.Products.GetByMarketplaceSKU(ctx, "mp-ozon", "MUG-3")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "Без названия", product.Description)
	entry, err := f.env.Barcodes.Find(ctx, "4600000000011", models.BarcodeSourceOzon)
	require.NoError(t, err)
	assert.NotNil(t, entry)

	p = f.env.Run(t, f.provider, request(AggregateProducts))
	assert.Equal(t, 3, p.Aggregates[0].Updated)
}

func TestAuthFailureFailsSession(t *testing.T) {
	f := newFixture(t, 2)
	f.seller.status = http.StatusUnauthorized

	p := f.env.Run(t, f.provider, request(AggregateFBSPostings))
	assert.Equal(t, progress.SessionFailed, p.Status)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, progress.AggregateFailed, p.Aggregates[0].Status)
	// 401 не повторяется
	assert.Equal(t, 1, f.seller.count(fbsListEndpoint))
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]models.NormalizedStatus{
		"delivered":          models.StatusDelivered,
		"cancelled":          models.StatusCancelled,
		"canceled":           models.StatusCancelled,
		"awaiting_deliver":   models.StatusAwaiting,
		"delivering":         models.StatusDelivering,
		"returned_to_seller": models.StatusReturned,
		"something_new":      models.StatusUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeStatus(raw), raw)
	}
}
