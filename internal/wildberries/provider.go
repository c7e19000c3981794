package wildberries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/normalize"
	"gomarket_import/internal/importer"
	"gomarket_import/pkg/clients"
	"gomarket_import/pkg/logger"
)

const (
	AggregateSales  = "a012_wb_sales"
	AggregateOrders = "a015_wb_orders"
)

type Provider struct {
	settings  clients.Settings
	documents importer.DocumentUpserter
	products  importer.ProductResolver
	now       func() time.Time
}

func NewProvider(settings clients.Settings, documents importer.DocumentUpserter, products importer.ProductResolver) *Provider {
	return &Provider{settings: settings, documents: documents, products: products, now: time.Now}
}

func (p *Provider) Marketplace() models.Marketplace { return models.MarketplaceWildberries }

func (p *Provider) Aggregates() []importer.AggregateInfo {
	return []importer.AggregateInfo{
		{Index: AggregateSales, Name: "Wildberries продажи"},
		{Index: AggregateOrders, Name: "Wildberries заказы"},
	}
}

func (p *Provider) Passes(conn *models.Connection, req importer.Request, index string, log logger.Logger) ([]importer.Pass, error) {
	client := NewClient(conn, p.settings, log)
	from, to := req.Period(p.now())

	switch index {
	case AggregateSales:
		return []importer.Pass{{Name: "sales", Fetch: p.page(conn, from, to, client.Sales, p.saleRecord)}}, nil
	case AggregateOrders:
		return []importer.Pass{{Name: "orders", Fetch: p.page(conn, from, to, client.Orders, p.orderRecord)}}, nil
	}
	return nil, fmt.Errorf("unknown wildberries aggregate %s", index)
}

type rowDecoder func(conn *models.Connection, raw json.RawMessage) (importer.Record, string)

// page: курсор -- lastChangeDate последней строки. Следующий запрос начинается с неё же,
// поэтому граничная строка приходит повторно и просто обновляется.
func (p *Provider) page(conn *models.Connection, from, to time.Time, fetch func(context.Context, string) ([]json.RawMessage, error), decode rowDecoder) func(context.Context, string) (*importer.Page, error) {
	limit := p.settings.Limit(statisticsPageLimit)
	return func(ctx context.Context, cursor string) (*importer.Page, error) {
		if cursor == "" {
			cursor = from.Format("2006-01-02T15:04:05")
		}
		rows, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		page := &importer.Page{}
		for _, raw := range rows {
			rec, changed := decode(conn, raw)
			page.Records = append(page.Records, rec)
			if changed != "" {
				page.Next = changed
			}
		}
		page.HasMore = len(rows) >= limit
		if last := normalize.OptionalTime(page.Next); last != nil && last.After(to) {
			page.HasMore = false
		}
		return page, nil
	}
}

func (p *Provider) saleRecord(conn *models.Connection, raw json.RawMessage) (importer.Record, string) {
	var row SaleRow
	decodeErr := json.Unmarshal(raw, &row)
	return importer.Record{
		Label: SaleKey(row),
		Handle: func(ctx context.Context) (importer.Outcome, error) {
			if decodeErr != nil {
				return 0, fmt.Errorf("decode sale row: %w", decodeErr)
			}
			doc, err := SaleDocument(conn, row, p.now())
			if err != nil {
				return 0, err
			}
			return importer.SaveDocument(ctx, p.documents, p.products, conn, doc, raw)
		},
	}, row.LastChangeDate
}

func (p *Provider) orderRecord(conn *models.Connection, raw json.RawMessage) (importer.Record, string) {
	var row OrderRow
	decodeErr := json.Unmarshal(raw, &row)
	return importer.Record{
		Label: OrderKey(row),
		Handle: func(ctx context.Context) (importer.Outcome, error) {
			if decodeErr != nil {
				return 0, fmt.Errorf("decode order row: %w", decodeErr)
			}
			doc, err := OrderDocument(conn, row, p.now())
			if err != nil {
				return 0, err
			}
			return importer.SaveDocument(ctx, p.documents, p.products, conn, doc, raw)
		},
	}, row.LastChangeDate
}
