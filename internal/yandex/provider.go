package yandex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/importer"
	"gomarket_import/pkg/clients"
	"gomarket_import/pkg/logger"
)

const (
	AggregateOrders        = "a013_ym_order"
	AggregatePaymentReport = "p907_ym_payment_report"
)

type Provider struct {
	settings       clients.Settings
	reportEncoding string
	documents      importer.DocumentUpserter
	products       importer.ProductResolver
	now            func() time.Time
	// pollInterval переопределяется в тестах
	pollInterval time.Duration
}

func NewProvider(settings clients.Settings, reportEncoding string, documents importer.DocumentUpserter, products importer.ProductResolver) *Provider {
	return &Provider{
		settings:       settings,
		reportEncoding: reportEncoding,
		documents:      documents,
		products:       products,
		now:            time.Now,
	}
}

func (p *Provider) Marketplace() models.Marketplace { return models.MarketplaceYandex }

func (p *Provider) Aggregates() []importer.AggregateInfo {
	return []importer.AggregateInfo{
		{Index: AggregateOrders, Name: "Яндекс Маркет заказы"},
		{Index: AggregatePaymentReport, Name: "Яндекс Маркет отчёт по платежам"},
	}
}

func (p *Provider) Passes(conn *models.Connection, req importer.Request, index string, log logger.Logger) ([]importer.Pass, error) {
	client := NewClient(conn, p.settings, log)
	if p.pollInterval > 0 {
		client.pollInterval = p.pollInterval
	}
	from, to := req.Period(p.now())

	switch index {
	case AggregateOrders:
		return []importer.Pass{{Name: "orders", Fetch: p.ordersPage(client, conn, from, to)}}, nil
	case AggregatePaymentReport:
		return []importer.Pass{{Name: "payment report", Fetch: p.reportPage(client, conn, from, to, log)}}, nil
	}
	return nil, fmt.Errorf("unknown yandex aggregate %s", index)
}

// ordersPage: курсор -- page_token из paging.nextPageToken.
func (p *Provider) ordersPage(client *Client, conn *models.Connection, from, to time.Time) func(context.Context, string) (*importer.Page, error) {
	limit := p.settings.Limit(maxOrdersPage)
	return func(ctx context.Context, cursor string) (*importer.Page, error) {
		resp, err := client.Orders(ctx, from, to, cursor, limit)
		if err != nil {
			return nil, err
		}
		page := &importer.Page{
			Next:    resp.Paging.NextPageToken,
			HasMore: resp.Paging.NextPageToken != "",
			Total:   resp.Pager.Total,
		}
		for i, raw := range resp.Orders {
			raw := raw
			var order Order
			decodeErr := json.Unmarshal(raw, &order)
			label := fmt.Sprintf("%d", order.ID)
			if decodeErr != nil || order.ID == 0 {
				label = fmt.Sprintf("#%d", i+1)
			}
			page.Records = append(page.Records, importer.Record{
				Label: label,
				Handle: func(ctx context.Context) (importer.Outcome, error) {
					if decodeErr != nil {
						return 0, fmt.Errorf("decode order: %w", decodeErr)
					}
					doc, err := OrderDocument(conn, order, p.now())
					if err != nil {
						return 0, err
					}
					return importer.SaveDocument(ctx, p.documents, p.products, conn, doc, raw)
				},
			})
		}
		return page, nil
	}
}

// reportPage: отчёт приходит целиком, одна страница без продолжения.
func (p *Provider) reportPage(client *Client, conn *models.Connection, from, to time.Time, log logger.Logger) func(context.Context, string) (*importer.Page, error) {
	return func(ctx context.Context, _ string) (*importer.Page, error) {
		data, err := client.PaymentReport(ctx, from, to)
		if err != nil {
			return nil, err
		}
		rows, err := DecodeReport(data, p.reportEncoding)
		if err != nil {
			return nil, &clients.ProviderError{Provider: "yandex", Endpoint: "payment report", Kind: clients.KindMalformed, Err: err}
		}
		log.Log("payment report: %d rows", len(rows))

		page := &importer.Page{}
		for _, row := range rows {
			row := row
			// итоговые и пустые строки отчёта
			if row.get("ORDER_ID") == "" && row.get("TRANSACTION_DATE") == "" {
				continue
			}
			key, _ := row.Key()
			page.Records = append(page.Records, importer.Record{
				Label: key,
				Handle: func(ctx context.Context) (importer.Outcome, error) {
					doc, err := PaymentDocument(conn, row, p.now())
					if err != nil {
						return 0, err
					}
					raw, err := json.Marshal(row)
					if err != nil {
						return 0, err
					}
					return importer.SaveDocument(ctx, p.documents, p.products, conn, doc, raw)
				},
			})
		}
		total := len(page.Records)
		page.Total = &total
		return page, nil
	}
}
