package ozon

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/services"
	"gomarket_import/internal/importer"
	"gomarket_import/pkg/clients"
	"gomarket_import/pkg/logger"
)

const (
	AggregateProducts     = "a007_marketplace_product"
	AggregateFBSPostings  = "a010_ozon_fbs_posting"
	AggregateFBOPostings  = "a011_ozon_fbo_posting"
	AggregateTransactions = "a014_ozon_transactions"
)

type CatalogSyncer interface {
	SyncProduct(ctx context.Context, item services.CatalogItem) (bool, error)
}

type Provider struct {
	settings  clients.Settings
	documents importer.DocumentUpserter
	products  importer.ProductResolver
	catalog   CatalogSyncer
	now       func() time.Time
}

func NewProvider(settings clients.Settings, documents importer.DocumentUpserter, products importer.ProductResolver, catalog CatalogSyncer) *Provider {
	return &Provider{
		settings:  settings,
		documents: documents,
		products:  products,
		catalog:   catalog,
		now:       time.Now,
	}
}

func (p *Provider) Marketplace() models.Marketplace { return models.MarketplaceOzon }

func (p *Provider) Aggregates() []importer.AggregateInfo {
	return []importer.AggregateInfo{
		{Index: AggregateProducts, Name: "Товары маркетплейса"},
		{Index: AggregateFBSPostings, Name: "OZON FBS отправления"},
		{Index: AggregateFBOPostings, Name: "OZON FBO отправления"},
		{Index: AggregateTransactions, Name: "OZON транзакции"},
	}
}

func (p *Provider) Passes(conn *models.Connection, req importer.Request, index string, log logger.Logger) ([]importer.Pass, error) {
	client := NewClient(conn, p.settings, log)
	from, to := req.Period(p.now())

	switch index {
	case AggregateProducts:
		return []importer.Pass{{Name: "products", Fetch: p.productsPage(client, conn)}}, nil
	case AggregateFBSPostings:
		return []importer.Pass{{Name: "fbs", Fetch: p.fbsPage(client, conn, from, to)}}, nil
	case AggregateFBOPostings:
		return []importer.Pass{{Name: "fbo", Fetch: p.fboPage(client, conn, from, to)}}, nil
	case AggregateTransactions:
		return []importer.Pass{{Name: "transactions", Fetch: p.transactionsPage(client, conn, from, to)}}, nil
	}
	return nil, fmt.Errorf("unknown ozon aggregate %s", index)
}

// productsPage: курсор -- last_id; по идентификаторам страницы дочитываются карточки.
func (p *Provider) productsPage(client *Client, conn *models.Connection) func(context.Context, string) (*importer.Page, error) {
	limit := p.settings.Limit(maxProductPage)
	return func(ctx context.Context, cursor string) (*importer.Page, error) {
		list, err := client.ListProducts(ctx, cursor, limit)
		if err != nil {
			return nil, err
		}
		total := list.Result.Total
		page := &importer.Page{Next: list.Result.LastID, Total: &total}
		if len(list.Result.Items) == 0 {
			return page, nil
		}
		page.HasMore = list.Result.LastID != ""

		ids := make([]int64, 0, len(list.Result.Items))
		for _, item := range list.Result.Items {
			ids = append(ids, item.ProductID)
		}
		info, err := client.ProductInfo(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i, raw := range info.Items {
			raw := raw
			var product ProductInfo
			decodeErr := json.Unmarshal(raw, &product)
			label := fmt.Sprintf("#%d", i+1)
			if decodeErr == nil {
				label = fmt.Sprintf("%s - %s", product.OfferID, product.Name)
			}
			page.Records = append(page.Records, importer.Record{
				Label: label,
				Handle: func(ctx context.Context) (importer.Outcome, error) {
					if decodeErr != nil {
						return 0, fmt.Errorf("decode product info: %w", decodeErr)
					}
					inserted, err := p.catalog.SyncProduct(ctx, CatalogItem(conn, product))
					if err != nil {
						return 0, err
					}
					if inserted {
						return importer.OutcomeInserted, nil
					}
					return importer.OutcomeUpdated, nil
				},
			})
		}
		return page, nil
	}
}

// fbsPage: смещение + has_next.
func (p *Provider) fbsPage(client *Client, conn *models.Connection, from, to time.Time) func(context.Context, string) (*importer.Page, error) {
	limit := p.settings.Limit(maxPostingPage)
	return func(ctx context.Context, cursor string) (*importer.Page, error) {
		offset := atoi(cursor)
		resp, err := client.ListFBSPostings(ctx, from, to, offset, limit)
		if err != nil {
			return nil, err
		}
		page := p.postingRecords(conn, models.DocumentTypeOzonFBSPosting, resp.Result.Postings, offset)
		page.HasMore = resp.Result.HasNext
		return page, nil
	}
}

// fboPage: has_next нет, неполная страница -- последняя.
func (p *Provider) fboPage(client *Client, conn *models.Connection, from, to time.Time) func(context.Context, string) (*importer.Page, error) {
	limit := p.settings.Limit(maxPostingPage)
	return func(ctx context.Context, cursor string) (*importer.Page, error) {
		offset := atoi(cursor)
		resp, err := client.ListFBOPostings(ctx, from, to, offset, limit)
		if err != nil {
			return nil, err
		}
		page := p.postingRecords(conn, models.DocumentTypeOzonFBOPosting, resp.Result, offset)
		page.HasMore = len(resp.Result) >= limit
		return page, nil
	}
}

func (p *Provider) postingRecords(conn *models.Connection, source models.DocumentType, postings []json.RawMessage, offset int) *importer.Page {
	page := &importer.Page{Next: strconv.Itoa(offset + len(postings))}
	for i, raw := range postings {
		raw := raw
		var posting Posting
		decodeErr := json.Unmarshal(raw, &posting)
		label := posting.PostingNumber
		if decodeErr != nil || label == "" {
			label = fmt.Sprintf("#%d", offset+i+1)
		}
		page.Records = append(page.Records, importer.Record{
			Label: label,
			Handle: func(ctx context.Context) (importer.Outcome, error) {
				if decodeErr != nil {
					return 0, fmt.Errorf("decode posting: %w", decodeErr)
				}
				doc, err := PostingDocument(conn, source, posting, p.now())
				if err != nil {
					return 0, err
				}
				return importer.SaveDocument(ctx, p.documents, p.products, conn, doc, raw)
			},
		})
	}
	return page
}

// transactionsPage: номер страницы с единицы, всего страниц -- page_count.
func (p *Provider) transactionsPage(client *Client, conn *models.Connection, from, to time.Time) func(context.Context, string) (*importer.Page, error) {
	limit := p.settings.Limit(maxTransactionPage)
	return func(ctx context.Context, cursor string) (*importer.Page, error) {
		number := atoi(cursor)
		if number < 1 {
			number = 1
		}
		resp, err := client.ListTransactions(ctx, from, to, number, limit)
		if err != nil {
			return nil, err
		}
		total := resp.Result.RowCount
		page := &importer.Page{
			Next:    strconv.Itoa(number + 1),
			HasMore: number < resp.Result.PageCount,
			Total:   &total,
		}
		for i, raw := range resp.Result.Operations {
			raw := raw
			var op Operation
			decodeErr := json.Unmarshal(raw, &op)
			label := op.OperationID.String()
			if decodeErr != nil || label == "" {
				label = fmt.Sprintf("page %d #%d", number, i+1)
			}
			page.Records = append(page.Records, importer.Record{
				Label: label,
				Handle: func(ctx context.Context) (importer.Outcome, error) {
					if decodeErr != nil {
						return 0, fmt.Errorf("decode operation: %w", decodeErr)
					}
					doc, err := TransactionDocument(conn, op, p.now())
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

func atoi(cursor string) int {
	n, err := strconv.Atoi(cursor)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
