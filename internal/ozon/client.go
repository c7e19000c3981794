package ozon

import (
	"context"
	"net/http"
	"time"

	"gomarket_import/internal/core/models"
	"gomarket_import/pkg/clients"
	"gomarket_import/pkg/logger"
)

const (
	productListEndpoint = "/v3/product/list"
	productInfoEndpoint = "/v3/product/info/list"
	fbsListEndpoint     = "/v3/posting/fbs/list"
	fboListEndpoint     = "/v2/posting/fbo/list"
	transactionEndpoint = "/v3/finance/transaction/list"

	maxProductPage     = 1000
	maxPostingPage     = 1000
	maxTransactionPage = 1000
)

// Client -- Seller API. Авторизация парой Client-Id + Api-Key из подключения.
type Client struct {
	*clients.BaseClient
}

func NewClient(conn *models.Connection, settings clients.Settings, log logger.Logger) *Client {
	auth := clients.NewOzonAuth(conn.ClientID, conn.APIKey)
	var engine clients.AuthEngine
	if auth != nil {
		engine = auth
	}
	return &Client{BaseClient: settings.Client("ozon", conn.BaseURL, engine, log)}
}

func (c *Client) ListProducts(ctx context.Context, lastID string, limit int) (*ProductListResponse, error) {
	body := productListRequest{Filter: productListFilter{Visibility: "ALL"}, LastID: lastID, Limit: limit}
	var resp ProductListResponse
	if _, err := c.DoJSON(ctx, http.MethodPost, productListEndpoint, nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ProductInfo(ctx context.Context, productIDs []int64) (*ProductInfoResponse, error) {
	var resp ProductInfoResponse
	if _, err := c.DoJSON(ctx, http.MethodPost, productInfoEndpoint, nil, productInfoRequest{ProductID: productIDs}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListFBSPostings(ctx context.Context, since, to time.Time, offset, limit int) (*FBSPostingListResponse, error) {
	var resp FBSPostingListResponse
	if _, err := c.DoJSON(ctx, http.MethodPost, fbsListEndpoint, nil, postingRequest(since, to, offset, limit), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListFBOPostings(ctx context.Context, since, to time.Time, offset, limit int) (*FBOPostingListResponse, error) {
	var resp FBOPostingListResponse
	if _, err := c.DoJSON(ctx, http.MethodPost, fboListEndpoint, nil, postingRequest(since, to, offset, limit), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListTransactions(ctx context.Context, from, to time.Time, page, pageSize int) (*TransactionListResponse, error) {
	body := transactionListRequest{Page: page, PageSize: pageSize}
	body.Filter.Date.From = from.Format(time.RFC3339)
	body.Filter.Date.To = to.Format(time.RFC3339)
	body.Filter.TransactionType = "all"

	var resp TransactionListResponse
	if _, err := c.DoJSON(ctx, http.MethodPost, transactionEndpoint, nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// отправления запрашиваются по возрастанию, иначе смещение поплывёт при новых заказах
func postingRequest(since, to time.Time, offset, limit int) postingListRequest {
	return postingListRequest{
		Dir:    "ASC",
		Filter: postingFilter{Since: since.Format(time.RFC3339), To: to.Format(time.RFC3339)},
		Limit:  limit,
		Offset: offset,
	}
}
