package wildberries

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"gomarket_import/internal/core/models"
	"gomarket_import/pkg/clients"
	"gomarket_import/pkg/logger"
)

const (
	salesEndpoint  = "/api/v1/supplier/sales"
	ordersEndpoint = "/api/v1/supplier/orders"

	// statistics API отдаёт до 80 000 строк за запрос; полная страница -- признак продолжения
	statisticsPageLimit = 80000
	// statistics API: не больше одного запроса в минуту на метод
	statisticsRequestsPerMinute = 1
)

// Client -- statistics API. Ключ передаётся в Authorization без Bearer.
type Client struct {
	*clients.BaseClient
}

func NewClient(conn *models.Connection, settings clients.Settings, log logger.Logger) *Client {
	if settings.RequestsPerMinute == 0 {
		settings.RequestsPerMinute = statisticsRequestsPerMinute
	}
	var auth clients.AuthEngine
	if a := clients.NewHeaderAuth("Authorization", conn.APIKey); a != nil {
		auth = a
	}
	return &Client{BaseClient: settings.Client("wildberries", conn.BaseURL, auth, log)}
}

// Sales возвращает строки, изменённые начиная с dateFrom (flag=0: по lastChangeDate).
// Строки возвращаются сырыми, чтобы сохранить их как есть.
func (c *Client) Sales(ctx context.Context, dateFrom string) ([]json.RawMessage, error) {
	return c.rows(ctx, salesEndpoint, dateFrom)
}

func (c *Client) Orders(ctx context.Context, dateFrom string) ([]json.RawMessage, error) {
	return c.rows(ctx, ordersEndpoint, dateFrom)
}

func (c *Client) rows(ctx context.Context, endpoint, dateFrom string) ([]json.RawMessage, error) {
	query := url.Values{}
	query.Set("dateFrom", dateFrom)
	query.Set("flag", "0")

	var rows []json.RawMessage
	if _, err := c.DoJSON(ctx, http.MethodGet, endpoint, query, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
