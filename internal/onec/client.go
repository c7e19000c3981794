package onec

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gomarket_import/internal/core/models"
	"gomarket_import/pkg/clients"
	"gomarket_import/pkg/logger"
)

const (
	nomenclatureCollection = "Catalog_Номенклатура"
	odataPath              = "/odata/standard.odata"

	maxODataPage = 1000
)

// Client -- стандартный OData-интерфейс 1С:Предприятия с basic-авторизацией.
type Client struct {
	*clients.BaseClient
	prefix string
	log    logger.Logger
}

func NewClient(conn *models.Connection, settings clients.Settings, user, password string, log logger.Logger) *Client {
	// учётка подключения важнее учётки из конфига
	if conn.ClientID != "" {
		user, password = conn.ClientID, conn.APIKey
	}
	var auth clients.AuthEngine
	if a := clients.NewBasicAuth(user, password); a != nil {
		auth = a
	}
	if log == nil {
		log = logger.Nop()
	}
	base := settings.Client("1c", conn.BaseURL, auth, log)
	prefix := odataPath
	if strings.Contains(base.ApiURL, "/odata/") {
		prefix = ""
	}
	return &Client{BaseClient: base, prefix: prefix, log: log}
}

func (c *Client) collection(name string) string {
	return c.prefix + "/" + url.PathEscape(name)
}

// List возвращает страницу коллекции, упорядоченную по Ref_Key.
func (c *Client) List(ctx context.Context, collection, filter string, skip, top int) ([]json.RawMessage, error) {
	query := url.Values{}
	query.Set("$format", "json")
	query.Set("$top", strconv.Itoa(top))
	query.Set("$skip", strconv.Itoa(skip))
	query.Set("$orderby", "Ref_Key")
	if filter != "" {
		query.Set("$filter", filter)
	}
	var resp listResponse
	if _, err := c.DoJSON(ctx, http.MethodGet, c.collection(collection), query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// Count -- $count коллекции. Не все конфигурации его поддерживают, тогда nil.
func (c *Client) Count(ctx context.Context, collection, filter string) *int {
	query := url.Values{}
	if filter != "" {
		query.Set("$filter", filter)
	}
	body, err := c.Do(ctx, http.MethodGet, c.collection(collection)+"/$count", query, nil)
	if err != nil {
		c.log.Warn("count %s: %v", collection, err)
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(string(body), "\ufeff")))
	if err != nil {
		c.log.Warn("count %s: unexpected body %q", collection, string(body))
		return nil
	}
	return &n
}
