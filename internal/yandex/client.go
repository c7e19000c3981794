package yandex

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gomarket_import/internal/core/models"
	"gomarket_import/pkg/clients"
	"gomarket_import/pkg/logger"
)

const (
	maxOrdersPage = 50

	reportPending = "PENDING"
	reportRunning = "PROCESSING"
	reportDone    = "DONE"
	reportFailed  = "FAILED"
)

// Client -- Partner API. OAuth-токены (y0_...) уходят как Bearer, ключи API -- в Api-Key.
type Client struct {
	*clients.BaseClient
	campaignID   string
	businessID   string
	pollInterval time.Duration
	pollAttempts int
}

func NewClient(conn *models.Connection, settings clients.Settings, log logger.Logger) *Client {
	var auth clients.AuthEngine
	if strings.HasPrefix(conn.APIKey, "y0_") {
		auth = clients.NewBearerAuth(conn.APIKey)
	} else if a := clients.NewHeaderAuth("Api-Key", conn.APIKey); a != nil {
		auth = a
	}
	return &Client{
		BaseClient:   settings.Client("yandex", conn.BaseURL, auth, log),
		campaignID:   conn.CampaignID,
		businessID:   conn.ClientID,
		pollInterval: 5 * time.Second,
		pollAttempts: 60,
	}
}

func (c *Client) Orders(ctx context.Context, from, to time.Time, pageToken string, limit int) (*OrdersResponse, error) {
	if c.campaignID == "" {
		return nil, fmt.Errorf("yandex orders: campaign id is not set for the connection")
	}
	query := url.Values{}
	query.Set("fromDate", from.Format("02-01-2006"))
	query.Set("toDate", to.Format("02-01-2006"))
	query.Set("limit", strconv.Itoa(limit))
	if pageToken != "" {
		query.Set("page_token", pageToken)
	}

	var resp OrdersResponse
	endpoint := fmt.Sprintf("/campaigns/%s/orders", c.campaignID)
	if _, err := c.DoJSON(ctx, http.MethodGet, endpoint, query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PaymentReport заказывает отчёт united-netting, ждёт его готовности и скачивает файл.
// Возвращает содержимое CSV (архив распаковывается).
func (c *Client) PaymentReport(ctx context.Context, from, to time.Time) ([]byte, error) {
	businessID, err := strconv.ParseInt(c.businessID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("yandex payment report: business id %q must be an integer", c.businessID)
	}

	var generated generateReportResponse
	query := url.Values{"format": {"CSV"}}
	body := generateReportRequest{BusinessID: businessID, DateFrom: from.Format("2006-01-02"), DateTo: to.Format("2006-01-02")}
	if _, err := c.DoJSON(ctx, http.MethodPost, "/v2/reports/united-netting/generate", query, body, &generated); err != nil {
		return nil, err
	}
	if generated.Result.ReportID == "" {
		return nil, &clients.ProviderError{Provider: "yandex", Endpoint: "/v2/reports/united-netting/generate", Kind: clients.KindMalformed, Err: fmt.Errorf("reportId is missing")}
	}

	fileURL, err := c.waitReport(ctx, generated.Result.ReportID)
	if err != nil {
		return nil, err
	}
	data, err := c.download(ctx, fileURL)
	if err != nil {
		return nil, err
	}
	return unpack(data)
}

func (c *Client) waitReport(ctx context.Context, reportID string) (string, error) {
	endpoint := "/v2/reports/info/" + url.PathEscape(reportID)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		var info reportInfoResponse
		if _, err := c.DoJSON(ctx, http.MethodGet, endpoint, nil, nil, &info); err != nil {
			return "", err
		}
		switch info.Result.Status {
		case reportDone:
			if info.Result.File == "" {
				return "", fmt.Errorf("report %s is done but has no file", reportID)
			}
			return info.Result.File, nil
		case reportFailed:
			return "", fmt.Errorf("report %s generation failed", reportID)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
	return "", fmt.Errorf("report %s is not ready after %d checks", reportID, c.pollAttempts)
}

func (c *Client) download(ctx context.Context, fileURL string) ([]byte, error) {
	if !strings.HasPrefix(fileURL, "http") {
		fileURL = c.ApiURL + fileURL
	}
	return c.Download(ctx, fileURL)
}

func unpack(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("PK")) {
		return data, nil
	}
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open report archive: %w", err)
	}
	for _, f := range archive.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("report archive has no csv file")
}
