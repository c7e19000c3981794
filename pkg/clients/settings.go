package clients

import (
	"net/http"
	"time"

	"gomarket_import/pkg/logger"
)

// Settings -- параметры клиента провайдера из конфигурации. BaseURL подключения, если задан,
// важнее BaseURL из конфига.
type Settings struct {
	BaseURL           string
	PageSize          int
	RequestsPerMinute int
	MaxRetries        uint64
	Timeout           time.Duration
	RetryInterval     time.Duration
	HTTPClient        *http.Client
}

func (s Settings) Client(provider, baseURL string, auth AuthEngine, log logger.Logger) *BaseClient {
	if baseURL == "" {
		baseURL = s.BaseURL
	}
	client := NewBaseClient(Options{
		Provider:          provider,
		BaseURL:           baseURL,
		Auth:              auth,
		Log:               log,
		RequestsPerMinute: s.RequestsPerMinute,
		MaxRetries:        s.MaxRetries,
		Timeout:           s.Timeout,
		HTTPClient:        s.HTTPClient,
	})
	if s.RetryInterval > 0 {
		client.WithRetryInterval(s.RetryInterval)
	}
	return client
}

// Limit возвращает размер страницы, не превышающий предел провайдера.
func (s Settings) Limit(upper int) int {
	if s.PageSize <= 0 || s.PageSize > upper {
		return upper
	}
	return s.PageSize
}
