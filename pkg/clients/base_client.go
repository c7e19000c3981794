package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"gomarket_import/metrics"
	"gomarket_import/pkg/logger"
)

const maxErrorBody = 512

type Options struct {
	Provider          string
	BaseURL           string
	Auth              AuthEngine
	Log               logger.Logger
	RequestsPerMinute int
	MaxRetries        uint64
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// BaseClient -- общий HTTP-клиент провайдеров: авторизация, ограничение частоты запросов
// и повтор временных ошибок.
type BaseClient struct {
	ApiURL   string
	provider string
	auth     AuthEngine
	log      logger.Logger
	client   *http.Client
	limiter  *rate.Limiter
	retries  uint64
	// initialInterval -- первая пауза между повторами, в тестах уменьшается.
	initialInterval time.Duration
}

func NewBaseClient(opts Options) *BaseClient {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 100 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &BaseClient{
		ApiURL:          opts.BaseURL,
		provider:        opts.Provider,
		auth:            opts.Auth,
		log:             log,
		client:          client,
		limiter:         limiter,
		retries:         opts.MaxRetries,
		initialInterval: 500 * time.Millisecond,
	}
}

// WithRetryInterval меняет начальную паузу между повторами.
func (c *BaseClient) WithRetryInterval(d time.Duration) *BaseClient {
	c.initialInterval = d
	return c
}

// DoJSON отправляет запрос с JSON-телом и разбирает JSON-ответ в response.
// Возвращает сырое тело ответа, чтобы его можно было сохранить.
func (c *BaseClient) DoJSON(ctx context.Context, method, endpoint string, query url.Values, requestBody, response interface{}) ([]byte, error) {
	var bodyBytes []byte
	if requestBody != nil {
		var err error
		bodyBytes, err = json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	body, err := c.Do(ctx, method, endpoint, query, bodyBytes)
	if err != nil {
		return nil, err
	}
	if response != nil {
		if err := json.Unmarshal(body, response); err != nil {
			return body, &ProviderError{Provider: c.provider, Endpoint: endpoint, Kind: KindMalformed, Err: err}
		}
	}
	return body, nil
}

// Do выполняет запрос с повторами и возвращает тело успешного ответа.
func (c *BaseClient) Do(ctx context.Context, method, endpoint string, query url.Values, body []byte) ([]byte, error) {
	target := c.ApiURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.retry(ctx, method, endpoint, target, body)
}

// Download скачивает файл по абсолютной ссылке (готовые отчёты лежат вне ApiURL).
func (c *BaseClient) Download(ctx context.Context, target string) ([]byte, error) {
	endpoint := target
	if u, err := url.Parse(target); err == nil {
		endpoint = u.Path
	}
	return c.retry(ctx, http.MethodGet, endpoint, target, nil)
}

func (c *BaseClient) retry(ctx context.Context, method, endpoint, target string, body []byte) ([]byte, error) {
	var result []byte
	operation := func() error {
		data, err := c.once(ctx, method, endpoint, target, body)
		if err != nil {
			var pe *ProviderError
			if errors.As(err, &pe) && pe.Kind != KindTransient {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.log.Warn("%s %s: %v, retrying", method, endpoint, err)
			return err
		}
		result = data
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxElapsedTime = 0
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *BaseClient) once(ctx context.Context, method, endpoint, target string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		c.auth.SetApiKey(req)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordProviderRequest(c.provider, 0, time.Since(start))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("request was cancelled: %w", ctx.Err())
		default:
			return nil, &ProviderError{Provider: c.provider, Endpoint: endpoint, Kind: KindTransient, Err: err}
		}
	}
	defer resp.Body.Close()
	metrics.RecordProviderRequest(c.provider, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: c.provider, Endpoint: endpoint, Kind: KindTransient, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(data)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &ProviderError{
			Provider:   c.provider,
			Endpoint:   endpoint,
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Body:       snippet,
		}
	}
	return data, nil
}
