package clients

import (
	"net/http"
)

// AuthEngine подписывает запрос. Конструкторы возвращают nil при пустом ключе,
// SetApiKey на nil ничего не делает.
type AuthEngine interface {
	GetApiKey() string
	SetApiKey(request *http.Request)
}

type BearerAuth struct {
	apiKey string
}

func (b *BearerAuth) GetApiKey() string {
	return b.apiKey
}

func (b *BearerAuth) SetApiKey(request *http.Request) {
	if b == nil {
		return
	}
	request.Header.Set("Authorization", "Bearer "+b.apiKey)
}

func NewBearerAuth(apiKey string) *BearerAuth {
	if apiKey == "" {
		return nil
	}
	return &BearerAuth{apiKey: apiKey}
}

// HeaderAuth кладёт ключ в произвольный заголовок (WB statistics: Authorization без Bearer,
// YM: Api-Key).
type HeaderAuth struct {
	header string
	apiKey string
}

func NewHeaderAuth(header, apiKey string) *HeaderAuth {
	if apiKey == "" {
		return nil
	}
	return &HeaderAuth{header: header, apiKey: apiKey}
}

func (h *HeaderAuth) GetApiKey() string {
	return h.apiKey
}

func (h *HeaderAuth) SetApiKey(request *http.Request) {
	if h == nil {
		return
	}
	request.Header.Set(h.header, h.apiKey)
}

// OzonAuth -- Seller API требует пару Client-Id + Api-Key.
type OzonAuth struct {
	clientID string
	apiKey   string
}

func NewOzonAuth(clientID, apiKey string) *OzonAuth {
	if clientID == "" || apiKey == "" {
		return nil
	}
	return &OzonAuth{clientID: clientID, apiKey: apiKey}
}

func (o *OzonAuth) GetApiKey() string {
	return o.apiKey
}

func (o *OzonAuth) SetApiKey(request *http.Request) {
	if o == nil {
		return
	}
	request.Header.Set("Client-Id", o.clientID)
	request.Header.Set("Api-Key", o.apiKey)
}

// BasicAuth используется для OData-сервиса 1С.
type BasicAuth struct {
	user     string
	password string
}

func NewBasicAuth(user, password string) *BasicAuth {
	if user == "" {
		return nil
	}
	return &BasicAuth{user: user, password: password}
}

func (b *BasicAuth) GetApiKey() string {
	return b.user
}

func (b *BasicAuth) SetApiKey(request *http.Request) {
	if b == nil {
		return
	}
	request.SetBasicAuth(b.user, b.password)
}
