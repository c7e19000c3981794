package ozon

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type productListRequest struct {
	Filter productListFilter `json:"filter"`
	LastID string            `json:"last_id"`
	Limit  int               `json:"limit"`
}

type productListFilter struct {
	Visibility string `json:"visibility"`
}

type ProductListResponse struct {
	Result struct {
		Items []struct {
			ProductID int64  `json:"product_id"`
			OfferID   string `json:"offer_id"`
		} `json:"items"`
		Total  int    `json:"total"`
		LastID string `json:"last_id"`
	} `json:"result"`
}

type productInfoRequest struct {
	ProductID []int64 `json:"product_id"`
}

// ProductInfoResponse хранит карточки как сырые json, чтобы каждую можно было сохранить как есть.
type ProductInfoResponse struct {
	Items []json.RawMessage `json:"items"`
}

type ProductInfo struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	OfferID      string   `json:"offer_id"`
	Barcodes     []string `json:"barcodes"`
	CurrencyCode string   `json:"currency_code"`
	Price        string   `json:"price"`
}

type postingListRequest struct {
	Dir    string        `json:"dir"`
	Filter postingFilter `json:"filter"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type postingFilter struct {
	Since string `json:"since"`
	To    string `json:"to"`
}

type FBSPostingListResponse struct {
	Result struct {
		Postings []json.RawMessage `json:"postings"`
		HasNext  bool              `json:"has_next"`
	} `json:"result"`
}

// FBOPostingListResponse -- у FBO нет has_next, result сразу массив отправлений.
type FBOPostingListResponse struct {
	Result []json.RawMessage `json:"result"`
}

type Posting struct {
	PostingNumber  string           `json:"posting_number"`
	OrderNumber    string           `json:"order_number"`
	Status         string           `json:"status"`
	Substatus      string           `json:"substatus"`
	CreatedAt      string           `json:"created_at"`
	InProcessAt    string           `json:"in_process_at"`
	DeliveringDate string           `json:"delivering_date"`
	DeliveredAt    string           `json:"delivered_at"`
	Products       []PostingProduct `json:"products"`
}

type PostingProduct struct {
	SKU          int64           `json:"sku"`
	OfferID      string          `json:"offer_id"`
	Name         string          `json:"name"`
	Quantity     int64           `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	CurrencyCode string          `json:"currency_code"`
}

type transactionListRequest struct {
	Filter   transactionFilter `json:"filter"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

type transactionFilter struct {
	Date struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"date"`
	TransactionType string `json:"transaction_type"`
}

type TransactionListResponse struct {
	Result struct {
		Operations []json.RawMessage `json:"operations"`
		PageCount  int               `json:"page_count"`
		RowCount   int               `json:"row_count"`
	} `json:"result"`
}

type Operation struct {
	OperationID       json.Number     `json:"operation_id"`
	OperationType     string          `json:"operation_type"`
	OperationTypeName string          `json:"operation_type_name"`
	OperationDate     string          `json:"operation_date"`
	Amount            decimal.Decimal `json:"amount"`
	Type              string          `json:"type"`
	Posting           struct {
		DeliverySchema string `json:"delivery_schema"`
		PostingNumber  string `json:"posting_number"`
	} `json:"posting"`
	Items []struct {
		SKU     int64  `json:"sku"`
		OfferID string `json:"offer_id"`
		Name    string `json:"name"`
	} `json:"items"`
}
