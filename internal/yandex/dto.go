package yandex

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type OrdersResponse struct {
	Orders []json.RawMessage `json:"orders"`
	Paging struct {
		NextPageToken string `json:"nextPageToken"`
	} `json:"paging"`
	Pager struct {
		Total *int `json:"total"`
	} `json:"pager"`
}

type Order struct {
	ID               int64           `json:"id"`
	Status           string          `json:"status"`
	Substatus        string          `json:"substatus"`
	CreationDate     string          `json:"creationDate"`
	StatusUpdateDate string          `json:"statusUpdateDate"`
	Currency         string          `json:"currency"`
	ItemsTotal       decimal.Decimal `json:"itemsTotal"`
	Items            []OrderItem     `json:"items"`
	Delivery         struct {
		Type  string `json:"type"`
		Dates struct {
			RealDeliveryDate string `json:"realDeliveryDate"`
		} `json:"dates"`
	} `json:"delivery"`
}

type OrderItem struct {
	ID         int64           `json:"id"`
	OfferID    string          `json:"offerId"`
	OfferName  string          `json:"offerName"`
	Count      int64           `json:"count"`
	Price      decimal.Decimal `json:"price"`
	BuyerPrice decimal.Decimal `json:"buyerPrice"`
	Subsidy    decimal.Decimal `json:"subsidy"`
}

type generateReportRequest struct {
	BusinessID int64  `json:"businessId"`
	DateFrom   string `json:"dateFrom"`
	DateTo     string `json:"dateTo"`
}

type generateReportResponse struct {
	Result struct {
		ReportID string `json:"reportId"`
	} `json:"result"`
}

type reportInfoResponse struct {
	Result struct {
		Status string `json:"status"`
		File   string `json:"file"`
	} `json:"result"`
}
