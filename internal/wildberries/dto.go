package wildberries

import "github.com/shopspring/decimal"

// SaleRow -- строка /api/v1/supplier/sales. saleID начинается с S для продаж и с R для возвратов.
type SaleRow struct {
	Srid              string          `json:"srid"`
	SaleID            string          `json:"saleID"`
	NmID              int64           `json:"nmId"`
	SupplierArticle   string          `json:"supplierArticle"`
	Barcode           string          `json:"barcode"`
	Brand             string          `json:"brand"`
	Subject           string          `json:"subject"`
	Category          string          `json:"category"`
	Date              string          `json:"date"`
	LastChangeDate    string          `json:"lastChangeDate"`
	WarehouseName     string          `json:"warehouseName"`
	WarehouseType     string          `json:"warehouseType"`
	RegionName        string          `json:"regionName"`
	Quantity          *int64          `json:"quantity"`
	TotalPrice        decimal.Decimal `json:"totalPrice"`
	DiscountPercent   decimal.Decimal `json:"discountPercent"`
	Spp               decimal.Decimal `json:"spp"`
	ForPay            decimal.Decimal `json:"forPay"`
	FinishedPrice     decimal.Decimal `json:"finishedPrice"`
	PriceWithDisc     decimal.Decimal `json:"priceWithDisc"`
	PaymentSaleAmount decimal.Decimal `json:"paymentSaleAmount"`
	IsSupply          bool            `json:"isSupply"`
	IsRealization     bool            `json:"isRealization"`
}

// OrderRow -- строка /api/v1/supplier/orders.
type OrderRow struct {
	Srid            string          `json:"srid"`
	GNumber         string          `json:"gNumber"`
	NmID            int64           `json:"nmId"`
	SupplierArticle string          `json:"supplierArticle"`
	Barcode         string          `json:"barcode"`
	Brand           string          `json:"brand"`
	Subject         string          `json:"subject"`
	Category        string          `json:"category"`
	TechSize        string          `json:"techSize"`
	Date            string          `json:"date"`
	LastChangeDate  string          `json:"lastChangeDate"`
	WarehouseName   string          `json:"warehouseName"`
	RegionName      string          `json:"regionName"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Spp             decimal.Decimal `json:"spp"`
	FinishedPrice   decimal.Decimal `json:"finishedPrice"`
	PriceWithDisc   decimal.Decimal `json:"priceWithDisc"`
	IsCancel        bool            `json:"isCancel"`
	CancelDate      string          `json:"cancelDate"`
}
