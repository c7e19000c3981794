package ozon

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/normalize"
	"gomarket_import/internal/core/services"
	"gomarket_import/internal/importer"
)

// NormalizeStatus приводит статус отправления OZON к общему виду.
func NormalizeStatus(status string) models.NormalizedStatus {
	s := strings.ToLower(strings.TrimSpace(status))
	switch {
	case s == "delivered":
		return models.StatusDelivered
	case s == "cancelled" || s == "canceled":
		return models.StatusCancelled
	case s == "delivering" || s == "driver_pickup" || s == "sent_by_seller" || s == "arbitration":
		return models.StatusDelivering
	case strings.HasPrefix(s, "awaiting") || s == "acceptance_in_progress":
		return models.StatusAwaiting
	case strings.Contains(s, "return"):
		return models.StatusReturned
	}
	return models.StatusUnknown
}

// PostingDocument строит документ отправления FBS или FBO. Дата события -- in_process_at,
// без неё created_at; отсутствие обеих -- ошибка записи.
func PostingDocument(conn *models.Connection, source models.DocumentType, p Posting, fetchedAt time.Time) (*models.Document, error) {
	if strings.TrimSpace(p.PostingNumber) == "" {
		return nil, fmt.Errorf("posting without posting_number")
	}
	eventRaw := p.InProcessAt
	field := "in_process_at"
	if eventRaw == "" {
		eventRaw, field = p.CreatedAt, "created_at"
	}
	eventAt, err := normalize.RequiredTime(p.PostingNumber, field, eventRaw)
	if err != nil {
		return nil, err
	}
	deliveredAt := normalize.OptionalTime(p.DeliveredAt)

	lines := make([]models.Line, 0, len(p.Products))
	for _, product := range p.Products {
		qty := decimal.NewFromInt(product.Quantity)
		lines = append(lines, models.Line{
			SKU:      product.OfferID,
			Article:  product.OfferID,
			Name:     product.Name,
			Qty:      qty,
			Price:    product.Price,
			Amount:   product.Price.Mul(qty),
			Currency: currency(product.CurrencyCode),
		})
	}

	header := importer.Header(conn, p.PostingNumber)
	header.Scheme = "FBS"
	if source == models.DocumentTypeOzonFBOPosting {
		header.Scheme = "FBO"
	}
	if p.OrderNumber != "" {
		header.Extra = map[string]string{"order_number": p.OrderNumber}
	}

	doc := models.NewDocument(source, p.PostingNumber, header, lines, models.State{
		RawStatus:   p.Status,
		Status:      NormalizeStatus(p.Status),
		EventAt:     eventAt,
		DeliveredAt: deliveredAt,
	}, fetchedAt)
	doc.Code = "OZON-" + p.PostingNumber
	doc.Description = fmt.Sprintf("OZON %s %s", header.Scheme, p.PostingNumber)
	return doc, nil
}

// TransactionDocument строит документ финансовой операции. Вся сумма операции относится
// к первой строке; операция без товаров получает одну строку без SKU.
func TransactionDocument(conn *models.Connection, op Operation, fetchedAt time.Time) (*models.Document, error) {
	id := op.OperationID.String()
	if id == "" {
		return nil, fmt.Errorf("operation without operation_id")
	}
	eventAt, err := normalize.RequiredTime(id, "operation_date", op.OperationDate)
	if err != nil {
		return nil, err
	}

	var lines []models.Line
	for _, item := range op.Items {
		sku := item.OfferID
		if sku == "" && item.SKU != 0 {
			sku = strconv.FormatInt(item.SKU, 10)
		}
		lines = append(lines, models.Line{SKU: sku, Name: item.Name, Qty: decimal.NewFromInt(1), Currency: "RUB"})
	}
	if len(lines) == 0 {
		lines = append(lines, models.Line{Name: op.OperationTypeName, Qty: decimal.Zero, Currency: "RUB"})
	}
	lines[0].Amount = op.Amount

	header := importer.Header(conn, id)
	header.Scheme = op.Posting.DeliverySchema
	header.Extra = map[string]string{
		"operation_type": op.OperationType,
		"type":           op.Type,
		"posting_number": op.Posting.PostingNumber,
	}

	doc := models.NewDocument(models.DocumentTypeOzonTransaction, id, header, lines, models.State{
		RawStatus: op.OperationType,
		Status:    models.StatusDelivered,
		EventAt:   eventAt,
	}, fetchedAt)
	doc.Code = "OZON-TXN-" + id
	doc.Description = strings.TrimSpace(op.OperationTypeName + " " + op.Posting.PostingNumber)
	return doc, nil
}

// CatalogItem -- карточка каталога OZON для синхронизации товаров. SKU -- offer_id.
func CatalogItem(conn *models.Connection, info ProductInfo) services.CatalogItem {
	return services.CatalogItem{
		Marketplace:   conn.Marketplace,
		MarketplaceID: conn.MarketplaceID,
		ConnectionID:  conn.ID,
		SKU:           info.OfferID,
		Article:       info.OfferID,
		Title:         info.Name,
		Barcodes:      info.Barcodes,
	}
}

func currency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "RUB"
	}
	return code
}
