package wildberries

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/normalize"
	"gomarket_import/internal/importer"
)

// SaleKey -- srid, а без него синтетический ключ из товара, даты и штрихкода.
func SaleKey(row SaleRow) string {
	if s := strings.TrimSpace(row.Srid); s != "" {
		return s
	}
	return fmt.Sprintf("WB_SALE_%d_%s_%s", row.NmID, row.Date, row.Barcode)
}

func OrderKey(row OrderRow) string {
	if s := strings.TrimSpace(row.Srid); s != "" {
		return s
	}
	return fmt.Sprintf("WB_ORDER_%d_%s_%s", row.NmID, row.Date, row.Barcode)
}

// isReturn: возврат -- отрицательное количество или saleID с префиксом R.
func isReturn(row SaleRow) bool {
	if row.Quantity != nil && *row.Quantity < 0 {
		return true
	}
	return strings.HasPrefix(strings.ToUpper(row.SaleID), "R")
}

func SaleDocument(conn *models.Connection, row SaleRow, fetchedAt time.Time) (*models.Document, error) {
	key := SaleKey(row)
	eventAt, err := normalize.RequiredTime(key, "date", row.Date)
	if err != nil {
		return nil, err
	}

	qty := decimal.NewFromInt(1)
	if row.Quantity != nil && *row.Quantity != 0 {
		qty = decimal.NewFromInt(*row.Quantity)
	}
	status, event := models.StatusDelivered, "sale"
	if isReturn(row) {
		status, event = models.StatusReturned, "return"
		if qty.IsPositive() {
			qty = qty.Neg()
		}
	}

	header := importer.Header(conn, key)
	header.Extra = map[string]string{"sale_id": row.SaleID, "warehouse": row.WarehouseName}
	if row.Srid == "" {
		header.Extra["synthetic_key"] = "true"
	}

	line := models.Line{
		SKU:      nmSKU(row.NmID),
		Barcode:  row.Barcode,
		Article:  row.SupplierArticle,
		Name:     title(row.Subject, row.Brand, row.SupplierArticle),
		Qty:      qty,
		Price:    row.PriceWithDisc,
		Amount:   row.ForPay,
		Currency: "RUB",
	}

	doc := models.NewDocument(models.DocumentTypeWbSale, key, header, []models.Line{line}, models.State{
		RawStatus: event,
		Status:    status,
		EventAt:   eventAt,
		ChangedAt: normalize.OptionalTime(row.LastChangeDate),
	}, fetchedAt)
	doc.Code = key
	doc.Description = strings.TrimSpace(fmt.Sprintf("WB %s %s", event, row.SupplierArticle))
	return doc, nil
}

func OrderDocument(conn *models.Connection, row OrderRow, fetchedAt time.Time) (*models.Document, error) {
	key := OrderKey(row)
	eventAt, err := normalize.RequiredTime(key, "date", row.Date)
	if err != nil {
		return nil, err
	}

	status, raw := models.StatusAwaiting, "ordered"
	if row.IsCancel {
		status, raw = models.StatusCancelled, "cancelled"
	}

	header := importer.Header(conn, key)
	header.Extra = map[string]string{"g_number": row.GNumber, "warehouse": row.WarehouseName}
	if row.CancelDate != "" {
		header.Extra["cancel_date"] = row.CancelDate
	}

	line := models.Line{
		SKU:      nmSKU(row.NmID),
		Barcode:  row.Barcode,
		Article:  row.SupplierArticle,
		Name:     title(row.Subject, row.Brand, row.SupplierArticle),
		Qty:      decimal.NewFromInt(1),
		Price:    row.PriceWithDisc,
		Amount:   row.FinishedPrice,
		Currency: "RUB",
	}

	doc := models.NewDocument(models.DocumentTypeWbOrder, key, header, []models.Line{line}, models.State{
		RawStatus: raw,
		Status:    status,
		EventAt:   eventAt,
		ChangedAt: normalize.OptionalTime(row.LastChangeDate),
	}, fetchedAt)
	doc.Code = key
	doc.Description = strings.TrimSpace(fmt.Sprintf("WB заказ %s", row.SupplierArticle))
	return doc, nil
}

func nmSKU(nmID int64) string {
	if nmID == 0 {
		return ""
	}
	return strconv.FormatInt(nmID, 10)
}

func title(subject, brand, article string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{subject, brand, article} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
