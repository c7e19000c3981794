package yandex

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/normalize"
	"gomarket_import/internal/importer"
)

// Даты заказов приходят как 02-01-2006 15:04:05, в отчётах -- 02.01.2006 15:04.
var layouts = append(append([]string{}, normalize.DefaultLayouts...),
	"02-01-2006 15:04:05",
	"02-01-2006",
	"02.01.2006 15:04",
)

func NormalizeStatus(status string) models.NormalizedStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "DELIVERED":
		return models.StatusDelivered
	case "CANCELLED":
		return models.StatusCancelled
	case "DELIVERY", "PICKUP":
		return models.StatusDelivering
	case "PROCESSING", "PENDING", "UNPAID", "RESERVED", "PLACING":
		return models.StatusAwaiting
	case "RETURNED", "PARTIALLY_RETURNED":
		return models.StatusReturned
	}
	return models.StatusUnknown
}

// YM отдаёт рубли как RUR
func currency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == "RUR" || len(code) != 3 {
		return "RUB"
	}
	return code
}

func OrderDocument(conn *models.Connection, o Order, fetchedAt time.Time) (*models.Document, error) {
	if o.ID == 0 {
		return nil, fmt.Errorf("order without id")
	}
	key := strconv.FormatInt(o.ID, 10)
	eventAt, err := normalize.RequiredTime(key, "creationDate", o.CreationDate, layouts...)
	if err != nil {
		return nil, err
	}
	var deliveredAt *time.Time
	if t, err := normalize.ParseTime(o.Delivery.Dates.RealDeliveryDate, layouts...); err == nil {
		deliveredAt = &t
	}
	var changedAt *time.Time
	if t, err := normalize.ParseTime(o.StatusUpdateDate, layouts...); err == nil {
		changedAt = &t
	}

	lines := make([]models.Line, 0, len(o.Items))
	for _, item := range o.Items {
		qty := decimal.NewFromInt(item.Count)
		price := item.BuyerPrice
		if price.IsZero() {
			price = item.Price
		}
		lines = append(lines, models.Line{
			SKU:      item.OfferID,
			Article:  item.OfferID,
			Name:     item.OfferName,
			Qty:      qty,
			Price:    price,
			Amount:   price.Mul(qty),
			Currency: currency(o.Currency),
		})
	}

	header := importer.Header(conn, key)
	header.Scheme = o.Delivery.Type
	if o.Substatus != "" {
		header.Extra = map[string]string{"substatus": o.Substatus}
	}

	doc := models.NewDocument(models.DocumentTypeYmOrder, key, header, lines, models.State{
		RawStatus:   o.Status,
		Status:      NormalizeStatus(o.Status),
		EventAt:     eventAt,
		ChangedAt:   changedAt,
		DeliveredAt: deliveredAt,
	}, fetchedAt)
	doc.Code = "YM-" + key
	doc.Description = "Яндекс Маркет заказ " + key
	return doc, nil
}

// PaymentRow -- строка отчёта по платежам: имя колонки в верхнем регистре -> значение.
type PaymentRow map[string]string

func (r PaymentRow) get(name string) string { return strings.TrimSpace(r[name]) }

// Key -- TRANSACTION_ID, если Маркет его уже присвоил, иначе ключ из неизменяемых полей строки.
// Строка, получившая TRANSACTION_ID позже, станет новым документом; реальный id хранится
// в шапке, по нему такие пары можно найти.
func (r PaymentRow) Key() (string, bool) {
	if id := r.get("TRANSACTION_ID"); id != "" {
		return id, false
	}
	return fmt.Sprintf("SYNTH_%s_%s_%s_%s",
		r.get("ORDER_ID"), r.get("TRANSACTION_DATE"), r.get("TRANSACTION_TYPE"), r.get("TRANSACTION_SUM")), true
}

func PaymentDocument(conn *models.Connection, row PaymentRow, fetchedAt time.Time) (*models.Document, error) {
	if row.get("ORDER_ID") == "" && row.get("TRANSACTION_DATE") == "" {
		return nil, fmt.Errorf("payment row has no identifying fields")
	}
	key, synthetic := row.Key()
	eventAt, err := normalize.RequiredTime(key, "TRANSACTION_DATE", row.get("TRANSACTION_DATE"), layouts...)
	if err != nil {
		return nil, err
	}
	sum, err := normalize.ParseDecimal(row.get("TRANSACTION_SUM"))
	if err != nil {
		return nil, &normalize.FieldError{RecordID: key, Field: "TRANSACTION_SUM", Value: row.get("TRANSACTION_SUM"), Err: err}
	}
	qty := decimal.NewFromInt(1)
	if n, err := strconv.ParseInt(row.get("COUNT"), 10, 64); err == nil {
		qty = decimal.NewFromInt(n)
	}

	header := importer.Header(conn, key)
	header.Extra = map[string]string{
		"transaction_id":     row.get("TRANSACTION_ID"),
		"order_id":           row.get("ORDER_ID"),
		"transaction_type":   row.get("TRANSACTION_TYPE"),
		"transaction_source": row.get("TRANSACTION_SOURCE"),
		"payment_status":     row.get("PAYMENT_STATUS"),
		"bank_order_id":      row.get("BANK_ORDER_ID"),
	}
	if synthetic {
		header.Extra["synthetic_key"] = "true"
	}

	line := models.Line{
		SKU:      row.get("SHOP_SKU"),
		Article:  row.get("SHOP_SKU"),
		Name:     row.get("OFFER_OR_SERVICE_NAME"),
		Qty:      qty,
		Amount:   sum,
		Currency: "RUB",
	}
	doc := models.NewDocument(models.DocumentTypeYmPayment, key, header, []models.Line{line}, models.State{
		RawStatus: row.get("PAYMENT_STATUS"),
		Status:    models.StatusDelivered,
		EventAt:   eventAt,
	}, fetchedAt)
	doc.Code = "YM-PAY-" + row.get("ORDER_ID")
	doc.Description = strings.TrimSpace(row.get("TRANSACTION_TYPE") + " " + row.get("ORDER_ID"))
	return doc, nil
}

// DecodeReport переводит отчёт в UTF-8 (если он в windows-1251), убирает BOM и разбирает CSV.
// Разделитель -- запятая или точка с запятой, по заголовку.
func DecodeReport(data []byte, encoding string) ([]PaymentRow, error) {
	if strings.EqualFold(encoding, "windows-1251") || strings.EqualFold(encoding, "cp1251") {
		decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode windows-1251 report: %w", err)
		}
		data = decoded
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	firstLine, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		reader.Comma = ';'
	}

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read report header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToUpper(strings.TrimSpace(header[i]))
	}

	var rows []PaymentRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read report row %d: %w", len(rows)+2, err)
		}
		row := make(PaymentRow, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
