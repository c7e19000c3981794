package importer

import (
	"context"
	"fmt"
	"time"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/services"
)

// defaultPeriod -- глубина загрузки, когда date_from не указан.
const defaultPeriod = 30 * 24 * time.Hour

// Period возвращает границы загрузки в UTC: пустой date_to -- сейчас, пустой date_from --
// за defaultPeriod до date_to.
func (r Request) Period(now time.Time) (time.Time, time.Time) {
	to := r.DateTo
	if to.IsZero() {
		to = now
	}
	from := r.DateFrom
	if from.IsZero() {
		from = to.Add(-defaultPeriod)
	}
	return from.UTC(), to.UTC()
}

// ResolveLines проставляет строкам ссылки на карточку товара и номенклатуру.
// Строки без SKU пропускаются.
func ResolveLines(ctx context.Context, products ProductResolver, conn *models.Connection, lines []models.Line) error {
	for i := range lines {
		line := &lines[i]
		if line.SKU == "" {
			continue
		}
		ref, err := products.FindOrCreate(ctx, services.FindOrCreateParams{
			Marketplace:   conn.Marketplace,
			MarketplaceID: conn.MarketplaceID,
			ConnectionID:  conn.ID,
			SKU:           line.SKU,
			Barcode:       line.Barcode,
			Title:         line.Name,
		})
		if err != nil {
			return fmt.Errorf("line %d (sku %s): %w", line.LineNo, line.SKU, err)
		}
		line.MarketplaceProductRef = ref
		if nom, ok := products.ResolveNomenclature(ctx, ref); ok {
			line.NomenclatureRef = nom
		}
	}
	return nil
}

// Header собирает общую часть шапки документа из подключения.
func Header(conn *models.Connection, documentNo string) models.Header {
	return models.Header{
		DocumentNo:     documentNo,
		ConnectionID:   conn.ID,
		OrganizationID: conn.OrganizationID,
		MarketplaceID:  conn.MarketplaceID,
		Marketplace:    conn.Marketplace,
	}
}

// SaveDocument сопоставляет строки документа с товарами и сохраняет его вместе с сырым ответом.
func SaveDocument(ctx context.Context, documents DocumentUpserter, products ProductResolver, conn *models.Connection, doc *models.Document, raw []byte) (Outcome, error) {
	if err := ResolveLines(ctx, products, conn, doc.Lines); err != nil {
		return 0, err
	}
	res, err := documents.Upsert(ctx, doc, raw)
	if err != nil {
		return 0, err
	}
	return UpsertOutcome(res), nil
}
