package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesRegisterRow -- строка регистра продаж, строится из проведённого документа.
type SalesRegisterRow struct {
	DocumentID            string
	LineNo                int
	Source                DocumentType
	Marketplace           Marketplace
	ConnectionID          string
	EventAt               time.Time
	Status                NormalizedStatus
	MarketplaceProductRef *string
	NomenclatureRef       *string
	Qty                   decimal.Decimal
	Amount                decimal.Decimal
	Currency              string
}

// SalesRegisterRows разворачивает строки документа в строки регистра.
func SalesRegisterRows(d *Document) []SalesRegisterRow {
	rows := make([]SalesRegisterRow, 0, len(d.Lines))
	for _, line := range d.Lines {
		rows = append(rows, SalesRegisterRow{
			DocumentID:            d.ID,
			LineNo:                line.LineNo,
			Source:                d.Source,
			Marketplace:           d.Header.Marketplace,
			ConnectionID:          d.Header.ConnectionID,
			EventAt:               d.State.EventAt,
			Status:                d.State.Status,
			MarketplaceProductRef: optional(line.MarketplaceProductRef),
			NomenclatureRef:       optional(line.NomenclatureRef),
			Qty:                   line.Qty,
			Amount:                line.Amount,
			Currency:              line.Currency,
		})
	}
	return rows
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
