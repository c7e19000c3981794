package models

import (
	"fmt"
	"strings"
)

// Все перечисления, попадающие в БД или JSON строкой, отображаются явно в обе стороны.
// Незнакомое значение при чтении превращается в вариант Unknown, а не в ошибку.

type Marketplace int

const (
	MarketplaceUnknown Marketplace = iota
	MarketplaceOzon
	MarketplaceWildberries
	MarketplaceYandex
	MarketplaceOneC
)

var marketplaceNames = map[Marketplace]string{
	MarketplaceUnknown:     "unknown",
	MarketplaceOzon:        "ozon",
	MarketplaceWildberries: "wb",
	MarketplaceYandex:      "ym",
	MarketplaceOneC:        "1c",
}

func (m Marketplace) String() string {
	if name, ok := marketplaceNames[m]; ok {
		return name
	}
	return marketplaceNames[MarketplaceUnknown]
}

func ParseMarketplace(s string) Marketplace {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range marketplaceNames {
		if name == s {
			return m
		}
	}
	switch s {
	case "wildberries":
		return MarketplaceWildberries
	case "yandex", "yandex_market":
		return MarketplaceYandex
	}
	return MarketplaceUnknown
}

// BarcodeSource -- под каким источником штрихкоды этого маркетплейса лежат в nomenclature_barcodes.
func (m Marketplace) BarcodeSource() string {
	switch m {
	case MarketplaceOzon:
		return BarcodeSourceOzon
	case MarketplaceWildberries:
		return BarcodeSourceWB
	case MarketplaceYandex:
		return BarcodeSourceYM
	case MarketplaceOneC:
		return BarcodeSource1C
	}
	return "UNKNOWN"
}

func (m Marketplace) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Marketplace) UnmarshalText(b []byte) error {
	*m = ParseMarketplace(string(b))
	return nil
}

type DocumentType int

const (
	DocumentTypeUnknown DocumentType = iota
	DocumentTypeOzonFBSPosting
	DocumentTypeOzonFBOPosting
	DocumentTypeOzonTransaction
	DocumentTypeWbSale
	DocumentTypeWbOrder
	DocumentTypeYmOrder
	DocumentTypeYmPayment
)

var documentTypeNames = map[DocumentType]string{
	DocumentTypeUnknown:         "unknown",
	DocumentTypeOzonFBSPosting:  "ozon_fbs_posting",
	DocumentTypeOzonFBOPosting:  "ozon_fbo_posting",
	DocumentTypeOzonTransaction: "ozon_transaction",
	DocumentTypeWbSale:          "wb_sale",
	DocumentTypeWbOrder:         "wb_order",
	DocumentTypeYmOrder:         "ym_order",
	DocumentTypeYmPayment:       "ym_payment",
}

func (t DocumentType) String() string {
	if name, ok := documentTypeNames[t]; ok {
		return name
	}
	return documentTypeNames[DocumentTypeUnknown]
}

func (t DocumentType) Known() bool {
	_, ok := documentTypeNames[t]
	return ok && t != DocumentTypeUnknown
}

func ParseDocumentType(s string) DocumentType {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range documentTypeNames {
		if name == s {
			return t
		}
	}
	return DocumentTypeUnknown
}

func (t DocumentType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *DocumentType) UnmarshalText(b []byte) error {
	*t = ParseDocumentType(string(b))
	return nil
}

// NormalizedStatus -- статус документа, приведённый к общему виду для всех источников.
type NormalizedStatus int

const (
	StatusUnknown NormalizedStatus = iota
	StatusAwaiting
	StatusDelivering
	StatusDelivered
	StatusCancelled
	StatusReturned
)

var statusNames = map[NormalizedStatus]string{
	StatusUnknown:    "UNKNOWN",
	StatusAwaiting:   "AWAITING",
	StatusDelivering: "DELIVERING",
	StatusDelivered:  "DELIVERED",
	StatusCancelled:  "CANCELLED",
	StatusReturned:   "RETURNED",
}

func (s NormalizedStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return statusNames[StatusUnknown]
}

func ParseNormalizedStatus(s string) NormalizedStatus {
	s = strings.ToUpper(strings.TrimSpace(s))
	for st, name := range statusNames {
		if name == s {
			return st
		}
	}
	return StatusUnknown
}

func (s NormalizedStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *NormalizedStatus) UnmarshalText(b []byte) error {
	*s = ParseNormalizedStatus(string(b))
	return nil
}

const (
	BarcodeSource1C   = "1C"
	BarcodeSourceOzon = "OZON"
	BarcodeSourceWB   = "WB"
	BarcodeSourceYM   = "YM"
)

func mustKnown(kind string, known bool, value fmt.Stringer) error {
	if !known {
		return fmt.Errorf("unknown %s %q", kind, value.String())
	}
	return nil
}
