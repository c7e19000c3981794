package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ProductReference -- товар маркетплейса. Идентичность задаётся парой (marketplace_id, marketplace_sku),
// ссылка на номенклатуру 1С необязательна и заполняется отдельным сопоставлением.
type ProductReference struct {
	ID              string      `json:"id"`
	Code            string      `json:"code"`
	Description     string      `json:"description"`
	Marketplace     Marketplace `json:"marketplace"`
	MarketplaceID   string      `json:"marketplace_id"`
	ConnectionID    string      `json:"connection_id"`
	MarketplaceSKU  string      `json:"marketplace_sku"`
	Barcode         *string     `json:"barcode,omitempty"`
	Article         string      `json:"article"`
	NomenclatureRef *string     `json:"nomenclature_ref,omitempty"`
	Comment         *string     `json:"comment,omitempty"`
	LastUpdate      *time.Time  `json:"last_update,omitempty"`
	Metadata        Metadata    `json:"metadata"`
}

func (p *ProductReference) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Code, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Description, validation.Required),
		validation.Field(&p.MarketplaceID, validation.Required),
		validation.Field(&p.ConnectionID, validation.Required),
		validation.Field(&p.MarketplaceSKU, validation.Required, validation.Length(1, 255)),
	)
}
