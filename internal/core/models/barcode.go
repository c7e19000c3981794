package models

import (
	"errors"
	"time"
)

// BarcodeEntry -- строка перекрёстного справочника штрихкодов. Один штрихкод может быть
// зарегистрирован несколькими источниками.
type BarcodeEntry struct {
	Barcode         string    `json:"barcode"`
	Source          string    `json:"source"`
	NomenclatureRef *string   `json:"nomenclature_ref,omitempty"`
	Article         *string   `json:"article,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func ValidateBarcode(barcode string) error {
	if barcode == "" {
		return errors.New("barcode cannot be empty")
	}
	if len(barcode) > 100 {
		return errors.New("barcode is too long (max 100 characters)")
	}
	for _, c := range barcode {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '-' || c == '_') {
			return errors.New("barcode contains invalid characters")
		}
	}
	return nil
}
