package models

import "time"

// Nomenclature -- элемент справочника номенклатуры 1С. RefKey -- то значение,
// которое хранится в колонках nomenclature_ref.
type Nomenclature struct {
	RefKey      string    `json:"ref_key"`
	ParentKey   string    `json:"parent_key"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Article     string    `json:"article"`
	IsFolder    bool      `json:"is_folder"`
	IsDeleted   bool      `json:"is_deleted"`
	Barcodes    []string  `json:"barcodes,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
