package onec

import (
	"encoding/json"
	"strings"
)

type listResponse struct {
	Value []json.RawMessage `json:"value"`
}

// NomenclatureItem -- элемент Catalog_Номенклатура. Имена полей в разных конфигурациях
// бывают английскими или русскими, поэтому разбор идёт через карту.
type NomenclatureItem struct {
	RefKey       string
	ParentKey    string
	Code         string
	Description  string
	FullName     string
	Article      string
	IsFolder     bool
	DeletionMark bool
	Barcodes     []string
}

func (n *NomenclatureItem) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	n.RefKey = text(fields, "Ref_Key")
	n.ParentKey = text(fields, "Parent_Key", "ParentKey")
	n.Code = strings.TrimSpace(text(fields, "Code", "Код"))
	n.Description = strings.TrimSpace(text(fields, "Description", "Наименование"))
	n.FullName = strings.TrimSpace(text(fields, "ПолноеНаименование", "FullDescription"))
	n.Article = strings.TrimSpace(text(fields, "Артикул", "Article"))
	n.IsFolder = flag(fields, "IsFolder", "ЭтоГруппа")
	n.DeletionMark = flag(fields, "DeletionMark", "ПометкаУдаления")
	if b := strings.TrimSpace(text(fields, "Штрихкод", "Barcode")); b != "" {
		for _, part := range strings.Split(b, ",") {
			if part = strings.TrimSpace(part); part != "" {
				n.Barcodes = append(n.Barcodes, part)
			}
		}
	}
	return nil
}

func text(fields map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	return ""
}

func flag(fields map[string]json.RawMessage, names ...string) bool {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var b bool
		if json.Unmarshal(raw, &b) == nil {
			return b
		}
	}
	return false
}
