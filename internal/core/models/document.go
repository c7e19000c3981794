package models

import (
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// Версии схем json-блобов. Поднимаются при добавлении полей; старые блобы
// читаются без ошибок, новые поля получают нулевые значения.
const (
	HeaderSchemaVersion     = 1
	LinesSchemaVersion      = 1
	StateSchemaVersion      = 1
	SourceMetaSchemaVersion = 1
)

// Metadata -- служебные поля любой записи.
type Metadata struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
	// Version -- счётчик оптимистичной блокировки, не путать с SourceMeta.DocumentVersion.
	Version int `json:"version"`
}

// Document -- каноническое представление одной сущности внешней системы
// (отправление, строка продажи, заказ, транзакция, возврат).
type Document struct {
	ID          string       `json:"id"`
	Source      DocumentType `json:"source"`
	NaturalKey  string       `json:"natural_key"`
	Code        string       `json:"code"`
	Description string       `json:"description"`
	Header      Header       `json:"header"`
	Lines       []Line       `json:"lines"`
	State       State        `json:"state"`
	SourceMeta  SourceMeta   `json:"source_meta"`
	IsPosted    bool         `json:"is_posted"`
	Metadata    Metadata     `json:"metadata"`
}

type Header struct {
	SchemaVersion  int               `json:"schema_version"`
	DocumentNo     string            `json:"document_no"`
	ConnectionID   string            `json:"connection_id"`
	OrganizationID string            `json:"organization_id"`
	MarketplaceID  string            `json:"marketplace_id"`
	Marketplace    Marketplace       `json:"marketplace"`
	Scheme         string            `json:"scheme,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

type Line struct {
	LineNo                int             `json:"line_no"`
	MarketplaceProductRef string          `json:"marketplace_product_ref,omitempty"`
	NomenclatureRef       string          `json:"nomenclature_ref,omitempty"`
	SKU                   string          `json:"sku"`
	Barcode               string          `json:"barcode,omitempty"`
	Article               string          `json:"article,omitempty"`
	Name                  string          `json:"name"`
	Qty                   decimal.Decimal `json:"qty"`
	Price                 decimal.Decimal `json:"price"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency,omitempty"`
}

type State struct {
	SchemaVersion int              `json:"schema_version"`
	RawStatus     string           `json:"raw_status"`
	Status        NormalizedStatus `json:"status"`
	EventAt       time.Time        `json:"event_at"`
	ChangedAt     *time.Time       `json:"changed_at,omitempty"`
	DeliveredAt   *time.Time       `json:"delivered_at,omitempty"`
}

type SourceMeta struct {
	SchemaVersion   int       `json:"schema_version"`
	RawPayloadRef   string    `json:"raw_payload_ref"`
	FetchedAt       time.Time `json:"fetched_at"`
	DocumentVersion int       `json:"document_version"`
}

type linesBlob struct {
	SchemaVersion int    `json:"schema_version"`
	Lines         []Line `json:"lines"`
}

// NewDocument заполняет версии схем и время получения. ID назначает хранилище.
func NewDocument(source DocumentType, naturalKey string, header Header, lines []Line, state State, fetchedAt time.Time) *Document {
	header.SchemaVersion = HeaderSchemaVersion
	state.SchemaVersion = StateSchemaVersion
	for i := range lines {
		if lines[i].LineNo == 0 {
			lines[i].LineNo = i + 1
		}
	}
	return &Document{
		Source:     source,
		NaturalKey: naturalKey,
		Header:     header,
		Lines:      lines,
		State:      state,
		SourceMeta: SourceMeta{
			SchemaVersion:   SourceMetaSchemaVersion,
			FetchedAt:       fetchedAt.UTC(),
			DocumentVersion: 1,
		},
	}
}

func (d *Document) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Source, validation.By(func(value interface{}) error {
			t, _ := value.(DocumentType)
			return mustKnown("document type", t.Known(), t)
		})),
		validation.Field(&d.NaturalKey, validation.Required, validation.Length(1, 255)),
		validation.Field(&d.Header),
		validation.Field(&d.Lines),
	)
}

func (h Header) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.ConnectionID, validation.Required),
		validation.Field(&h.MarketplaceID, validation.Required),
	)
}

func (l Line) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.LineNo, validation.Required, validation.Min(1)),
		validation.Field(&l.Currency, validation.Length(3, 3)),
	)
}

// EncodeBlobs сериализует header/lines/state/source_meta для хранения в текстовых колонках.
func (d *Document) EncodeBlobs() (header, lines, state, meta string, err error) {
	d.Header.SchemaVersion = HeaderSchemaVersion
	d.State.SchemaVersion = StateSchemaVersion
	d.SourceMeta.SchemaVersion = SourceMetaSchemaVersion

	parts := []interface{}{d.Header, linesBlob{SchemaVersion: LinesSchemaVersion, Lines: d.Lines}, d.State, d.SourceMeta}
	out := make([]string, len(parts))
	for i, part := range parts {
		b, err := json.Marshal(part)
		if err != nil {
			return "", "", "", "", fmt.Errorf("encode document blob: %w", err)
		}
		out[i] = string(b)
	}
	return out[0], out[1], out[2], out[3], nil
}

// DecodeBlobs -- обратная операция. Отсутствующие в блобе поля остаются нулевыми.
func (d *Document) DecodeBlobs(header, lines, state, meta string) error {
	if err := decodeBlob(header, &d.Header); err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	var lb linesBlob
	if err := decodeBlob(lines, &lb); err != nil {
		// ранние версии хранили просто массив строк
		var plain []Line
		if err2 := decodeBlob(lines, &plain); err2 != nil {
			return fmt.Errorf("decode lines: %w", err)
		}
		lb.Lines = plain
	}
	d.Lines = lb.Lines
	if err := decodeBlob(state, &d.State); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if err := decodeBlob(meta, &d.SourceMeta); err != nil {
		return fmt.Errorf("decode source meta: %w", err)
	}
	return nil
}

func decodeBlob(raw string, dst interface{}) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
