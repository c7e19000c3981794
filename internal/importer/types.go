package importer

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/services"
	"gomarket_import/internal/progress"
	"gomarket_import/pkg/logger"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrInvalidRequest     = errors.New("invalid import request")
)

type Request struct {
	ConnectionID string    `json:"connection_id"`
	Aggregates   []string  `json:"aggregates"`
	DateFrom     time.Time `json:"date_from"`
	DateTo       time.Time `json:"date_to"`
}

func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ConnectionID, validation.Required),
		validation.Field(&r.Aggregates, validation.Required, validation.Each(validation.Required)),
		validation.Field(&r.DateTo, validation.When(!r.DateFrom.IsZero() && !r.DateTo.IsZero(),
			validation.By(func(interface{}) error {
				if r.DateTo.Before(r.DateFrom) {
					return errors.New("must not be before date_from")
				}
				return nil
			}))),
	)
}

type Response struct {
	SessionID string                 `json:"session_id"`
	Status    progress.SessionStatus `json:"status"`
	Message   string                 `json:"message"`
}

type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeUpdated
)

func (o Outcome) String() string {
	if o == OutcomeInserted {
		return "inserted"
	}
	return "updated"
}

// UpsertOutcome переводит результат сохранения документа в исход записи.
func UpsertOutcome(res services.UpsertResult) Outcome {
	if res.Inserted {
		return OutcomeInserted
	}
	return OutcomeUpdated
}

// Record -- одна запись страницы. Label показывается как текущий элемент прогресса.
type Record struct {
	Label  string
	Handle func(ctx context.Context) (Outcome, error)
}

// Page -- ответ провайдера. Next -- курсор следующей страницы; пустой или повторившийся
// курсор завершает проход.
type Page struct {
	Records []Record
	Next    string
	HasMore bool
	Total   *int
}

// Pass -- один последовательный обход источника. Агрегат может состоять из нескольких
// проходов с общими счётчиками (например, сначала папки, затем элементы).
type Pass struct {
	Name  string
	Fetch func(ctx context.Context, cursor string) (*Page, error)
}

type AggregateInfo struct {
	Index string `json:"index"`
	Name  string `json:"name"`
}

// Provider -- набор агрегатов одного маркетплейса.
type Provider interface {
	Marketplace() models.Marketplace
	Aggregates() []AggregateInfo
	// Passes строит проходы агрегата для одного запуска.
	Passes(conn *models.Connection, req Request, index string, log logger.Logger) ([]Pass, error)
}

type ConnectionSource interface {
	GetByID(ctx context.Context, id string) (*models.Connection, error)
}

// DocumentUpserter и ProductResolver -- то, что нужно обработчикам записей провайдеров.
type DocumentUpserter interface {
	Upsert(ctx context.Context, doc *models.Document, raw []byte) (services.UpsertResult, error)
}

type ProductResolver interface {
	FindOrCreate(ctx context.Context, p services.FindOrCreateParams) (string, error)
	ResolveNomenclature(ctx context.Context, productRefID string) (string, bool)
}
