package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RawPayload -- исходный ответ провайдера по одному документу, хранится как есть.
type RawPayload struct {
	ID           string
	Marketplace  string
	DocumentType string
	DocumentNo   string
	RawJSON      string
	FetchedAt    time.Time
	CreatedAt    time.Time
}

type RawPayloadRepository struct {
	db *sql.DB
}

func NewRawPayloadRepository(db *sql.DB) *RawPayloadRepository {
	return &RawPayloadRepository{db: db}
}

// Save возвращает ссылку на сохранённый ответ.
func (r *RawPayloadRepository) Save(ctx context.Context, marketplace, documentType, documentNo string, raw []byte, fetchedAt time.Time) (string, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO raw_payloads (id, marketplace, document_type, document_no, raw_json, fetched_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, id, marketplace, documentType, documentNo, string(raw), fetchedAt.UTC(), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to save raw payload for %s %s: %w", documentType, documentNo, err)
	}
	return id, nil
}

func (r *RawPayloadRepository) Get(ctx context.Context, id string) (*RawPayload, error) {
	query := `SELECT id, marketplace, document_type, document_no, raw_json, fetched_at, created_at
		FROM raw_payloads WHERE id = $1`
	var p RawPayload
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Marketplace, &p.DocumentType, &p.DocumentNo, &p.RawJSON, &p.FetchedAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get raw payload %s: %w", id, err)
	}
	return &p, nil
}
