package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gomarket_import/internal/core/models"
)

type BarcodeRepository struct {
	db *sql.DB
}

func NewBarcodeRepository(db *sql.DB) *BarcodeRepository {
	return &BarcodeRepository{db: db}
}

// Find ищет активную запись штрихкода для источника. Отсутствие -- nil без ошибки.
func (r *BarcodeRepository) Find(ctx context.Context, barcode, source string) (*models.BarcodeEntry, error) {
	query := `
		SELECT barcode, source, nomenclature_ref, article, is_active, created_at, updated_at
		FROM nomenclature_barcodes
		WHERE barcode = $1 AND source = $2 AND is_active = TRUE`
	var (
		e       models.BarcodeEntry
		nomRef  sql.NullString
		article sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, barcode, source).Scan(
		&e.Barcode, &e.Source, &nomRef, &article, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find barcode %s (%s): %w", barcode, source, err)
	}
	e.NomenclatureRef = nullString(nomRef)
	e.Article = nullString(article)
	return &e, nil
}

// Upsert регистрирует штрихкод. Повторная регистрация обновляет ссылку и артикул.
func (r *BarcodeRepository) Upsert(ctx context.Context, e models.BarcodeEntry) error {
	if err := models.ValidateBarcode(e.Barcode); err != nil {
		return fmt.Errorf("barcode %q: %w", e.Barcode, err)
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO nomenclature_barcodes (barcode, source, nomenclature_ref, article, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (barcode, source) DO UPDATE SET
			nomenclature_ref = EXCLUDED.nomenclature_ref,
			article = EXCLUDED.article,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query, e.Barcode, e.Source, e.NomenclatureRef, e.Article, e.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert barcode %s (%s): %w", e.Barcode, e.Source, err)
	}
	return nil
}
