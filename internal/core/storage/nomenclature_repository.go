package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gomarket_import/internal/core/models"
)

type NomenclatureRepository struct {
	db *sql.DB
}

func NewNomenclatureRepository(db *sql.DB) *NomenclatureRepository {
	return &NomenclatureRepository{db: db}
}

// Upsert сохраняет элемент справочника и сообщает, был ли он новым.
func (r *NomenclatureRepository) Upsert(ctx context.Context, n models.Nomenclature) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nomenclature WHERE ref_key = $1`, n.RefKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check nomenclature %s: %w", n.RefKey, err)
	}

	now := time.Now().UTC()
	if exists == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO nomenclature (ref_key, parent_key, code, description, article, is_folder, is_deleted, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			n.RefKey, n.ParentKey, n.Code, n.Description, n.Article, n.IsFolder, n.IsDeleted, now)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE nomenclature SET parent_key = $1, code = $2, description = $3, article = $4,
				is_folder = $5, is_deleted = $6, updated_at = $7
			WHERE ref_key = $8`,
			n.ParentKey, n.Code, n.Description, n.Article, n.IsFolder, n.IsDeleted, now, n.RefKey)
	}
	if err != nil {
		return false, fmt.Errorf("failed to save nomenclature %s: %w", n.RefKey, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit nomenclature %s: %w", n.RefKey, err)
	}
	return exists == 0, nil
}

func (r *NomenclatureRepository) GetByRef(ctx context.Context, refKey string) (*models.Nomenclature, error) {
	query := `SELECT ref_key, parent_key, code, description, article, is_folder, is_deleted, updated_at
		FROM nomenclature WHERE ref_key = $1`
	var n models.Nomenclature
	err := r.db.QueryRowContext(ctx, query, refKey).Scan(
		&n.RefKey, &n.ParentKey, &n.Code, &n.Description, &n.Article, &n.IsFolder, &n.IsDeleted, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get nomenclature %s: %w", refKey, err)
	}
	return &n, nil
}

// ListWithArticle -- неудалённые элементы (не папки) с непустым артикулом.
func (r *NomenclatureRepository) ListWithArticle(ctx context.Context) ([]models.Nomenclature, error) {
	query := `SELECT ref_key, parent_key, code, description, article, is_folder, is_deleted, updated_at
		FROM nomenclature
		WHERE article <> '' AND is_folder = FALSE AND is_deleted = FALSE
		ORDER BY ref_key`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list nomenclature with article: %w", err)
	}
	defer rows.Close()

	var result []models.Nomenclature
	for rows.Next() {
		var n models.Nomenclature
		if err := rows.Scan(&n.RefKey, &n.ParentKey, &n.Code, &n.Description, &n.Article, &n.IsFolder, &n.IsDeleted, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan nomenclature: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
