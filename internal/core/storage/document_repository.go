package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gomarket_import/internal/core/models"
)

const documentColumns = `id, source, natural_key, code, description, connection_id,
	header_json, lines_json, state_json, source_meta_json,
	document_version, is_posted, is_deleted, version, created_at, updated_at`

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// GetByNaturalKey возвращает неудалённый документ или nil, если его нет.
func (r *DocumentRepository) GetByNaturalKey(ctx context.Context, source models.DocumentType, key string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE source = $1 AND natural_key = $2 AND is_deleted = FALSE`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, source.String(), key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document %s/%s: %w", source, key, err)
	}
	return doc, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

// Insert сохраняет новый документ. Пустой ID заменяется сгенерированным.
func (r *DocumentRepository) Insert(ctx context.Context, d *models.Document) (string, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	header, lines, state, meta, err := d.EncodeBlobs()
	if err != nil {
		return "", err
	}
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err = r.db.ExecContext(ctx, query,
		d.ID, d.Source.String(), d.NaturalKey, d.Code, d.Description, d.Header.ConnectionID,
		header, lines, state, meta,
		d.SourceMeta.DocumentVersion, d.IsPosted, d.Metadata.IsDeleted, d.Metadata.Version,
		d.Metadata.CreatedAt.UTC(), d.Metadata.UpdatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert document %s/%s: %w", d.Source, d.NaturalKey, err)
	}
	return d.ID, nil
}

// Update перезаписывает все поля документа, кроме id и created_at.
func (r *DocumentRepository) Update(ctx context.Context, d *models.Document) error {
	header, lines, state, meta, err := d.EncodeBlobs()
	if err != nil {
		return err
	}
	query := `
		UPDATE documents SET
			source = $1, natural_key = $2, code = $3, description = $4, connection_id = $5,
			header_json = $6, lines_json = $7, state_json = $8, source_meta_json = $9,
			document_version = $10, is_posted = $11, is_deleted = $12, version = $13, updated_at = $14
		WHERE id = $15`
	res, err := r.db.ExecContext(ctx, query,
		d.Source.String(), d.NaturalKey, d.Code, d.Description, d.Header.ConnectionID,
		header, lines, state, meta,
		d.SourceMeta.DocumentVersion, d.IsPosted, d.Metadata.IsDeleted, d.Metadata.Version,
		d.Metadata.UpdatedAt.UTC(), d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", d.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update document %s: %w", d.ID, sql.ErrNoRows)
	}
	return nil
}

func (r *DocumentRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	query := `UPDATE documents SET is_deleted = TRUE, version = version + 1, updated_at = $1
		WHERE id = $2 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *DocumentRepository) SetPosted(ctx context.Context, id string, posted bool) error {
	query := `UPDATE documents SET is_posted = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, posted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set is_posted=%t for document %s: %w", posted, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to set is_posted for document %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// CountByNaturalKey считает все строки с ключом, включая удалённые.
func (r *DocumentRepository) CountByNaturalKey(ctx context.Context, source models.DocumentType, key string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE source = $1 AND natural_key = $2`,
		source.String(), key).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		d                          models.Document
		source                     string
		connectionID               string
		header, lines, state, meta string
		documentVersion            int
	)
	err := row.Scan(
		&d.ID, &source, &d.NaturalKey, &d.Code, &d.Description, &connectionID,
		&header, &lines, &state, &meta,
		&documentVersion, &d.IsPosted, &d.Metadata.IsDeleted, &d.Metadata.Version,
		&d.Metadata.CreatedAt, &d.Metadata.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Source = models.ParseDocumentType(source)
	if err := d.DecodeBlobs(header, lines, state, meta); err != nil {
		return nil, fmt.Errorf("document %s: %w", d.ID, err)
	}
	if d.Header.ConnectionID == "" {
		d.Header.ConnectionID = connectionID
	}
	// колонка -- источник истины для версии
	d.SourceMeta.DocumentVersion = documentVersion
	return &d, nil
}
