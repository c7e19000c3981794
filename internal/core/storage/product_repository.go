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

const productColumns = `id, code, description, marketplace, marketplace_id, connection_id,
	marketplace_sku, barcode, article, nomenclature_ref, comment, last_update,
	is_deleted, version, created_at, updated_at`

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetByMarketplaceSKU(ctx context.Context, marketplaceID, sku string) (*models.ProductReference, error) {
	query := `SELECT ` + productColumns + ` FROM product_references
		WHERE marketplace_id = $1 AND marketplace_sku = $2 AND is_deleted = FALSE`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, marketplaceID, sku))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product %s/%s: %w", marketplaceID, sku, err)
	}
	return p, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.ProductReference, error) {
	query := `SELECT ` + productColumns + ` FROM product_references WHERE id = $1`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, nil
}

// ListByNomenclatureRef возвращает товары всех маркетплейсов, связанные с номенклатурой,
// в порядке создания.
func (r *ProductRepository) ListByNomenclatureRef(ctx context.Context, nomenclatureRef string) ([]models.ProductReference, error) {
	query := `SELECT ` + productColumns + ` FROM product_references
		WHERE nomenclature_ref = $1 AND is_deleted = FALSE
		ORDER BY created_at, id`
	return r.list(ctx, query, nomenclatureRef)
}

// ListPage -- страница неудалённых товаров с id > afterID в порядке id.
// Пустой marketplaceID -- товары всех маркетплейсов.
func (r *ProductRepository) ListPage(ctx context.Context, marketplaceID, afterID string, limit int) ([]models.ProductReference, error) {
	query := `SELECT ` + productColumns + ` FROM product_references
		WHERE is_deleted = FALSE AND ($1 = '' OR marketplace_id = $1) AND id > $2
		ORDER BY id LIMIT $3`
	return r.list(ctx, query, marketplaceID, afterID, limit)
}

func (r *ProductRepository) CountActive(ctx context.Context, marketplaceID string) (int, error) {
	query := `SELECT COUNT(*) FROM product_references
		WHERE is_deleted = FALSE AND ($1 = '' OR marketplace_id = $1)`
	var n int
	if err := r.db.QueryRowContext(ctx, query, marketplaceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func (r *ProductRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.ProductReference, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.ProductReference
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) Insert(ctx context.Context, p *models.ProductReference) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.Metadata.CreatedAt.IsZero() {
		p.Metadata.CreatedAt = now
	}
	p.Metadata.UpdatedAt = now
	if p.Metadata.Version == 0 {
		p.Metadata.Version = 1
	}
	query := `
		INSERT INTO product_references (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Code, p.Description, p.Marketplace.String(), p.MarketplaceID, p.ConnectionID,
		p.MarketplaceSKU, p.Barcode, p.Article, p.NomenclatureRef, p.Comment, utcPtr(p.LastUpdate),
		p.Metadata.IsDeleted, p.Metadata.Version, p.Metadata.CreatedAt, p.Metadata.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert product %s/%s: %w", p.MarketplaceID, p.MarketplaceSKU, err)
	}
	return p.ID, nil
}

// Update обновляет карточку товара. Ссылку на номенклатуру не трогает, если в p она пустая.
func (r *ProductRepository) Update(ctx context.Context, p *models.ProductReference) error {
	query := `
		UPDATE product_references SET
			description = $1, barcode = $2, article = $3,
			nomenclature_ref = COALESCE($4, nomenclature_ref),
			last_update = $5, version = version + 1, updated_at = $6
		WHERE id = $7`
	_, err := r.db.ExecContext(ctx, query,
		p.Description, p.Barcode, p.Article, p.NomenclatureRef,
		utcPtr(p.LastUpdate), time.Now().UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", p.ID, err)
	}
	return nil
}

func (r *ProductRepository) SetNomenclatureRef(ctx context.Context, id, nomenclatureRef string) error {
	query := `UPDATE product_references SET nomenclature_ref = $1, version = version + 1, updated_at = $2
		WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, nomenclatureRef, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to link product %s: %w", id, err)
	}
	return nil
}

func (r *ProductRepository) ClearNomenclatureRef(ctx context.Context, id string) error {
	query := `UPDATE product_references SET nomenclature_ref = NULL, version = version + 1, updated_at = $1
		WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to unlink product %s: %w", id, err)
	}
	return nil
}

func scanProduct(row rowScanner) (*models.ProductReference, error) {
	var (
		p           models.ProductReference
		marketplace string
		barcode     sql.NullString
		nomRef      sql.NullString
		comment     sql.NullString
		lastUpdate  sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.Description, &marketplace, &p.MarketplaceID, &p.ConnectionID,
		&p.MarketplaceSKU, &barcode, &p.Article, &nomRef, &comment, &lastUpdate,
		&p.Metadata.IsDeleted, &p.Metadata.Version, &p.Metadata.CreatedAt, &p.Metadata.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Marketplace = models.ParseMarketplace(marketplace)
	p.Barcode = nullString(barcode)
	p.NomenclatureRef = nullString(nomRef)
	p.Comment = nullString(comment)
	if lastUpdate.Valid {
		t := lastUpdate.Time
		p.LastUpdate = &t
	}
	return &p, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
