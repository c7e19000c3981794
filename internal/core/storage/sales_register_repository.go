package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"gomarket_import/internal/core/models"
)

// SalesRegisterRepository хранит проекции проведённых документов.
type SalesRegisterRepository struct {
	db *sql.DB
}

func NewSalesRegisterRepository(db *sql.DB) *SalesRegisterRepository {
	return &SalesRegisterRepository{db: db}
}

// Replace удаляет строки документа и вставляет новые в одной транзакции.
func (r *SalesRegisterRepository) Replace(ctx context.Context, documentID string, rows []models.SalesRegisterRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sales_register WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to clear projections of %s: %w", documentID, err)
	}

	query := `
		INSERT INTO sales_register (document_id, line_no, source, marketplace, connection_id, event_at,
			status, marketplace_product_ref, nomenclature_ref, qty, amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	for _, row := range rows {
		_, err := tx.ExecContext(ctx, query,
			documentID, row.LineNo, row.Source.String(), row.Marketplace.String(), row.ConnectionID,
			row.EventAt.UTC(), row.Status.String(), row.MarketplaceProductRef, row.NomenclatureRef,
			row.Qty.String(), row.Amount.String(), row.Currency,
		)
		if err != nil {
			return fmt.Errorf("failed to insert projection %s/%d: %w", documentID, row.LineNo, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit projections of %s: %w", documentID, err)
	}
	return nil
}

func (r *SalesRegisterRepository) DeleteForDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sales_register WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to delete projections of %s: %w", documentID, err)
	}
	return nil
}

func (r *SalesRegisterRepository) ListForDocument(ctx context.Context, documentID string) ([]models.SalesRegisterRow, error) {
	query := `
		SELECT document_id, line_no, source, marketplace, connection_id, event_at, status,
			marketplace_product_ref, nomenclature_ref, qty, amount, currency
		FROM sales_register WHERE document_id = $1 ORDER BY line_no`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projections of %s: %w", documentID, err)
	}
	defer rows.Close()

	var result []models.SalesRegisterRow
	for rows.Next() {
		var (
			row                models.SalesRegisterRow
			source, mp, status string
			productRef, nomRef sql.NullString
			qty, amount        string
		)
		err := rows.Scan(&row.DocumentID, &row.LineNo, &source, &mp, &row.ConnectionID, &row.EventAt, &status,
			&productRef, &nomRef, &qty, &amount, &row.Currency)
		if err != nil {
			return nil, fmt.Errorf("failed to scan projection: %w", err)
		}
		row.Source = models.ParseDocumentType(source)
		row.Marketplace = models.ParseMarketplace(mp)
		row.Status = models.ParseNormalizedStatus(status)
		row.MarketplaceProductRef = nullString(productRef)
		row.NomenclatureRef = nullString(nomRef)
		if row.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("projection %s/%d qty: %w", documentID, row.LineNo, err)
		}
		if row.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("projection %s/%d amount: %w", documentID, row.LineNo, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *SalesRegisterRepository) CountForDocument(ctx context.Context, documentID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales_register WHERE document_id = $1`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count projections of %s: %w", documentID, err)
	}
	return n, nil
}
