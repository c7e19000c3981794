package core

import (
	"database/sql"
	"fmt"
	"log"

	"gomarket_import/pkg/dbconnect/migration"
)

// SQL ниже подобран так, чтобы одинаково выполнялся в postgres и sqlite.

// All возвращает миграции в порядке применения.
func All() []migration.MigrationInterface {
	return []migration.MigrationInterface{
		&CreateMigrationsTable{},
		&CreateConnectionsTable{},
		&CreateDocumentsTable{},
		&CreateProductReferencesTable{},
		&CreateNomenclatureTables{},
		&CreateRawPayloadsTable{},
		&CreateSalesRegisterTable{},
	}
}

type CreateMigrationsTable struct{}

func (m *CreateMigrationsTable) UpMigration(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

type CreateConnectionsTable struct{}

func (m *CreateConnectionsTable) UpMigration(db *sql.DB) error {
	return applyOnce(db, "marketplace_connections", `
	CREATE TABLE IF NOT EXISTS marketplace_connections (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		marketplace TEXT NOT NULL,
		marketplace_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		client_id TEXT NOT NULL DEFAULT '',
		api_key TEXT NOT NULL DEFAULT '',
		campaign_id TEXT NOT NULL DEFAULT '',
		base_url TEXT NOT NULL DEFAULT '',
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
}

type CreateDocumentsTable struct{}

func (m *CreateDocumentsTable) UpMigration(db *sql.DB) error {
	return applyOnce(db, "documents", `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		natural_key TEXT NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		connection_id TEXT NOT NULL,
		header_json TEXT NOT NULL,
		lines_json TEXT NOT NULL,
		state_json TEXT NOT NULL,
		source_meta_json TEXT NOT NULL,
		document_version INTEGER NOT NULL,
		is_posted BOOLEAN NOT NULL DEFAULT FALSE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS documents_source_natural_key_uidx
		ON documents (source, natural_key) WHERE is_deleted = FALSE`,
		`CREATE INDEX IF NOT EXISTS documents_connection_idx ON documents (connection_id)`,
	)
}

type CreateProductReferencesTable struct{}

func (m *CreateProductReferencesTable) UpMigration(db *sql.DB) error {
	return applyOnce(db, "product_references", `
	CREATE TABLE IF NOT EXISTS product_references (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		description TEXT NOT NULL,
		marketplace TEXT NOT NULL,
		marketplace_id TEXT NOT NULL,
		connection_id TEXT NOT NULL,
		marketplace_sku TEXT NOT NULL,
		barcode TEXT,
		article TEXT NOT NULL DEFAULT '',
		nomenclature_ref TEXT,
		comment TEXT,
		last_update TIMESTAMP,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS product_references_mp_sku_uidx
		ON product_references (marketplace_id, marketplace_sku) WHERE is_deleted = FALSE`,
		`CREATE INDEX IF NOT EXISTS product_references_nomenclature_idx ON product_references (nomenclature_ref)`,
	)
}

type CreateNomenclatureTables struct{}

func (m *CreateNomenclatureTables) UpMigration(db *sql.DB) error {
	return applyOnce(db, "nomenclature", `
	CREATE TABLE IF NOT EXISTS nomenclature (
		ref_key TEXT PRIMARY KEY,
		parent_key TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		article TEXT NOT NULL DEFAULT '',
		is_folder BOOLEAN NOT NULL DEFAULT FALSE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMP NOT NULL
	)`,
		`CREATE TABLE IF NOT EXISTS nomenclature_barcodes (
		barcode TEXT NOT NULL,
		source TEXT NOT NULL,
		nomenclature_ref TEXT,
		article TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (barcode, source)
	)`,
		`CREATE INDEX IF NOT EXISTS nomenclature_barcodes_ref_idx ON nomenclature_barcodes (nomenclature_ref)`,
	)
}

type CreateRawPayloadsTable struct{}

func (m *CreateRawPayloadsTable) UpMigration(db *sql.DB) error {
	return applyOnce(db, "raw_payloads", `
	CREATE TABLE IF NOT EXISTS raw_payloads (
		id TEXT PRIMARY KEY,
		marketplace TEXT NOT NULL,
		document_type TEXT NOT NULL,
		document_no TEXT NOT NULL,
		raw_json TEXT NOT NULL,
		fetched_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
}

type CreateSalesRegisterTable struct{}

func (m *CreateSalesRegisterTable) UpMigration(db *sql.DB) error {
	return applyOnce(db, "sales_register", `
	CREATE TABLE IF NOT EXISTS sales_register (
		document_id TEXT NOT NULL,
		line_no INTEGER NOT NULL,
		source TEXT NOT NULL,
		marketplace TEXT NOT NULL,
		connection_id TEXT NOT NULL,
		event_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		marketplace_product_ref TEXT,
		nomenclature_ref TEXT,
		qty TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (document_id, line_no)
	)`)
}

func applyOnce(db *sql.DB, migrationName string, queries ...string) error {
	var applied int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE name = $1", migrationName).Scan(&applied)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	if applied > 0 {
		return nil
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration '%s': %w", migrationName, err)
		}
	}
	_, err = db.Exec("INSERT INTO schema_migrations (name, applied_at) VALUES ($1, CURRENT_TIMESTAMP)", migrationName)
	if err != nil {
		return fmt.Errorf("failed to mark migration '%s' as complete: %w", migrationName, err)
	}
	log.Printf("Migration '%s' completed successfully.", migrationName)
	return nil
}
