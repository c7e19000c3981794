package services

import (
	"context"
	"time"

	"gomarket_import/internal/core/models"
)

type ProductStore interface {
	GetByMarketplaceSKU(ctx context.Context, marketplaceID, sku string) (*models.ProductReference, error)
	ListByNomenclatureRef(ctx context.Context, nomenclatureRef string) ([]models.ProductReference, error)
	GetByID(ctx context.Context, id string) (*models.ProductReference, error)
	Insert(ctx context.Context, p *models.ProductReference) (string, error)
}

type BarcodeFinder interface {
	Find(ctx context.Context, barcode, source string) (*models.BarcodeEntry, error)
}

type DocumentRepository interface {
	GetByNaturalKey(ctx context.Context, source models.DocumentType, key string) (*models.Document, error)
	GetByID(ctx context.Context, id string) (*models.Document, error)
	Insert(ctx context.Context, d *models.Document) (string, error)
	Update(ctx context.Context, d *models.Document) error
	SoftDelete(ctx context.Context, id string) (bool, error)
	SetPosted(ctx context.Context, id string, posted bool) error
}

type ProjectionRepository interface {
	Replace(ctx context.Context, documentID string, rows []models.SalesRegisterRow) error
	DeleteForDocument(ctx context.Context, documentID string) error
}

type RawPayloadSaver interface {
	Save(ctx context.Context, marketplace, documentType, documentNo string, raw []byte, fetchedAt time.Time) (string, error)
}
