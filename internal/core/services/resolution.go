package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gomarket_import/internal/core/models"
	"gomarket_import/metrics"
	"gomarket_import/pkg/dbconnect"
	"gomarket_import/pkg/logger"
)

const (
	ResolvedBySKU     = "sku"
	ResolvedByBarcode = "barcode"
	ResolvedByCreate  = "created"
)

type FindOrCreateParams struct {
	Marketplace   models.Marketplace
	MarketplaceID string
	ConnectionID  string
	SKU           string
	Barcode       string
	Title         string
}

// ResolutionEngine сопоставляет SKU маркетплейса с карточкой товара (ProductReference).
// Порядок: SKU -> штрихкод через номенклатуру -> создание новой карточки.
type ResolutionEngine struct {
	products ProductStore
	barcodes BarcodeFinder
	log      logger.Logger
	now      func() time.Time
}

func NewResolutionEngine(products ProductStore, barcodes BarcodeFinder, log logger.Logger) *ResolutionEngine {
	return &ResolutionEngine{
		products: products,
		barcodes: barcodes,
		log:      log,
		now:      time.Now,
	}
}

func (e *ResolutionEngine) FindOrCreate(ctx context.Context, p FindOrCreateParams) (string, error) {
	id, _, err := e.Resolve(ctx, p)
	return id, err
}

// Resolve -- то же, что FindOrCreate, но дополнительно сообщает шаг, на котором найден товар.
func (e *ResolutionEngine) Resolve(ctx context.Context, p FindOrCreateParams) (string, string, error) {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Barcode = strings.TrimSpace(p.Barcode)
	if p.SKU == "" || p.MarketplaceID == "" {
		return "", "", fmt.Errorf("resolve product: marketplace id and sku are required")
	}

	if id, ok := e.findBySKU(ctx, p); ok {
		metrics.RecordResolution(ResolvedBySKU)
		return id, ResolvedBySKU, nil
	}

	if p.Barcode != "" {
		if id, ok := e.findByBarcode(ctx, p); ok {
			metrics.RecordResolution(ResolvedByBarcode)
			return id, ResolvedByBarcode, nil
		}
	}

	id, err := e.create(ctx, p)
	if err != nil {
		return "", "", err
	}
	metrics.RecordResolution(ResolvedByCreate)
	return id, ResolvedByCreate, nil
}

func (e *ResolutionEngine) findBySKU(ctx context.Context, p FindOrCreateParams) (string, bool) {
	product, err := e.products.GetByMarketplaceSKU(ctx, p.MarketplaceID, p.SKU)
	if err != nil {
		e.log.Warn("lookup by sku %s/%s failed, falling back: %v", p.MarketplaceID, p.SKU, err)
		return "", false
	}
	if product == nil {
		return "", false
	}
	return product.ID, true
}

func (e *ResolutionEngine) findByBarcode(ctx context.Context, p FindOrCreateParams) (string, bool) {
	nomenclatureRef := e.nomenclatureByBarcode(ctx, p.Barcode, p.Marketplace.BarcodeSource())
	if nomenclatureRef == "" {
		return "", false
	}

	linked, err := e.products.ListByNomenclatureRef(ctx, nomenclatureRef)
	if err != nil {
		e.log.Warn("lookup products of nomenclature %s failed, falling back: %v", nomenclatureRef, err)
		return "", false
	}
	for _, product := range linked {
		if product.MarketplaceID == p.MarketplaceID {
			return product.ID, true
		}
	}
	return "", false
}

// nomenclatureByBarcode сначала смотрит штрихкоды самого маркетплейса, затем 1С.
func (e *ResolutionEngine) nomenclatureByBarcode(ctx context.Context, barcode, source string) string {
	sources := []string{source}
	if source != models.BarcodeSource1C {
		sources = append(sources, models.BarcodeSource1C)
	}
	for _, src := range sources {
		entry, err := e.barcodes.Find(ctx, barcode, src)
		if err != nil {
			e.log.Warn("lookup barcode %s (%s) failed: %v", barcode, src, err)
			continue
		}
		if entry != nil && entry.NomenclatureRef != nil && *entry.NomenclatureRef != "" {
			return *entry.NomenclatureRef
		}
	}
	return ""
}

func (e *ResolutionEngine) create(ctx context.Context, p FindOrCreateParams) (string, error) {
	now := e.now().UTC()
	description := strings.TrimSpace(p.Title)
	if description == "" {
		description = "Артикул: " + p.SKU
	}
	comment := fmt.Sprintf("Автоматически создано при импорте [%s]", now.Format("2006-01-02 15:04:05"))

	product := &models.ProductReference{
		Code:           "MP-AUTO-" + uuid.NewString(),
		Description:    description,
		Marketplace:    p.Marketplace,
		MarketplaceID:  p.MarketplaceID,
		ConnectionID:   p.ConnectionID,
		MarketplaceSKU: p.SKU,
		Article:        p.SKU,
		Comment:        &comment,
		LastUpdate:     &now,
	}
	if p.Barcode != "" {
		barcode := p.Barcode
		product.Barcode = &barcode
	}
	if err := product.Validate(); err != nil {
		return "", fmt.Errorf("invalid product reference for sku %s: %w", p.SKU, err)
	}

	id, err := e.products.Insert(ctx, product)
	if err == nil {
		e.log.Log("created product reference %s for %s/%s", id, p.MarketplaceID, p.SKU)
		return id, nil
	}
	if dbconnect.IsUniqueViolation(err) {
		// параллельный импорт успел создать карточку раньше
		if winner, ok := e.findBySKU(ctx, p); ok {
			return winner, nil
		}
	}
	return "", fmt.Errorf("failed to create product reference for %s/%s: %w", p.MarketplaceID, p.SKU, err)
}

// ResolveNomenclature возвращает ссылку на номенклатуру, связанную с карточкой товара.
func (e *ResolutionEngine) ResolveNomenclature(ctx context.Context, productRefID string) (string, bool) {
	product, err := e.products.GetByID(ctx, productRefID)
	if err != nil {
		e.log.Warn("lookup product %s failed: %v", productRefID, err)
		return "", false
	}
	if product == nil || product.NomenclatureRef == nil || *product.NomenclatureRef == "" {
		return "", false
	}
	return *product.NomenclatureRef, true
}
