package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/normalize"
	"gomarket_import/pkg/logger"
)

const maxTitleLength = 500

type ProductWriter interface {
	GetByMarketplaceSKU(ctx context.Context, marketplaceID, sku string) (*models.ProductReference, error)
	Insert(ctx context.Context, p *models.ProductReference) (string, error)
	Update(ctx context.Context, p *models.ProductReference) error
}

type BarcodeRegistry interface {
	Upsert(ctx context.Context, e models.BarcodeEntry) error
}

type NomenclatureWriter interface {
	Upsert(ctx context.Context, n models.Nomenclature) (bool, error)
}

// CatalogItem -- карточка товара в том виде, в каком её отдаёт каталог маркетплейса.
type CatalogItem struct {
	Marketplace   models.Marketplace
	MarketplaceID string
	ConnectionID  string
	SKU           string
	Article       string
	Title         string
	Barcodes      []string
}

// ProductCatalog синхронизирует карточки товаров и справочник штрихкодов с каталогами
// маркетплейсов и номенклатурой 1С.
type ProductCatalog struct {
	products     ProductWriter
	barcodes     BarcodeRegistry
	nomenclature NomenclatureWriter
	log          logger.Logger
	now          func() time.Time
}

func NewProductCatalog(products ProductWriter, barcodes BarcodeRegistry, nomenclature NomenclatureWriter, log logger.Logger) *ProductCatalog {
	return &ProductCatalog{
		products:     products,
		barcodes:     barcodes,
		nomenclature: nomenclature,
		log:          log,
		now:          time.Now,
	}
}

// SyncProduct создаёт или обновляет карточку по (marketplace_id, sku) и регистрирует её штрихкоды
// под источником маркетплейса. Возвращает true, если карточка создана.
func (c *ProductCatalog) SyncProduct(ctx context.Context, item CatalogItem) (bool, error) {
	item.SKU = strings.TrimSpace(item.SKU)
	if item.SKU == "" {
		return false, fmt.Errorf("sync product: sku is required")
	}
	title := normalize.Title(item.Title, maxTitleLength)
	if title == "" {
		title = "Без названия"
	}
	article := item.Article
	if article == "" {
		article = item.SKU
	}
	now := c.now().UTC()
	var barcode *string
	for _, b := range item.Barcodes {
		if b = strings.TrimSpace(b); b != "" {
			barcode = &b
			break
		}
	}

	existing, err := c.products.GetByMarketplaceSKU(ctx, item.MarketplaceID, item.SKU)
	if err != nil {
		return false, err
	}

	var (
		inserted        bool
		nomenclatureRef *string
	)
	if existing != nil {
		existing.Description = title
		existing.Barcode = barcode
		existing.Article = article
		existing.LastUpdate = &now
		if err := c.products.Update(ctx, existing); err != nil {
			return false, err
		}
		nomenclatureRef = existing.NomenclatureRef
	} else {
		product := &models.ProductReference{
			Code:           item.SKU,
			Description:    title,
			Marketplace:    item.Marketplace,
			MarketplaceID:  item.MarketplaceID,
			ConnectionID:   item.ConnectionID,
			MarketplaceSKU: item.SKU,
			Barcode:        barcode,
			Article:        article,
			LastUpdate:     &now,
		}
		if len(product.Code) > 100 {
			product.Code = "MP-" + uuid.NewString()
		}
		if err := product.Validate(); err != nil {
			return false, fmt.Errorf("invalid product %s: %w", item.SKU, err)
		}
		if _, err := c.products.Insert(ctx, product); err != nil {
			return false, err
		}
		inserted = true
	}

	for _, b := range item.Barcodes {
		if strings.TrimSpace(b) == "" {
			continue
		}
		entry := models.BarcodeEntry{
			Barcode:         strings.TrimSpace(b),
			Source:          item.Marketplace.BarcodeSource(),
			NomenclatureRef: nomenclatureRef,
			Article:         &article,
			IsActive:        true,
		}
		if err := c.barcodes.Upsert(ctx, entry); err != nil {
			// кривой штрихкод не должен ронять карточку
			c.log.Warn("skip barcode %q of %s: %v", b, item.SKU, err)
		}
	}
	return inserted, nil
}

// SyncNomenclature сохраняет элемент номенклатуры 1С; штрихкоды элемента регистрируются
// с источником 1C и ссылкой на него.
func (c *ProductCatalog) SyncNomenclature(ctx context.Context, n models.Nomenclature) (bool, error) {
	if strings.TrimSpace(n.RefKey) == "" {
		return false, fmt.Errorf("sync nomenclature: ref key is required")
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = c.now().UTC()
	}
	inserted, err := c.nomenclature.Upsert(ctx, n)
	if err != nil {
		return false, err
	}
	if n.IsFolder {
		return inserted, nil
	}

	ref := n.RefKey
	var article *string
	if n.Article != "" {
		a := n.Article
		article = &a
	}
	for _, b := range n.Barcodes {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		entry := models.BarcodeEntry{
			Barcode:         b,
			Source:          models.BarcodeSource1C,
			NomenclatureRef: &ref,
			Article:         article,
			IsActive:        !n.IsDeleted,
		}
		if err := c.barcodes.Upsert(ctx, entry); err != nil {
			c.log.Warn("skip barcode %q of nomenclature %s: %v", b, n.RefKey, err)
		}
	}
	return inserted, nil
}
