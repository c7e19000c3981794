package onec

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/importer"
	"gomarket_import/pkg/clients"
	"gomarket_import/pkg/logger"
)

const AggregateNomenclature = "a004_nomenclature"

type NomenclatureSyncer interface {
	SyncNomenclature(ctx context.Context, n models.Nomenclature) (bool, error)
}

// Provider импортирует справочник номенклатуры из 1С. Папки грузятся отдельным проходом
// раньше элементов, чтобы родитель элемента уже существовал.
type Provider struct {
	settings clients.Settings
	user     string
	password string
	catalog  NomenclatureSyncer
	now      func() time.Time
}

func NewProvider(settings clients.Settings, user, password string, catalog NomenclatureSyncer) *Provider {
	return &Provider{settings: settings, user: user, password: password, catalog: catalog, now: time.Now}
}

func (p *Provider) Marketplace() models.Marketplace { return models.MarketplaceOneC }

func (p *Provider) Aggregates() []importer.AggregateInfo {
	return []importer.AggregateInfo{{Index: AggregateNomenclature, Name: "Номенклатура"}}
}

func (p *Provider) Passes(conn *models.Connection, _ importer.Request, index string, log logger.Logger) ([]importer.Pass, error) {
	if index != AggregateNomenclature {
		return nil, fmt.Errorf("unknown 1c aggregate %s", index)
	}
	client := NewClient(conn, p.settings, p.user, p.password, log)
	return []importer.Pass{
		{Name: "folders", Fetch: p.page(client, "IsFolder eq true", "[Папка] ")},
		{Name: "items", Fetch: p.page(client, "IsFolder eq false", "")},
	}, nil
}

// page: курсор -- $skip. Неполная страница завершает проход.
func (p *Provider) page(client *Client, filter, labelPrefix string) func(context.Context, string) (*importer.Page, error) {
	top := p.settings.Limit(maxODataPage)
	return func(ctx context.Context, cursor string) (*importer.Page, error) {
		skip, _ := strconv.Atoi(cursor)
		values, err := client.List(ctx, nomenclatureCollection, filter, skip, top)
		if err != nil {
			return nil, err
		}
		page := &importer.Page{
			Next:    strconv.Itoa(skip + len(values)),
			HasMore: len(values) >= top,
		}
		if skip == 0 {
			page.Total = client.Count(ctx, nomenclatureCollection, filter)
		}
		for i, raw := range values {
			var item NomenclatureItem
			decodeErr := json.Unmarshal(raw, &item)
			label := fmt.Sprintf("%s#%d", labelPrefix, skip+i+1)
			if decodeErr == nil {
				label = fmt.Sprintf("%s%s - %s", labelPrefix, item.Code, item.Description)
			}
			page.Records = append(page.Records, importer.Record{
				Label: label,
				Handle: func(ctx context.Context) (importer.Outcome, error) {
					if decodeErr != nil {
						return 0, fmt.Errorf("decode nomenclature: %w", decodeErr)
					}
					inserted, err := p.catalog.SyncNomenclature(ctx, toNomenclature(item, p.now()))
					if err != nil {
						return 0, err
					}
					if inserted {
						return importer.OutcomeInserted, nil
					}
					return importer.OutcomeUpdated, nil
				},
			})
		}
		return page, nil
	}
}

const emptyRef = "00000000-0000-0000-0000-000000000000"

func toNomenclature(item NomenclatureItem, now time.Time) models.Nomenclature {
	parent := item.ParentKey
	if parent == emptyRef {
		parent = ""
	}
	description := item.Description
	if description == "" {
		description = item.FullName
	}
	return models.Nomenclature{
		RefKey:      item.RefKey,
		ParentKey:   parent,
		Code:        item.Code,
		Description: description,
		Article:     item.Article,
		IsFolder:    item.IsFolder,
		IsDeleted:   item.DeletionMark,
		Barcodes:    item.Barcodes,
		UpdatedAt:   now.UTC(),
	}
}
