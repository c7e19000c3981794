package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/progress"
	"gomarket_import/metrics"
	"gomarket_import/pkg/logger"
)

// MatchAggregate -- индекс агрегата сессии сопоставления в трекере.
const MatchAggregate = "u505_match_nomenclature"

const matchPageSize = 500

type MatchProducts interface {
	CountActive(ctx context.Context, marketplaceID string) (int, error)
	ListPage(ctx context.Context, marketplaceID, afterID string, limit int) ([]models.ProductReference, error)
	SetNomenclatureRef(ctx context.Context, id, nomenclatureRef string) error
	ClearNomenclatureRef(ctx context.Context, id string) error
}

type NomenclatureIndexSource interface {
	ListWithArticle(ctx context.Context) ([]models.Nomenclature, error)
}

type MatchRequest struct {
	// MarketplaceID ограничивает сопоставление одним маркетплейсом; пусто -- все товары.
	MarketplaceID string `json:"marketplace_id,omitempty"`
	IgnoreCase    bool   `json:"ignore_case"`
	// Overwrite -- пересопоставлять и товары, у которых связь уже есть.
	Overwrite bool `json:"overwrite_existing"`
}

type MatchStarted struct {
	SessionID string                 `json:"session_id"`
	Status    progress.SessionStatus `json:"status"`
	Message   string                 `json:"message"`
}

type MatchResult struct {
	Processed int `json:"processed"`
	Matched   int `json:"matched"`
	Cleared   int `json:"cleared"`
	Skipped   int `json:"skipped"`
	Ambiguous int `json:"ambiguous"`
	Errors    int `json:"errors"`
	// Changed -- у скольких товаров связь действительно изменилась.
	Changed int `json:"changed"`
}

func (r MatchResult) counters() map[string]int {
	return map[string]int{
		"matched":   r.Matched,
		"cleared":   r.Cleared,
		"skipped":   r.Skipped,
		"ambiguous": r.Ambiguous,
	}
}

type matchOutcome int

const (
	matchLinked matchOutcome = iota
	matchCleared
	matchClearedAmbiguous
	matchSkipped
)

// NomenclatureMatcher связывает товары маркетплейсов с номенклатурой 1С по артикулу.
// Связь ставится только при единственном совпадении; при отсутствии или неоднозначности
// совпадения связь снимается. Каждый запуск -- отдельная сессия в трекере.
type NomenclatureMatcher struct {
	products     MatchProducts
	nomenclature NomenclatureIndexSource
	tracker      *progress.Tracker
	log          logger.Logger
	pageSize     int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewNomenclatureMatcher(products MatchProducts, nomenclature NomenclatureIndexSource, tracker *progress.Tracker, log logger.Logger) *NomenclatureMatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &NomenclatureMatcher{
		products:     products,
		nomenclature: nomenclature,
		tracker:      tracker,
		log:          log,
		pageSize:     matchPageSize,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start создаёт сессию и запускает сопоставление в фоне.
func (m *NomenclatureMatcher) Start(_ context.Context, req MatchRequest) (MatchStarted, error) {
	sessionID := m.newSession()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, _ = m.Run(m.ctx, sessionID, req)
	}()
	return MatchStarted{SessionID: sessionID, Status: progress.SessionRunning, Message: "Сопоставление запущено"}, nil
}

// MatchSync выполняет сопоставление в текущей горутине.
func (m *NomenclatureMatcher) MatchSync(ctx context.Context, req MatchRequest) (string, MatchResult, error) {
	sessionID := m.newSession()
	result, err := m.Run(ctx, sessionID, req)
	return sessionID, result, err
}

func (m *NomenclatureMatcher) newSession() string {
	sessionID := uuid.NewString()
	m.tracker.CreateSession(sessionID)
	m.tracker.AddAggregate(sessionID, MatchAggregate, "Сопоставление номенклатуры")
	return sessionID
}

// Run проходит по всем товарам страницами по id. Ошибка одного товара пишется в журнал сессии
// и не останавливает проход; ошибка чтения списка или индекса валит сессию.
func (m *NomenclatureMatcher) Run(ctx context.Context, sessionID string, req MatchRequest) (result MatchResult, err error) {
	defer metrics.SessionStarted()()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("matching panicked: %v", r)
		}
		if err != nil {
			m.log.Error("matching %s failed: %v", sessionID, err)
			m.tracker.FailAggregate(sessionID, MatchAggregate, fmt.Errorf("Сопоставление прервано: %w", err))
			m.finish(sessionID, progress.SessionFailed)
		}
	}()

	m.tracker.StartSession(sessionID)
	var total *int
	if n, err := m.products.CountActive(ctx, req.MarketplaceID); err != nil {
		m.log.Warn("matching %s: count products: %v", sessionID, err)
	} else {
		total = &n
	}

	index, err := m.buildIndex(ctx, req.IgnoreCase)
	if err != nil {
		return result, err
	}

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		page, err := m.products.ListPage(ctx, req.MarketplaceID, afterID, m.pageSize)
		if err != nil {
			return result, err
		}
		for _, p := range page {
			m.matchOne(ctx, sessionID, p, req, index, &result, total)
		}
		if len(page) < m.pageSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	m.tracker.CompleteAggregate(sessionID, MatchAggregate)
	status := progress.SessionCompleted
	if result.Errors > 0 {
		status = progress.SessionCompletedWithErrors
	}
	m.log.Log("matching %s finished: processed=%d matched=%d cleared=%d skipped=%d ambiguous=%d errors=%d",
		sessionID, result.Processed, result.Matched, result.Cleared, result.Skipped, result.Ambiguous, result.Errors)
	m.finish(sessionID, status)
	return result, nil
}

func (m *NomenclatureMatcher) finish(sessionID string, status progress.SessionStatus) {
	m.tracker.CompleteSession(sessionID, status)
	if p, ok := m.tracker.GetProgress(sessionID); ok {
		metrics.RecordSession(p.Status.String())
	}
}

func (m *NomenclatureMatcher) matchOne(ctx context.Context, sessionID string, p models.ProductReference, req MatchRequest, index map[string][]models.Nomenclature, result *MatchResult, total *int) {
	label := p.Article + " - " + p.Description
	m.tracker.SetCurrentItem(sessionID, MatchAggregate, &label)

	outcome, changed, err := m.matchProduct(ctx, p, req, index)
	result.Processed++
	if err != nil {
		result.Errors++
		aggregate := MatchAggregate
		details := err.Error()
		m.tracker.IncrementErrors(sessionID, MatchAggregate)
		m.tracker.AddError(sessionID, &aggregate, fmt.Sprintf("Ошибка сопоставления товара %s", p.Article), &details)
		m.log.Error("match product %s: %v", p.ID, err)
	} else {
		switch outcome {
		case matchLinked:
			result.Matched++
		case matchCleared:
			result.Cleared++
		case matchClearedAmbiguous:
			result.Cleared++
			result.Ambiguous++
		case matchSkipped:
			result.Skipped++
		}
		if changed {
			result.Changed++
		}
	}
	m.tracker.UpdateAggregate(sessionID, MatchAggregate, result.Processed, total, 0, result.Changed)
	m.tracker.SetCounters(sessionID, MatchAggregate, result.counters())
}

func (m *NomenclatureMatcher) matchProduct(ctx context.Context, p models.ProductReference, req MatchRequest, index map[string][]models.Nomenclature) (matchOutcome, bool, error) {
	linked := p.NomenclatureRef != nil && *p.NomenclatureRef != ""
	if linked && !req.Overwrite {
		return matchSkipped, false, nil
	}
	article := strings.TrimSpace(p.Article)
	if article == "" {
		return m.clear(ctx, p, matchCleared)
	}
	found := index[articleKey(article, req.IgnoreCase)]
	switch len(found) {
	case 0:
		return m.clear(ctx, p, matchCleared)
	case 1:
		ref := found[0].RefKey
		if linked && *p.NomenclatureRef == ref {
			return matchLinked, false, nil
		}
		if err := m.products.SetNomenclatureRef(ctx, p.ID, ref); err != nil {
			return 0, false, err
		}
		return matchLinked, true, nil
	default:
		m.log.Warn("article %s of product %s matches %d nomenclature items", article, p.ID, len(found))
		return m.clear(ctx, p, matchClearedAmbiguous)
	}
}

func (m *NomenclatureMatcher) clear(ctx context.Context, p models.ProductReference, outcome matchOutcome) (matchOutcome, bool, error) {
	if p.NomenclatureRef == nil {
		return outcome, false, nil
	}
	if err := m.products.ClearNomenclatureRef(ctx, p.ID); err != nil {
		return 0, false, err
	}
	return outcome, true, nil
}

// buildIndex -- артикул -> элементы номенклатуры, строится один раз на сессию.
func (m *NomenclatureMatcher) buildIndex(ctx context.Context, ignoreCase bool) (map[string][]models.Nomenclature, error) {
	items, err := m.nomenclature.ListWithArticle(ctx)
	if err != nil {
		return nil, fmt.Errorf("build article index: %w", err)
	}
	index := make(map[string][]models.Nomenclature, len(items))
	for _, n := range items {
		article := strings.TrimSpace(n.Article)
		if article == "" {
			continue
		}
		key := articleKey(article, ignoreCase)
		index[key] = append(index[key], n)
	}
	return index, nil
}

func articleKey(article string, ignoreCase bool) string {
	if ignoreCase {
		return cases.Fold().String(article)
	}
	return article
}

// Shutdown ждёт запущенные сессии до истечения ctx, после чего отменяет их контекст.
func (m *NomenclatureMatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return errors.Join(errors.New("matching sessions interrupted"), ctx.Err())
	}
}
