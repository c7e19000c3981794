// Package progress хранит в памяти ход выполнения сессий импорта.
package progress

import (
	"context"
	"sync"
	"time"

	"gomarket_import/pkg/logger"
)

// Tracker -- потокобезопасный реестр сессий. Неизвестные id сессий и агрегатов молча игнорируются:
// запись прогресса не должна ронять импорт.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*ImportProgress
	log      logger.Logger
	now      func() time.Time
}

func NewTracker(log logger.Logger) *Tracker {
	return &Tracker{
		sessions: make(map[string]*ImportProgress),
		log:      log,
		now:      time.Now,
	}
}

func (t *Tracker) CreateSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()
	t.sessions[sessionID] = &ImportProgress{
		SessionID:  sessionID,
		Status:     SessionPending,
		StartedAt:  now,
		UpdatedAt:  now,
		Aggregates: []AggregateProgress{},
		Errors:     []ImportError{},
	}
}

// update выполняет fn под блокировкой записи, если сессия существует.
func (t *Tracker) update(sessionID string, fn func(p *ImportProgress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	fn(p)
	p.UpdatedAt = t.now().UTC()
}

func (t *Tracker) updateAggregate(sessionID, index string, fn func(p *ImportProgress, a *AggregateProgress)) {
	t.update(sessionID, func(p *ImportProgress) {
		if a := p.aggregate(index); a != nil {
			fn(p, a)
		}
	})
}

func (t *Tracker) StartSession(sessionID string) {
	t.update(sessionID, func(p *ImportProgress) {
		if p.Status == SessionPending {
			p.Status = SessionRunning
		}
	})
}

func (t *Tracker) AddAggregate(sessionID, index, name string) {
	t.update(sessionID, func(p *ImportProgress) {
		if p.aggregate(index) != nil {
			return
		}
		p.Aggregates = append(p.Aggregates, AggregateProgress{Index: index, Name: name, Status: AggregatePending})
	})
}

// UpdateAggregate выставляет абсолютные значения счётчиков и переводит агрегат в running.
// Счётчики не уменьшаются. total == nil означает, что итог неизвестен.
func (t *Tracker) UpdateAggregate(sessionID, index string, processed int, total *int, inserted, updated int) {
	t.updateAggregate(sessionID, index, func(p *ImportProgress, a *AggregateProgress) {
		if a.Status == AggregatePending {
			a.Status = AggregateRunning
		}
		a.Processed = max(a.Processed, processed)
		a.Inserted = max(a.Inserted, inserted)
		a.Updated = max(a.Updated, updated)
		a.Total = nil
		if total != nil {
			v := *total
			a.Total = &v
		}
		p.recalcTotals()
	})
}

// SetCounters сохраняет дополнительные именованные счётчики агрегата (например, итоги сопоставления).
func (t *Tracker) SetCounters(sessionID, index string, counters map[string]int) {
	t.updateAggregate(sessionID, index, func(_ *ImportProgress, a *AggregateProgress) {
		a.Counters = make(map[string]int, len(counters))
		for k, v := range counters {
			a.Counters[k] = v
		}
	})
}

func (t *Tracker) SetCurrentItem(sessionID, index string, item *string) {
	t.updateAggregate(sessionID, index, func(_ *ImportProgress, a *AggregateProgress) {
		if item == nil {
			a.CurrentItem = nil
			return
		}
		v := *item
		a.CurrentItem = &v
	})
}

func (t *Tracker) CompleteAggregate(sessionID, index string) {
	t.updateAggregate(sessionID, index, func(_ *ImportProgress, a *AggregateProgress) {
		a.Status = AggregateCompleted
		a.CurrentItem = nil
	})
}

// FailAggregate переводит агрегат в failed и учитывает это как ошибку агрегата.
// Текст err попадает в журнал ошибок сессии.
func (t *Tracker) FailAggregate(sessionID, index string, err error) {
	t.updateAggregate(sessionID, index, func(p *ImportProgress, a *AggregateProgress) {
		a.Status = AggregateFailed
		a.CurrentItem = nil
		a.Errors++
		if err != nil {
			aggregate := index
			p.Errors = append(p.Errors, ImportError{
				Aggregate: &aggregate,
				Message:   err.Error(),
				At:        t.now().UTC(),
			})
			p.TotalErrors++
		}
	})
}

// IncrementErrors учитывает ошибку одной записи в счётчике агрегата.
func (t *Tracker) IncrementErrors(sessionID, index string) {
	t.updateAggregate(sessionID, index, func(_ *ImportProgress, a *AggregateProgress) {
		a.Errors++
	})
}

func (t *Tracker) AddError(sessionID string, aggregate *string, message string, details *string) {
	t.update(sessionID, func(p *ImportProgress) {
		e := ImportError{Message: message, At: t.now().UTC()}
		if aggregate != nil {
			v := *aggregate
			e.Aggregate = &v
		}
		if details != nil {
			v := *details
			e.Details = &v
		}
		p.Errors = append(p.Errors, e)
		p.TotalErrors++
	})
}

// CompleteSession вызывается, когда задача сессии завершилась: ставит CompletedAt и итоговый
// статус. Уже выставленный финальный статус (в том числе cancelled) не меняется.
func (t *Tracker) CompleteSession(sessionID string, status SessionStatus) {
	t.update(sessionID, func(p *ImportProgress) {
		if p.CompletedAt != nil {
			return
		}
		now := t.now().UTC()
		if !p.Status.Finished() {
			p.Status = status
		}
		p.CompletedAt = &now
		for i := range p.Aggregates {
			p.Aggregates[i].CurrentItem = nil
		}
	})
}

// Cancel помечает сессию отменённой. Работающая горутина импорта не останавливается,
// поэтому CompletedAt не ставится: до CompleteSession сессия не вытесняется.
func (t *Tracker) Cancel(sessionID string) bool {
	found := false
	t.update(sessionID, func(p *ImportProgress) {
		found = true
		if p.Status.Finished() {
			return
		}
		p.Status = SessionCancelled
	})
	return found
}

func (t *Tracker) GetProgress(sessionID string) (ImportProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.sessions[sessionID]
	if !ok {
		return ImportProgress{}, false
	}
	return p.clone(), true
}

// CleanupOldSessions удаляет сессии, задача которых завершилась раньше maxAge назад.
// Сессии без CompletedAt (выполняются, даже если помечены cancelled) не трогает.
func (t *Tracker) CleanupOldSessions(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().UTC().Add(-maxAge)
	removed := 0
	for id, p := range t.sessions {
		if p.CompletedAt == nil {
			continue
		}
		if p.CompletedAt.Before(cutoff) {
			delete(t.sessions, id)
			removed++
		}
	}
	return removed
}

// Run периодически чистит старые сессии до отмены ctx.
func (t *Tracker) Run(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.CleanupOldSessions(maxAge); n > 0 {
				t.log.Log("removed %d finished import sessions older than %s", n, maxAge)
			}
		}
	}
}
