package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"gomarket_import/internal/core/models"
	"gomarket_import/internal/progress"
	"gomarket_import/metrics"
	"gomarket_import/pkg/logger"
)

// Executor запускает сессии импорта: одна горутина на сессию, страницы и записи строго по порядку.
type Executor struct {
	connections ConnectionSource
	providers   map[models.Marketplace]Provider
	tracker     *progress.Tracker
	logs        *logger.SessionLogs
	log         *logger.BaseLogger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewExecutor: logs может быть nil, тогда лог сессии пишется только в общий лог.
func NewExecutor(connections ConnectionSource, tracker *progress.Tracker, logs *logger.SessionLogs, log *logger.BaseLogger, providers ...Provider) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		connections: connections,
		providers:   make(map[models.Marketplace]Provider),
		tracker:     tracker,
		logs:        logs,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, p := range providers {
		e.providers[p.Marketplace()] = p
	}
	return e
}

// Catalog -- доступные агрегаты по маркетплейсам.
func (e *Executor) Catalog() map[string][]AggregateInfo {
	out := make(map[string][]AggregateInfo, len(e.providers))
	for mp, p := range e.providers {
		out[mp.String()] = p.Aggregates()
	}
	return out
}

// StartImport создаёт сессию и запускает импорт в фоне. Контекст запроса используется только
// для проверки подключения: импорт переживает HTTP-запрос.
func (e *Executor) StartImport(ctx context.Context, req Request) (Response, error) {
	sessionID, conn, err := e.prepare(ctx, req)
	if err != nil {
		return Response{}, err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = e.Run(e.ctx, sessionID, conn, req)
	}()

	return Response{
		SessionID: sessionID,
		Status:    progress.SessionRunning,
		Message:   "Импорт запущен",
	}, nil
}

// ImportSync выполняет импорт в текущей горутине.
func (e *Executor) ImportSync(ctx context.Context, req Request) (Response, error) {
	sessionID, conn, err := e.prepare(ctx, req)
	if err != nil {
		return Response{}, err
	}
	runErr := e.Run(ctx, sessionID, conn, req)
	p, _ := e.tracker.GetProgress(sessionID)
	resp := Response{SessionID: sessionID, Status: p.Status, Message: "Импорт завершён"}
	if runErr != nil {
		resp.Message = runErr.Error()
	}
	return resp, nil
}

func (e *Executor) prepare(ctx context.Context, req Request) (string, *models.Connection, error) {
	if err := req.Validate(); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	conn, err := e.connections.GetByID(ctx, req.ConnectionID)
	if err != nil {
		return "", nil, fmt.Errorf("load connection %s: %w", req.ConnectionID, err)
	}
	if conn == nil || conn.IsDeleted {
		return "", nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, req.ConnectionID)
	}
	if _, ok := e.providers[conn.Marketplace]; !ok {
		return "", nil, fmt.Errorf("%w: no importer for marketplace %s", ErrInvalidRequest, conn.Marketplace)
	}

	sessionID := uuid.NewString()
	e.tracker.CreateSession(sessionID)
	provider := e.providers[conn.Marketplace]
	names := make(map[string]string)
	for _, a := range provider.Aggregates() {
		names[a.Index] = a.Name
	}
	for _, index := range req.Aggregates {
		name, ok := names[index]
		if !ok {
			name = index
		}
		e.tracker.AddAggregate(sessionID, index, name)
	}
	return sessionID, conn, nil
}

// Run -- основной цикл сессии. Любая ошибка уровня страницы или подключения переводит
// сессию в failed. Ошибка падения агрегата пишется в журнал один раз, с индексом агрегата.
func (e *Executor) Run(ctx context.Context, sessionID string, conn *models.Connection, req Request) (err error) {
	log, closeLog := e.sessionLog(sessionID)
	defer closeLog()
	defer metrics.SessionStarted()()

	recorded := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("import panicked: %v", r)
		}
		if err != nil {
			log.Error("import failed: %v", err)
			if !recorded {
				e.tracker.AddError(sessionID, nil, fmt.Sprintf("Импорт прерван: %v", err), nil)
			}
			e.finish(sessionID, progress.SessionFailed)
		}
	}()

	e.tracker.StartSession(sessionID)
	log.Log("import started: connection=%s (%s) aggregates=%v", conn.ID, conn.Marketplace, req.Aggregates)

	provider, ok := e.providers[conn.Marketplace]
	if !ok {
		return fmt.Errorf("no importer for marketplace %s", conn.Marketplace)
	}

	for _, index := range req.Aggregates {
		if err := ctx.Err(); err != nil {
			return err
		}
		passes, err := provider.Passes(conn, req, index, log)
		if err != nil {
			e.tracker.FailAggregate(sessionID, index, fmt.Errorf("Неизвестный агрегат: %s", index))
			log.Warn("skip aggregate %s: %v", index, err)
			continue
		}
		if err := e.runAggregate(ctx, sessionID, conn, index, passes, log); err != nil {
			e.tracker.FailAggregate(sessionID, index, fmt.Errorf("Импорт прерван: %w", err))
			recorded = true
			return fmt.Errorf("aggregate %s: %w", index, err)
		}
		e.tracker.CompleteAggregate(sessionID, index)
	}

	snapshot, _ := e.tracker.GetProgress(sessionID)
	status := progress.SessionCompleted
	if snapshot.TotalErrors > 0 {
		status = progress.SessionCompletedWithErrors
	}
	log.Log("import finished: processed=%d inserted=%d updated=%d errors=%d",
		snapshot.TotalProcessed, snapshot.TotalInserted, snapshot.TotalUpdated, snapshot.TotalErrors)
	e.finish(sessionID, status)
	return nil
}

func (e *Executor) finish(sessionID string, status progress.SessionStatus) {
	e.tracker.CompleteSession(sessionID, status)
	if p, ok := e.tracker.GetProgress(sessionID); ok {
		metrics.RecordSession(p.Status.String())
	}
}

type counters struct {
	processed, inserted, updated int
	total                        *int
}

func (e *Executor) runAggregate(ctx context.Context, sessionID string, conn *models.Connection, index string, passes []Pass, log logger.Logger) error {
	var (
		c         counters
		totalBase int
	)
	for _, pass := range passes {
		log.Log("%s: pass %s started", index, pass.Name)
		passTotal, err := e.runPass(ctx, sessionID, conn, index, pass, totalBase, &c, log)
		if err != nil {
			return fmt.Errorf("pass %s: %w", pass.Name, err)
		}
		totalBase += passTotal
	}
	log.Log("%s: done, processed=%d inserted=%d updated=%d", index, c.processed, c.inserted, c.updated)
	return nil
}

// runPass возвращает итоговое число записей прохода (известное провайдеру или посчитанное).
func (e *Executor) runPass(ctx context.Context, sessionID string, conn *models.Connection, index string, pass Pass, totalBase int, c *counters, log logger.Logger) (int, error) {
	cursor := ""
	seen := 0
	knownTotal := -1
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		page, err := pass.Fetch(ctx, cursor)
		if err != nil {
			return 0, fmt.Errorf("fetch page (cursor %q): %w", cursor, err)
		}
		if page.Total != nil {
			knownTotal = *page.Total
			total := totalBase + knownTotal
			c.total = &total
		} else if knownTotal < 0 {
			// проход без итога: общий итог агрегата тоже неизвестен
			c.total = nil
		}

		for _, rec := range page.Records {
			e.handleRecord(ctx, sessionID, conn, index, rec, c, log)
		}
		seen += len(page.Records)
		e.tracker.SetCurrentItem(sessionID, index, nil)

		if len(page.Records) == 0 || !page.HasMore {
			break
		}
		if page.Next == "" || page.Next == cursor {
			log.Warn("%s: continuation %q did not advance, stopping pass %s", index, page.Next, pass.Name)
			break
		}
		cursor = page.Next
	}
	if knownTotal >= 0 {
		return knownTotal, nil
	}
	return seen, nil
}

func (e *Executor) handleRecord(ctx context.Context, sessionID string, conn *models.Connection, index string, rec Record, c *counters, log logger.Logger) {
	label := rec.Label
	e.tracker.SetCurrentItem(sessionID, index, &label)

	outcome, err := rec.Handle(ctx)
	c.processed++
	if err != nil {
		aggregate := index
		details := err.Error()
		e.tracker.IncrementErrors(sessionID, index)
		e.tracker.AddError(sessionID, &aggregate, fmt.Sprintf("Ошибка обработки записи %s", label), &details)
		log.Error("%s: record %s: %v", index, label, err)
		metrics.RecordImportRecord(conn.Marketplace.String(), index, "error")
	} else {
		switch outcome {
		case OutcomeInserted:
			c.inserted++
		case OutcomeUpdated:
			c.updated++
		}
		metrics.RecordImportRecord(conn.Marketplace.String(), index, outcome.String())
	}
	e.tracker.UpdateAggregate(sessionID, index, c.processed, c.total, c.inserted, c.updated)
}

func (e *Executor) sessionLog(sessionID string) (logger.Logger, func()) {
	fallback := e.log.WithPrefix("[" + sessionID[:min(8, len(sessionID))] + "]")
	if e.logs == nil {
		return fallback, func() {}
	}
	sl, err := e.logs.Open(sessionID, "[import]")
	if err != nil {
		fallback.Warn("session log unavailable: %v", err)
		return fallback, func() {}
	}
	return sl, func() { _ = sl.Close() }
}

// Cancel помечает сессию отменённой. Горутина импорта продолжает работу до конца.
func (e *Executor) Cancel(sessionID string) bool {
	return e.tracker.Cancel(sessionID)
}

// Wait ждёт завершения всех запущенных сессий.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Shutdown ждёт сессии до истечения ctx, после чего отменяет их контекст.
func (e *Executor) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		<-done
		return errors.Join(errors.New("import sessions interrupted"), ctx.Err())
	}
}
