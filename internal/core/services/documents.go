package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gomarket_import/internal/core/models"
	"gomarket_import/pkg/dbconnect"
	"gomarket_import/pkg/logger"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentDeleted  = errors.New("document is deleted")
)

// NaturalKeyConflictError -- второй живой документ с тем же ключом не допускается уникальным индексом.
// Обычно означает, что та же запись импортируется параллельно из другого процесса.
type NaturalKeyConflictError struct {
	Source models.DocumentType
	Key    string
	Err    error
}

func (e *NaturalKeyConflictError) Error() string {
	return fmt.Sprintf("document %s with natural key %q already exists: check for concurrent imports of the same record", e.Source, e.Key)
}

func (e *NaturalKeyConflictError) Unwrap() error { return e.Err }

type UpsertResult struct {
	ID              string
	Inserted        bool
	DocumentVersion int
}

// DocumentStore -- идемпотентное сохранение документов по (source, natural_key).
type DocumentStore struct {
	docs    DocumentRepository
	raw     RawPayloadSaver
	posting *PostingService
	locks   *keyedMutex
	log     logger.Logger
	now     func() time.Time
}

// NewDocumentStore: raw и posting могут быть nil.
func NewDocumentStore(docs DocumentRepository, raw RawPayloadSaver, posting *PostingService, log logger.Logger) *DocumentStore {
	return &DocumentStore{
		docs:    docs,
		raw:     raw,
		posting: posting,
		locks:   newKeyedMutex(),
		log:     log,
		now:     time.Now,
	}
}

func (s *DocumentStore) Upsert(ctx context.Context, doc *models.Document, raw []byte) (UpsertResult, error) {
	if err := doc.Validate(); err != nil {
		return UpsertResult{}, fmt.Errorf("invalid document %s/%s: %w", doc.Source, doc.NaturalKey, err)
	}

	if s.raw != nil && len(raw) > 0 {
		ref, err := s.raw.Save(ctx, doc.Header.Marketplace.String(), doc.Source.String(), doc.NaturalKey, raw, doc.SourceMeta.FetchedAt)
		if err != nil {
			return UpsertResult{}, err
		}
		doc.SourceMeta.RawPayloadRef = ref
	}

	unlock := s.locks.Lock(doc.Source.String() + "\x00" + doc.NaturalKey)
	defer unlock()

	existing, err := s.docs.GetByNaturalKey(ctx, doc.Source, doc.NaturalKey)
	if err != nil {
		return UpsertResult{}, err
	}
	now := s.now().UTC()

	if existing == nil {
		doc.ID = ""
		doc.IsPosted = false
		doc.SourceMeta.DocumentVersion = 1
		doc.Metadata = models.Metadata{CreatedAt: now, UpdatedAt: now, Version: 1}
		id, err := s.docs.Insert(ctx, doc)
		if err != nil {
			if dbconnect.IsUniqueViolation(err) {
				return UpsertResult{}, &NaturalKeyConflictError{Source: doc.Source, Key: doc.NaturalKey, Err: err}
			}
			return UpsertResult{}, err
		}
		return UpsertResult{ID: id, Inserted: true, DocumentVersion: 1}, nil
	}

	doc.ID = existing.ID
	doc.IsPosted = existing.IsPosted
	doc.SourceMeta.DocumentVersion = existing.SourceMeta.DocumentVersion + 1
	doc.Metadata = models.Metadata{
		CreatedAt: existing.Metadata.CreatedAt,
		UpdatedAt: now,
		Version:   existing.Metadata.Version + 1,
	}
	if err := s.docs.Update(ctx, doc); err != nil {
		return UpsertResult{}, err
	}

	if doc.IsPosted && s.posting != nil {
		if err := s.posting.Refresh(ctx, doc); err != nil {
			s.log.Warn("document %s updated but projections were not rebuilt: %v", doc.ID, err)
		}
	}
	return UpsertResult{ID: doc.ID, Inserted: false, DocumentVersion: doc.SourceMeta.DocumentVersion}, nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete помечает документ удалённым и убирает его проекции.
func (s *DocumentStore) Delete(ctx context.Context, id string) (bool, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if doc == nil || doc.Metadata.IsDeleted {
		return false, nil
	}
	if doc.IsPosted && s.posting != nil {
		if err := s.posting.Unpost(ctx, id); err != nil {
			return false, err
		}
	}
	return s.docs.SoftDelete(ctx, id)
}

// keyedMutex сериализует работу с одним ключом, не блокируя остальные.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
