package services

import (
	"context"
	"fmt"

	"gomarket_import/internal/core/models"
	"gomarket_import/pkg/logger"
)

// PostingService переводит документы между состояниями "не проведён" и "проведён".
// Проведённый документ имеет ровно один набор строк в регистре продаж.
type PostingService struct {
	docs        DocumentRepository
	projections ProjectionRepository
	log         logger.Logger
}

func NewPostingService(docs DocumentRepository, projections ProjectionRepository, log logger.Logger) *PostingService {
	return &PostingService{docs: docs, projections: projections, log: log}
}

func (s *PostingService) load(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	if doc.Metadata.IsDeleted {
		return nil, fmt.Errorf("%w: %s", ErrDocumentDeleted, id)
	}
	return doc, nil
}

func (s *PostingService) Post(ctx context.Context, id string) error {
	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if doc.IsPosted {
		return nil
	}
	if err := s.projections.Replace(ctx, doc.ID, models.SalesRegisterRows(doc)); err != nil {
		return fmt.Errorf("post document %s: %w", id, err)
	}
	if err := s.docs.SetPosted(ctx, doc.ID, true); err != nil {
		return fmt.Errorf("post document %s: %w", id, err)
	}
	s.log.Log("document %s (%s %s) posted, %d lines", doc.ID, doc.Source, doc.NaturalKey, len(doc.Lines))
	return nil
}

func (s *PostingService) Unpost(ctx context.Context, id string) error {
	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !doc.IsPosted {
		return nil
	}
	if err := s.projections.DeleteForDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("unpost document %s: %w", id, err)
	}
	if err := s.docs.SetPosted(ctx, doc.ID, false); err != nil {
		return fmt.Errorf("unpost document %s: %w", id, err)
	}
	s.log.Log("document %s unposted", doc.ID)
	return nil
}

// Refresh перестраивает проекции проведённого документа после повторного импорта.
func (s *PostingService) Refresh(ctx context.Context, doc *models.Document) error {
	if !doc.IsPosted {
		return nil
	}
	return s.projections.Replace(ctx, doc.ID, models.SalesRegisterRows(doc))
}
