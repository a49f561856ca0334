package service

import (
	"context"

	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
	"github.com/pesio-ai/be-sow-approvals/internal/logger"
	"github.com/pesio-ai/be-sow-approvals/internal/repository"
)

// RegisterDocumentRequest registers or re-prices a SOW.
type RegisterDocumentRequest struct {
	ID     string
	Amount int64
}

// DocumentService maintains the SOW projection the workflow runs against.
type DocumentService struct {
	documents DocumentStore
	log       *logger.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(documents DocumentStore, log *logger.Logger) *DocumentService {
	return &DocumentService{documents: documents, log: log}
}

// RegisterDocument creates the document, or updates its amount while it is a
// draft. Admin only.
func (s *DocumentService) RegisterDocument(ctx context.Context, actor auth.Actor, req *RegisterDocumentRequest) (*repository.DocumentRecord, error) {
	if err := requireAdmin(actor, "register documents"); err != nil {
		return nil, err
	}
	if req.ID != "" {
		if err := validateID("id", req.ID); err != nil {
			return nil, err
		}
	}
	if req.Amount < 0 {
		return nil, errors.InvalidInput("amount", "must not be negative")
	}

	doc := &repository.DocumentRecord{}
	doc.ID = req.ID
	doc.Amount = req.Amount
	if err := s.documents.Upsert(ctx, doc); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Int64("amount", doc.Amount).
		Str("actor_id", actor.ID).
		Msg("Document registered")
	return doc, nil
}

// GetDocument returns one document.
func (s *DocumentService) GetDocument(ctx context.Context, actor auth.Actor, id string) (*repository.DocumentRecord, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	return s.documents.GetByID(ctx, id)
}
