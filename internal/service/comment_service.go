package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
	"github.com/pesio-ai/be-sow-approvals/internal/logger"
)

// MaxCommentLength bounds comment text, in characters.
const MaxCommentLength = 10000

// AddCommentRequest adds one comment to a document.
type AddCommentRequest struct {
	DocumentID string
	Text       string
	ParentID   *string
	IsInternal bool
}

// CommentService manages the discussion attached to documents.
type CommentService struct {
	documents DocumentStore
	comments  CommentStore
	audit     AuditStore
	log       *logger.Logger
}

// NewCommentService creates a new CommentService.
func NewCommentService(documents DocumentStore, comments CommentStore, audit AuditStore, log *logger.Logger) *CommentService {
	return &CommentService{
		documents: documents,
		comments:  comments,
		audit:     audit,
		log:       log,
	}
}

// AddComment appends a comment. A parent must exist on the same document.
func (s *CommentService) AddComment(ctx context.Context, actor auth.Actor, req *AddCommentRequest) (*approval.Comment, error) {
	if err := validateID("document_id", req.DocumentID); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.InvalidInput("text", "is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, errors.InvalidInput("text", "is too long")
	}
	if req.ParentID != nil {
		if err := validateID("parent_id", *req.ParentID); err != nil {
			return nil, err
		}
	}

	if _, err := s.documents.GetByID(ctx, req.DocumentID); err != nil {
		return nil, err
	}

	comment := &approval.Comment{
		DocumentID: req.DocumentID,
		UserID:     actor.ID,
		Text:       text,
		IsInternal: req.IsInternal,
		ParentID:   req.ParentID,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	// The comment is already stored; a lost audit entry is logged, not returned.
	entry := &approval.AuditEntry{
		DocumentID:  req.DocumentID,
		Action:      approval.AuditCommentAdded,
		PerformedBy: actor.ID,
		Metadata:    map[string]any{"comment_id": comment.ID, "is_internal": comment.IsInternal},
	}
	if comment.ParentID != nil {
		entry.Metadata["parent_id"] = *comment.ParentID
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("document_id", req.DocumentID).
			Str("comment_id", comment.ID).
			Msg("Failed to audit comment")
	}

	s.log.Info().
		Str("document_id", req.DocumentID).
		Str("comment_id", comment.ID).
		Bool("reply", comment.ParentID != nil).
		Msg("Comment added")
	return comment, nil
}

// ListThreaded returns the comments of a document as threads.
func (s *CommentService) ListThreaded(ctx context.Context, actor auth.Actor, documentID string) ([]*approval.Thread, error) {
	if err := validateID("document_id", documentID); err != nil {
		return nil, err
	}
	if _, err := s.documents.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return approval.BuildThreads(comments), nil
}
