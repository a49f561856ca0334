package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/logger"
	"github.com/pesio-ai/be-sow-approvals/internal/service"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	routing   *service.ApprovalRoutingService
	comments  *service.CommentService
	catalog   *service.CatalogService
	documents *service.DocumentService
	db        Pinger
	log       *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler. db may be nil, in which case the
// health check only reports liveness.
func NewHTTPHandler(
	routing *service.ApprovalRoutingService,
	comments *service.CommentService,
	catalog *service.CatalogService,
	documents *service.DocumentService,
	db Pinger,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		routing:   routing,
		comments:  comments,
		catalog:   catalog,
		documents: documents,
		db:        db,
		log:       log,
	}
}

type registerDocumentBody struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}

type startWorkflowBody struct {
	Amount *int64 `json:"amount"`
}

type actOnStageBody struct {
	Action string `json:"action"`
}

type addCommentBody struct {
	Text       string  `json:"text"`
	ParentID   *string `json:"parent_id"`
	IsInternal bool    `json:"is_internal"`
}

// Health reports liveness and, when a database is attached, readiness.
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterDocument handles SOW registration requests
func (h *HTTPHandler) RegisterDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var body registerDocumentBody
	if err := decodeBody(r, registerDocumentLoader, &body); err != nil {
		writeError(w, h.log, err)
		return
	}

	doc, err := h.documents.RegisterDocument(r.Context(), actor, &service.RegisterDocumentRequest{
		ID:     body.ID,
		Amount: body.Amount,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	status := http.StatusOK
	if body.ID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, doc)
}

// GetDocument handles get SOW requests
func (h *HTTPHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	doc, err := h.documents.GetDocument(r.Context(), actor, chi.URLParam(r, "documentId"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetWorkflowStatus handles workflow status requests
func (h *HTTPHandler) GetWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	status, err := h.routing.GetWorkflowStatus(r.Context(), actor, chi.URLParam(r, "documentId"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// StartWorkflow handles workflow start requests
func (h *HTTPHandler) StartWorkflow(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var body startWorkflowBody
	if err := decodeBody(r, startWorkflowLoader, &body); err != nil {
		writeError(w, h.log, err)
		return
	}

	status, err := h.routing.StartWorkflow(r.Context(), actor, &service.StartWorkflowRequest{
		DocumentID: chi.URLParam(r, "documentId"),
		Amount:     body.Amount,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

// ActOnStage handles approve, reject and skip requests
func (h *HTTPHandler) ActOnStage(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var body actOnStageBody
	if err := decodeBody(r, actOnStageLoader, &body); err != nil {
		writeError(w, h.log, err)
		return
	}

	status, err := h.routing.ActOnStage(r.Context(), actor, &service.ActOnStageRequest{
		DocumentID: chi.URLParam(r, "documentId"),
		StageID:    chi.URLParam(r, "stageId"),
		Action:     body.Action,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GetWorkflowHistory handles audit trail requests
func (h *HTTPHandler) GetWorkflowHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	entries, err := h.routing.GetWorkflowHistory(r.Context(), actor, chi.URLParam(r, "documentId"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ListComments handles threaded comment listing
func (h *HTTPHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	threads, err := h.comments.ListThreaded(r.Context(), actor, chi.URLParam(r, "documentId"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": threads})
}

// AddComment handles new comments and replies
func (h *HTTPHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var body addCommentBody
	if err := decodeBody(r, addCommentLoader, &body); err != nil {
		writeError(w, h.log, err)
		return
	}

	comment, err := h.comments.AddComment(r.Context(), actor, &service.AddCommentRequest{
		DocumentID: chi.URLParam(r, "documentId"),
		Text:       body.Text,
		ParentID:   body.ParentID,
		IsInternal: body.IsInternal,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// ListStages handles stage catalog listing
func (h *HTTPHandler) ListStages(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	stages, err := h.catalog.ListStages(r.Context(), actor)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": stages})
}

// CreateStage handles stage creation
func (h *HTTPHandler) CreateStage(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req service.StageRequest
	if err := decodeBody(r, stageLoader, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	stage, err := h.catalog.CreateStage(r.Context(), actor, &req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, stage)
}

// UpdateStage handles stage replacement
func (h *HTTPHandler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req service.StageRequest
	if err := decodeBody(r, stageLoader, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	stage, err := h.catalog.UpdateStage(r.Context(), actor, chi.URLParam(r, "stageId"), &req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stage)
}

// ListRules handles rule listing
func (h *HTTPHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	rules, err := h.catalog.ListRules(r.Context(), actor)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// CreateRule handles rule creation
func (h *HTTPHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req service.RuleRequest
	if err := decodeBody(r, ruleLoader, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	rule, err := h.catalog.CreateRule(r.Context(), actor, &req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule handles rule replacement
func (h *HTTPHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req service.RuleRequest
	if err := decodeBody(r, ruleLoader, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	rule, err := h.catalog.UpdateRule(r.Context(), actor, chi.URLParam(r, "ruleId"), &req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule handles rule deletion
func (h *HTTPHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteRule(r.Context(), actor, chi.URLParam(r, "ruleId")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) actor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return auth.Actor{}, false
	}
	return actor, true
}
