package handler

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
	"github.com/pesio-ai/be-sow-approvals/internal/service"
)

// WorkflowServiceName is the fully-qualified gRPC service name.
const WorkflowServiceName = "sow.approvals.v1.WorkflowService"

// DocumentRequest addresses one document.
type DocumentRequest struct {
	DocumentID string `json:"document_id"`
}

// StartWorkflowRequest starts a document's workflow over gRPC.
type StartWorkflowRequest struct {
	DocumentID string `json:"document_id"`
	Amount     *int64 `json:"amount"`
}

// ActOnStageRequest acts on one stage over gRPC.
type ActOnStageRequest struct {
	DocumentID string `json:"document_id"`
	StageID    string `json:"stage_id"`
	Action     string `json:"action"`
}

// AddCommentRequest adds a comment over gRPC.
type AddCommentRequest struct {
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	ParentID   *string `json:"parent_id,omitempty"`
	IsInternal bool    `json:"is_internal"`
}

// WorkflowHistory is the audit trail of one document.
type WorkflowHistory struct {
	Entries []*approval.AuditEntry `json:"entries"`
}

// WorkflowServer is the server API of the workflow gRPC service.
type WorkflowServer interface {
	GetWorkflowStatus(context.Context, *DocumentRequest) (*service.WorkflowStatus, error)
	StartWorkflow(context.Context, *StartWorkflowRequest) (*service.WorkflowStatus, error)
	ActOnStage(context.Context, *ActOnStageRequest) (*service.WorkflowStatus, error)
	AddComment(context.Context, *AddCommentRequest) (*approval.Comment, error)
	GetWorkflowHistory(context.Context, *DocumentRequest) (*WorkflowHistory, error)
}

// RegisterWorkflowServer registers srv on s.
func RegisterWorkflowServer(s grpc.ServiceRegistrar, srv WorkflowServer) {
	s.RegisterService(&workflowServiceDesc, srv)
}

// GRPCHandler implements WorkflowServer on top of the services
type GRPCHandler struct {
	routing  *service.ApprovalRoutingService
	comments *service.CommentService
	logger   zerolog.Logger
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(routing *service.ApprovalRoutingService, comments *service.CommentService, logger zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{
		routing:  routing,
		comments: comments,
		logger:   logger.With().Str("handler", "grpc").Logger(),
	}
}

// GetWorkflowStatus returns the projected workflow of a document
func (h *GRPCHandler) GetWorkflowStatus(ctx context.Context, req *DocumentRequest) (*service.WorkflowStatus, error) {
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return nil, h.mapErrorToGRPC(err)
	}

	st, err := h.routing.GetWorkflowStatus(ctx, actor, req.DocumentID)
	if err != nil {
		return nil, h.mapErrorToGRPC(err)
	}
	return st, nil
}

// StartWorkflow starts the workflow of a document
func (h *GRPCHandler) StartWorkflow(ctx context.Context, req *StartWorkflowRequest) (*service.WorkflowStatus, error) {
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return nil, h.mapErrorToGRPC(err)
	}

	h.logger.Info().
		Str("document_id", req.DocumentID).
		Str("actor_id", actor.ID).
		Msg("gRPC StartWorkflow called")

	st, err := h.routing.StartWorkflow(ctx, actor, &service.StartWorkflowRequest{
		DocumentID: req.DocumentID,
		Amount:     req.Amount,
	})
	if err != nil {
		return nil, h.mapErrorToGRPC(err)
	}
	return st, nil
}

// ActOnStage approves, rejects or skips a stage
func (h *GRPCHandler) ActOnStage(ctx context.Context, req *ActOnStageRequest) (*service.WorkflowStatus, error) {
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return nil, h.mapErrorToGRPC(err)
	}

	h.logger.Info().
		Str("document_id", req.DocumentID).
		Str("stage_id", req.StageID).
		Str("action", req.Action).
		Str("actor_id", actor.ID).
		Msg("gRPC ActOnStage called")

	st, err := h.routing.ActOnStage(ctx, actor, &service.ActOnStageRequest{
		DocumentID: req.DocumentID,
		StageID:    req.StageID,
		Action:     req.Action,
	})
	if err != nil {
		return nil, h.mapErrorToGRPC(err)
	}
	return st, nil
}

// AddComment adds a comment or reply to a document
func (h *GRPCHandler) AddComment(ctx context.Context, req *AddCommentRequest) (*approval.Comment, error) {
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return nil, h.mapErrorToGRPC(err)
	}

	c, err := h.comments.AddComment(ctx, actor, &service.AddCommentRequest{
		DocumentID: req.DocumentID,
		Text:       req.Text,
		ParentID:   req.ParentID,
		IsInternal: req.IsInternal,
	})
	if err != nil {
		return nil, h.mapErrorToGRPC(err)
	}
	return c, nil
}

// GetWorkflowHistory returns the audit trail of a document
func (h *GRPCHandler) GetWorkflowHistory(ctx context.Context, req *DocumentRequest) (*WorkflowHistory, error) {
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return nil, h.mapErrorToGRPC(err)
	}

	entries, err := h.routing.GetWorkflowHistory(ctx, actor, req.DocumentID)
	if err != nil {
		return nil, h.mapErrorToGRPC(err)
	}
	return &WorkflowHistory{Entries: entries}, nil
}

func (h *GRPCHandler) mapErrorToGRPC(err error) error {
	code := grpcCode(errors.CodeOf(err))
	if code == codes.Internal {
		h.logger.Error().Err(err).Msg("gRPC call failed")
		return status.Error(codes.Internal, "internal error")
	}

	msg := err.Error()
	var e *errors.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	return status.Error(code, msg)
}

func grpcCode(code errors.Code) codes.Code {
	switch code {
	case errors.ErrCodeUnauthenticated:
		return codes.Unauthenticated
	case errors.ErrCodeForbidden:
		return codes.PermissionDenied
	case errors.ErrCodeNotFound:
		return codes.NotFound
	case errors.ErrCodeConflict:
		return codes.Aborted
	case errors.ErrCodeInvalidInput:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

func unaryHandler[Req any, Resp any](
	method string,
	call func(WorkflowServer, context.Context, *Req) (Resp, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(WorkflowServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + WorkflowServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(WorkflowServer), ctx, req.(*Req))
		})
	}
}

var workflowServiceDesc = grpc.ServiceDesc{
	ServiceName: WorkflowServiceName,
	HandlerType: (*WorkflowServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetWorkflowStatus", Handler: unaryHandler("GetWorkflowStatus", WorkflowServer.GetWorkflowStatus)},
		{MethodName: "StartWorkflow", Handler: unaryHandler("StartWorkflow", WorkflowServer.StartWorkflow)},
		{MethodName: "ActOnStage", Handler: unaryHandler("ActOnStage", WorkflowServer.ActOnStage)},
		{MethodName: "AddComment", Handler: unaryHandler("AddComment", WorkflowServer.AddComment)},
		{MethodName: "GetWorkflowHistory", Handler: unaryHandler("GetWorkflowHistory", WorkflowServer.GetWorkflowHistory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sow/approvals/v1/workflow",
}
