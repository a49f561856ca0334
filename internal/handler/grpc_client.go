package handler

import (
	"context"

	"google.golang.org/grpc"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/service"
)

// WorkflowClient calls the workflow gRPC service with the JSON codec.
type WorkflowClient struct {
	cc grpc.ClientConnInterface
}

// NewWorkflowClient wraps an established connection.
func NewWorkflowClient(cc grpc.ClientConnInterface) *WorkflowClient {
	return &WorkflowClient{cc: cc}
}

func (c *WorkflowClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+WorkflowServiceName+"/"+method, in, out, opts...)
}

func (c *WorkflowClient) GetWorkflowStatus(ctx context.Context, in *DocumentRequest, opts ...grpc.CallOption) (*service.WorkflowStatus, error) {
	out := new(service.WorkflowStatus)
	if err := c.invoke(ctx, "GetWorkflowStatus", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *WorkflowClient) StartWorkflow(ctx context.Context, in *StartWorkflowRequest, opts ...grpc.CallOption) (*service.WorkflowStatus, error) {
	out := new(service.WorkflowStatus)
	if err := c.invoke(ctx, "StartWorkflow", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *WorkflowClient) ActOnStage(ctx context.Context, in *ActOnStageRequest, opts ...grpc.CallOption) (*service.WorkflowStatus, error) {
	out := new(service.WorkflowStatus)
	if err := c.invoke(ctx, "ActOnStage", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *WorkflowClient) AddComment(ctx context.Context, in *AddCommentRequest, opts ...grpc.CallOption) (*approval.Comment, error) {
	out := new(approval.Comment)
	if err := c.invoke(ctx, "AddComment", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *WorkflowClient) GetWorkflowHistory(ctx context.Context, in *DocumentRequest, opts ...grpc.CallOption) (*WorkflowHistory, error) {
	out := new(WorkflowHistory)
	if err := c.invoke(ctx, "GetWorkflowHistory", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
