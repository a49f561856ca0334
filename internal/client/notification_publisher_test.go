package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBus struct {
	mock.Mock
}

func (m *mockBus) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func TestPublishSOWEvent(t *testing.T) {
	bus := &mockBus{}
	var published []byte
	bus.On("Publish", mock.Anything, "notifications.sow.sow_approval_required", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil).Once()

	p := NewNotificationPublisher(bus, zerolog.Nop())
	p.PublishSOWEvent(context.Background(), EventApprovalRequired, "doc-1", "user-1",
		[]string{"director"}, map[string]any{"stage": "Director Approval"})

	bus.AssertExpectations(t)
	var event NotificationEvent
	require.NoError(t, json.Unmarshal(published, &event))
	assert.Equal(t, "sow", event.ResourceType)
	assert.Equal(t, "doc-1", event.ResourceID)
	assert.True(t, event.IsActionable)
	assert.Equal(t, []string{"director"}, event.Recipients)
	assert.Equal(t, "Director Approval", event.Payload["stage"])
}

func TestPublishSOWEvent_SkipsWithoutRecipients(t *testing.T) {
	bus := &mockBus{}
	p := NewNotificationPublisher(bus, zerolog.Nop())

	p.PublishSOWEvent(context.Background(), EventApproved, "doc-1", "user-1", nil, nil)

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishSOWEvent_ErrorsAreSwallowed(t *testing.T) {
	bus := &mockBus{}
	bus.On("Publish", mock.Anything, "notifications.sow.sow_rejected", mock.Anything).
		Return(errors.New("no responders")).Once()

	p := NewNotificationPublisher(bus, zerolog.Nop())
	assert.NotPanics(t, func() {
		p.PublishSOWEvent(context.Background(), EventRejected, "doc-1", "user-1", []string{"admin"}, nil)
	})
	bus.AssertExpectations(t)
}

func TestPublishSOWEvent_NilBus(t *testing.T) {
	p := NewNotificationPublisher(nil, zerolog.Nop())
	assert.NotPanics(t, func() {
		p.PublishSOWEvent(context.Background(), EventApproved, "doc-1", "user-1", []string{"admin"}, nil)
	})
}
