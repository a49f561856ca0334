package client

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NotificationStream is the JetStream stream that captures SOW workflow
// notifications.
const NotificationStream = "SOW_NOTIFICATIONS"

// NATSClient publishes to JetStream over a single connection.
type NATSClient struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// ConnectNATS dials url and makes sure the notification stream exists.
func ConnectNATS(ctx context.Context, url, serviceName string) (*NATSClient, error) {
	conn, err := nats.Connect(url,
		nats.Name(serviceName),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats: jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     NotificationStream,
		Subjects: []string{subjectPrefix + ">"},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats: ensure stream: %w", err)
	}

	return &NATSClient{conn: conn, js: js}, nil
}

// Publish sends data to subject and waits for the stream ack.
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := c.js.Publish(ctx, subject, data)
	return err
}

// Close drains the connection.
func (c *NATSClient) Close() error {
	return c.conn.Drain()
}
