// Package eventlog posts dispenser events to an HTTP event log service.
package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/calvinmclean/babyapi"
	"github.com/google/uuid"
)

// Event is one notification from a dispenser
type Event struct {
	// include NilResource so we don't implement Render/Bind which are not needed
	*babyapi.NilResource

	ID     string    `json:"id,omitempty"`
	Device string    `json:"device,omitempty"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
	// IdempotencyKey is a unique id generated for each posted event
	IdempotencyKey string `json:"idempotency_key"`
}

func (e *Event) GetID() string {
	return e.ID
}

type Client struct {
	client *babyapi.Client[*Event]
	device string
}

// NewClient creates a client for the service at addr. Events are tagged with device
func NewClient(addr, device string) *Client {
	return &Client{
		client: babyapi.NewClient[*Event](addr, "/events"),
		device: device,
	}
}

// AddEvent records text at the given time
func (c *Client) AddEvent(ctx context.Context, text string, at time.Time) error {
	_, err := c.Post(ctx, text, at)
	return err
}

// Post records text and returns the stored event
func (c *Client) Post(ctx context.Context, text string, at time.Time) (*Event, error) {
	resp, err := c.client.Post(ctx, &Event{
		Device:         c.device,
		Text:           text,
		Time:           at,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("error posting event: %w", err)
	}

	return resp.Data, nil
}
