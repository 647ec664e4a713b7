package controller

import (
	"context"
	"time"
)

type eventLogClient interface {
	AddEvent(ctx context.Context, text string, at time.Time) error
}

type noopEventLogClient struct{}

var _ eventLogClient = noopEventLogClient{}

// AddEvent implements eventLogClient.
func (n noopEventLogClient) AddEvent(ctx context.Context, text string, at time.Time) error {
	return nil
}
