// Package events publishes operation lifecycle events to a message queue
// so external consumers (audit trails, dashboards) can follow container
// activity without polling the API.
package events

import "time"

// OperationEvent describes one state change of a tracked operation.
type OperationEvent struct {
	OperationID string    `json:"operation_id"`
	Kind        string    `json:"operation"`
	Status      string    `json:"status"`
	Phase       string    `json:"operation_phase,omitempty"`
	Container   string    `json:"container_name,omitempty"`
	Label       string    `json:"label,omitempty"`
	Time        time.Time `json:"time"`
}

// Publisher delivers operation events.
type Publisher interface {
	// PublishOperation publishes one event. Returns an error if
	// serialization or delivery fails.
	PublishOperation(event OperationEvent) error

	// Close releases the underlying connection.
	Close() error
}

// NopPublisher discards all events. Used when event publishing is disabled.
type NopPublisher struct{}

// PublishOperation discards the event.
func (NopPublisher) PublishOperation(OperationEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }
