package events

import (
	"errors"
	"sync"

	"github.com/streadway/amqp"
)

// MockAMQPDialer implements AMQPDialer for tests.
type MockAMQPDialer struct {
	Connection *MockAMQPConnection
	DialErr    error
	DialedURL  string
}

// Dial returns the configured mock connection or the configured error.
func (m *MockAMQPDialer) Dial(url string) (AMQPConnection, error) {
	m.DialedURL = url
	if m.DialErr != nil {
		return nil, m.DialErr
	}
	if m.Connection == nil {
		m.Connection = &MockAMQPConnection{Channel_: &MockAMQPChannel{}}
	}
	return m.Connection, nil
}

// MockAMQPConnection implements AMQPConnection for tests.
type MockAMQPConnection struct {
	Channel_   *MockAMQPChannel
	ChannelErr error
	Closed     bool
}

// Channel returns the mock channel or the configured error.
func (m *MockAMQPConnection) Channel() (AMQPChannel, error) {
	if m.ChannelErr != nil {
		return nil, m.ChannelErr
	}
	if m.Channel_ == nil {
		m.Channel_ = &MockAMQPChannel{}
	}
	return m.Channel_, nil
}

// Close marks the connection closed.
func (m *MockAMQPConnection) Close() error {
	m.Closed = true
	return nil
}

// MockAMQPChannel implements AMQPChannel and records published messages.
type MockAMQPChannel struct {
	mu sync.Mutex

	DeclareErr error
	PublishErr error

	DeclaredQueue string
	Published     []amqp.Publishing
	Closed        bool
}

// QueueDeclare records the queue name.
func (m *MockAMQPChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeclareErr != nil {
		return amqp.Queue{}, m.DeclareErr
	}
	m.DeclaredQueue = name
	return amqp.Queue{Name: name}, nil
}

// Publish records the message.
func (m *MockAMQPChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	if m.Closed {
		return errors.New("channel closed")
	}
	m.Published = append(m.Published, msg)
	return nil
}

// Close marks the channel closed.
func (m *MockAMQPChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Messages returns a copy of the published messages.
func (m *MockAMQPChannel) Messages() []amqp.Publishing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]amqp.Publishing(nil), m.Published...)
}
