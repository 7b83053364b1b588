package events

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"playground.evalgo.org/common"
)

// RabbitMQPublisher publishes operation events to a durable RabbitMQ queue.
type RabbitMQPublisher struct {
	connection AMQPConnection
	channel    AMQPChannel
	queueName  string
}

// NewRabbitMQPublisher connects to RabbitMQ and declares the queue.
func NewRabbitMQPublisher(url, queueName string) (*RabbitMQPublisher, error) {
	return NewRabbitMQPublisherWithDialer(url, queueName, &RealAMQPDialer{})
}

// NewRabbitMQPublisherWithDialer creates a publisher with an injected
// dialer for testing.
func NewRabbitMQPublisherWithDialer(url, queueName string, dialer AMQPDialer) (*RabbitMQPublisher, error) {
	conn, err := dialer.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// Durable so events survive broker restarts.
	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &RabbitMQPublisher{
		connection: conn,
		channel:    ch,
		queueName:  queueName,
	}, nil
}

// PublishOperation serializes the event to JSON and publishes it to the
// default exchange with the queue name as routing key.
func (p *RabbitMQPublisher) PublishOperation(event OperationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.Publish(
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	common.Logger.Debugf("published event for operation %s (%s)", event.OperationID, event.Status)
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.connection != nil {
		p.connection.Close()
	}
	return nil
}
