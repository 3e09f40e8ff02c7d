package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/PavSher76/AI-NK-sub005/internal/app"
)

// CheckPublisher dispatches check jobs to the durable check queue. The
// initiating request returns as soon as the job is on the broker.
type CheckPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewCheckPublisher(conn *amqp.Connection, queueName string) *CheckPublisher {
	return &CheckPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *CheckPublisher) Dispatch(ctx context.Context, job app.CheckJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare check queue failed: %w", err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal check job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish check job failed: %w", err)
	}
	return nil
}
