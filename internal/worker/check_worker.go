package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/PavSher76/AI-NK-sub005/internal/app"
)

// CheckWorker consumes dispatched check jobs and runs them through the
// validation pipeline. Checks for different documents run as independent
// deliveries; the single-flight guarantee is enforced upstream of dispatch.
type CheckWorker struct {
	conn      *amqp.Connection
	validator *app.ValidationService
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCheckWorker(conn *amqp.Connection, validator *app.ValidationService, queueName string) *CheckWorker {
	return &CheckWorker{
		conn:      conn,
		validator: validator,
		queueName: queueName,
	}
}

func (w *CheckWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare check queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume check queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var job app.CheckJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					log.Printf("worker decode check job failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				// RunCheck records its own failure on the document; the
				// delivery is acked either way so a poisoned job is not
				// redelivered forever.
				if err := w.validator.RunCheck(workerCtx, job); err != nil {
					log.Printf("worker check for document %d failed: %v", job.DocumentID, err)
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *CheckWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
