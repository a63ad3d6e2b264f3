package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docrag/internal/platform/rabbitmq"
)

// BrokerListener consumes job notifications and nudges the worker. Messages
// carry no work themselves; a lost message only delays the job until the
// next poll.
type BrokerListener struct {
	conn      *amqp.Connection
	queueName string
	nudger    Nudger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBrokerListener(conn *amqp.Connection, queueName string, nudger Nudger) *BrokerListener {
	return &BrokerListener{
		conn:      conn,
		queueName: queueName,
		nudger:    nudger,
	}
}

func (l *BrokerListener) Start(ctx context.Context) error {
	if l.cancel != nil {
		return nil
	}

	listenCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	ch, err := l.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open listener channel failed: %w", err)
	}

	if err := rabbitmq.DeclareJobQueue(ch, l.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		l.queueName,
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
		return fmt.Errorf("consume queue failed: %w", err)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-listenCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := l.handle(d.Body); err != nil {
					slog.Warn("drop job notification", "error", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (l *BrokerListener) handle(body []byte) error {
	msg, err := rabbitmq.DecodeJobMessage(body)
	if err != nil {
		return err
	}
	slog.Debug("job notification received", "job_id", msg.JobID, "source", msg.Source.String())
	l.nudger.Nudge()
	return nil
}

func (l *BrokerListener) Close() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}
