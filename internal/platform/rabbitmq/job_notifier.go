package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"docrag/internal/model"
)

var errMissingJobID = errors.New("decode job message failed: missing job_id")

// JobMessage announces that a job became pending. The job table stays the
// source of truth; consumers only use it as a wake-up signal.
type JobMessage struct {
	JobID    uint            `json:"job_id"`
	Source   model.SourceRef `json:"source"`
	QueuedAt time.Time       `json:"queued_at"`
}

// JobNotifier publishes a JobMessage for every enqueued or reset job.
type JobNotifier struct {
	conn      *amqp.Connection
	queueName string
}

func NewJobNotifier(conn *amqp.Connection, queueName string) *JobNotifier {
	return &JobNotifier{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *JobNotifier) NotifyQueued(ctx context.Context, job *model.JobRecord) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareJobQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := EncodeJobMessage(job)
	if err != nil {
		return err
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
		return fmt.Errorf("publish job %d failed: %w", job.ID, err)
	}
	return nil
}

func EncodeJobMessage(job *model.JobRecord) ([]byte, error) {
	payload, err := json.Marshal(JobMessage{JobID: job.ID, Source: job.Source(), QueuedAt: job.QueuedAt})
	if err != nil {
		return nil, fmt.Errorf("marshal job message failed: %w", err)
	}
	return payload, nil
}

func DecodeJobMessage(body []byte) (JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("decode job message failed: %w", err)
	}
	if msg.JobID == 0 {
		return msg, errMissingJobID
	}
	return msg, nil
}
