package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// JobTypeLocate is the job_type of BSSID lookup messages.
const JobTypeLocate = "locate"

// LocateMessage represents a BSSID lookup job message.
type LocateMessage struct {
	JobType string   `json:"job_type"`
	BSSIDs  []string `json:"bssids"`
	Source  string   `json:"source,omitempty"`
}

// Decision is the acknowledgement outcome for a message.
type Decision int

const (
	// Ack removes the message from the subscription.
	Ack Decision = iota
	// Nack asks Pub/Sub to redeliver the message.
	Nack
)

func (d Decision) String() string {
	if d == Nack {
		return "nack"
	}
	return "ack"
}

// Processor decides what to do with a raw job message.
type Processor struct {
	job    *LocateJob
	logger zerolog.Logger
}

// NewProcessor creates a processor that runs locate messages through job.
func NewProcessor(job *LocateJob, logger zerolog.Logger) *Processor {
	return &Processor{job: job, logger: logger}
}

// Process handles one message payload. Unparsable payloads are nacked,
// unknown job types are acked so they are not redelivered, and locate jobs
// are nacked only when a failed batch could succeed on retry.
func (p *Processor) Process(ctx context.Context, data []byte) Decision {
	var msg LocateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Error().Err(err).Msg("failed to parse message")
		return Nack
	}

	switch msg.JobType {
	case JobTypeLocate:
		if err := p.handleLocate(ctx, msg); err != nil {
			p.logger.Error().Err(err).Msg("job failed")
			return Nack
		}
		return Ack
	default:
		p.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return Ack
	}
}

func (p *Processor) handleLocate(ctx context.Context, msg LocateMessage) error {
	if len(msg.BSSIDs) == 0 {
		p.logger.Warn().Msg("locate message without bssids")
		return nil
	}

	result := p.job.Run(ctx, msg.BSSIDs, msg.Source)
	if result.Failed == 0 {
		return nil
	}

	if !result.Retryable() {
		p.logger.Warn().
			Int("failed", result.Failed).
			Str("error", result.Errors[0].Error).
			Msg("dropping locate job with permanent failures")
		return nil
	}

	return fmt.Errorf("locate failed for %d/%d batches", result.Failed, result.Batches)
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *Processor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	decision := h.processor.Process(logger.WithContext(ctx), msg.Data)

	logger.Info().
		Str("decision", decision.String()).
		Dur("duration", time.Since(startTime)).
		Msg("message handled")

	if decision == Nack {
		msg.Nack()
		return
	}
	msg.Ack()
}
