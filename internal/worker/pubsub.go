package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger

	// MaxOutstanding caps unacked messages held at once (default: 10).
	MaxOutstanding int
}

// PubSubHandler feeds messages from a subscription to a Dispatcher.
type PubSubHandler struct {
	client     *pubsub.Client
	subscriber *pubsub.Subscriber
	name       string
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// NewPubSubHandler connects to the project. Call Close when done.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client for %s: %w", cfg.ProjectID, err)
	}

	if cfg.MaxOutstanding <= 0 {
		cfg.MaxOutstanding = 10
	}
	sub := client.Subscriber(cfg.SubscriptionName)
	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstanding
	// A full refresh can outlast the default ack deadline.
	sub.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:     client,
		subscriber: sub,
		name:       cfg.SubscriptionName,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger.With().Str("subscription", cfg.SubscriptionName).Logger(),
	}, nil
}

// Start receives until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Msg("listening for refresh jobs")
	return h.subscriber.Receive(ctx, h.receive)
}

func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) receive(ctx context.Context, msg *pubsub.Message) {
	log := h.logger.With().Str("message_id", msg.ID).Logger()
	start := time.Now()

	err := h.dispatcher.Handle(log.WithContext(ctx), msg.Data)
	if Retryable(err) {
		log.Error().Err(err).Msg("job failed, will be redelivered")
		msg.Nack()
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("dropping job message")
	} else {
		log.Info().Dur("duration", time.Since(start)).Msg("job done")
	}
	msg.Ack()
}

// Retryable reports whether a message whose handling returned err should be
// redelivered.
func Retryable(err error) bool {
	return err != nil &&
		!errors.Is(err, ErrMalformedMessage) &&
		!errors.Is(err, ErrUnknownJob) &&
		!errors.Is(err, ErrNoTargets)
}
