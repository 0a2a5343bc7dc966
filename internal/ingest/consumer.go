// internal/ingest/consumer.go
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/common/validation"
	"notification-dispatch/internal/dispatch"
	"notification-dispatch/internal/models"
	"notification-dispatch/internal/preference"

	"github.com/segmentio/kafka-go"
)

// Router decides which channel carries an event's notification.
type Router interface {
	Route(ctx context.Context, userID string) models.Channel
}

// Connectivity is the slice of the realtime registry the router needs.
type Connectivity interface {
	IsConnected(userID string) bool
}

// PreferredChannelRouter routes to in-app for connected users, then the
// user's preferred persisted channel, then email as the fallback of last
// resort.
type PreferredChannelRouter struct {
	hub   Connectivity
	prefs preference.Store
}

func NewPreferredChannelRouter(hub Connectivity, prefs preference.Store) *PreferredChannelRouter {
	return &PreferredChannelRouter{hub: hub, prefs: prefs}
}

func (r *PreferredChannelRouter) Route(ctx context.Context, userID string) models.Channel {
	if r.hub.IsConnected(userID) {
		return models.ChannelInApp
	}
	pref, err := r.prefs.Get(ctx, userID)
	if err != nil {
		return models.ChannelEmail
	}
	if pref.PreferredChannel != "" && pref.PreferredChannel != models.ChannelInApp &&
		pref.EnabledChannels[pref.PreferredChannel] {
		return pref.PreferredChannel
	}
	return models.ChannelEmail
}

// Pipeline is the dispatcher surface the consumer drives: asynchronous
// submission onto the worker pool, with synchronous Send as the fallback
// when the pool is saturated.
type Pipeline interface {
	Submit(job func(context.Context)) bool
	Send(ctx context.Context, req *models.NotificationRequest) dispatch.Result
}

// DeadLetterSink receives events no durable record accounts for.
type DeadLetterSink interface {
	Publish(ctx context.Context, key, value []byte, reason string)
}

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer drives the pipeline from the order-events topic. Undeliverable
// events move to the dead-letter topic; pipeline results (including
// circuit-open failures) always ack the event so the topic never loops.
// Each event is handed to the worker pool and commits as its own processing
// finishes, so commits across in-flight events may land out of order and a
// crash can redeliver already-processed events (at-least-once).
type Consumer struct {
	reader    *kafka.Reader
	commits   committer
	validator *validation.EventValidator
	router    Router
	pipeline  Pipeline
	dlq       DeadLetterSink
	maxRetry  int
	log       logger.Logger
}

func NewConsumer(
	cfg config.KafkaConfig,
	validator *validation.EventValidator,
	router Router,
	pipeline Pipeline,
	dlq DeadLetterSink,
	log logger.Logger,
) *Consumer {
	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.ConsumerGroup,
		Topic:                 cfg.EventsTopic,
		StartOffset:           start,
		WatchPartitionChanges: true,

		MinBytes:          1e3,
		MaxBytes:          10e6,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  15 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})

	return &Consumer{
		reader:    reader,
		commits:   reader,
		validator: validator,
		router:    router,
		pipeline:  pipeline,
		dlq:       dlq,
		maxRetry:  cfg.MaxConsumeRetry,
		log: log.WithFields(map[string]interface{}{
			"component": "event-consumer",
			"topic":     cfg.EventsTopic,
			"group":     cfg.ConsumerGroup,
		}),
	}
}

// Run consumes until ctx is cancelled. Fetch failures back off
// exponentially; handler outcomes never block the partition.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("consumer started", nil)

	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.log.Info("consumer stopped", nil)
			return ctx.Err()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer stopped", nil)
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				c.log.Debug("fetch EOF, retrying", map[string]interface{}{"backoff": backoff.String()})
			} else {
				c.log.Warn("fetch failed, retrying", map[string]interface{}{
					"error": err.Error(), "backoff": backoff.String(),
				})
			}
			time.Sleep(backoff)
			if backoff < maxBackoff {
				backoff *= 2
			}
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = 200 * time.Millisecond

		c.handle(ctx, msg)
	}
}

// handle validates and routes one fetched event, then hands it to the worker
// pool. Every path commits the message once its fate is settled.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	if err := c.validator.ValidateEnvelope(msg.Value); err != nil {
		c.log.Warn("event failed schema validation", map[string]interface{}{
			"partition": msg.Partition, "offset": msg.Offset, "error": err.Error(),
		})
		metrics.EventsConsumed.WithLabelValues("invalid").Inc()
		c.dlq.Publish(ctx, msg.Key, msg.Value, err.Error())
		c.commit(ctx, msg)
		return
	}

	var ev models.OrderEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("event decode failed", map[string]interface{}{
			"partition": msg.Partition, "offset": msg.Offset, "error": err.Error(),
		})
		metrics.EventsConsumed.WithLabelValues("malformed").Inc()
		c.dlq.Publish(ctx, msg.Key, msg.Value, err.Error())
		c.commit(ctx, msg)
		return
	}

	channel := c.router.Route(ctx, ev.UserID)
	req := ToRequest(&ev, channel)

	if c.pipeline.Submit(func(jobCtx context.Context) {
		c.finish(jobCtx, msg, c.sendWithRetry(jobCtx, req))
	}) {
		return
	}

	// pool saturated: process inline so the fetch loop itself becomes the
	// backpressure
	c.finish(ctx, msg, c.sendWithRetry(ctx, req))
}

// finish settles a processed event: metrics, the dead-letter decision for
// failures that never reached history, and the commit.
func (c *Consumer) finish(ctx context.Context, msg kafka.Message, res dispatch.Result) {
	switch {
	case res.Suppressed:
		metrics.EventsConsumed.WithLabelValues("suppressed").Inc()
	case res.Status == models.StatusFailed && res.NotificationID == "":
		// never admitted into history: nothing records this failure,
		// so the raw event goes to the dead-letter topic
		metrics.EventsConsumed.WithLabelValues("failed").Inc()
		c.dlq.Publish(ctx, msg.Key, msg.Value, res.FailureReason)
	case res.Status == models.StatusFailed:
		// the event is still acknowledged; the failure lives on the
		// history record with its reason code
		metrics.EventsConsumed.WithLabelValues("failed").Inc()
	default:
		metrics.EventsConsumed.WithLabelValues("dispatched").Inc()
	}
	c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.commits.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		c.log.Warn("commit failed, message may be redelivered", map[string]interface{}{
			"partition": msg.Partition, "offset": msg.Offset, "error": err.Error(),
		})
	}
}

// sendWithRetry re-runs the pipeline only when admission into history
// failed, since that is the one failure mode with no durable record. Sender
// failures are already retried inside the resilience wrappers.
func (c *Consumer) sendWithRetry(ctx context.Context, req *models.NotificationRequest) dispatch.Result {
	var res dispatch.Result
	for attempt := 0; attempt <= c.maxRetry; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
		}
		res = c.pipeline.Send(ctx, req)
		if res.Suppressed || res.NotificationID != "" {
			return res
		}
	}
	return res
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
