// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"notification-dispatch/internal/channels"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/models"
	"notification-dispatch/internal/preference"
	"notification-dispatch/internal/realtime"
	"notification-dispatch/internal/resilience"
	"notification-dispatch/internal/template"
	"notification-dispatch/internal/tracker"
)

// ChannelDeliverer is the resilience wrapper's surface as seen by the
// pipeline. One per persisted channel.
type ChannelDeliverer interface {
	Deliver(ctx context.Context, msg channels.Message) resilience.Result
}

// Broadcaster is the realtime registry's surface as seen by the pipeline.
type Broadcaster interface {
	IsConnected(userID string) bool
	SendToUser(userID string, msg realtime.ServerMessage) bool
	BroadcastToObservers(msg realtime.ServerMessage) int
}

// Dispatcher runs the notification pipeline: gate, render, deliver, track.
// Each notification is processed independently; a worker pool bounds
// concurrency for queued work.
type Dispatcher struct {
	gate      *preference.Gate
	prefs     preference.Store
	renderer  *template.Renderer
	tracker   *tracker.Tracker
	hub       Broadcaster
	deliverer map[models.Channel]ChannelDeliverer
	log       logger.Logger

	jobs chan func(context.Context)
	wg   sync.WaitGroup
}

func New(
	gate *preference.Gate,
	prefs preference.Store,
	renderer *template.Renderer,
	trk *tracker.Tracker,
	hub Broadcaster,
	deliverer map[models.Channel]ChannelDeliverer,
	queueSize int,
	log logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		gate:      gate,
		prefs:     prefs,
		renderer:  renderer,
		tracker:   trk,
		hub:       hub,
		deliverer: deliverer,
		log:       log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		jobs:      make(chan func(context.Context), queueSize),
	}
}

// Start launches the worker pool. Workers drain the queue until the queue is
// closed.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				// an admitted request runs to a terminal status even if the
				// triggering caller is gone, so the worker context is
				// detached from the producer's
				job(context.WithoutCancel(ctx))
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight work to finish.
func (d *Dispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}

// Submit hands a unit of work to the worker pool. Returns false when the
// queue is full; callers decide whether to block, drop, or run inline.
func (d *Dispatcher) Submit(job func(context.Context)) bool {
	select {
	case d.jobs <- job:
		return true
	default:
		return false
	}
}

// Enqueue queues one request for pipeline processing.
func (d *Dispatcher) Enqueue(req *models.NotificationRequest) bool {
	r := *req
	return d.Submit(func(ctx context.Context) { d.Send(ctx, &r) })
}

// Send runs the full pipeline for one request synchronously.
func (d *Dispatcher) Send(ctx context.Context, req *models.NotificationRequest) Result {
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.WithLabelValues(string(req.Type)).Observe(time.Since(start).Seconds())
	}()

	decision := d.gate.Allow(ctx, req.RecipientID, req.Type, req.Category, req.Priority, time.Now())
	if !decision.Allowed {
		// deliberate suppression, not a failure
		d.log.Debug("suppressed by preference gate", map[string]interface{}{
			"recipientId": req.RecipientID,
			"channel":     string(req.Type),
			"reason":      decision.Reason,
		})
		metrics.NotificationsSuppressed.WithLabelValues(decision.Reason).Inc()
		return Result{Suppressed: true, SuppressReason: decision.Reason}
	}

	notificationID, err := d.tracker.RecordAdmission(ctx, req)
	if err != nil {
		d.log.Error("history admission failed", map[string]interface{}{
			"recipientId": req.RecipientID, "error": err.Error(),
		})
		return Result{Status: models.StatusFailed, FailureReason: err.Error()}
	}

	rendered := d.renderer.Render(ctx, req.TemplateName, req.Variables, req.Subject, req.Content)
	if err := d.tracker.SetRendered(ctx, notificationID, rendered.Subject, rendered.Content, rendered.TemplateName); err != nil {
		d.log.Warn("storing rendered content failed", map[string]interface{}{
			"notificationId": notificationID, "error": err.Error(),
		})
	}

	if req.Priority == models.PriorityHigh || req.Priority == models.PriorityUrgent {
		d.hub.BroadcastToObservers(realtime.NewServerMessage(realtime.TypeAdminNotification, map[string]interface{}{
			"notificationId": notificationID,
			"recipientId":    req.RecipientID,
			"subject":        rendered.Subject,
			"priority":       string(req.Priority),
		}))
	}

	// Connected recipients get in-app and high-priority traffic over the
	// realtime path, skipping the channel-sender hop entirely.
	if d.realtimeEligible(req) && d.hub.IsConnected(req.RecipientID) {
		delivered := d.hub.SendToUser(req.RecipientID, realtime.NewServerMessage(realtime.TypeNotification, map[string]interface{}{
			"notificationId": notificationID,
			"subject":        rendered.Subject,
			"content":        rendered.Content,
			"priority":       string(req.Priority),
		}))
		if delivered {
			if err := d.tracker.RecordOutcome(ctx, notificationID, tracker.Sent(notificationID)); err != nil {
				d.log.Error("recording realtime outcome failed", map[string]interface{}{
					"notificationId": notificationID, "error": err.Error(),
				})
			}
			return Result{NotificationID: notificationID, Status: models.StatusSent, Via: ViaRealtime}
		}
		// broken connection was evicted; fall through to the channel path
		d.log.Warn("realtime delivery failed, falling back to channel", map[string]interface{}{
			"notificationId": notificationID,
		})
	}

	return d.deliverViaChannel(ctx, req, notificationID, rendered)
}

func (d *Dispatcher) realtimeEligible(req *models.NotificationRequest) bool {
	return req.Type == models.ChannelInApp ||
		req.Priority == models.PriorityHigh || req.Priority == models.PriorityUrgent
}

func (d *Dispatcher) deliverViaChannel(ctx context.Context, req *models.NotificationRequest, notificationID string, rendered template.RenderedMessage) Result {
	deliverer, ok := d.deliverer[req.Type]
	if !ok {
		reason := "no sender configured for channel " + string(req.Type)
		d.recordFailure(ctx, notificationID, reason)
		return Result{NotificationID: notificationID, Status: models.StatusFailed, FailureReason: reason}
	}

	msg := channels.Message{
		NotificationID: notificationID,
		RecipientID:    req.RecipientID,
		Address:        d.resolveAddress(ctx, req),
		Subject:        rendered.Subject,
		Content:        rendered.Content,
		Priority:       req.Priority,
	}

	res := deliverer.Deliver(ctx, msg)
	if res.OK {
		if err := d.tracker.RecordOutcome(ctx, notificationID, tracker.Sent(res.ExternalID)); err != nil {
			d.log.Error("recording sent outcome failed", map[string]interface{}{
				"notificationId": notificationID, "error": err.Error(),
			})
		}
		return Result{NotificationID: notificationID, Status: models.StatusSent, Via: ViaChannel}
	}

	d.recordFailure(ctx, notificationID, string(res.ReasonCode))
	return Result{
		NotificationID: notificationID,
		Status:         models.StatusFailed,
		FailureReason:  string(res.ReasonCode),
		Via:            ViaChannel,
	}
}

func (d *Dispatcher) recordFailure(ctx context.Context, notificationID, reason string) {
	if err := d.tracker.RecordOutcome(ctx, notificationID, tracker.Failed(reason)); err != nil {
		d.log.Error("recording failed outcome failed", map[string]interface{}{
			"notificationId": notificationID, "error": err.Error(),
		})
	}
}

// resolveAddress picks the channel address: the request's explicit address
// wins, then the preference record's per-channel entry.
func (d *Dispatcher) resolveAddress(ctx context.Context, req *models.NotificationRequest) string {
	switch req.Type {
	case models.ChannelEmail:
		if req.Email != "" {
			return req.Email
		}
	case models.ChannelSMS:
		if req.Phone != "" {
			return req.Phone
		}
	case models.ChannelInApp:
		return req.RecipientID
	}

	pref, err := d.prefs.Get(ctx, req.RecipientID)
	if err != nil {
		if !errors.Is(err, preference.ErrNotFound) {
			d.log.Warn("address lookup failed", map[string]interface{}{
				"recipientId": req.RecipientID, "error": err.Error(),
			})
		}
		return ""
	}
	return pref.Addresses[req.Type]
}

// SendBatch fans one notification out to many recipients concurrently and
// joins on every outcome. One recipient's failure never cancels the others.
func (d *Dispatcher) SendBatch(ctx context.Context, reqs []*models.NotificationRequest) BatchResult {
	results := make([]Result, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *models.NotificationRequest) {
			defer wg.Done()
			results[i] = d.Send(ctx, req)
		}(i, req)
	}
	wg.Wait()

	batch := BatchResult{Results: results}
	for _, r := range results {
		switch {
		case r.Suppressed:
			batch.Suppressed++
		default:
			batch.Attempted++
			if r.Status == models.StatusFailed {
				batch.Failed++
			}
		}
	}
	return batch
}
