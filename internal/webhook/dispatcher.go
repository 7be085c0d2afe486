package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/sprida/internal/telemetry"
)

const (
	// queueSize is the buffer size for the event queue
	queueSize = 1000

	// maxResponseBodySize limits how much of a failed response body is logged
	maxResponseBodySize = 1024

	defaultTimeout = 10 * time.Second
)

// Dispatcher posts events to the configured endpoints from a background
// worker, retrying failed deliveries with exponential backoff.
type Dispatcher struct {
	endpoints []Endpoint
	client    *http.Client
	logger    zerolog.Logger
	backoff   time.Duration

	mu     sync.RWMutex
	queue  chan Event
	done   chan struct{}
	stop   chan struct{}
	closed atomic.Bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger deliveries are reported to.
func WithLogger(l zerolog.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// WithHTTPClient replaces the client used for deliveries.
func WithHTTPClient(c *http.Client) Option { return func(d *Dispatcher) { d.client = c } }

// WithBackoff sets the delay before the first retry; later retries double it.
func WithBackoff(base time.Duration) Option { return func(d *Dispatcher) { d.backoff = base } }

// NewDispatcher creates a dispatcher for endpoints. Call Start before Dispatch.
func NewDispatcher(endpoints []Endpoint, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		endpoints: endpoints,
		client:    &http.Client{},
		logger:    zerolog.Nop(),
		backoff:   time.Second,
		queue:     make(chan Event, queueSize),
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start begins processing events from the queue
func (d *Dispatcher) Start() {
	go d.worker()
}

// Close stops accepting events, aborts pending retry waits and waits for the
// worker to finish the queue. Calling Close more than once is a no-op.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed.Swap(true) {
		d.mu.Unlock()
		return nil
	}
	close(d.queue)
	close(d.stop)
	d.mu.Unlock()

	<-d.done
	return nil
}

// Dispatch queues an event for delivery. It never blocks; when the queue is
// full the event is dropped.
func (d *Dispatcher) Dispatch(event Event) {
	if len(d.endpoints) == 0 {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed.Load() {
		return
	}

	select {
	case d.queue <- event:
	default:
		telemetry.WebhookDeliveries.WithLabelValues("dropped").Inc()
		d.logger.Error().
			Str("event", event.Type).
			Str("split", event.Split).
			Str("env", event.Environment).
			Int("queue_size", queueSize).
			Msg("webhook queue full, dropping event")
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)

	for event := range d.queue {
		for _, ep := range d.endpoints {
			if ep.Matches(event) {
				d.deliverWithRetry(ep, event)
			}
		}
	}
}

// deliverWithRetry attempts to deliver an event to an endpoint with retry logic
func (d *Dispatcher) deliverWithRetry(ep Endpoint, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error().Err(err).Str("event", event.Type).Msg("failed to marshal webhook payload")
		return
	}

	signature := Sign(payload, ep.Secret)
	deliveryID := uuid.NewString()
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := d.logger.With().
		Str("url", ep.URL).
		Str("event", event.Type).
		Str("delivery", deliveryID).
		Logger()

	for attempt := 0; attempt <= ep.MaxRetries; attempt++ {
		start := time.Now()
		status, body, err := d.post(ep.URL, payload, timeout, map[string]string{
			"X-Sprida-Signature": signature,
			"X-Sprida-Event":     event.Type,
			"X-Sprida-Delivery":  deliveryID,
		})
		duration := time.Since(start)

		if err == nil && status >= 200 && status < 300 {
			telemetry.WebhookDeliveries.WithLabelValues("success").Inc()
			log.Debug().Int("status", status).Dur("duration", duration).Int("attempt", attempt+1).
				Msg("webhook delivered")
			return
		}

		ev := log.Warn().Int("status", status).Str("body", body).Int("attempt", attempt+1)
		if err != nil {
			ev = ev.Err(err)
		}

		if attempt == ep.MaxRetries {
			telemetry.WebhookDeliveries.WithLabelValues("failed").Inc()
			ev.Msg("webhook delivery failed permanently")
			return
		}

		wait := d.backoff << attempt
		telemetry.WebhookDeliveries.WithLabelValues("retry").Inc()
		ev.Dur("retry_in", wait).Msg("webhook delivery failed")

		select {
		case <-time.After(wait):
		case <-d.stop:
			telemetry.WebhookDeliveries.WithLabelValues("failed").Inc()
			log.Warn().Msg("webhook retry abandoned on shutdown")
			return
		}
	}
}

func (d *Dispatcher) post(url string, payload []byte, timeout time.Duration, headers map[string]string) (int, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, "", nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	return resp.StatusCode, string(b), nil
}
