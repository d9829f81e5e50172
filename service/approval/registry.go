// Package approval implements the human-in-the-loop registry: confirm-rated
// content is parked here until an operator allows or blocks it, or the wait
// times out.  A timeout is not an error; the caller treats it as a block.
package approval

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gatekit/gatekit/internal/clock"
	"github.com/gatekit/gatekit/internal/idgen"
	"github.com/gatekit/gatekit/logging"
	"github.com/gatekit/gatekit/service/dao"
	"github.com/gatekit/gatekit/service/dao/store"
	"github.com/gatekit/gatekit/service/messaging"
	qmem "github.com/gatekit/gatekit/service/messaging/memory"
)

var errNilRecord = errors.New("nil approval record")

func recordKey(r *Record) string { return r.ID }

// Registry tracks pending approval requests and suspends callers until a
// decision lands.  Requests and decisions live in separate DAO books so a
// late or duplicate resolve can be told apart from an unknown ID.
type Registry struct {
	mu      sync.Mutex
	waiters map[string]chan Decision

	requests  dao.Service[string, Record]
	decisions dao.Service[string, Record]
	events    messaging.Queue[Event]
	logger    logging.Logger
}

// Option customises a Registry.
type Option func(*Registry)

// WithQueue replaces the event queue, e.g. with a durable one.
func WithQueue(queue messaging.Queue[Event]) Option {
	return func(r *Registry) {
		if queue != nil {
			r.events = queue
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Registry) {
		r.logger = logging.OrNop(logger)
	}
}

// New creates an in-memory approval registry.
func New(options ...Option) *Registry {
	ret := &Registry{
		waiters:   make(map[string]chan Decision),
		requests:  store.NewMemoryStore[string, Record](recordKey),
		decisions: store.NewMemoryStore[string, Record](recordKey),
		events:    qmem.NewQueue[Event](qmem.DefaultConfig()),
		logger:    logging.Nop(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Queue exposes the event queue for subscribers.
func (r *Registry) Queue() messaging.Queue[Event] {
	return r.events
}

// Create registers a new approval request and announces it on the event
// queue.  The caller is expected to follow up with WaitForDecision; the
// record is visible in ListPending from this point on.
func (r *Registry) Create(ctx context.Context, payload Payload, timeout time.Duration) (*Record, error) {
	return r.CreateWithID(ctx, idgen.New(), payload, timeout)
}

// CreateWithID is Create with a caller-chosen ID, used where the ID encodes
// correlation data such as the originating tool call.
func (r *Registry) CreateWithID(ctx context.Context, id string, payload Payload, timeout time.Duration) (*Record, error) {
	if id == "" {
		id = idgen.New()
	}
	now := clock.NowUnixMilli()
	record := &Record{
		ID:          id,
		Request:     payload,
		CreatedAtMs: now,
		ExpiresAtMs: now + timeout.Milliseconds(),
	}
	if err := r.requests.Save(ctx, record); err != nil {
		return nil, err
	}
	r.publish(ctx, &Event{Topic: TopicRequestCreated, Record: record})
	r.logger.Info("approval request created: id=%s label=%s tool=%s", record.ID, payload.Label, payload.ToolName)
	return record, nil
}

// publish broadcasts an event best effort.  Notifications must never stall
// the approval path, so when the queue cannot take the event without
// blocking it is dropped with a warning.
func (r *Registry) publish(ctx context.Context, event *Event) {
	type tryPublisher interface {
		TryPublish(ctx context.Context, event *Event) bool
	}
	if queue, ok := r.events.(tryPublisher); ok {
		if !queue.TryPublish(ctx, event) {
			r.logger.Warn("approval event dropped, queue full: topic=%s id=%s", event.Topic, event.Record.ID)
		}
		return
	}
	go func() {
		if err := r.events.Publish(context.Background(), event); err != nil {
			r.logger.Warn("approval event publish failed: topic=%s id=%s err=%v", event.Topic, event.Record.ID, err)
		}
	}()
}

// WaitForDecision suspends until the record is resolved, the timeout lapses
// or ctx is cancelled.  It returns (decision, true) when resolved and
// (zero, false) on timeout; only ctx cancellation yields an error.
func (r *Registry) WaitForDecision(ctx context.Context, record *Record, timeout time.Duration) (Decision, bool, error) {
	if record == nil {
		return "", false, errNilRecord
	}
	waiter := make(chan Decision, 1)
	r.mu.Lock()
	r.waiters[record.ID] = waiter
	r.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case decision := <-waiter:
		return decision, true, nil
	case <-timer.C:
		if decision, resolved := r.abandon(ctx, record, waiter, TopicRequestExpired); resolved {
			return decision, true, nil
		}
		r.logger.Warn("approval request timed out: id=%s", record.ID)
		return "", false, nil
	case <-ctx.Done():
		if decision, resolved := r.abandon(ctx, record, waiter, ""); resolved {
			return decision, true, nil
		}
		return "", false, ctx.Err()
	}
}

// abandon drops the waiter and the pending record after a timeout or
// cancellation.  When a concurrent Resolve claimed the waiter first it has
// committed to sending a decision; that decision is returned so both sides
// agree on the outcome.
func (r *Registry) abandon(ctx context.Context, record *Record, waiter chan Decision, topic string) (Decision, bool) {
	r.mu.Lock()
	_, waiting := r.waiters[record.ID]
	delete(r.waiters, record.ID)
	r.mu.Unlock()
	if !waiting {
		return <-waiter, true
	}
	_ = r.requests.Delete(ctx, record.ID)
	if topic != "" {
		r.publish(ctx, &Event{Topic: topic, Record: record})
	}
	return "", false
}

// Resolve records a verdict for a pending request and wakes its waiter.  It
// returns false when nothing is waiting under the ID, which covers unknown,
// already resolved and timed-out requests alike.
func (r *Registry) Resolve(ctx context.Context, id string, decision Decision) bool {
	r.mu.Lock()
	waiter, ok := r.waiters[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.waiters, id)
	r.mu.Unlock()

	record, err := r.requests.Load(ctx, id)
	if err == nil && record != nil {
		record.ResolvedAtMs = clock.NowUnixMilli()
		record.Decision = decision
		_ = r.decisions.Save(ctx, record)
		_ = r.requests.Delete(ctx, id)
		r.publish(ctx, &Event{Topic: TopicDecisionCreated, Record: record})
	}
	waiter <- decision
	r.logger.Info("approval resolved: id=%s decision=%s", id, decision)
	return true
}

// ListPending returns a snapshot of unresolved, unexpired records.  Expired
// entries that never reached WaitForDecision are purged on the way, so a
// created-but-abandoned request does not linger in the book.
func (r *Registry) ListPending(ctx context.Context) ([]*Record, error) {
	all, err := r.requests.List(ctx)
	if err != nil {
		return nil, err
	}
	now := clock.NowUnixMilli()
	pending := make([]*Record, 0, len(all))
	for _, record := range all {
		if record.ExpiresAtMs <= now {
			_ = r.requests.Delete(ctx, record.ID)
			continue
		}
		pending = append(pending, record)
	}
	return pending, nil
}

// Snapshot returns the current state of a record, pending or resolved.  An
// expired pending record counts as gone.
func (r *Registry) Snapshot(ctx context.Context, id string) (*Record, bool) {
	if record, err := r.requests.Load(ctx, id); err == nil && record != nil {
		if record.ExpiresAtMs > clock.NowUnixMilli() {
			return record, true
		}
		_ = r.requests.Delete(ctx, id)
	}
	if record, err := r.decisions.Load(ctx, id); err == nil && record != nil {
		return record, true
	}
	return nil, false
}
