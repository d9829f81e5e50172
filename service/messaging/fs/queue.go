// Package fs provides a filesystem-backed messaging.Queue.  It trades
// throughput for durability: published notifications survive a process
// restart, which matters when an external operator UI consumes approval
// requests out of band.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"

	"github.com/gatekit/gatekit/internal/idgen"
	"github.com/gatekit/gatekit/service/messaging"
)

// State tracks where a notification sits in its delivery lifecycle.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateDead       State = "dead"
)

// Message implements messaging.Message for the filesystem queue.
type Message[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Retries   int       `json:"retries"`

	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack removes the delivered notification from the processing directory.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	return m.queue.remove(context.Background(), m.queue.processingDir, m.ID)
}

// Nack re-queues the notification for redelivery until the retry limit is
// hit, then parks it in the dead directory for inspection.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = time.Now()

	target := m.queue.pendingDir
	m.State = StatePending
	if m.Retries > m.queue.config.MaxRetries {
		target = m.queue.deadDir
		m.State = StateDead
	}
	if wErr := m.queue.write(context.Background(), target, m); wErr != nil {
		return wErr
	}
	return m.queue.remove(context.Background(), m.queue.processingDir, m.ID)
}

// Config holds configuration for the filesystem queue
type Config struct {
	BaseURL    string // base location for queue entries; any afs scheme works
	MaxRetries int
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:    "/tmp/gatekit/outbox",
		MaxRetries: 3,
	}
}

// Queue implements a filesystem-based messaging.Queue on top of afs, so the
// outbox can live on local disk, in memory (mem://) or in object storage.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	deadDir       string
	mu            sync.Mutex
}

// NewQueue creates a new filesystem-backed queue
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BaseURL, "pending"),
		processingDir: path.Join(config.BaseURL, "processing"),
		deadDir:       path.Join(config.BaseURL, "dead"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.deadDir} {
		if exists, _ := fs.Exists(ctx, dir); !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return q, nil
}

// Publish persists a new notification in the pending directory.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := time.Now()
	message := &Message[T]{
		ID:        idgen.New(),
		Data:      *t,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
		queue:     q,
	}
	return q.write(ctx, q.pendingDir, message)
}

// Consume claims the oldest pending notification by moving it to the
// processing directory.  It returns (nil, nil) when the outbox is empty so
// pollers can back off.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	objects, err := q.fs.List(ctx, q.pendingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	var pending []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			pending = append(pending, obj)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	obj := pending[0]
	message, err := q.read(ctx, obj.URL())
	if err != nil {
		// Unreadable entry - park it so it does not wedge the queue.
		destURL := path.Join(q.deadDir, fmt.Sprintf("invalid-%s", obj.Name()))
		_ = q.fs.Move(ctx, obj.URL(), destURL)
		return nil, err
	}
	message.State = StateProcessing
	message.UpdatedAt = time.Now()
	message.queue = q

	// Claim first, then delete the pending copy so a crash never loses data.
	if err := q.write(ctx, q.processingDir, message); err != nil {
		return nil, fmt.Errorf("failed to claim notification: %w", err)
	}
	if err := q.fs.Delete(ctx, obj.URL()); err != nil {
		return nil, fmt.Errorf("failed to delete pending notification: %w", err)
	}
	return message, nil
}

// DeadCount returns the number of notifications parked in the dead directory.
func (q *Queue[T]) DeadCount(ctx context.Context) (int, error) {
	objects, err := q.fs.List(ctx, q.deadDir)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			count++
		}
	}
	return count, nil
}

func (q *Queue[T]) write(ctx context.Context, dir string, m *Message[T]) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return q.fs.Upload(ctx, path.Join(dir, m.ID+".json"), file.DefaultFileOsMode, bytes.NewBuffer(data))
}

func (q *Queue[T]) remove(ctx context.Context, dir, id string) error {
	location := path.Join(dir, id+".json")
	if exists, _ := q.fs.Exists(ctx, location); exists {
		return q.fs.Delete(ctx, location)
	}
	return nil
}

func (q *Queue[T]) read(ctx context.Context, url string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to read notification %s: %w", url, err)
	}
	var message Message[T]
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification %s: %w", url, err)
	}
	return &message, nil
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
