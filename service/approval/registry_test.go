package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/internal/clock"
	qmem "github.com/gatekit/gatekit/service/messaging/memory"
)

func TestRegistry_ResolveAllow(t *testing.T) {
	registry := New()
	ctx := context.Background()

	record, err := registry.Create(ctx, Payload{Label: "politics", RiskLevel: "high"}, time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)
	assert.Equal(t, record.CreatedAtMs+1000, record.ExpiresAtMs)

	pending, err := registry.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	var decision Decision
	var resolved bool
	go func() {
		defer wg.Done()
		decision, resolved, _ = registry.WaitForDecision(ctx, record, time.Second)
	}()

	require.Eventually(t, func() bool {
		return registry.Resolve(ctx, record.ID, DecisionAllow)
	}, time.Second, 5*time.Millisecond)
	wg.Wait()

	assert.True(t, resolved)
	assert.Equal(t, DecisionAllow, decision)

	// resolved request left the pending book but stays inspectable
	pending, err = registry.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	snapshot, ok := registry.Snapshot(ctx, record.ID)
	require.True(t, ok)
	assert.Equal(t, DecisionAllow, snapshot.Decision)
	assert.NotZero(t, snapshot.ResolvedAtMs)

	// a second verdict for the same ID is a no-op
	assert.False(t, registry.Resolve(ctx, record.ID, DecisionBlock))
}

func TestRegistry_Timeout(t *testing.T) {
	registry := New()
	ctx := context.Background()

	record, err := registry.Create(ctx, Payload{Label: "unethical"}, 20*time.Millisecond)
	require.NoError(t, err)

	decision, resolved, err := registry.WaitForDecision(ctx, record, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, resolved)
	assert.Empty(t, decision)

	// a verdict arriving after the timeout is stale
	assert.False(t, registry.Resolve(ctx, record.ID, DecisionAllow))
	_, ok := registry.Snapshot(ctx, record.ID)
	assert.False(t, ok)
}

func TestRegistry_ContextCancellation(t *testing.T) {
	registry := New()
	record, err := registry.Create(context.Background(), Payload{}, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, resolved, err := registry.WaitForDecision(ctx, record, time.Minute)
	assert.False(t, resolved)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_UnknownID(t *testing.T) {
	registry := New()
	assert.False(t, registry.Resolve(context.Background(), "no-such-id", DecisionBlock))
}

func TestRegistry_IndependentWaiters(t *testing.T) {
	registry := New()
	ctx := context.Background()

	first, err := registry.Create(ctx, Payload{ToolName: "exec"}, time.Second)
	require.NoError(t, err)
	second, err := registry.Create(ctx, Payload{ToolName: "fetch"}, time.Second)
	require.NoError(t, err)

	type outcome struct {
		decision Decision
		resolved bool
	}
	outcomes := make(chan outcome, 2)
	wait := func(record *Record) {
		decision, resolved, _ := registry.WaitForDecision(ctx, record, time.Second)
		outcomes <- outcome{decision, resolved}
	}
	go wait(first)

	require.Eventually(t, func() bool {
		return registry.Resolve(ctx, first.ID, DecisionBlock)
	}, time.Second, 5*time.Millisecond)

	got := <-outcomes
	assert.True(t, got.resolved)
	assert.Equal(t, DecisionBlock, got.decision)

	// resolving the first never touched the second
	pending, err := registry.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestRegistry_Events(t *testing.T) {
	registry := New()
	ctx := context.Background()

	record, err := registry.Create(ctx, Payload{Label: "violence"}, time.Second)
	require.NoError(t, err)
	go func() {
		_, _, _ = registry.WaitForDecision(ctx, record, time.Second)
	}()
	require.Eventually(t, func() bool {
		return registry.Resolve(ctx, record.ID, DecisionAllow)
	}, time.Second, 5*time.Millisecond)

	consumeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	created, err := registry.Queue().Consume(consumeCtx)
	require.NoError(t, err)
	assert.Equal(t, TopicRequestCreated, created.T().Topic)
	assert.Equal(t, record.ID, created.T().Record.ID)
	require.NoError(t, created.Ack())

	decided, err := registry.Queue().Consume(consumeCtx)
	require.NoError(t, err)
	assert.Equal(t, TopicDecisionCreated, decided.T().Topic)
	assert.Equal(t, DecisionAllow, decided.T().Record.Decision)
	require.NoError(t, decided.Ack())
}

func TestParseDecision(t *testing.T) {
	decision, ok := ParseDecision("allow")
	assert.True(t, ok)
	assert.Equal(t, DecisionAllow, decision)
	_, ok = ParseDecision("maybe")
	assert.False(t, ok)
}

func TestResolver_FanOut(t *testing.T) {
	ctx := context.Background()
	chatLevel := New()
	toolLevel := New()
	resolver := NewResolver(chatLevel, toolLevel)

	record, err := toolLevel.Create(ctx, Payload{ToolName: "exec"}, time.Second)
	require.NoError(t, err)
	go func() {
		_, _, _ = toolLevel.WaitForDecision(ctx, record, time.Second)
	}()

	require.Eventually(t, func() bool {
		return resolver.Resolve(ctx, record.ID, DecisionAllow)
	}, time.Second, 5*time.Millisecond)
	assert.False(t, resolver.Resolve(ctx, record.ID, DecisionAllow))

	pending, err := resolver.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRegistry_EventOverflowDoesNotBlock(t *testing.T) {
	config := qmem.DefaultConfig()
	config.QueueBuffer = 2
	registry := New(WithQueue(qmem.NewQueue[Event](config)))
	ctx := context.Background()

	// nobody consumes the event queue; creation must still return promptly
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			_, err := registry.Create(ctx, Payload{ToolName: "exec"}, time.Second)
			assert.NoError(t, err)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Create blocked on a full event queue")
	}

	pending, err := registry.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 10)
}

func TestRegistry_ResolveAfterTimerWinsConsistently(t *testing.T) {
	registry := New()
	ctx := context.Background()

	record, err := registry.Create(ctx, Payload{ToolName: "exec"}, time.Second)
	require.NoError(t, err)

	// emulate the interleaving where the wait timer has fired but Resolve
	// claims the waiter before the teardown runs
	waiter := make(chan Decision, 1)
	registry.mu.Lock()
	registry.waiters[record.ID] = waiter
	registry.mu.Unlock()

	require.True(t, registry.Resolve(ctx, record.ID, DecisionAllow))

	decision, resolved := registry.abandon(ctx, record, waiter, TopicRequestExpired)
	assert.True(t, resolved)
	assert.Equal(t, DecisionAllow, decision)

	// the record moved to the decision book, not the expired path
	snapshot, ok := registry.Snapshot(ctx, record.ID)
	require.True(t, ok)
	assert.Equal(t, DecisionAllow, snapshot.Decision)
}

func TestRegistry_ExpiredUnwaitedRecordPurged(t *testing.T) {
	now := time.Now()
	clock.NowFunc = func() time.Time { return now }
	defer func() { clock.NowFunc = time.Now }()

	registry := New()
	ctx := context.Background()

	record, err := registry.Create(ctx, Payload{ToolName: "exec"}, time.Second)
	require.NoError(t, err)

	_, ok := registry.Snapshot(ctx, record.ID)
	assert.True(t, ok)

	now = now.Add(2 * time.Second)

	pending, err := registry.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, ok = registry.Snapshot(ctx, record.ID)
	assert.False(t, ok)

	// the requests book no longer holds the record
	stored, err := registry.requests.Load(ctx, record.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
