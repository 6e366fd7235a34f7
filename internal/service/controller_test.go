package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jusabaoth/NutriScan/internal/gemini"
	"github.com/Jusabaoth/NutriScan/internal/store"
	"github.com/Jusabaoth/NutriScan/pkg/model"
)

// blockingGateway holds every call until released.
type blockingGateway struct {
	release chan struct{}
	once    sync.Once
}

func newBlockingGateway() *blockingGateway {
	return &blockingGateway{release: make(chan struct{})}
}

func (g *blockingGateway) Send(ctx context.Context, _ gemini.Request) (string, error) {
	select {
	case <-g.release:
		return validDayJSON, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *blockingGateway) Release() {
	g.once.Do(func() { close(g.release) })
}

func newTestController(gateway Gateway) *Controller {
	a, _ := newTestAssembler(gateway)
	return NewController(a, zap.NewNop())
}

func waitForState(t *testing.T, c *Controller, want model.GenerationState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status().State == want
	}, 5*time.Second, 5*time.Millisecond, "never reached state %s", want)
}

func TestController_IdleBeforeFirstGenerate(t *testing.T) {
	c := newTestController(&scriptedGateway{failures: map[model.DayLabel]int{}})
	assert.Equal(t, model.StateIdle, c.Status().State)
	_, ok := c.Result()
	assert.False(t, ok)
}

func TestController_CompletesAndExposesPlan(t *testing.T) {
	c := newTestController(&scriptedGateway{failures: map[model.DayLabel]int{}})

	require.NoError(t, c.Generate("user-1", testPrefs()))
	waitForState(t, c, model.StateCompleted)

	plan, ok := c.Result()
	require.True(t, ok)
	assert.Len(t, plan.Templates, 6)
	assert.False(t, c.Status().Overload)
}

func TestController_DuplicateGenerateIsDropped(t *testing.T) {
	gateway := newBlockingGateway()
	c := newTestController(gateway)

	require.NoError(t, c.Generate("user-1", testPrefs()))
	assert.ErrorIs(t, c.Generate("user-1", testPrefs()), ErrGenerationInProgress)

	gateway.Release()
	waitForState(t, c, model.StateCompleted)

	// A finished session no longer blocks a new one.
	assert.NoError(t, c.Generate("user-1", testPrefs()))
	waitForState(t, c, model.StateCompleted)
}

func TestController_PreconditionFailureFailsFast(t *testing.T) {
	c := newTestController(&scriptedGateway{failures: map[model.DayLabel]int{}})

	prefs := testPrefs()
	prefs.Profile = model.HealthProfile{}
	require.NoError(t, c.Generate("user-1", prefs))
	waitForState(t, c, model.StateFailed)

	status := c.Status()
	assert.False(t, status.Overload)
	assert.NotEmpty(t, status.Message)
}

func TestController_OverloadClassification(t *testing.T) {
	gateway := &scriptedGateway{
		failures: map[model.DayLabel]int{"A": 2, "B": 2, "C": 2, "D": 2, "E": 2, "F": 2},
		err:      &gemini.TransportError{StatusCode: 429, Retryable: true},
	}
	a, _ := newTestAssembler(gateway)
	// Fallback absorbs per-day failures, so the unrecoverable error has
	// to come from the persistence step.
	a.store = failingStore{}
	c := NewController(a, zap.NewNop())

	require.NoError(t, c.Generate("user-1", testPrefs()))
	waitForState(t, c, model.StateFailed)

	status := c.Status()
	assert.True(t, status.Overload)
	assert.NotEmpty(t, status.Message)
}

func TestController_CancelMarksSessionAndSuppressesCompletion(t *testing.T) {
	gateway := newBlockingGateway()
	c := newTestController(gateway)

	require.NoError(t, c.Generate("user-1", testPrefs()))
	c.Cancel()

	waitForState(t, c, model.StateCancelled)
	status := c.Status()
	assert.True(t, status.Overload)
	assert.NotEmpty(t, status.Message)

	// The in-flight call unblocks afterwards; the terminal state holds.
	gateway.Release()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, model.StateCancelled, c.Status().State)
	_, ok := c.Result()
	assert.False(t, ok)
}

func TestController_CancelWhenIdleIsNoop(t *testing.T) {
	c := newTestController(&scriptedGateway{failures: map[model.DayLabel]int{}})
	c.Cancel()
	assert.Equal(t, model.StateIdle, c.Status().State)
}

func TestController_WatchdogWarnsAndContinueRearms(t *testing.T) {
	gateway := newBlockingGateway()
	c := newTestController(gateway)
	c.watchdogInterval = 30 * time.Millisecond

	require.NoError(t, c.Generate("user-1", testPrefs()))

	require.Eventually(t, func() bool {
		return c.Status().TimeoutWarning
	}, 2*time.Second, 5*time.Millisecond)

	c.Continue()
	assert.False(t, c.Status().TimeoutWarning)

	// The watchdog re-arms and fires again while still generating.
	require.Eventually(t, func() bool {
		return c.Status().TimeoutWarning
	}, 2*time.Second, 5*time.Millisecond)

	gateway.Release()
	waitForState(t, c, model.StateCompleted)
	assert.False(t, c.Status().TimeoutWarning)
}

// failingStore rejects every write.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", store.ErrNotFound
}

func (failingStore) Set(context.Context, string, string) error {
	return &gemini.TransportError{StatusCode: 503, Body: "storage overload", Retryable: true}
}

func (failingStore) Remove(context.Context, string) error { return nil }
