package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Jusabaoth/NutriScan/internal/targets"
	"github.com/Jusabaoth/NutriScan/pkg/model"
)

// GenerationSession is the only mutable shared state in the core. It is
// created fresh on every Idle to Generating transition, mutated only by
// the controller, and read by the assembler to check cancellation.
type GenerationSession struct {
	mu sync.Mutex

	state          model.GenerationState
	cancelled      bool
	callCount      int
	timeoutWarning bool
	startedAt      time.Time
	message        string
	overload       bool
	plan           *model.MealPlan

	cancel   context.CancelFunc
	watchdog *time.Timer
}

// IsCancelled reports the cooperative cancellation flag. Checked by the
// assembler at every suspension point.
func (s *GenerationSession) IsCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// NextCall increments the monotonic call counter, used only for log
// correlation.
func (s *GenerationSession) NextCall() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callCount++
	return s.callCount
}

// Snapshot is the client-visible view of a generation.
type Snapshot struct {
	State          model.GenerationState `json:"state"`
	TimeoutWarning bool                  `json:"timeout_warning"`
	Message        string                `json:"message,omitempty"`
	Overload       bool                  `json:"overload"`
	Calls          int                   `json:"calls"`
	StartedAt      time.Time             `json:"started_at,omitzero"`
}

// Controller owns the generation state machine:
// Idle -> Generating -> Completed | Cancelled | Failed. A duplicate
// generate request while one is in flight is dropped, not queued, and
// every invocation reaches exactly one terminal state.
type Controller struct {
	mu      sync.Mutex
	session *GenerationSession

	assembler        *Assembler
	logger           *zap.Logger
	watchdogInterval time.Duration
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithWatchdogInterval sets how long a generation may run before the user
// is asked to cancel or keep waiting.
func WithWatchdogInterval(d time.Duration) ControllerOption {
	return func(c *Controller) { c.watchdogInterval = d }
}

func NewController(assembler *Assembler, logger *zap.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		assembler:        assembler,
		logger:           logger,
		watchdogInterval: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate starts a new asynchronous generation for the user. Returns
// ErrGenerationInProgress when a session is already running.
func (c *Controller) Generate(userID string, prefs model.Preferences) error {
	c.mu.Lock()
	if c.session != nil && c.currentState() == model.StateGenerating {
		c.mu.Unlock()
		return ErrGenerationInProgress
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &GenerationSession{
		state:     model.StateGenerating,
		startedAt: time.Now(),
		cancel:    cancel,
	}
	c.session = session
	c.mu.Unlock()

	c.armWatchdog(session)
	go c.run(ctx, session, userID, prefs)
	return nil
}

func (c *Controller) run(ctx context.Context, session *GenerationSession, userID string, prefs model.Preferences) {
	defer session.cancel()

	nutritionTargets, err := targets.Compute(prefs.Profile, prefs.DietGoal)
	if err != nil {
		c.fail(session, err)
		return
	}

	plan, err := c.assembler.Generate(ctx, session, userID, prefs, nutritionTargets)
	switch {
	case err == nil:
		c.complete(session, plan)
	case errors.Is(err, ErrCancelled) || session.IsCancelled():
		c.markCancelled(session)
	default:
		c.fail(session, err)
	}
}

func (c *Controller) armWatchdog(session *GenerationSession) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.watchdog != nil {
		session.watchdog.Stop()
	}
	session.timeoutWarning = false
	session.watchdog = time.AfterFunc(c.watchdogInterval, func() {
		session.mu.Lock()
		defer session.mu.Unlock()
		if session.state == model.StateGenerating {
			session.timeoutWarning = true
		}
	})
}

// Continue acknowledges a timeout warning and re-arms the watchdog for
// another interval. The user may keep choosing to wait indefinitely.
func (c *Controller) Continue() {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return
	}

	session.mu.Lock()
	generating := session.state == model.StateGenerating
	session.mu.Unlock()
	if generating {
		c.armWatchdog(session)
	}
}

// Cancel flags the running session as cancelled. In-flight work stops at
// its next suspension point and no further fallback is substituted.
func (c *Controller) Cancel() {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return
	}

	session.mu.Lock()
	if session.state != model.StateGenerating {
		session.mu.Unlock()
		return
	}
	session.cancelled = true
	cancel := session.cancel
	session.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.markCancelled(session)
	c.logger.Info("generation cancelled by user")
}

// Status reports the current session, or an idle snapshot when none has
// ever run.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return Snapshot{State: model.StateIdle}
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return Snapshot{
		State:          session.state,
		TimeoutWarning: session.timeoutWarning,
		Message:        session.message,
		Overload:       session.overload,
		Calls:          session.callCount,
		StartedAt:      session.startedAt,
	}
}

// Result returns the completed plan of the current session, if any.
func (c *Controller) Result() (*model.MealPlan, bool) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil, false
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state != model.StateCompleted || session.plan == nil {
		return nil, false
	}
	return session.plan, true
}

func (c *Controller) currentState() model.GenerationState {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	return c.session.state
}

func (c *Controller) complete(session *GenerationSession, plan *model.MealPlan) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state != model.StateGenerating {
		return
	}
	session.state = model.StateCompleted
	session.timeoutWarning = false
	session.plan = plan
	session.message = "Meal plan berhasil dibuat"
	stopWatchdog(session)
	c.logger.Info("generation completed", zap.Int("calls", session.callCount))
}

func (c *Controller) markCancelled(session *GenerationSession) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state != model.StateGenerating {
		return
	}
	session.state = model.StateCancelled
	session.timeoutWarning = false
	session.overload = true
	session.message = "Server sedang sibuk. Silakan coba lagi nanti."
	stopWatchdog(session)
}

func (c *Controller) fail(session *GenerationSession, err error) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state != model.StateGenerating {
		return
	}
	session.state = model.StateFailed
	session.timeoutWarning = false
	session.overload = IsOverload(err)
	if session.overload {
		session.message = "Server AI sedang kelebihan beban. Silakan coba beberapa saat lagi."
	} else {
		session.message = err.Error()
	}
	stopWatchdog(session)
	c.logger.Error("generation failed", zap.Error(err), zap.Bool("overload", session.overload))
}

// stopWatchdog must be called with session.mu held.
func stopWatchdog(session *GenerationSession) {
	if session.watchdog != nil {
		session.watchdog.Stop()
		session.watchdog = nil
	}
}
