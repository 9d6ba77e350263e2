package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/inboxreply/internal/instrumentation"
	"github.com/teemow/inboxreply/internal/ledger"
	"github.com/teemow/inboxreply/internal/logging"
)

// State is a state of the poll cycle.
type State string

// Scheduler states. StateIdle is only reported before the first cycle and
// StateStopped only after Run returned.
const (
	StateIdle     State = "idle"
	StateChecking State = "checking"
	StateDrafting State = "drafting"
	StateWaiting  State = "waiting"
	StateStopped  State = "stopped"
)

// DefaultInterval is the pause between two cycles.
const DefaultInterval = 30 * time.Second

// Observer is notified of every state transition.
type Observer func(from, to State)

// SleepFunc pauses for d. It must return early once ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration)

// Sleep is the wall-clock SleepFunc.
func Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// CycleSummary describes one completed cycle.
type CycleSummary struct {
	ID             string        `json:"id"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Outcome        string        `json:"outcome"`
	Fetched        int           `json:"fetched"`
	Admitted       int           `json:"admitted"`
	ActionRequired int           `json:"action_required"`
	Sent           int           `json:"sent"`
	Failed         int           `json:"failed"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State      State         `json:"state"`
	Cycles     int           `json:"cycles"`
	LedgerSize int           `json:"ledger_size"`
	Interval   time.Duration `json:"interval"`
	Stopping   bool          `json:"stopping"`
	LastCycle  *CycleSummary `json:"last_cycle,omitempty"`
}

// Options configures a Scheduler.
type Options struct {
	Ingester    *Ingester
	Rules       Rules
	Coordinator *Coordinator
	Ledger      ledger.Ledger

	// Interval is the Waiting delay; zero means DefaultInterval.
	Interval time.Duration
	Sleep    SleepFunc
	Observer Observer

	Metrics *instrumentation.Metrics
	Logger  logging.Logger
}

// Scheduler runs the Checking, Drafting and Waiting states in a loop on a
// single goroutine.
type Scheduler struct {
	ingester    *Ingester
	rules       Rules
	coordinator *Coordinator
	ledger      ledger.Ledger
	interval    time.Duration
	sleep       SleepFunc
	observer    Observer
	metrics     *instrumentation.Metrics
	logger      logging.Logger

	mu        sync.RWMutex
	state     State
	cycles    int
	last      *CycleSummary
	lastState CycleState
	stop      context.Context
}

// NewScheduler validates opts and creates a Scheduler.
func NewScheduler(opts Options) (*Scheduler, error) {
	var errs []error
	if opts.Ingester == nil {
		errs = append(errs, errors.New("ingester is required"))
	}
	if opts.Coordinator == nil {
		errs = append(errs, errors.New("coordinator is required"))
	}
	if opts.Ledger == nil {
		errs = append(errs, errors.New("ledger is required"))
	}
	if opts.Interval < 0 {
		errs = append(errs, errors.New("interval must not be negative"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}

	return &Scheduler{
		ingester:    opts.Ingester,
		rules:       opts.Rules,
		coordinator: opts.Coordinator,
		ledger:      opts.Ledger,
		interval:    opts.Interval,
		sleep:       opts.Sleep,
		observer:    opts.Observer,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		state:       StateIdle,
	}, nil
}

// Run loops until ctx is done. ctx is only consulted after the Waiting
// state: the first cycle always runs and a cycle in progress always
// finishes, with its mailbox and drafting calls detached from ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	work := context.WithoutCancel(ctx)

	s.mu.Lock()
	s.stop = ctx
	s.mu.Unlock()

	for {
		s.RunCycle(work)

		s.sleep(ctx, s.interval)
		if ctx.Err() != nil {
			s.transition(StateStopped)
			s.logger.Info("stop requested, assistant loop finished", logging.Err(context.Cause(ctx)))
			return nil
		}
	}
}

// RunCycle performs one Checking state, the Drafting state if mail was
// admitted, and enters Waiting. It does not sleep.
func (s *Scheduler) RunCycle(ctx context.Context) CycleSummary {
	sum := CycleSummary{ID: uuid.NewString(), StartedAt: time.Now()}
	logger := logging.With(s.logger, logging.CycleID(sum.ID))

	s.transition(StateChecking)
	cs := CycleState{ActionRequired: map[string]string{}}

	checkCtx, span := instrumentation.StartStageSpan(ctx, "check",
		instrumentation.NewSpanAttributeBuilder().WithCycle(sum.ID).Build()...)
	batch := s.ingester.ingest(checkCtx, logger)
	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithCount(len(batch.Emails)).Build()...)
	instrumentation.EndSpan(span, nil)

	cs.Pending = batch.Emails
	sum.Fetched = batch.Fetched
	sum.Admitted = len(batch.Emails)

	switch {
	case batch.Degraded:
		sum.Outcome = instrumentation.CycleDegraded
	case len(cs.Pending) == 0:
		sum.Outcome = instrumentation.CycleIdle
	default:
		sum.Outcome = instrumentation.CycleDrafted
		s.transition(StateDrafting)
		s.draft(ctx, sum.ID, &cs, &sum, logger)
	}

	s.transition(StateWaiting)

	sum.Duration = time.Since(sum.StartedAt)
	s.metrics.RecordCycle(ctx, sum.Outcome, sum.Duration)
	s.metrics.RecordLedgerSize(ctx, s.ledger.Len())

	s.mu.Lock()
	s.cycles++
	s.last = &sum
	s.lastState = cs
	s.mu.Unlock()

	logger.Info("cycle complete",
		"outcome", sum.Outcome,
		"fetched", sum.Fetched,
		"admitted", sum.Admitted,
		"action_required", sum.ActionRequired,
		"sent", sum.Sent,
		"failed", sum.Failed,
		logging.KeyDuration, sum.Duration,
	)
	return sum
}

func (s *Scheduler) draft(ctx context.Context, cycleID string, cs *CycleState, sum *CycleSummary, logger logging.Logger) {
	ctx, span := instrumentation.StartStageSpan(ctx, "draft",
		instrumentation.NewSpanAttributeBuilder().WithCycle(cycleID).WithCount(len(cs.Pending)).Build()...)
	defer instrumentation.EndSpan(span, nil)

	for _, e := range cs.Pending {
		s.metrics.RecordClassified(ctx, s.rules.Classify(e))
	}
	actionable := s.rules.Pipeline(cs.Pending)
	sum.ActionRequired = len(actionable)
	if len(actionable) == 0 {
		logger.Debug("no action-required emails in batch")
		return
	}

	res := s.coordinator.process(ctx, actionable, logger)
	for id, draft := range res.Drafts {
		cs.ActionRequired[id] = draft
	}
	sum.Sent = res.Sent
	sum.Failed = res.Failed
}

func (s *Scheduler) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	s.logger.Debug("state transition", "from", string(from), logging.State(string(to)))
	if s.observer != nil {
		s.observer(from, to)
	}
}

// Status returns a snapshot for the control surface. It is safe to call
// from any goroutine.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:      s.state,
		Cycles:     s.cycles,
		LedgerSize: s.ledger.Len(),
		Interval:   s.interval,
		Stopping:   s.stop != nil && s.stop.Err() != nil,
	}
	if s.last != nil {
		last := *s.last
		st.LastCycle = &last
	}
	return st
}

// LastCycleState returns the CycleState of the most recent cycle.
func (s *Scheduler) LastCycleState() CycleState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs := CycleState{
		Pending:        append([]EmailRecord(nil), s.lastState.Pending...),
		ActionRequired: make(map[string]string, len(s.lastState.ActionRequired)),
	}
	for k, v := range s.lastState.ActionRequired {
		cs.ActionRequired[k] = v
	}
	return cs
}
