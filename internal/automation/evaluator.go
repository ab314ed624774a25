package automation

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Tiliavir/showrun/internal/logger"
	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/playback"
)

// DefaultSendTimeout bounds a single output dispatch.
const DefaultSendTimeout = 5 * time.Second

// Sender delivers a rendered payload. Implementations must honour ctx.
type Sender interface {
	Send(ctx context.Context, p Payload) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, p Payload) error

func (f SenderFunc) Send(ctx context.Context, p Payload) error { return f(ctx, p) }

// Evaluator matches lifecycle moments against the configured triggers and
// dispatches the outputs of passing automations. Dispatch never blocks the
// caller; each output runs in its own goroutine and failures are only
// logged.
type Evaluator struct {
	mu       sync.RWMutex
	settings Settings
	senders  map[OutputType]Sender
	log      logger.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithSender registers the sender for an output type.
func WithSender(t OutputType, s Sender) Option {
	return func(e *Evaluator) { e.senders[t] = s }
}

// WithTimeout bounds each dispatch.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEvaluator returns an evaluator for settings.
func NewEvaluator(settings Settings, log logger.Logger, opts ...Option) *Evaluator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	e := &Evaluator{
		settings: settings,
		senders:  map[OutputType]Sender{},
		log:      log,
		timeout:  DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds or replaces the sender for t.
func (e *Evaluator) Register(t OutputType, s Sender) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.senders[t] = s
}

// Settings returns the current settings.
func (e *Evaluator) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// SetSettings replaces the settings. Callers validate first.
func (e *Evaluator) SetSettings(s Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s
}

// Trigger evaluates key against snap and returns how many outputs were
// dispatched.
func (e *Evaluator) Trigger(key model.Lifecycle, snap playback.Snapshot) int {
	e.mu.RLock()
	settings := e.settings
	senders := maps.Clone(e.senders)
	e.mu.RUnlock()

	if !settings.Enabled {
		return 0
	}
	triggers := matching(key, settings.Triggers, snap.EventNow)
	if len(triggers) == 0 {
		return 0
	}

	var tree any
	dispatched := 0
	for _, t := range triggers {
		a, ok := settings.Automations[t.AutomationID]
		if !ok {
			e.log.Warning("automation: trigger %q references unknown automation %q", t.ID, t.AutomationID)
			continue
		}
		if len(a.Outputs) == 0 {
			continue
		}
		if tree == nil {
			var err error
			if tree, err = stateTree(snap); err != nil {
				e.log.Error("automation: %v", err)
				return dispatched
			}
		}
		if !a.Matches(tree) {
			continue
		}
		for _, o := range a.Outputs {
			sender, ok := senders[o.Type]
			if !ok {
				e.log.Warning("automation %s: no sender for %s output", t.AutomationID, o.Type)
				continue
			}
			e.dispatch(sender, RenderOutput(t.AutomationID, o, tree))
			dispatched++
		}
	}
	return dispatched
}

// matching collects project triggers and the loaded event's own triggers
// for key. An automation listed twice fires once.
func matching(key model.Lifecycle, project []model.Trigger, ev *model.Event) []model.Trigger {
	var out []model.Trigger
	seen := map[string]bool{}
	add := func(ts []model.Trigger) {
		for _, t := range ts {
			if t.Trigger != key || seen[t.AutomationID] {
				continue
			}
			seen[t.AutomationID] = true
			out = append(out, t)
		}
	}
	add(project)
	if ev != nil {
		add(ev.Triggers)
	}
	return slices.Clip(out)
}

func (e *Evaluator) dispatch(s Sender, p Payload) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if err := s.Send(ctx, p); err != nil {
			e.log.Error("automation %s: %s output failed: %v", p.AutomationID, p.Type, err)
		}
	}()
}

// Wait blocks until every dispatched output has returned.
func (e *Evaluator) Wait() {
	e.wg.Wait()
}
