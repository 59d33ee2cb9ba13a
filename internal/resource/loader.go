package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Status is the lifecycle position of a LoadState.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusLoaded    Status = "loaded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// TimeoutGuidance is shown next to the retry/cancel affordance.
const TimeoutGuidance = "The server is taking longer than usual to answer. " +
	"Some analyses can take up to two minutes. Retry now, or cancel and come back later."

// Affordance is offered to the user when a fetch timed out.
type Affordance struct {
	Retry    bool   `json:"retry"`
	Cancel   bool   `json:"cancel"`
	Guidance string `json:"guidance"`
}

// State is a snapshot of one resource's load progress.
type State[T any] struct {
	Resource   string      `json:"resource"`
	Status     Status      `json:"status"`
	Value      T           `json:"value"`
	Class      string      `json:"class,omitempty"`
	Error      string      `json:"error,omitempty"`
	Generation uint64      `json:"generation"`
	Affordance *Affordance `json:"affordance,omitempty"`

	LastError error `json:"-"`
}

// TimedOut reports whether the state is waiting on a retry/cancel decision.
func (s State[T]) TimedOut() bool {
	return s.Status == StatusFailed && s.Affordance != nil
}

// LoaderConfig describes one resource a Loader acquires.
type LoaderConfig[T any] struct {
	Name  string
	Fetch func(ctx context.Context) (T, error)
	// Fallback is displayed before the first load, after a non-timeout
	// failure, and after the user cancels a timed-out load.
	Fallback T
	// Degrade, when set, replaces Fallback after a non-timeout failure,
	// typically with a last-known-good value from a fallback chain.
	Degrade   func(ctx context.Context) T
	Normalize func(T) T
	// Timeout bounds a single fetch. Zero means no bound.
	Timeout    time.Duration
	Classifier *Classifier
	Logger     *slog.Logger
	// OnChange receives every state transition. It runs with the loader
	// locked and must not call back into the loader.
	OnChange func(State[T])
}

// Loader runs the Idle → Loading → Loaded/Failed state machine for one
// (surface, resource) pair.
//
// Every request is tagged with a generation. A result is applied only if its
// generation is still current and the loader has not been unmounted; other
// results are dropped. In-flight requests are never aborted.
type Loader[T any] struct {
	cfg        LoaderConfig[T]
	classifier Classifier
	logger     *slog.Logger

	mu        sync.Mutex
	state     State[T]
	gen       uint64
	unmounted bool

	wg sync.WaitGroup
}

// NewLoader creates an idle loader.
func NewLoader[T any](cfg LoaderConfig[T]) *Loader[T] {
	l := &Loader[T]{
		cfg:        cfg,
		classifier: DefaultClassifier,
		logger:     cfg.Logger,
	}
	if cfg.Classifier != nil {
		l.classifier = *cfg.Classifier
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.state = State[T]{
		Resource: cfg.Name,
		Status:   StatusIdle,
		Value:    cfg.Fallback,
	}
	return l
}

// Name returns the resource name.
func (l *Loader[T]) Name() string { return l.cfg.Name }

// State returns the current snapshot.
func (l *Loader[T]) State() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start issues a fetch unless one is already in flight, a timeout decision
// is pending, the user cancelled, or the loader is unmounted. It reports
// whether a fetch was issued.
func (l *Loader[T]) Start(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unmounted {
		return false
	}
	switch {
	case l.state.Status == StatusLoading, l.state.Status == StatusCancelled, l.state.TimedOut():
		return false
	}
	l.begin(ctx)
	return true
}

// Refresh issues a new fetch even if one is in flight; the older request's
// result will be discarded when it arrives.
func (l *Loader[T]) Refresh(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unmounted {
		return false
	}
	l.begin(ctx)
	return true
}

// Retry re-enters Loading after a timeout.
func (l *Loader[T]) Retry(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unmounted || !l.state.TimedOut() {
		return false
	}
	l.begin(ctx)
	return true
}

// Cancel abandons a timed-out load and reverts to the fallback value.
func (l *Loader[T]) Cancel() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unmounted || !l.state.TimedOut() {
		return false
	}
	l.gen++
	l.state = State[T]{
		Resource:   l.cfg.Name,
		Status:     StatusCancelled,
		Value:      l.cfg.Fallback,
		Generation: l.gen,
	}
	l.notify()
	return true
}

// Unmount detaches the loader from its surface. Pending results are
// discarded and no further transitions are emitted.
func (l *Loader[T]) Unmount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unmounted {
		return
	}
	l.unmounted = true
	l.gen++
}

// Wait blocks until every fetch goroutine has finished.
func (l *Loader[T]) Wait() {
	l.wg.Wait()
}

// begin must be called with l.mu held.
func (l *Loader[T]) begin(ctx context.Context) {
	l.gen++
	gen := l.gen
	l.state.Status = StatusLoading
	l.state.Generation = gen
	l.state.Affordance = nil
	l.state.Class, l.state.Error, l.state.LastError = "", "", nil
	l.notify()

	l.wg.Add(1)
	go l.run(ctx, gen)
}

func (l *Loader[T]) run(ctx context.Context, gen uint64) {
	defer l.wg.Done()

	fctx := ctx
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	v, err := l.fetch(fctx)
	fetchDuration.WithLabelValues(l.cfg.Name).Observe(time.Since(started).Seconds())

	class := ClassOtherError
	fallback := l.cfg.Fallback
	if err != nil {
		class = l.classifier.Classify(err)
		if class == ClassOtherError && l.cfg.Degrade != nil && l.current(gen) {
			fallback = l.degrade(ctx)
		}
	}
	l.complete(gen, v, err, class, fallback)
}

func (l *Loader[T]) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.unmounted && gen == l.gen
}

func (l *Loader[T]) degrade(ctx context.Context) (v T) {
	defer func() {
		if r := recover(); r != nil {
			v = l.cfg.Fallback
		}
	}()
	return l.cfg.Degrade(ctx)
}

func (l *Loader[T]) fetch(ctx context.Context) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch %s panicked: %v", l.cfg.Name, r)
		}
	}()
	if l.cfg.Fetch == nil {
		return v, fmt.Errorf("fetch %s: no source configured", l.cfg.Name)
	}
	return l.cfg.Fetch(ctx)
}

func (l *Loader[T]) complete(gen uint64, v T, err error, class Class, fallback T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unmounted || gen != l.gen {
		staleDiscards.WithLabelValues(l.cfg.Name).Inc()
		l.logger.Debug("loader: discarded stale result",
			slog.String("resource", l.cfg.Name),
			slog.Uint64("generation", gen),
			slog.Uint64("current", l.gen),
			slog.Bool("unmounted", l.unmounted))
		return
	}

	if err == nil {
		if l.cfg.Normalize != nil {
			v = l.cfg.Normalize(v)
		}
		l.state = State[T]{
			Resource:   l.cfg.Name,
			Status:     StatusLoaded,
			Value:      v,
			Generation: gen,
		}
		fetchOutcomes.WithLabelValues(l.cfg.Name, "loaded").Inc()
		l.notify()
		return
	}

	l.state.Status = StatusFailed
	l.state.Class = class.String()
	l.state.Error = err.Error()
	l.state.LastError = err

	if class == ClassTimeout {
		l.state.Affordance = &Affordance{Retry: true, Cancel: true, Guidance: TimeoutGuidance}
		fetchOutcomes.WithLabelValues(l.cfg.Name, "timeout").Inc()
		l.logger.Info("loader: fetch timed out, awaiting user decision",
			slog.String("resource", l.cfg.Name),
			slog.Uint64("generation", gen),
			slog.String("error", err.Error()))
	} else {
		l.state.Value = fallback
		l.state.Affordance = nil
		fetchOutcomes.WithLabelValues(l.cfg.Name, "other_error").Inc()
		l.logger.Warn("loader: fetch failed, using fallback",
			slog.String("resource", l.cfg.Name),
			slog.Uint64("generation", gen),
			slog.String("error", err.Error()))
	}
	l.notify()
}

func (l *Loader[T]) notify() {
	if l.cfg.OnChange != nil {
		l.cfg.OnChange(l.state)
	}
}
