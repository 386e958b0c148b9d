package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trogers1052/holdings-service/internal/models"
	"github.com/trogers1052/holdings-service/internal/presentation"
)

// LoadErrorMessage is shown when no holdings could be loaded from any source.
const LoadErrorMessage = "Failed to load holdings"

const (
	defaultPersistTimeout = 30 * time.Second
	notifyTimeout         = 5 * time.Second
)

// Outcome is how a load sequence settled
type Outcome int

const (
	// OutcomeSuccess means the remote source returned holdings.
	OutcomeSuccess Outcome = iota + 1
	// OutcomeSnapshot means the remote fetch failed and the cached snapshot was shown.
	OutcomeSnapshot
	// OutcomeEmpty means the remote source returned no holdings.
	OutcomeEmpty
	// OutcomeFailure means the remote fetch failed with nothing cached.
	OutcomeFailure
	// OutcomeSuperseded means a newer trigger (or Close) took over before the sequence settled.
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSnapshot:
		return "snapshot"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailure:
		return "failure"
	case OutcomeSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// DataSource is where holdings come from
type DataSource interface {
	FetchLocal(ctx context.Context) ([]models.Holding, error)
	FetchRemote(ctx context.Context) ([]models.Holding, error)
	CachedSnapshot(ctx context.Context) []models.Holding
	Persist(ctx context.Context, holdings []models.Holding) error
}

// Notifier is told about every settled load
type Notifier interface {
	PublishLoadEvent(ctx context.Context, event models.LoadEvent) error
}

// Recorder receives load metrics
type Recorder interface {
	ObserveLoad(outcome string, elapsed time.Duration)
	PersistFailed()
	SetRows(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLoad(string, time.Duration) {}
func (nopRecorder) PersistFailed()                    {}
func (nopRecorder) SetRows(int)                       {}

// Option configures an Orchestrator
type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPersistTimeout bounds each background write to the local store.
func WithPersistTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.persistTimeout = d
		}
	}
}

// Orchestrator drives the load sequence (local store, then remote, then the
// cached snapshot as a fallback) and publishes the result to a presentation
// store.
//
// Every trigger starts a new sequence. Starting one cancels the sequence in
// flight and bumps a generation counter; anything a stale sequence tries to
// publish afterwards is dropped.
type Orchestrator struct {
	source         DataSource
	store          *presentation.Store
	notifier       Notifier
	recorder       Recorder
	logger         logrus.FieldLogger
	persistTimeout time.Duration

	// mu guards the fields below and is held while changing the store so a
	// newer generation can never be overwritten by an older one
	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	closed     bool

	sequences  sync.WaitGroup
	background sync.WaitGroup
}

// New creates an orchestrator publishing into a fresh presentation store.
func New(source DataSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:         source,
		store:          presentation.NewStore(),
		recorder:       nopRecorder{},
		logger:         logrus.StandardLogger(),
		persistTimeout: defaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithField("component", "orchestrator")
	return o
}

// Store returns the presentation store for subscription.
func (o *Orchestrator) Store() *presentation.Store {
	return o.store
}

// State returns the current presentation state.
func (o *Orchestrator) State() presentation.State {
	return o.store.State()
}

// RowsErr returns the error the rows stream failed with on the last load, if any.
func (o *Orchestrator) RowsErr() error {
	return o.store.RowsErr()
}

// NotifyViewReady starts a load sequence in the background.
func (o *Orchestrator) NotifyViewReady() {
	ctx, gen, ok := o.begin(context.Background())
	if !ok {
		return
	}
	go func() {
		defer o.sequences.Done()
		o.run(ctx, gen)
	}()
}

// Load runs a load sequence and returns how it settled. It returns
// OutcomeSuperseded right away once the orchestrator is closed.
func (o *Orchestrator) Load(ctx context.Context) Outcome {
	seqCtx, gen, ok := o.begin(ctx)
	if !ok {
		return OutcomeSuperseded
	}
	defer o.sequences.Done()
	return o.run(seqCtx, gen)
}

// Wait blocks until in-flight sequences and background writes finish.
func (o *Orchestrator) Wait() {
	o.sequences.Wait()
	o.background.Wait()
}

// Close cancels the sequence in flight, stops accepting triggers and waits.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		o.generation++
		if o.cancel != nil {
			o.cancel()
		}
	}
	o.mu.Unlock()
	o.Wait()
}

func (o *Orchestrator) begin(parent context.Context) (context.Context, uint64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, 0, false
	}
	if o.cancel != nil {
		o.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	o.cancel = cancel
	o.generation++
	o.sequences.Add(1)
	return ctx, o.generation, true
}

// publish runs fn unless gen has been superseded. Listeners see fn's changes
// only after o.mu is released, so they are free to trigger another load.
func (o *Orchestrator) publish(gen uint64, fn func()) bool {
	ok := false
	o.store.Batch(func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if gen != o.generation {
			return
		}
		fn()
		ok = true
	})
	return ok
}

func (o *Orchestrator) current(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen == o.generation
}

func (o *Orchestrator) run(ctx context.Context, gen uint64) Outcome {
	start := time.Now()
	logger := o.logger.WithField("generation", gen)

	if !o.publish(gen, func() {
		o.store.ResetRows()
		o.store.SetLoading(true)
	}) {
		return o.superseded(logger, start)
	}

	local, err := o.source.FetchLocal(ctx)
	if err != nil {
		logger.WithError(err).Warn("Local holdings unavailable, continuing with remote")
		local = nil
	}
	if len(local) > 0 {
		if !o.show(gen, logger, local) {
			return o.superseded(logger, start)
		}
	}
	if !o.current(gen) {
		return o.superseded(logger, start)
	}

	var (
		outcome   Outcome
		count     int
		remoteErr error
	)

	remote, err := o.source.FetchRemote(ctx)
	if !o.current(gen) {
		return o.superseded(logger, start)
	}

	switch {
	case err == nil && len(remote) > 0:
		outcome, count = OutcomeSuccess, len(remote)
		if !o.show(gen, logger, remote) {
			return o.superseded(logger, start)
		}
		o.persist(remote)

	case err == nil:
		outcome = OutcomeEmpty
		logger.Warn("Remote returned no holdings")
		if !o.publish(gen, func() {
			o.store.SetHoldings(nil)
			o.store.SetError(LoadErrorMessage)
		}) {
			return o.superseded(logger, start)
		}
		o.persist([]models.Holding{})

	default:
		remoteErr = err
		logger.WithError(err).Warn("Remote fetch failed, falling back to snapshot")

		snapshot := o.source.CachedSnapshot(ctx)
		if len(snapshot) > 0 {
			outcome, count = OutcomeSnapshot, len(snapshot)
			if !o.show(gen, logger, snapshot) {
				return o.superseded(logger, start)
			}
		} else {
			outcome = OutcomeFailure
			if !o.publish(gen, func() {
				o.store.SetHoldings(nil)
				o.store.FailRows(err)
				o.store.SetError(LoadErrorMessage)
			}) {
				return o.superseded(logger, start)
			}
		}
	}

	if !o.publish(gen, func() { o.store.SetLoading(false) }) {
		return o.superseded(logger, start)
	}

	o.settle(logger, outcome, count, remoteErr, time.Since(start))
	return outcome
}

// show publishes holdings as rows and summary and clears any error.
func (o *Orchestrator) show(gen uint64, logger logrus.FieldLogger, holdings []models.Holding) bool {
	sorted := presentation.SortHoldings(holdings)
	var summary *presentation.Summary
	ok := o.publish(gen, func() {
		o.store.SetHoldings(sorted)
		o.store.ClearError()
		summary = o.store.State().Summary
	})
	if ok && summary != nil && !summary.PercentageAvailable {
		logger.WithField("holdings", len(sorted)).Warn("Investment total is zero, percentage unavailable")
	}
	return ok
}

func (o *Orchestrator) superseded(logger logrus.FieldLogger, start time.Time) Outcome {
	logger.Debug("Load sequence superseded")
	o.recorder.ObserveLoad(OutcomeSuperseded.String(), time.Since(start))
	return OutcomeSuperseded
}

func (o *Orchestrator) settle(logger logrus.FieldLogger, outcome Outcome, count int, cause error, elapsed time.Duration) {
	o.recorder.ObserveLoad(outcome.String(), elapsed)
	o.recorder.SetRows(count)

	logger.WithFields(logrus.Fields{
		"outcome":  outcome.String(),
		"holdings": count,
		"elapsed":  elapsed,
	}).Info("Holdings load settled")

	if o.notifier == nil {
		return
	}

	event := models.LoadEvent{
		EventType:     models.EventTypeHoldingsLoaded,
		Outcome:       outcome.String(),
		HoldingsCount: count,
		Timestamp:     time.Now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := o.notifier.PublishLoadEvent(ctx, event); err != nil {
			logger.WithError(err).Warn("Failed to publish load event")
		}
	}()
}

// persist writes holdings to the local store in the background. Failures are
// logged only; the view has already been updated.
func (o *Orchestrator) persist(holdings []models.Holding) {
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.persistTimeout)
		defer cancel()
		if err := o.source.Persist(ctx, holdings); err != nil {
			o.recorder.PersistFailed()
			o.logger.WithError(err).WithField("holdings", len(holdings)).Error("Failed to persist holdings")
		}
	}()
}
