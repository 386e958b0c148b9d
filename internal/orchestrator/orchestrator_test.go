package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/holdings-service/internal/logging"
	"github.com/trogers1052/holdings-service/internal/models"
	"github.com/trogers1052/holdings-service/internal/presentation"
)

func holding(t *testing.T, symbol string, qty int64, ltp, avg, close string) models.Holding {
	t.Helper()
	h, err := models.NewHolding(symbol, &qty,
		decimal.NewNullDecimal(decimal.RequireFromString(ltp)),
		decimal.NewNullDecimal(decimal.RequireFromString(avg)),
		decimal.NewNullDecimal(decimal.RequireFromString(close)),
	)
	require.NoError(t, err)
	return h
}

func btcAda(t *testing.T) []models.Holding {
	return []models.Holding{
		holding(t, "BTC", 2, "10", "5", "9"),
		holding(t, "ADA", 3, "2", "3", "2"),
	}
}

type fakeSource struct {
	mu sync.Mutex

	local     []models.Holding
	localErr  error
	remote    []models.Holding
	remoteErr error
	snapshot  []models.Holding

	// remoteGate, when set, blocks FetchRemote until it is closed or ctx ends
	remoteGate chan struct{}
	// remoteStarted is signalled when FetchRemote is entered
	remoteStarted chan struct{}

	persistErr   error
	persisted    [][]models.Holding
	persistCalls int
}

func (f *fakeSource) FetchLocal(_ context.Context) ([]models.Holding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.local, f.localErr
}

func (f *fakeSource) FetchRemote(ctx context.Context) ([]models.Holding, error) {
	f.mu.Lock()
	gate, started := f.remoteGate, f.remoteStarted
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remote, f.remoteErr
}

func (f *fakeSource) CachedSnapshot(_ context.Context) []models.Holding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeSource) Persist(_ context.Context, holdings []models.Holding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persistCalls++
	f.persisted = append(f.persisted, holdings)
	return f.persistErr
}

func (f *fakeSource) PersistCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persistCalls
}

type fakeRecorder struct {
	mu              sync.Mutex
	outcomes        []string
	persistFailures int
	rows            int
}

func (r *fakeRecorder) ObserveLoad(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *fakeRecorder) PersistFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistFailures++
}

func (r *fakeRecorder) SetRows(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = n
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []models.LoadEvent
	err    error
}

func (n *fakeNotifier) PublishLoadEvent(_ context.Context, event models.LoadEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

type eventLog struct {
	mu     sync.Mutex
	events []presentation.Event
}

func (l *eventLog) listen(e presentation.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) loading() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []bool
	for _, e := range l.events {
		if e.Kind == presentation.EventLoading {
			out = append(out, e.State.IsLoading)
		}
	}
	return out
}

func (l *eventLog) count(kind presentation.EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func newTestOrchestrator(src *fakeSource, opts ...Option) (*Orchestrator, *eventLog) {
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	o := New(src, opts...)
	log := &eventLog{}
	o.Store().Subscribe(log.listen)
	return o, log
}

func rowSymbols(st presentation.State) []string {
	out := make([]string, 0, len(st.Rows))
	for _, r := range st.Rows {
		out = append(out, r.Symbol)
	}
	return out
}

func TestLoad_RemoteSuccess(t *testing.T) {
	src := &fakeSource{remote: btcAda(t)}
	rec := &fakeRecorder{}
	o, log := newTestOrchestrator(src, WithRecorder(rec))

	outcome := o.Load(context.Background())
	o.Wait()

	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, []bool{true, false}, log.loading())

	st := o.State()
	assert.Equal(t, []string{"ADA", "BTC"}, rowSymbols(st))
	require.NotNil(t, st.Summary)
	assert.True(t, decimal.NewFromInt(26).Equal(st.Summary.CurrentValue))
	assert.True(t, decimal.NewFromInt(19).Equal(st.Summary.Investment))
	assert.True(t, decimal.NewFromInt(7).Equal(st.Summary.TotalPnL))
	assert.True(t, st.Summary.TotalPnLIsPositive)
	assert.True(t, decimal.NewFromInt(-2).Equal(st.Summary.TodaysPnL))
	assert.False(t, st.Summary.TodaysPnLIsPositive)
	assert.Equal(t, " (36.84%)", st.Summary.PercentageText)
	assert.False(t, st.ShowError())
	assert.False(t, st.IsLoading)
	assert.NoError(t, o.Store().RowsErr())

	assert.Equal(t, 1, src.PersistCalls())
	assert.Len(t, src.persisted[0], 2)
	assert.Equal(t, []string{"success"}, rec.outcomes)
	assert.Equal(t, 2, rec.rows)
}

func TestLoad_LocalShownBeforeRemote(t *testing.T) {
	src := &fakeSource{
		local:  []models.Holding{holding(t, "OLD", 1, "1", "1", "1")},
		remote: btcAda(t),
	}
	o, log := newTestOrchestrator(src)

	assert.Equal(t, OutcomeSuccess, o.Load(context.Background()))
	o.Wait()

	assert.Equal(t, 2, log.count(presentation.EventRows))

	log.mu.Lock()
	var first presentation.State
	for _, e := range log.events {
		if e.Kind == presentation.EventRows {
			first = e.State
			break
		}
	}
	log.mu.Unlock()
	assert.Equal(t, []string{"OLD"}, rowSymbols(first))
	assert.True(t, first.IsLoading)

	assert.Equal(t, []string{"ADA", "BTC"}, rowSymbols(o.State()))
}

func TestLoad_LocalFailureIsSwallowed(t *testing.T) {
	src := &fakeSource{localErr: errors.New("db down"), remote: btcAda(t)}
	o, log := newTestOrchestrator(src)

	assert.Equal(t, OutcomeSuccess, o.Load(context.Background()))
	o.Wait()

	st := o.State()
	assert.Len(t, st.Rows, 2)
	assert.False(t, st.ShowError())
	assert.Equal(t, 1, log.count(presentation.EventRows))
	assert.Equal(t, []bool{true, false}, log.loading())
}

func TestLoad_RemoteFailureFallsBackToSnapshot(t *testing.T) {
	src := &fakeSource{remoteErr: errors.New("timeout"), snapshot: btcAda(t)}
	notifier := &fakeNotifier{}
	o, _ := newTestOrchestrator(src, WithNotifier(notifier))

	assert.Equal(t, OutcomeSnapshot, o.Load(context.Background()))
	o.Wait()

	st := o.State()
	assert.Equal(t, []string{"ADA", "BTC"}, rowSymbols(st))
	assert.NotNil(t, st.Summary)
	assert.False(t, st.ShowError())
	assert.NoError(t, o.Store().RowsErr())
	assert.Equal(t, 0, src.PersistCalls())

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "snapshot", notifier.events[0].Outcome)
	assert.Equal(t, models.EventTypeHoldingsLoaded, notifier.events[0].EventType)
	assert.Equal(t, "timeout", notifier.events[0].Error)
}

func TestLoad_RemoteFailureWithoutSnapshot(t *testing.T) {
	cause := errors.New("no network")
	src := &fakeSource{remoteErr: cause}
	o, log := newTestOrchestrator(src)

	assert.Equal(t, OutcomeFailure, o.Load(context.Background()))
	o.Wait()

	st := o.State()
	assert.Empty(t, st.Rows)
	assert.Nil(t, st.Summary)
	assert.True(t, st.ShowError())
	assert.Equal(t, LoadErrorMessage, st.ErrorMessage)
	assert.ErrorIs(t, o.Store().RowsErr(), cause)
	assert.Equal(t, 1, log.count(presentation.EventRowsFailed))
	assert.Equal(t, []bool{true, false}, log.loading())
}

func TestLoad_RemoteFailureClearsLocalRowsWhenNothingCached(t *testing.T) {
	src := &fakeSource{
		local:     []models.Holding{holding(t, "OLD", 1, "1", "1", "1")},
		remoteErr: errors.New("no network"),
	}
	o, log := newTestOrchestrator(src)

	assert.Equal(t, OutcomeFailure, o.Load(context.Background()))

	st := o.State()
	assert.Empty(t, st.Rows)
	assert.Nil(t, st.Summary)
	assert.Equal(t, LoadErrorMessage, st.ErrorMessage)
	// local rows, then the empty set published before the stream failed
	assert.Equal(t, 2, log.count(presentation.EventRows))
}

func TestLoad_ListenerCanRetriggerOnRowsFailed(t *testing.T) {
	src := &fakeSource{remoteErr: errors.New("no network")}
	o, log := newTestOrchestrator(src)

	var once sync.Once
	o.Store().Subscribe(func(e presentation.Event) {
		if e.Kind == presentation.EventRowsFailed {
			once.Do(o.NotifyViewReady)
		}
	})

	done := make(chan Outcome, 1)
	go func() { done <- o.Load(context.Background()) }()

	select {
	case outcome := <-done:
		assert.Equal(t, OutcomeSuperseded, outcome)
	case <-time.After(3 * time.Second):
		t.Fatal("Load did not return after a listener triggered a new load")
	}
	o.Wait()

	st := o.State()
	assert.False(t, st.IsLoading)
	assert.Equal(t, LoadErrorMessage, st.ErrorMessage)
	assert.Error(t, o.RowsErr())
	assert.Equal(t, 2, log.count(presentation.EventRowsFailed))
	assert.Equal(t, []bool{true, true, false}, log.loading())

	// later triggers are not blocked
	next := make(chan Outcome, 1)
	go func() { next <- o.Load(context.Background()) }()
	select {
	case outcome := <-next:
		assert.Equal(t, OutcomeFailure, outcome)
	case <-time.After(3 * time.Second):
		t.Fatal("follow-up Load did not return")
	}
}

func TestLoad_EmptyRemoteShowsError(t *testing.T) {
	src := &fakeSource{remote: []models.Holding{}}
	o, _ := newTestOrchestrator(src)

	assert.Equal(t, OutcomeEmpty, o.Load(context.Background()))
	o.Wait()

	st := o.State()
	assert.Empty(t, st.Rows)
	assert.Nil(t, st.Summary)
	assert.Equal(t, LoadErrorMessage, st.ErrorMessage)
	assert.NoError(t, o.Store().RowsErr())

	require.Equal(t, 1, src.PersistCalls())
	assert.Empty(t, src.persisted[0])
}

func TestLoad_RetryRecoversAfterFailure(t *testing.T) {
	src := &fakeSource{remoteErr: errors.New("no network")}
	o, _ := newTestOrchestrator(src)

	assert.Equal(t, OutcomeFailure, o.Load(context.Background()))

	src.mu.Lock()
	src.remoteErr = nil
	src.remote = btcAda(t)
	src.mu.Unlock()

	assert.Equal(t, OutcomeSuccess, o.Load(context.Background()))
	o.Wait()

	st := o.State()
	assert.Len(t, st.Rows, 2)
	assert.False(t, st.ShowError())
	assert.NoError(t, o.Store().RowsErr())
}

func TestLoad_PersistFailureIsLoggedOnly(t *testing.T) {
	src := &fakeSource{remote: btcAda(t), persistErr: errors.New("disk full")}
	rec := &fakeRecorder{}
	o, _ := newTestOrchestrator(src, WithRecorder(rec))

	assert.Equal(t, OutcomeSuccess, o.Load(context.Background()))
	o.Wait()

	assert.False(t, o.State().ShowError())
	assert.Equal(t, 1, rec.persistFailures)
}

func TestLoad_ZeroInvestment(t *testing.T) {
	src := &fakeSource{remote: []models.Holding{holding(t, "GIFT", 5, "10", "0", "10")}}
	o, _ := newTestOrchestrator(src)

	assert.Equal(t, OutcomeSuccess, o.Load(context.Background()))
	o.Wait()

	st := o.State()
	require.NotNil(t, st.Summary)
	assert.False(t, st.Summary.PercentageAvailable)
	assert.Equal(t, presentation.PercentageUnavailableText, st.Summary.PercentageText)
}

func TestLoad_NewerTriggerSupersedesOlder(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 2)
	src := &fakeSource{
		remote:        []models.Holding{holding(t, "OLD", 1, "1", "1", "1")},
		remoteGate:    gate,
		remoteStarted: started,
	}
	o, log := newTestOrchestrator(src)

	first := make(chan Outcome, 1)
	go func() { first <- o.Load(context.Background()) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first remote fetch")
	}

	src.mu.Lock()
	src.remoteGate = nil
	src.remoteStarted = nil
	src.remote = btcAda(t)
	src.mu.Unlock()

	second := o.Load(context.Background())

	select {
	case got := <-first:
		assert.Equal(t, OutcomeSuperseded, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first sequence")
	}
	o.Wait()

	assert.Equal(t, OutcomeSuccess, second)
	assert.Equal(t, []string{"ADA", "BTC"}, rowSymbols(o.State()))
	assert.False(t, o.State().IsLoading)
	// the superseded sequence never cleared the loader
	assert.Equal(t, []bool{true, true, false}, log.loading())
}

func TestNotifyViewReady(t *testing.T) {
	src := &fakeSource{remote: btcAda(t)}
	o, log := newTestOrchestrator(src)

	o.NotifyViewReady()
	o.Wait()

	assert.Len(t, o.State().Rows, 2)
	assert.Equal(t, []bool{true, false}, log.loading())
	assert.Equal(t, 1, src.PersistCalls())
}

func TestClose(t *testing.T) {
	gate := make(chan struct{})
	src := &fakeSource{remote: btcAda(t), remoteGate: gate}
	o, _ := newTestOrchestrator(src)

	o.NotifyViewReady()
	o.Close()

	assert.Equal(t, OutcomeSuperseded, o.Load(context.Background()))
	assert.Empty(t, o.State().Rows)
	assert.Equal(t, 0, src.PersistCalls())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "snapshot", OutcomeSnapshot.String())
	assert.Equal(t, "empty", OutcomeEmpty.String())
	assert.Equal(t, "failure", OutcomeFailure.String())
	assert.Equal(t, "superseded", OutcomeSuperseded.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}
