package sensorsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/sensorsync/internal/journal"
	"github.com/jpalmerr/sensorsync/reading"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sensor is a scriptable sensor endpoint.
type sensor struct {
	mu     sync.Mutex
	status int
	body   string
}

func newSensor(t *testing.T) (*sensor, *httptest.Server) {
	t.Helper()
	s := &sensor{status: http.StatusOK, body: `{}`}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status, body := s.status, s.body
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return s, ts
}

func (s *sensor) respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.body = status, body
}

const payloadA = `{"temperatura":22.5,"luminosidade":300,"som":40,"status":"ok"}`

func newTestEngine(t *testing.T, url string, clock *fakeClock, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithEndpointURL(url),
		WithClock(clock.Now),
		WithLogger(testLogger()),
		WithoutServer(),
	}
	eng, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return eng
}

func mustTick(t *testing.T, eng *Engine) Change {
	t.Helper()
	c, ok := eng.Tick(context.Background())
	require.True(t, ok, "Tick() was not reconciled")
	return c
}

func TestEngine_ColdStartFirstSuccess(t *testing.T) {
	s, ts := newSensor(t)
	clock := newFakeClock()
	eng := newTestEngine(t, ts.URL, clock)
	s.respond(http.StatusOK, payloadA)

	c := mustTick(t, eng)

	assert.Equal(t, DecisionCommitted, c.Decision)
	assert.Equal(t, ModeFallback, c.From)
	assert.Equal(t, ModeLive, c.To)
	assert.True(t, c.Transition())

	cur := eng.Current()
	temp, ok := cur.Temperature().Float()
	assert.True(t, ok)
	assert.Equal(t, 22.5, temp)
	assert.Equal(t, "ok", cur.Status())
	assert.Equal(t, clock.Now(), eng.Snapshot().Clock.LastLiveUpdateAt())
}

func TestEngine_FetchFailureFallsBack(t *testing.T) {
	s, ts := newSensor(t)
	clock := newFakeClock()
	eng := newTestEngine(t, ts.URL, clock)

	s.respond(http.StatusOK, payloadA)
	mustTick(t, eng)
	liveAt := eng.Snapshot().Clock.LastLiveUpdateAt()

	clock.Advance(5 * time.Second)
	s.respond(http.StatusServiceUnavailable, `unavailable`)
	c := mustTick(t, eng)

	assert.Equal(t, DecisionCommitted, c.Decision)
	assert.Equal(t, ModeFallback, c.To)
	assert.True(t, reading.IsTransport(c.Err))
	assert.True(t, eng.Current().IsFallback())
	assert.Equal(t, liveAt, eng.Snapshot().Clock.LastLiveUpdateAt(), "a failed fetch must not reset the clock")

	// a second failure while already on the fallback writes nothing
	clock.Advance(5 * time.Second)
	c = mustTick(t, eng)
	assert.Equal(t, DecisionHeld, c.Decision)
}

func TestEngine_SameValueWithinThresholdHeld(t *testing.T) {
	s, ts := newSensor(t)
	clock := newFakeClock()
	eng := newTestEngine(t, ts.URL, clock)

	s.respond(http.StatusOK, payloadA)
	mustTick(t, eng)
	version := eng.Snapshot().Version

	clock.Advance(10 * time.Second)
	s.respond(http.StatusOK, `{"temperatura":22.55,"luminosidade":300,"som":40,"status":"ok"}`)
	c := mustTick(t, eng)

	assert.Equal(t, DecisionHeld, c.Decision)
	assert.Equal(t, version, eng.Snapshot().Version)
}

func TestEngine_FrozenFeedRevertsToFallback(t *testing.T) {
	s, ts := newSensor(t)
	clock := newFakeClock()
	eng := newTestEngine(t, ts.URL, clock)

	s.respond(http.StatusOK, payloadA)
	mustTick(t, eng)

	clock.Advance(25 * time.Second)
	c := mustTick(t, eng)

	assert.Equal(t, DecisionStaleReverted, c.Decision)
	assert.Equal(t, ModeLive, c.From)
	assert.Equal(t, ModeFallback, c.To)
	assert.True(t, eng.Current().IsFallback())
	assert.False(t, c.Candidate.IsFallback(), "the candidate is the frozen live reading")
}

func TestEngine_MalformedPayloadFallsBack(t *testing.T) {
	s, ts := newSensor(t)
	clock := newFakeClock()
	eng := newTestEngine(t, ts.URL, clock)

	s.respond(http.StatusOK, payloadA)
	mustTick(t, eng)

	s.respond(http.StatusOK, `not json`)
	c := mustTick(t, eng)

	assert.True(t, reading.IsMalformed(c.Err))
	assert.True(t, eng.Current().IsFallback())
}

func TestEngine_TickCancelledContext(t *testing.T) {
	_, ts := newSensor(t)
	eng := newTestEngine(t, ts.URL, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := eng.Tick(ctx)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), eng.Snapshot().Version)
}

func TestEngine_SubscribeReceivesCommits(t *testing.T) {
	s, ts := newSensor(t)
	eng := newTestEngine(t, ts.URL, newFakeClock())

	ch := eng.Subscribe()
	defer eng.Unsubscribe(ch)

	s.respond(http.StatusOK, payloadA)
	mustTick(t, eng)

	select {
	case st := <-ch:
		assert.Equal(t, ModeLive, st.Mode())
		assert.Equal(t, uint64(1), st.Version)
	case <-time.After(time.Second):
		t.Fatal("no state received")
	}
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ChangeEvent
	err    error
	closed bool
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(_ context.Context, e ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestEngine_SinksReceiveOnlyCommits(t *testing.T) {
	s, ts := newSensor(t)
	clock := newFakeClock()
	pub := &recordingPublisher{}
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	eng, err := New(
		WithEndpointURL(ts.URL),
		WithClock(clock.Now),
		WithLogger(testLogger()),
		WithoutServer(),
		WithPollInterval(time.Hour),
		WithPublisher(pub),
		WithJournal(dbPath),
	)
	require.NoError(t, err)

	s.respond(http.StatusOK, payloadA)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Start(ctx) }()

	// the immediate first tick commits the live reading
	require.Eventually(t, func() bool { return pub.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	// unchanged reading within the threshold: no event
	clock.Advance(time.Second)
	mustTick(t, eng)

	// frozen feed: stale revert is published
	clock.Advance(30 * time.Second)
	mustTick(t, eng)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	pub.mu.Lock()
	require.Len(t, pub.events, 2)
	assert.Equal(t, DecisionCommitted, pub.events[0].Decision)
	assert.Equal(t, DecisionStaleReverted, pub.events[1].Decision)
	assert.True(t, pub.closed, "publishers are closed when Start returns")
	pub.mu.Unlock()

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	events, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ModeFallback, events[0].To)
	assert.Equal(t, ModeLive, events[1].To)
}

func TestEngine_PublisherErrorDoesNotStopCallbacks(t *testing.T) {
	s, ts := newSensor(t)
	pub := &recordingPublisher{err: errors.New("broker down")}

	var got []Change
	eng := newTestEngine(t, ts.URL, newFakeClock(),
		WithPublisher(pub),
		WithReadingCallback(func(c Change) { got = append(got, c) }),
	)
	s.respond(http.StatusOK, payloadA)
	mustTick(t, eng)

	assert.Equal(t, 1, pub.count())
	assert.Len(t, got, 1)
}

func TestEngine_JournalOpenFailure(t *testing.T) {
	_, ts := newSensor(t)
	eng := newTestEngine(t, ts.URL, newFakeClock(),
		WithJournal(filepath.Join(t.TempDir(), "missing", "dir", "journal.db")),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := eng.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open journal")
}
