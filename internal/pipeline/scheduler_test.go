package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismoguard/quake-ingest/internal/adapter/feed"
	"github.com/seismoguard/quake-ingest/internal/domain"
	"github.com/seismoguard/quake-ingest/internal/observability"
	"github.com/seismoguard/quake-ingest/internal/pipeline"
	"github.com/seismoguard/quake-ingest/internal/store"
)

// All fixtures occur at this instant; the fake clock sits one hour later so
// every event is inside the default 24 h visibility window.
const fixtureMillis = int64(1700000000000)

func ankaraSettings() domain.Settings {
	return domain.Settings{
		Latitude:          39.93,
		Longitude:         32.85,
		RadiusKm:          500,
		MinMagnitude:      0,
		TimeWindowHours:   24,
		AlertThreshold:    4.5,
		CriticalThreshold: 6.0,
	}
}

func usgsFeature(id string, mag float64) string {
	return fmt.Sprintf(`{"id":%q,"properties":{"mag":%g,"place":"central Turkey","time":%d},"geometry":{"coordinates":[32.85,39.93,10]}}`,
		id, mag, fixtureMillis)
}

func usgsPayload(features ...string) []byte {
	return []byte(`{"features":[` + strings.Join(features, ",") + `]}`)
}

const emscPayload = `{"features":[{"geometry":{"coordinates":[27.14,38.42,12]},"properties":{"mag":3.1,"flynn_region":"WESTERN TURKEY","time":"2023-11-14T22:13:20.0","unid":"20231114_0000123"}}]}`

const krdaeText = `KOERI SISMOLOJI LABORATUVARI
Tarih      Saat     Enlem   Boylam  Der(km) MD  ML  Mw  Yer
---------- -------- ------- ------- ------- --- --- --- -----------
2023.11.14 22:13:20 39.9300 32.8500 7.0 -.- 4.8 -.- CANKAYA (ANKARA)
`

type stubFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	errs     map[string]error
	calls    map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		payloads: make(map[string][]byte),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *stubFetcher) set(url string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[url] = payload
}

func (f *stubFetcher) fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
}

func (f *stubFetcher) Fetch(_ context.Context, ep feed.Endpoint) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ep.URL]++
	if err := f.errs[ep.URL]; err != nil {
		return nil, err
	}
	payload, ok := f.payloads[ep.URL]
	if !ok {
		return nil, fmt.Errorf("no payload configured for %s", ep.URL)
	}
	return payload, nil
}

type alertCall struct {
	event      domain.QuakeEvent
	distanceKm float64
}

type recordingNotifier struct {
	mu      sync.Mutex
	batches [][]domain.QuakeEvent
	alerts  []alertCall
}

func (n *recordingNotifier) NewEvents(_ context.Context, events []domain.QuakeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, events)
}

func (n *recordingNotifier) Alert(_ context.Context, ev domain.QuakeEvent, distanceKm float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alertCall{event: ev, distanceKm: distanceKm})
}

func (n *recordingNotifier) allAlerts() []alertCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]alertCall(nil), n.alerts...)
}

func (n *recordingNotifier) allBatches() [][]domain.QuakeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]domain.QuakeEvent(nil), n.batches...)
}

type harness struct {
	fetcher   *stubFetcher
	notifier  *recordingNotifier
	clock     *clockwork.FakeClock
	scheduler *pipeline.Scheduler
}

func newHarness(t *testing.T, endpoints []feed.Endpoint, fallbacks map[domain.Source]feed.Endpoint, opts pipeline.Options) *harness {
	t.Helper()
	if opts.RefreshInterval == 0 {
		opts.RefreshInterval = time.Minute
	}
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = 5 * time.Second
	}

	fetcher := newStubFetcher()
	notifier := &recordingNotifier{}
	clock := clockwork.NewFakeClockAt(time.UnixMilli(fixtureMillis).Add(time.Hour))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	scheduler := pipeline.New(
		fetcher,
		endpoints,
		fallbacks,
		store.NewDedup(5000),
		store.NewEventLog(1000),
		domain.NewSessionState(ankaraSettings()),
		notifier,
		logger,
		observability.NewMetricsForTesting(),
		clock,
		opts,
	)
	return &harness{fetcher: fetcher, notifier: notifier, clock: clock, scheduler: scheduler}
}

// start launches Run and blocks until the first cycle completes. The returned
// cancel stops the scheduler; the fake clock keeps later cycles from firing
// until the test advances it.
func (h *harness) start(t *testing.T) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.scheduler.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		return h.scheduler.CheckReadiness(ctx) == nil
	}, 2*time.Second, 5*time.Millisecond, "first cycle never completed")
	return cancel
}

// nextCycle releases the ticker for one more cycle and waits for its report
// to satisfy the condition.
func (h *harness) nextCycle(t *testing.T, cond func(*pipeline.CycleReport) bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		rep := h.scheduler.LastReport()
		return rep != nil && cond(rep)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_SingleEventAlert(t *testing.T) {
	ep := feed.Endpoint{Source: domain.SourceUSGS, URL: "usgs"}
	h := newHarness(t, []feed.Endpoint{ep}, nil, pipeline.Options{WarmupThreshold: 0})
	h.fetcher.set("usgs", usgsPayload(usgsFeature("usgs1", 6.2)))

	h.start(t)

	want := domain.QuakeEvent{
		ID:          "usgs1",
		Source:      domain.SourceUSGS,
		Latitude:    39.93,
		Longitude:   32.85,
		Magnitude:   6.2,
		DepthKm:     10,
		Place:       "central Turkey",
		OccurredAt:  fixtureMillis,
		DisplayTime: "22:13:20",
	}
	events := h.scheduler.Events()
	require.Len(t, events, 1)
	if diff := cmp.Diff(want, events[0]); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}

	rep := h.scheduler.LastReport()
	require.NotNil(t, rep)
	require.Len(t, rep.Sources, 1)
	assert.Equal(t, pipeline.OutcomeOK, rep.Sources[0].Outcome)
	assert.Equal(t, 1, rep.Sources[0].Admitted)
	assert.Equal(t, 1, rep.Sources[0].Alerts)

	alerts := h.notifier.allAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "usgs1", alerts[0].event.ID)
	assert.InDelta(t, 0, alerts[0].distanceKm, 0.001)

	batches := h.notifier.allBatches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 1)

	assert.Equal(t, 6.2, rep.Stats.MaxMagnitude)
	assert.True(t, rep.Stats.Critical)
}

func TestScheduler_WarmupSuppressesBacklog(t *testing.T) {
	ep := feed.Endpoint{Source: domain.SourceUSGS, URL: "usgs"}
	h := newHarness(t, []feed.Endpoint{ep}, nil, pipeline.Options{
		WarmupThreshold: 60,
		SourceBatchCap:  100,
	})

	// 60 events that each satisfy the alert predicate on their own. They form
	// the startup backlog and must all be swallowed silently.
	backlog := make([]string, 60)
	for i := range backlog {
		backlog[i] = usgsFeature(fmt.Sprintf("e%02d", i), 6.0)
	}
	h.fetcher.set("usgs", usgsPayload(backlog...))

	h.start(t)

	rep := h.scheduler.LastReport()
	require.NotNil(t, rep)
	assert.Equal(t, 60, rep.Sources[0].Admitted)
	assert.Equal(t, 0, rep.Sources[0].Alerts)
	assert.Empty(t, h.notifier.allAlerts())

	// The 61st distinct event crosses the warm-up threshold and alerts.
	h.fetcher.set("usgs", usgsPayload(append(backlog, usgsFeature("e60", 6.0))...))
	h.nextCycle(t, func(rep *pipeline.CycleReport) bool {
		return rep.Sources[0].Duplicates == 60
	})

	rep = h.scheduler.LastReport()
	assert.Equal(t, 1, rep.Sources[0].Admitted)
	assert.Equal(t, 60, rep.Sources[0].Duplicates)
	assert.Equal(t, 1, rep.Sources[0].Alerts)

	alerts := h.notifier.allAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "e60", alerts[0].event.ID)
}

func TestScheduler_SourceFailureIsolated(t *testing.T) {
	usgs := feed.Endpoint{Source: domain.SourceUSGS, URL: "usgs"}
	emsc := feed.Endpoint{Source: domain.SourceEMSC, URL: "emsc"}
	h := newHarness(t, []feed.Endpoint{usgs, emsc}, nil, pipeline.Options{WarmupThreshold: 0})
	h.fetcher.fail("usgs", errors.New("connection refused"))
	h.fetcher.set("emsc", []byte(emscPayload))

	h.start(t)

	rep := h.scheduler.LastReport()
	require.NotNil(t, rep)
	require.Len(t, rep.Sources, 2)

	bySource := make(map[domain.Source]pipeline.SourceReport)
	for _, sr := range rep.Sources {
		bySource[sr.Source] = sr
	}
	assert.Equal(t, pipeline.OutcomeFetchError, bySource[domain.SourceUSGS].Outcome)
	assert.Contains(t, bySource[domain.SourceUSGS].Error, "connection refused")
	assert.Equal(t, pipeline.OutcomeOK, bySource[domain.SourceEMSC].Outcome)
	assert.Equal(t, 1, bySource[domain.SourceEMSC].Admitted)

	require.Len(t, h.scheduler.Events(), 1)
	assert.Equal(t, "20231114_0000123", h.scheduler.Events()[0].ID)
}

func TestScheduler_ShapeErrorOutcome(t *testing.T) {
	ep := feed.Endpoint{Source: domain.SourceUSGS, URL: "usgs"}
	h := newHarness(t, []feed.Endpoint{ep}, nil, pipeline.Options{WarmupThreshold: 0})
	h.fetcher.set("usgs", []byte(`{"type":"FeatureCollection"}`))

	h.start(t)

	rep := h.scheduler.LastReport()
	require.NotNil(t, rep)
	assert.Equal(t, pipeline.OutcomeShapeError, rep.Sources[0].Outcome)
	assert.Empty(t, h.scheduler.Events())
}

func TestScheduler_KandilliFallsBackToRawBulletin(t *testing.T) {
	kandilli := feed.Endpoint{Source: domain.SourceKandilli, URL: "kandilli"}
	fallbacks := map[domain.Source]feed.Endpoint{
		domain.SourceKandilli: {Source: domain.SourceKRDAE, URL: "krdae", ExtractPre: true},
	}
	h := newHarness(t, []feed.Endpoint{kandilli}, fallbacks, pipeline.Options{WarmupThreshold: 0})
	h.fetcher.fail("kandilli", errors.New("upstream 502"))
	h.fetcher.set("krdae", []byte(krdaeText))

	h.start(t)

	rep := h.scheduler.LastReport()
	require.NotNil(t, rep)
	require.Len(t, rep.Sources, 1)
	assert.Equal(t, pipeline.OutcomeOK, rep.Sources[0].Outcome)
	assert.True(t, rep.Sources[0].UsedFallback)
	assert.Equal(t, 1, rep.Sources[0].Admitted)

	events := h.scheduler.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "raw-2023.11.14-22:13:20", events[0].ID)
	assert.Equal(t, domain.SourceKRDAE, events[0].Source)
	assert.Equal(t, 4.8, events[0].Magnitude)
}

func TestScheduler_DuplicatesSuppressedAcrossCycles(t *testing.T) {
	ep := feed.Endpoint{Source: domain.SourceUSGS, URL: "usgs"}
	h := newHarness(t, []feed.Endpoint{ep}, nil, pipeline.Options{WarmupThreshold: 0})
	h.fetcher.set("usgs", usgsPayload(usgsFeature("usgs1", 5.0)))

	h.start(t)
	require.Len(t, h.scheduler.Events(), 1)

	h.nextCycle(t, func(rep *pipeline.CycleReport) bool {
		return rep.Sources[0].Duplicates == 1
	})

	rep := h.scheduler.LastReport()
	assert.Equal(t, 0, rep.Sources[0].Admitted)
	assert.Equal(t, 1, rep.Sources[0].Duplicates)
	assert.Len(t, h.scheduler.Events(), 1, "duplicate must not re-enter the log")
	assert.Len(t, h.notifier.allAlerts(), 1, "no second alert for the same id")
}

func TestScheduler_BatchCapAndOrdering(t *testing.T) {
	ep := feed.Endpoint{Source: domain.SourceUSGS, URL: "usgs"}
	h := newHarness(t, []feed.Endpoint{ep}, nil, pipeline.Options{
		WarmupThreshold: 0,
		SourceBatchCap:  3,
	})
	h.fetcher.set("usgs", usgsPayload(
		usgsFeature("a", 3.0),
		usgsFeature("b", 3.0),
		usgsFeature("c", 3.0),
		usgsFeature("d", 3.0),
		usgsFeature("e", 3.0),
	))

	h.start(t)

	// Only the first three (newest) survive the cap, and the log stays
	// newest-first after the reverse-order merge.
	events := h.scheduler.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, "b", events[1].ID)
	assert.Equal(t, "c", events[2].ID)
}

func TestScheduler_Simulate(t *testing.T) {
	ep := feed.Endpoint{Source: domain.SourceUSGS, URL: "usgs"}
	h := newHarness(t, []feed.Endpoint{ep}, nil, pipeline.Options{WarmupThreshold: 60})

	ev, decision := h.scheduler.Simulate(context.Background())

	assert.Equal(t, domain.SourceSimulated, ev.Source)
	assert.True(t, strings.HasPrefix(ev.ID, "sim-"))
	assert.GreaterOrEqual(t, ev.Magnitude, 5.5)
	assert.LessOrEqual(t, ev.Magnitude, 7.8)
	assert.Equal(t, 10.0, ev.DepthKm)

	// The synthetic event lands within ±0.25° of the user, so even an
	// untouched warm-up gate must not suppress its alarm.
	assert.True(t, decision.Alert)
	assert.Less(t, decision.DistanceKm, 50.0)

	events := h.scheduler.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ev.ID, events[0].ID)

	alerts := h.notifier.allAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, ev.ID, alerts[0].event.ID)
}
