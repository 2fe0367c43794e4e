package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/technicalkuldeep/blood-dapp/domain"
	"github.com/technicalkuldeep/blood-dapp/eventlog"
	"github.com/technicalkuldeep/blood-dapp/hub"
)

// streamRecorder is a concurrency-safe ResponseWriter+Flusher so the test
// can inspect the body while the handler goroutine is still writing.
type streamRecorder struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	header http.Header
	status int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header)}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *streamRecorder) WriteHeader(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) Body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

type streamFixture struct {
	store    *eventlog.Log
	broker   *hub.Hub
	rec      *streamRecorder
	cancel   context.CancelFunc
	finished chan error
}

func startStream(t *testing.T, replay int, seed []domain.Event) *streamFixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := eventlog.New(10)
	for _, ev := range seed {
		store.Append(ev)
	}
	broker := hub.New(logger, 4)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/events/stream", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	rec := newStreamRecorder()
	c := e.NewContext(req, rec)

	h := streamEvents(store, broker, Options{Logger: logger, ReplayCount: replay})
	finished := make(chan error, 1)
	go func() { finished <- h(c) }()

	waitUntil(t, time.Second, func() bool { return broker.Len() == 1 })
	return &streamFixture{store: store, broker: broker, rec: rec, cancel: cancel, finished: finished}
}

func (f *streamFixture) stop(t *testing.T) {
	t.Helper()
	f.cancel()
	select {
	case <-f.finished:
	case <-time.After(time.Second):
		t.Fatalf("stream handler did not return after disconnect")
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func seedEvents(ids ...string) []domain.Event {
	out := make([]domain.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Event{"id": id})
	}
	return out
}

func TestStreamCatchUpThenLive(t *testing.T) {
	f := startStream(t, 10, seedEvents("e1", "e2", "e3", "e4", "e5"))

	waitUntil(t, time.Second, func() bool { return strings.Contains(f.rec.Body(), "e5") })

	live := domain.Event{"id": "e6"}
	f.store.Append(live)
	if got := f.broker.Publish(live); got != 1 {
		t.Fatalf("expected live delivery to 1 subscriber, got %d", got)
	}
	waitUntil(t, time.Second, func() bool { return strings.Contains(f.rec.Body(), "e6") })
	f.stop(t)

	body := f.rec.Body()
	for _, id := range []string{"e1", "e2", "e3", "e4", "e5", "e6"} {
		if got := strings.Count(body, id); got != 1 {
			t.Fatalf("expected exactly one delivery of %s, got %d\n%s", id, got, body)
		}
	}
	// Replay is oldest-first so display order matches live pushes.
	if strings.Index(body, "e1") > strings.Index(body, "e5") {
		t.Fatalf("expected replay oldest-first:\n%s", body)
	}
	if strings.Index(body, "e5") > strings.Index(body, "e6") {
		t.Fatalf("expected live event after replay:\n%s", body)
	}
}

func TestStreamReplayBoundedByCount(t *testing.T) {
	f := startStream(t, 2, seedEvents("e1", "e2", "e3", "e4", "e5"))
	waitUntil(t, time.Second, func() bool { return strings.Contains(f.rec.Body(), "e5") })
	f.stop(t)

	body := f.rec.Body()
	if strings.Contains(body, "e3") {
		t.Fatalf("expected replay limited to 2 newest events:\n%s", body)
	}
	if !strings.Contains(body, "e4") || !strings.Contains(body, "e5") {
		t.Fatalf("expected the 2 newest events replayed:\n%s", body)
	}
	if strings.Index(body, "e4") > strings.Index(body, "e5") {
		t.Fatalf("expected oldest-of-batch first:\n%s", body)
	}
}

func TestStreamFramesAreSSE(t *testing.T) {
	f := startStream(t, 10, seedEvents("e1"))
	waitUntil(t, time.Second, func() bool { return strings.Contains(f.rec.Body(), "e1") })
	f.stop(t)

	if ct := f.rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := f.rec.Body()
	if !strings.HasPrefix(body, "data: ") || !strings.Contains(body, "\n\n") {
		t.Fatalf("expected SSE framing, got:\n%s", body)
	}
}

func TestStreamDisconnectDeregisters(t *testing.T) {
	f := startStream(t, 10, nil)
	f.stop(t)
	waitUntil(t, time.Second, func() bool { return f.broker.Len() == 0 })
}

func TestStreamServerShutdownClosesSubscriber(t *testing.T) {
	f := startStream(t, 10, nil)
	f.broker.Shutdown()
	select {
	case <-f.finished:
	case <-time.After(time.Second):
		t.Fatalf("stream handler did not return after hub shutdown")
	}
	if f.broker.Len() != 0 {
		t.Fatalf("expected empty registry after shutdown")
	}
}
