package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/history"
	"github.com/vango-dev/pathway/pkg/router"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testRouter(t *testing.T, opts ...router.Option) *router.Router {
	t.Helper()
	root := router.NewRootRoute(router.RouteOptions{
		Loader: func(context.Context, router.LoaderContext) (any, error) { return "root", nil },
	})
	root.AddChildren(
		router.NewRoute(router.RouteOptions{
			Path:   "/",
			Loader: func(context.Context, router.LoaderContext) (any, error) { return "home", nil },
		}),
		router.NewRoute(router.RouteOptions{
			Path: "posts/$id",
			Loader: func(_ context.Context, lc router.LoaderContext) (any, error) {
				return map[string]string{"title": "post " + lc.Params["id"]}, nil
			},
		}),
		router.NewRoute(router.RouteOptions{
			Path: "broken",
			Loader: func(context.Context, router.LoaderContext) (any, error) {
				return nil, stderrors.New("boom")
			},
		}),
	)

	base := []router.Option{
		router.WithHistory(history.NewMemory("/")),
		router.WithLogger(discard),
	}
	r, err := router.New(root, append(base, opts...)...)
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}
	t.Cleanup(r.Close)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

// snapshotJSON mirrors Snapshot with statuses as plain strings.
type snapshotJSON struct {
	Token    uint64 `json:"token"`
	Status   string `json:"status"`
	Location struct {
		Href     string `json:"href"`
		Pathname string `json:"pathname"`
	} `json:"location"`
	Matches []matchJSON `json:"matches"`
}

type matchJSON struct {
	RouteID string         `json:"routeId"`
	Status  string         `json:"status"`
	Data    any            `json:"data"`
	Error   *ErrorView     `json:"error"`
	Params  map[string]any `json:"params"`
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rd = strings.NewReader(s)
		} else {
			b, err := json.Marshal(body)
			if err != nil {
				t.Fatal(err)
			}
			rd = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestStateEndpoint(t *testing.T) {
	s := New(testRouter(t), WithLogger(discard))
	rec := do(t, s.Handler(), http.MethodGet, "/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	snap := decode[snapshotJSON](t, rec)
	if snap.Status != "idle" || snap.Location.Pathname != "/" {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.Matches) != 2 || snap.Matches[0].RouteID != router.RootRouteID {
		t.Fatalf("matches = %+v", snap.Matches)
	}
	if snap.Matches[1].Data != "home" || snap.Matches[1].Status != "success" {
		t.Errorf("leaf = %+v", snap.Matches[1])
	}
}

func TestNavigateEndpoint(t *testing.T) {
	r := testRouter(t)
	s := New(r, WithLogger(discard))
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/navigate", NavigateRequest{
		To:     "/posts/$id",
		Params: map[string]string{"id": "7"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	snap := decode[snapshotJSON](t, rec)
	if snap.Location.Pathname != "/posts/7" {
		t.Errorf("pathname = %q", snap.Location.Pathname)
	}
	leaf := snap.Matches[len(snap.Matches)-1]
	if data, _ := leaf.Data.(map[string]any); data["title"] != "post 7" {
		t.Errorf("leaf data = %#v", leaf.Data)
	}
	if r.State().Location.Pathname != "/posts/7" {
		t.Error("router did not navigate")
	}

	rec = do(t, h, http.MethodGet, "/matches/posts/$id", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /matches status = %d", rec.Code)
	}
	if m := decode[matchJSON](t, rec); m.RouteID != "/posts/$id" || m.Params["id"] != "7" {
		t.Errorf("match = %+v", m)
	}

	rec = do(t, h, http.MethodGet, "/matches/"+router.RootRouteID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("root match status = %d", rec.Code)
	}
}

func TestNavigateErrors(t *testing.T) {
	s := New(testRouter(t), WithLogger(discard))
	h := s.Handler()

	tests := []struct {
		name string
		body any
		code int
	}{
		{"bad json", "{", http.StatusBadRequest},
		{"missing param", NavigateRequest{To: "/posts/$id"}, http.StatusBadRequest},
		{"escaping path", NavigateRequest{To: "../.."}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/navigate", tt.body)
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.code, rec.Body)
			}
		})
	}
}

func TestLoaderErrorIsReported(t *testing.T) {
	s := New(testRouter(t), WithLogger(discard))
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/navigate", NavigateRequest{To: "/broken"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/matches/broken", nil)
	m := decode[matchJSON](t, rec)
	if m.Status != "error" || m.Error == nil || m.Error.Code != string(errors.ELoaderError) {
		t.Errorf("match = %+v", m)
	}

	if rec := do(t, h, http.MethodGet, "/matches/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", rec.Code)
	}
}

func TestInvalidateEndpoint(t *testing.T) {
	calls := 0
	root := router.NewRootRoute(router.RouteOptions{
		Loader: func(context.Context, router.LoaderContext) (any, error) {
			calls++
			return calls, nil
		},
	})
	r, err := router.New(root, router.WithHistory(history.NewMemory("/")), router.WithLogger(discard))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	s := New(r, WithLogger(discard))
	rec := do(t, s.Handler(), http.MethodPost, "/invalidate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := r.State().Leaf().Data; got != 2 {
		t.Errorf("data after invalidate = %v, want 2", got)
	}
}

func TestResolveEndpoint(t *testing.T) {
	s := New(testRouter(t), WithLogger(discard))
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/resolve?to=/posts/$id&param.id=9&hash=top", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	res := decode[Resolution](t, rec)
	if res.Location.Href != "/posts/9#top" || res.NotFound {
		t.Errorf("resolution = %+v", res)
	}
	if len(res.Matches) != 2 || res.Matches[1].RouteID != "/posts/$id" || res.Matches[1].Params["id"] != "9" {
		t.Errorf("matches = %+v", res.Matches)
	}

	res = decode[Resolution](t, do(t, h, http.MethodGet, "/resolve?to=/posts/1/extra", nil))
	if !res.NotFound || res.Error == nil || res.Error.Code != string(errors.ENotFound) {
		t.Errorf("partial match = %+v", res)
	}

	if rec := do(t, h, http.MethodGet, "/resolve?to=/posts/$id", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing param status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "inspect_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := New(testRouter(t), WithLogger(discard), WithMetrics(reg))
	rec := do(t, s.Handler(), http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "inspect_test_total 1") {
		t.Errorf("metrics = %d %s", rec.Code, rec.Body)
	}

	plain := New(testRouter(t), WithLogger(discard))
	if rec := do(t, plain.Handler(), http.MethodGet, "/metrics", nil); rec.Code != http.StatusNotFound {
		t.Errorf("metrics without a gatherer = %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.EInvalidPath), http.StatusBadRequest},
		{errors.New(errors.EMissingParam), http.StatusBadRequest},
		{errors.New(errors.EInvalidSearch), http.StatusBadRequest},
		{router.ErrSuperseded, http.StatusConflict},
		{router.ErrAborted, http.StatusConflict},
		{router.ErrClosed, http.StatusServiceUnavailable},
		{fmt.Errorf("wait: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{router.ErrTooManyRedirects, http.StatusLoopDetected},
		{stderrors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var raw struct {
		Type       MessageType      `json:"type"`
		Navigation *NavigationEvent `json:"navigation"`
		State      *json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	msg := Message{Type: raw.Type, Navigation: raw.Navigation}
	if raw.State != nil {
		msg.State = &Snapshot{}
	}
	return msg
}

func TestStream(t *testing.T) {
	stream := NewStream(discard)
	r := testRouter(t, router.WithObserver(stream))
	s := New(r, WithLogger(discard), WithStream(stream))
	defer s.Close()

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if msg := readMessage(t, conn); msg.Type != MessageState || msg.State == nil {
		t.Fatalf("first message = %+v", msg)
	}

	deadline := time.Now().Add(2 * time.Second)
	for stream.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := r.Navigate(context.Background(), "/posts/3"); err != nil {
		t.Fatal(err)
	}

	var sawState bool
	for {
		msg := readMessage(t, conn)
		if msg.Type == MessageState {
			sawState = true
			continue
		}
		if msg.Type != MessageNavigation || msg.Navigation == nil {
			t.Fatalf("unexpected message %+v", msg)
		}
		if msg.Navigation.Outcome != "committed" || msg.Navigation.Href != "/posts/3" {
			t.Errorf("navigation = %+v", msg.Navigation)
		}
		break
	}
	if !sawState {
		t.Error("no state message before the navigation finished")
	}
}
