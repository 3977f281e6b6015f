package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marselab/equalizerd/internal/eq"
)

func testVector() eq.GainVector {
	v := make(eq.GainVector, eq.VectorLen)
	for i := range v {
		v[i] = float64(i) - 12
	}
	return v
}

func nopLog() *zap.SugaredLogger { return zap.NewNop().Sugar() }

// kvServer is a tiny in-memory stand-in for the remote gain store.
func kvServer(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	data := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		switch r.Method {
		case http.MethodGet:
			body, ok := data[key]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(body)
		case http.MethodPut:
			var raw json.RawMessage
			if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			data[key] = raw
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, data
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	srv, _ := kvServer(t)
	c := NewClient(srv.URL, "", nopLog())
	key := uuid.New()
	want := testVector()

	if err := c.Save(context.Background(), key, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := c.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("gains[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSaveWritesVersionedPayload(t *testing.T) {
	srv, data := kvServer(t)
	c := NewClient(srv.URL, "", nopLog())
	key := uuid.New()

	if err := c.Save(context.Background(), key, testVector()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var p payload
	if err := json.Unmarshal(data["/v1/gains/"+key.String()], &p); err != nil {
		t.Fatalf("unmarshal stored payload: %v", err)
	}
	if p.Schema != SchemaVersion {
		t.Errorf("stored schema = %d, want %d", p.Schema, SchemaVersion)
	}
	if len(p.Gains) != eq.VectorLen {
		t.Errorf("stored gains length = %d, want %d", len(p.Gains), eq.VectorLen)
	}
}

func TestLoadAbsentKeyIsNotFound(t *testing.T) {
	srv, _ := kvServer(t)
	c := NewClient(srv.URL, "", nopLog())
	if _, err := c.Load(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("absent key: err = %v, want ErrNotFound", err)
	}
}

func TestLoadRejectsCorruptLength(t *testing.T) {
	srv, data := kvServer(t)
	key := uuid.New()
	data["/v1/gains/"+key.String()] = []byte(`{"schema":1,"gains":[1,2,3]}`)

	c := NewClient(srv.URL, "", nopLog())
	if _, err := c.Load(context.Background(), key); !errors.Is(err, eq.ErrBadVectorLength) {
		t.Errorf("corrupt vector: err = %v, want ErrBadVectorLength", err)
	}
}

func TestLoadRejectsUnknownSchema(t *testing.T) {
	srv, data := kvServer(t)
	key := uuid.New()
	data["/v1/gains/"+key.String()] = []byte(`{"schema":9,"gains":[]}`)

	c := NewClient(srv.URL, "", nopLog())
	if _, err := c.Load(context.Background(), key); err == nil {
		t.Error("unknown schema accepted")
	}
}

func TestSaveRefusesWrongLengthLocally(t *testing.T) {
	c := NewClient("http://unused", "", nopLog())
	err := c.Save(context.Background(), uuid.New(), make(eq.GainVector, 5))
	if !errors.Is(err, eq.ErrBadVectorLength) {
		t.Errorf("short save: err = %v, want ErrBadVectorLength", err)
	}
}

func TestBearerHeaderSent(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", nopLog())
	c.Load(context.Background(), uuid.New())
	if got.Load() != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want Bearer secret-key", got.Load())
	}
}

// --- Gateway ---

func TestGatewayRecordsRetryableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGateway(NewClient(srv.URL, "", nopLog()), nopLog())
	if err := g.Save(context.Background(), uuid.New(), testVector()); err == nil {
		t.Fatal("save against failing store succeeded")
	}
	if g.LastError() == nil {
		t.Error("LastError is nil after failed save")
	}
}

func TestGatewaySuccessClearsErrorState(t *testing.T) {
	srv, _ := kvServer(t)
	g := NewGateway(NewClient(srv.URL, "", nopLog()), nopLog())
	key := uuid.New()

	// Not-found load is a valid outcome, not an error state.
	if _, err := g.Load(context.Background(), key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load: %v", err)
	}
	if g.LastError() != nil {
		t.Errorf("LastError after not-found = %v, want nil", g.LastError())
	}

	if err := g.Save(context.Background(), key, testVector()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if g.LastError() != nil {
		t.Errorf("LastError after success = %v, want nil", g.LastError())
	}
}

func TestGatewayNewerSaveSupersedesOlder(t *testing.T) {
	started := make(chan struct{}, 1)
	var completed atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		json.NewDecoder(r.Body).Decode(&p)
		if p.Gains[0] == 111 { // the slow request: park until cancelled
			started <- struct{}{}
			<-r.Context().Done()
			return
		}
		completed.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	g := NewGateway(NewClient(srv.URL, "", nopLog()), nopLog())
	key := uuid.New()

	slow := testVector()
	slow[0] = 111
	g.SaveAsync(key, slow)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("slow save never reached the server")
	}

	fast := testVector()
	if err := g.Save(context.Background(), key, fast); err != nil {
		t.Fatalf("superseding save: %v", err)
	}
	g.Close()

	if completed.Load() != 1 {
		t.Errorf("completed saves = %d, want 1 (only the superseding one)", completed.Load())
	}
	if g.LastError() != nil {
		t.Errorf("LastError = %v, want nil: stale failure must not shadow the newer success", g.LastError())
	}
}

// The snapshot-on-exit save must survive teardown: Close waits for it to
// land instead of cancelling it.
func TestGatewayCloseWaitsForPendingSave(t *testing.T) {
	release := make(chan struct{})
	stored := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		stored <- struct{}{}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	g := NewGateway(NewClient(srv.URL, "", nopLog()), nopLog())
	g.SaveAsync(uuid.New(), testVector())

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	g.Close()

	select {
	case <-stored:
	default:
		t.Fatal("Close returned before the pending save reached the store")
	}
	if g.LastError() != nil {
		t.Errorf("LastError = %v, want nil after the save landed", g.LastError())
	}
}

// A load issued while a snapshot save is pending must read its own write,
// not race past it or abort it.
func TestGatewayLoadFlushesPendingSave(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	data := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			<-release
			var raw json.RawMessage
			json.NewDecoder(r.Body).Decode(&raw)
			mu.Lock()
			data[r.URL.Path] = raw
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			mu.Lock()
			body, ok := data[r.URL.Path]
			mu.Unlock()
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write(body)
		}
	}))
	defer srv.Close()

	g := NewGateway(NewClient(srv.URL, "", nopLog()), nopLog())
	key := uuid.New()
	want := testVector()

	g.SaveAsync(key, want)
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	got, err := g.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("Load during pending save: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("gains[%d] = %v, want %v: load did not see the pending save", i, got[i], want[i])
		}
	}
}
