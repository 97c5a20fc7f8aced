package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/tripdesk/internal/client/localstore"
	"github.com/dmitrijs2005/tripdesk/internal/client/models"
	"github.com/dmitrijs2005/tripdesk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRefused = errors.New("dial tcp 10.0.0.1:443: connect: connection refused")

type doerCall struct {
	Method string
	Path   string
	Body   []byte
}

// fakeDoer records every call and delegates the outcome to handle.
type fakeDoer struct {
	mu     sync.Mutex
	calls  []doerCall
	handle func(call doerCall) ([]byte, error)
}

func (f *fakeDoer) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	f.mu.Lock()
	call := doerCall{Method: method, Path: path, Body: body}
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.handle == nil {
		return []byte(`{}`), nil
	}
	return f.handle(call)
}

func (f *fakeDoer) Calls() []doerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]doerCall(nil), f.calls...)
}

func newTestQueue(t *testing.T, doer *fakeDoer) (*Queue, *localstore.Store) {
	t.Helper()
	log := logging.NewDefault(slog.LevelError)
	store := localstore.New(":memory:", log)
	t.Cleanup(func() { _ = store.Close() })

	cfg := Config{
		RetryCeiling:    5,
		BackoffBase:     time.Millisecond,
		BackoffCap:      5 * time.Millisecond,
		SyncedRetention: 168 * time.Hour,
	}
	return New(store, doer, log, cfg), store
}

func putPending(t *testing.T, store *localstore.Store, r models.PendingRequest) {
	t.Helper()
	doc, err := json.Marshal(r)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), localstore.PendingRequests, localstore.Record{ID: r.ID, Doc: doc}))
}

func putIntent(t *testing.T, store *localstore.Store, it models.SyncQueueItem) {
	t.Helper()
	doc, err := json.Marshal(it)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), localstore.SyncQueue, localstore.Record{ID: it.ID, Doc: doc}))
}

func TestQueue_AddAndCount(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, &fakeDoer{})
	q.online.Store(false) // keep the optimistic drain out of this test

	_, err := q.AddPendingRequest(ctx, "/bookings/b1/cancel", http.MethodPost, []byte(`{"reason":"no-show"}`), nil)
	require.NoError(t, err)
	_, err = q.AddToSyncQueue(ctx, models.ActionCreate, models.EntityBooking, []byte(`{"id":"b2"}`))
	require.NoError(t, err)

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQueue_DrainReplaysInCreationOrder(t *testing.T) {
	ctx := context.Background()
	doer := &fakeDoer{}
	q, store := newTestQueue(t, doer)

	// Interleave the two kinds so order can only come from timestamps.
	putIntent(t, store, models.SyncQueueItem{ID: "i1", Action: models.ActionCreate, Entity: models.EntityTrip, Data: []byte(`{"id":"t-local"}`), Timestamp: 100})
	putPending(t, store, models.PendingRequest{ID: "r1", URL: "/bookings/b1/cancel", Method: http.MethodPost, Timestamp: 200})
	putIntent(t, store, models.SyncQueueItem{ID: "i2", Action: models.ActionUpdate, Entity: models.EntityTrip, Data: []byte(`{"id":"t9","title":"Lisbon"}`), Timestamp: 300})

	require.NoError(t, q.ProcessPending(ctx))

	calls := doer.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "/trips", calls[0].Path)
	assert.Equal(t, "/bookings/b1/cancel", calls[1].Path)
	assert.Equal(t, "/trips/t9", calls[2].Path)
	assert.Equal(t, http.MethodPut, calls[2].Method)

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueue_PendingRequestRetryBookkeeping(t *testing.T) {
	ctx := context.Background()
	doer := &fakeDoer{handle: func(doerCall) ([]byte, error) { return nil, errRefused }}
	q, store := newTestQueue(t, doer)

	putPending(t, store, models.PendingRequest{ID: "r1", URL: "/bookings/b1/cancel", Method: http.MethodPost, Timestamp: 1})

	require.NoError(t, q.ProcessPending(ctx))

	raw, err := store.Get(ctx, localstore.PendingRequests, "r1")
	require.NoError(t, err)
	require.NotNil(t, raw, "request below the ceiling must survive")
	var r models.PendingRequest
	require.NoError(t, json.Unmarshal(raw, &r))
	assert.Equal(t, 1, r.RetryCount)
}

func TestQueue_PendingRequestDroppedAtCeiling(t *testing.T) {
	ctx := context.Background()
	doer := &fakeDoer{handle: func(doerCall) ([]byte, error) { return nil, errRefused }}
	q, store := newTestQueue(t, doer)

	putPending(t, store, models.PendingRequest{ID: "r1", URL: "/payments/p1/refund", Method: http.MethodPost, Timestamp: 1, RetryCount: 4})

	require.NoError(t, q.ProcessPending(ctx))

	raw, err := store.Get(ctx, localstore.PendingRequests, "r1")
	require.NoError(t, err)
	assert.Nil(t, raw, "request at the ceiling must be dropped")
}

func TestQueue_TerminalDropSkipsBackoffPause(t *testing.T) {
	ctx := context.Background()
	doer := &fakeDoer{handle: func(doerCall) ([]byte, error) { return nil, errRefused }}
	log := logging.NewDefault(slog.LevelError)
	store := localstore.New(":memory:", log)
	t.Cleanup(func() { _ = store.Close() })

	// A base this large would dominate the wall clock if dropped items
	// still paced the drain.
	q := New(store, doer, log, Config{
		RetryCeiling:    5,
		BackoffBase:     2 * time.Second,
		BackoffCap:      10 * time.Second,
		SyncedRetention: time.Hour,
	})

	putPending(t, store, models.PendingRequest{ID: "r1", URL: "/payments/p1/refund", Method: http.MethodPost, Timestamp: 1, RetryCount: 4})
	putPending(t, store, models.PendingRequest{ID: "r2", URL: "/payments/p2/refund", Method: http.MethodPost, Timestamp: 2, RetryCount: 4})

	start := time.Now()
	require.NoError(t, q.ProcessPending(ctx))
	assert.Less(t, time.Since(start), time.Second)

	for _, id := range []string{"r1", "r2"} {
		raw, err := store.Get(ctx, localstore.PendingRequests, id)
		require.NoError(t, err)
		assert.Nil(t, raw, "%s must be dropped", id)
	}
}

func TestQueue_PendingRequestSucceedsAfterRetries(t *testing.T) {
	ctx := context.Background()
	doer := &fakeDoer{}
	q, store := newTestQueue(t, doer)

	putPending(t, store, models.PendingRequest{ID: "r1", URL: "/bookings/b1/cancel", Method: http.MethodPost, Timestamp: 1, RetryCount: 4})

	require.NoError(t, q.ProcessPending(ctx))

	raw, err := store.Get(ctx, localstore.PendingRequests, "r1")
	require.NoError(t, err)
	assert.Nil(t, raw, "replayed request must be removed")
}

func TestQueue_IntentMarkedSyncedAndRetained(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t, &fakeDoer{})

	putIntent(t, store, models.SyncQueueItem{ID: "i1", Action: models.ActionDelete, Entity: models.EntityBooking, Data: []byte(`{"id":"b1"}`), Timestamp: models.Now()})

	require.NoError(t, q.ProcessPending(ctx))

	raw, err := store.Get(ctx, localstore.SyncQueue, "i1")
	require.NoError(t, err)
	require.NotNil(t, raw, "fresh synced item is retained for the audit window")
	var it models.SyncQueueItem
	require.NoError(t, json.Unmarshal(raw, &it))
	assert.True(t, it.Synced)

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "synced items do not count as pending")
}

func TestQueue_FailedIntentStaysUnsynced(t *testing.T) {
	ctx := context.Background()
	doer := &fakeDoer{handle: func(doerCall) ([]byte, error) { return nil, errRefused }}
	q, store := newTestQueue(t, doer)

	putIntent(t, store, models.SyncQueueItem{ID: "i1", Action: models.ActionCreate, Entity: models.EntityBooking, Data: []byte(`{"id":"b1"}`), Timestamp: 1})

	require.NoError(t, q.ProcessPending(ctx))

	raw, err := store.Get(ctx, localstore.SyncQueue, "i1")
	require.NoError(t, err)
	var it models.SyncQueueItem
	require.NoError(t, json.Unmarshal(raw, &it))
	assert.False(t, it.Synced)

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueue_AliasRewriteAcrossDependentIntents(t *testing.T) {
	ctx := context.Background()
	localID := models.NewSyntheticID()

	doer := &fakeDoer{handle: func(call doerCall) ([]byte, error) {
		if call.Method == http.MethodPost && call.Path == "/trips" {
			return []byte(`{"data":{"id":"srv-42","title":"Lisbon"}}`), nil
		}
		return []byte(`{}`), nil
	}}
	q, store := newTestQueue(t, doer)

	putIntent(t, store, models.SyncQueueItem{
		ID: "i1", Action: models.ActionCreate, Entity: models.EntityTrip,
		Data: []byte(`{"id":"` + localID + `","title":"Lisbon"}`), Timestamp: 100,
	})
	putIntent(t, store, models.SyncQueueItem{
		ID: "i2", Action: models.ActionCreate, Entity: models.EntityBooking,
		Data: []byte(`{"id":"b-local","tripId":"` + localID + `"}`), Timestamp: 200,
	})
	putIntent(t, store, models.SyncQueueItem{
		ID: "i3", Action: models.ActionUpdate, Entity: models.EntityTrip,
		Data: []byte(`{"id":"` + localID + `","title":"Lisbon & Porto"}`), Timestamp: 300,
	})

	require.NoError(t, q.ProcessPending(ctx))

	calls := doer.Calls()
	require.Len(t, calls, 3)

	var booking map[string]any
	require.NoError(t, json.Unmarshal(calls[1].Body, &booking))
	assert.Equal(t, "srv-42", booking["tripId"], "reference to the offline-created trip must be rewritten")

	assert.Equal(t, "/trips/srv-42", calls[2].Path, "update must target the server id")

	raw, err := store.Get(ctx, localstore.IDAliases, localID)
	require.NoError(t, err)
	require.NotNil(t, raw)
	var alias models.IDAlias
	require.NoError(t, json.Unmarshal(raw, &alias))
	assert.Equal(t, "srv-42", alias.ServerID)
	assert.Equal(t, models.EntityTrip, alias.Entity)
}

func TestQueue_AliasRewriteInCapturedURL(t *testing.T) {
	ctx := context.Background()
	localID := models.NewSyntheticID()

	doer := &fakeDoer{handle: func(call doerCall) ([]byte, error) {
		if call.Method == http.MethodPost && call.Path == "/bookings" {
			return []byte(`{"id":"srv-b7"}`), nil
		}
		return []byte(`{}`), nil
	}}
	q, store := newTestQueue(t, doer)

	putIntent(t, store, models.SyncQueueItem{
		ID: "i1", Action: models.ActionCreate, Entity: models.EntityBooking,
		Data: []byte(`{"id":"` + localID + `"}`), Timestamp: 100,
	})
	putPending(t, store, models.PendingRequest{
		ID: "r1", URL: "/bookings/" + localID + "/cancel", Method: http.MethodPost, Timestamp: 200,
	})

	require.NoError(t, q.ProcessPending(ctx))

	calls := doer.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/bookings/srv-b7/cancel", calls[1].Path)
}

func TestQueue_DrainIsNotReentrant(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	doer := &fakeDoer{handle: func(doerCall) ([]byte, error) {
		once.Do(func() { close(started) })
		<-release
		return []byte(`{}`), nil
	}}
	q, store := newTestQueue(t, doer)

	for i, id := range []string{"i1", "i2", "i3"} {
		putIntent(t, store, models.SyncQueueItem{
			ID: id, Action: models.ActionDelete, Entity: models.EntityBooking,
			Data: []byte(`{"id":"b` + id + `"}`), Timestamp: int64(i + 1),
		})
	}

	done := make(chan error, 1)
	go func() { done <- q.ProcessPending(ctx) }()
	<-started

	// A second drain while the first is mid-flight must be a cheap no-op.
	require.NoError(t, q.ProcessPending(ctx))
	assert.Len(t, doer.Calls(), 1)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, doer.Calls(), 3, "exactly one pass over the log")
}

func TestQueue_DrainSkippedWhileOffline(t *testing.T) {
	ctx := context.Background()
	doer := &fakeDoer{}
	q, store := newTestQueue(t, doer)
	q.SetOnline(false)

	putPending(t, store, models.PendingRequest{ID: "r1", URL: "/bookings/b1/cancel", Method: http.MethodPost, Timestamp: 1})

	require.NoError(t, q.ProcessPending(ctx))
	assert.Empty(t, doer.Calls())
}

func TestQueue_ReconnectTriggersDrain(t *testing.T) {
	doer := &fakeDoer{}
	q, store := newTestQueue(t, doer)
	q.SetOnline(false)

	putPending(t, store, models.PendingRequest{ID: "r1", URL: "/bookings/b1/cancel", Method: http.MethodPost, Timestamp: 1})

	q.SetOnline(true)

	require.Eventually(t, func() bool {
		return len(doer.Calls()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueue_SyncedRetentionCollected(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t, &fakeDoer{})

	old := models.Now() - (169 * time.Hour).Milliseconds()
	putIntent(t, store, models.SyncQueueItem{ID: "stale", Action: models.ActionCreate, Entity: models.EntityTrip, Data: []byte(`{"id":"t1"}`), Timestamp: old, Synced: true})
	putIntent(t, store, models.SyncQueueItem{ID: "fresh", Action: models.ActionCreate, Entity: models.EntityTrip, Data: []byte(`{"id":"t2"}`), Timestamp: models.Now(), Synced: true})

	require.NoError(t, q.ProcessPending(ctx))

	raw, err := store.Get(ctx, localstore.SyncQueue, "stale")
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = store.Get(ctx, localstore.SyncQueue, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, raw)
}
