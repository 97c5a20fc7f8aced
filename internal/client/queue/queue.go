// Package queue makes mutations durable across connectivity loss and replays
// them once the server is reachable again. Two kinds of work are recorded:
// raw captured HTTP calls (pending requests) and entity-level intents (sync
// queue items). Both replay as a single log ordered by creation time, so a
// dependency created offline (a trip, say) is always replayed before the
// mutations that reference it.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/tripdesk/internal/client/api"
	"github.com/dmitrijs2005/tripdesk/internal/client/localstore"
	"github.com/dmitrijs2005/tripdesk/internal/client/models"
	"github.com/dmitrijs2005/tripdesk/internal/logging"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Doer executes one raw HTTP call. Implemented by api.Transport.
type Doer interface {
	Do(ctx context.Context, method, path string, body []byte, headers map[string]string) ([]byte, error)
}

type Config struct {
	// RetryCeiling is the attempt limit for a pending request; the record
	// is dropped once it is reached.
	RetryCeiling int
	// BackoffBase/BackoffCap bound the jittered pause inserted after a
	// failed replay before the next item is attempted.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// SyncedRetention is how long replayed intents are kept for inspection.
	SyncedRetention time.Duration
}

// Queue is the durable mutation queue. What is queued lives in the local
// store; the in-memory flags here are scheduling hints only.
type Queue struct {
	store *localstore.Store
	api   Doer
	log   logging.Logger
	cfg   Config

	online   atomic.Bool
	mu       sync.Mutex
	draining bool
}

func New(store *localstore.Store, apiClient Doer, log logging.Logger, cfg Config) *Queue {
	q := &Queue{
		store: store,
		api:   apiClient,
		log:   log.With("component", "queue"),
		cfg:   cfg,
	}
	q.online.Store(true)
	return q
}

// SetOnline records a connectivity transition. Coming back online triggers a
// drain; going offline only flips the flag.
func (q *Queue) SetOnline(online bool) {
	wasOnline := q.online.Swap(online)
	if online && !wasOnline {
		go func() {
			if err := q.ProcessPending(context.Background()); err != nil {
				q.log.Warn(context.Background(), "drain after reconnect failed", "error", err)
			}
		}()
	}
}

// IsOnline reports the queue's view of connectivity.
func (q *Queue) IsOnline() bool {
	return q.online.Load()
}

// AddPendingRequest durably captures a raw HTTP call for byte-for-byte replay.
func (q *Queue) AddPendingRequest(ctx context.Context, url, method string, data json.RawMessage, headers map[string]string) (string, error) {
	rec := models.PendingRequest{
		ID:        uuid.NewString(),
		URL:       url,
		Method:    method,
		Data:      data,
		Headers:   headers,
		Timestamp: models.Now(),
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode pending request: %w", err)
	}
	if err := q.store.Put(ctx, localstore.PendingRequests, localstore.Record{ID: rec.ID, Doc: doc}); err != nil {
		return "", err
	}
	q.log.Info(ctx, "captured pending request", "id", rec.ID, "method", method, "url", url)
	return rec.ID, nil
}

// AddToSyncQueue durably records an entity-level intent. When the device is
// already online the drain is kicked immediately instead of waiting for the
// next reconnect.
func (q *Queue) AddToSyncQueue(ctx context.Context, action models.Action, entity models.Entity, data json.RawMessage) (string, error) {
	item := models.SyncQueueItem{
		ID:        uuid.NewString(),
		Action:    action,
		Entity:    entity,
		Data:      data,
		Timestamp: models.Now(),
	}
	doc, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("failed to encode sync queue item: %w", err)
	}
	if err := q.store.Put(ctx, localstore.SyncQueue, localstore.Record{ID: item.ID, Doc: doc}); err != nil {
		return "", err
	}
	q.log.Info(ctx, "queued intent", "id", item.ID, "action", action, "entity", entity)

	if q.online.Load() {
		go func() {
			if err := q.ProcessPending(context.WithoutCancel(ctx)); err != nil {
				q.log.Warn(context.Background(), "optimistic drain failed", "error", err)
			}
		}()
	}
	return item.ID, nil
}

// PendingCount reports the amount of unreplayed work: pending requests plus
// intents not yet marked synced.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	requests, err := q.store.GetAll(ctx, localstore.PendingRequests)
	if err != nil {
		return 0, err
	}
	unsynced, err := q.store.GetAllByIndex(ctx, localstore.SyncQueue, "synced", 0)
	if err != nil {
		return 0, err
	}
	return len(requests) + len(unsynced), nil
}

// replayItem is one entry of the merged replay log.
type replayItem struct {
	timestamp int64
	request   *models.PendingRequest
	intent    *models.SyncQueueItem
}

// ProcessPending drains the queue: every pending request and unsynced intent
// is replayed against the API in creation order. The routine is
// non-reentrant; a drain requested while one is running is a no-op. Failed
// items pace the drain with capped, jittered exponential backoff so a flaky
// connection is not hammered.
func (q *Queue) ProcessPending(ctx context.Context) error {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return nil
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	if !q.online.Load() {
		q.log.Debug(ctx, "skipping drain while offline")
		return nil
	}

	items, err := q.loadReplayLog(ctx)
	if err != nil {
		return fmt.Errorf("failed to load replay log: %w", err)
	}
	if len(items) == 0 {
		return q.collectSynced(ctx)
	}
	q.log.Info(ctx, "draining queue", "items", len(items))

	// The escalating delay belongs to the item that keeps failing; once
	// something gets through, the next item starts from the base again.
	newBackoff := func() retry.Backoff {
		return retry.WithJitterPercent(20,
			retry.WithCappedDuration(q.cfg.BackoffCap, retry.NewExponential(q.cfg.BackoffBase)))
	}
	backoff := newBackoff()

	for _, item := range items {
		var err error
		if item.request != nil {
			err = q.replayRequest(ctx, item.request)
		} else {
			err = q.replayIntent(ctx, item.intent)
		}
		if err == nil {
			backoff = newBackoff()
			continue
		}

		d, stop := backoff.Next()
		if stop {
			break
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return q.collectSynced(ctx)
}

func (q *Queue) loadReplayLog(ctx context.Context) ([]replayItem, error) {
	var items []replayItem

	rawRequests, err := q.store.GetAll(ctx, localstore.PendingRequests)
	if err != nil {
		return nil, err
	}
	for _, raw := range rawRequests {
		var r models.PendingRequest
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("corrupt pending request: %w", err)
		}
		items = append(items, replayItem{timestamp: r.Timestamp, request: &r})
	}

	rawIntents, err := q.store.GetAllByIndex(ctx, localstore.SyncQueue, "synced", 0)
	if err != nil {
		return nil, err
	}
	for _, raw := range rawIntents {
		var it models.SyncQueueItem
		if err := json.Unmarshal(raw, &it); err != nil {
			return nil, fmt.Errorf("corrupt sync queue item: %w", err)
		}
		items = append(items, replayItem{timestamp: it.Timestamp, intent: &it})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].timestamp < items[j].timestamp
	})
	return items, nil
}

func (q *Queue) replayRequest(ctx context.Context, r *models.PendingRequest) error {
	url, err := q.rewriteURL(ctx, r.URL)
	if err != nil {
		return err
	}

	_, doErr := q.api.Do(ctx, r.Method, url, r.Data, r.Headers)
	if doErr == nil {
		q.log.Info(ctx, "pending request replayed", "id", r.ID, "method", r.Method, "url", r.URL)
		return q.store.Delete(ctx, localstore.PendingRequests, r.ID)
	}

	r.RetryCount++
	if r.RetryCount >= q.cfg.RetryCeiling {
		// Dropping loses the user's write. That trade-off is accepted,
		// but it must never be invisible.
		q.log.Error(ctx, "pending request dropped after retry ceiling",
			"id", r.ID, "method", r.Method, "url", r.URL, "retries", r.RetryCount, "error", doErr)
		// Terminal: nothing left to retry, so no backoff pause either.
		return q.store.Delete(ctx, localstore.PendingRequests, r.ID)
	}

	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode pending request: %w", err)
	}
	if err := q.store.Put(ctx, localstore.PendingRequests, localstore.Record{ID: r.ID, Doc: doc}); err != nil {
		return err
	}
	q.log.Warn(ctx, "pending request replay failed", "id", r.ID, "retries", r.RetryCount, "error", doErr)
	return doErr
}

func (q *Queue) replayIntent(ctx context.Context, item *models.SyncQueueItem) error {
	data, recordID, err := q.rewriteDoc(ctx, item.Data)
	if err != nil {
		return err
	}

	var method, path string
	var body []byte
	plural := item.Entity.Plural()

	switch item.Action {
	case models.ActionCreate:
		method, path, body = http.MethodPost, "/"+plural, data
	case models.ActionUpdate:
		if recordID == "" {
			return fmt.Errorf("update intent %s has no record id", item.ID)
		}
		method, path, body = http.MethodPut, "/"+plural+"/"+recordID, data
	case models.ActionDelete:
		if recordID == "" {
			return fmt.Errorf("delete intent %s has no record id", item.ID)
		}
		method, path = http.MethodDelete, "/"+plural+"/"+recordID
	default:
		return fmt.Errorf("unknown action %q on intent %s", item.Action, item.ID)
	}

	resp, doErr := q.api.Do(ctx, method, path, body, nil)
	if doErr != nil {
		q.log.Warn(ctx, "intent replay failed", "id", item.ID, "action", item.Action, "entity", item.Entity, "error", doErr)
		return doErr
	}

	if item.Action == models.ActionCreate {
		if err := q.recordAlias(ctx, item.Entity, recordID, resp); err != nil {
			q.log.Warn(ctx, "failed to record id alias", "intent", item.ID, "error", err)
		}
	}

	item.Synced = true
	doc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode sync queue item: %w", err)
	}
	if err := q.store.Put(ctx, localstore.SyncQueue, localstore.Record{ID: item.ID, Doc: doc}); err != nil {
		return err
	}
	q.log.Info(ctx, "intent replayed", "id", item.ID, "action", item.Action, "entity", item.Entity)
	return nil
}

// recordAlias captures the server-assigned id of a record created offline so
// later queued mutations referencing the local id can be rewritten.
func (q *Queue) recordAlias(ctx context.Context, entity models.Entity, localID string, resp []byte) error {
	if localID == "" {
		return nil
	}
	obj, err := api.DecodeObject(resp)
	if err != nil || obj == nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(obj, &doc); err != nil {
		return err
	}
	serverID := models.ExtractID(doc)
	if serverID == "" || serverID == localID {
		return nil
	}

	alias := models.IDAlias{ID: localID, ServerID: serverID, Entity: entity, Timestamp: models.Now()}
	aliasDoc, err := json.Marshal(alias)
	if err != nil {
		return err
	}
	q.log.Info(ctx, "recorded id alias", "local", localID, "server", serverID, "entity", entity)
	return q.store.Put(ctx, localstore.IDAliases, localstore.Record{ID: localID, Doc: aliasDoc})
}

// resolveAlias maps a local id to its server id, or returns the id unchanged.
func (q *Queue) resolveAlias(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	raw, err := q.store.Get(ctx, localstore.IDAliases, id)
	if err != nil || raw == nil {
		return id, err
	}
	var alias models.IDAlias
	if err := json.Unmarshal(raw, &alias); err != nil {
		return id, err
	}
	if alias.ServerID == "" {
		return id, nil
	}
	return alias.ServerID, nil
}

// rewriteDoc resolves id aliases in a queued payload: the record's own id and
// any reference field ending in "Id". Returns the possibly-rewritten document
// and the record's effective id.
func (q *Queue) rewriteDoc(ctx context.Context, data json.RawMessage) (json.RawMessage, string, error) {
	if len(data) == 0 {
		return data, "", nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("corrupt intent payload: %w", err)
	}

	changed := false
	for key, value := range doc {
		str, ok := value.(string)
		if !ok || str == "" {
			continue
		}
		if key != "id" && key != "_id" && !strings.HasSuffix(key, "Id") {
			continue
		}
		resolved, err := q.resolveAlias(ctx, str)
		if err != nil {
			return nil, "", err
		}
		if resolved != str {
			doc[key] = resolved
			changed = true
		}
	}

	recordID := models.ExtractID(doc)
	if !changed {
		return data, recordID, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, "", err
	}
	return out, recordID, nil
}

// rewriteURL resolves id aliases appearing as path segments of a captured
// request URL.
func (q *Queue) rewriteURL(ctx context.Context, url string) (string, error) {
	path := url
	var query string
	if i := strings.IndexByte(url, '?'); i >= 0 {
		path, query = url[:i], url[i:]
	}

	segments := strings.Split(path, "/")
	changed := false
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		resolved, err := q.resolveAlias(ctx, seg)
		if err != nil {
			return "", err
		}
		if resolved != seg {
			segments[i] = resolved
			changed = true
		}
	}
	if !changed {
		return url, nil
	}
	return strings.Join(segments, "/") + query, nil
}

// collectSynced removes replayed intents older than the retention window.
func (q *Queue) collectSynced(ctx context.Context) error {
	if q.cfg.SyncedRetention <= 0 {
		return nil
	}
	cutoff := models.Now() - q.cfg.SyncedRetention.Milliseconds()

	synced, err := q.store.GetAllByIndex(ctx, localstore.SyncQueue, "synced", 1)
	if err != nil {
		return err
	}
	for _, raw := range synced {
		var item models.SyncQueueItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if item.Timestamp >= cutoff {
			continue
		}
		if err := q.store.Delete(ctx, localstore.SyncQueue, item.ID); err != nil {
			return err
		}
		q.log.Debug(ctx, "collected synced intent", "id", item.ID)
	}
	return nil
}
