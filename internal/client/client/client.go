// Package client is the single choke point for API access. Every read and
// mutation goes through here; this is the one place that decides, per
// failure, whether to serve the cache, queue the write, or surface the error.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/dmitrijs2005/tripdesk/internal/client/api"
	"github.com/dmitrijs2005/tripdesk/internal/client/localstore"
	"github.com/dmitrijs2005/tripdesk/internal/client/models"
	"github.com/dmitrijs2005/tripdesk/internal/client/queue"
	"github.com/dmitrijs2005/tripdesk/internal/client/session"
	"github.com/dmitrijs2005/tripdesk/internal/client/syncengine"
	"github.com/dmitrijs2005/tripdesk/internal/logging"
)

// Transport issues raw HTTP calls. Implemented by api.Transport.
type Transport interface {
	Do(ctx context.Context, method, path string, body []byte, headers map[string]string) ([]byte, error)
	GetJSON(ctx context.Context, path string) ([]byte, error)
}

// Client wraps the transport with offline behavior: GET failures fall back to
// the local cache, mutation failures caused by absent network are queued for
// replay, and a 401 tears down the session exactly once.
type Client struct {
	api     Transport
	queue   *queue.Queue
	engine  *syncengine.Engine
	store   *localstore.Store
	session *session.Store
	log     logging.Logger

	mu        sync.Mutex
	loggedOut bool
}

func New(transport Transport, q *queue.Queue, e *syncengine.Engine, store *localstore.Store, sess *session.Store, log logging.Logger) *Client {
	return &Client{
		api:     transport,
		queue:   q,
		engine:  e,
		store:   store,
		session: sess,
		log:     log.With("component", "client"),
	}
}

// Authorize installs a fresh token and re-arms the 401 handler.
func (c *Client) Authorize(token string) {
	c.session.Set(token)
	c.mu.Lock()
	c.loggedOut = false
	c.mu.Unlock()
}

// Logout clears the session and the cached server truth. Queued offline work
// is kept.
func (c *Client) Logout(ctx context.Context) error {
	c.session.Clear()
	return c.engine.ClearLocalData(ctx)
}

// Get fetches a resource, falling back to the local cache when the network is
// absent. Cache answers are returned in normalized shape: a bare JSON array
// for list endpoints, a bare object otherwise. When the cache has nothing for
// the path the original network error is returned.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	body, err := c.api.GetJSON(ctx, path)
	if err == nil {
		return body, nil
	}
	if errors.Is(err, api.ErrUnauthorized) {
		c.handleUnauthorized(ctx)
		return nil, err
	}
	if !api.IsNetworkAbsent(err) {
		return nil, err
	}

	pattern, ok := api.ClassifyRead(path)
	if !ok {
		return nil, err
	}
	cached, cacheErr := c.readCache(ctx, pattern)
	if cacheErr != nil {
		c.log.Warn(ctx, "cache fallback failed", "path", path, "error", cacheErr)
		return nil, err
	}
	if cached == nil {
		return nil, err
	}
	c.log.Info(ctx, "served from cache", "path", path)
	return cached, nil
}

func (c *Client) readCache(ctx context.Context, p api.ReadPattern) ([]byte, error) {
	switch p.Kind {
	case api.ReadTripList:
		return marshalList(c.engine.GetTrips(ctx))
	case api.ReadTrip:
		doc, err := c.engine.GetTrip(ctx, p.ID)
		return doc, err
	case api.ReadBookingList:
		return marshalList(c.engine.GetBookings(ctx, p.TripID))
	case api.ReadBooking:
		doc, err := c.engine.GetBooking(ctx, p.ID)
		return doc, err
	case api.ReadEnquiryList:
		return marshalList(c.engine.GetEnquiries(ctx))
	case api.ReadStats:
		doc, err := c.engine.GetStats(ctx)
		return doc, err
	case api.ReadProfile:
		doc, err := c.engine.GetProfile(ctx)
		return doc, err
	}
	return nil, nil
}

func marshalList(docs []json.RawMessage, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return json.Marshal(docs)
}

// Post sends a create, queueing it if the network is absent.
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.mutate(ctx, http.MethodPost, path, body)
}

// Put sends a full update, queueing it if the network is absent.
func (c *Client) Put(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.mutate(ctx, http.MethodPut, path, body)
}

// Patch sends a partial update, queueing it if the network is absent.
func (c *Client) Patch(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.mutate(ctx, http.MethodPatch, path, body)
}

// Delete sends a delete, queueing it if the network is absent.
func (c *Client) Delete(ctx context.Context, path string) ([]byte, error) {
	return c.mutate(ctx, http.MethodDelete, path, nil)
}

func (c *Client) mutate(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	resp, err := c.api.Do(ctx, method, path, body, nil)
	if err == nil {
		c.refreshAffected(ctx, path)
		return resp, nil
	}
	if errors.Is(err, api.ErrUnauthorized) {
		c.handleUnauthorized(ctx)
		return nil, err
	}
	if !api.IsNetworkAbsent(err) || !api.Queueable(path) {
		return nil, err
	}

	queueID, queueErr := c.enqueue(ctx, method, path, body)
	if queueErr != nil {
		// Losing the queue write means the mutation is simply lost; tell
		// the caller about the network, not the bookkeeping.
		c.log.Error(ctx, "failed to queue mutation", "method", method, "path", path, "error", queueErr)
		return nil, err
	}
	return nil, &api.QueuedError{QueueID: queueID, Err: err}
}

// enqueue records an offline mutation: recognized CRUD becomes an intent with
// an optimistic local cache apply, anything else is captured verbatim.
func (c *Client) enqueue(ctx context.Context, method, path string, body []byte) (string, error) {
	intent, ok := api.ClassifyMutation(method, path)
	if !ok {
		return c.queue.AddPendingRequest(ctx, path, method, body, nil)
	}

	data, id, err := payloadWithID(intent, body)
	if err != nil {
		return "", err
	}
	queueID, err := c.queue.AddToSyncQueue(ctx, intent.Action, intent.Entity, data)
	if err != nil {
		return "", err
	}
	c.applyLocally(ctx, intent, id, data)
	return queueID, nil
}

// payloadWithID makes sure the queued document carries its record id: the one
// from the URL for update/delete, a synthetic one for creates.
func payloadWithID(intent api.Intent, body []byte) (json.RawMessage, string, error) {
	doc := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, "", err
		}
	}

	id := models.ExtractID(doc)
	if id == "" {
		id = intent.ID
		if id == "" {
			id = models.NewSyntheticID()
		}
		doc["id"] = id
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, "", err
	}
	return out, id, nil
}

// applyLocally mirrors a queued mutation into the cache so reads made while
// still offline see the pending change. Best effort: the queued intent, not
// the cache, is the durable record.
func (c *Client) applyLocally(ctx context.Context, intent api.Intent, id string, data json.RawMessage) {
	col, ok := collectionFor(intent.Entity)
	if !ok {
		return
	}

	var err error
	switch intent.Action {
	case models.ActionCreate, models.ActionUpdate:
		var doc json.RawMessage
		_, doc, err = models.Stamp(data)
		if err == nil {
			err = c.store.Put(ctx, col, localstore.Record{ID: id, Doc: doc})
		}
	case models.ActionDelete:
		err = c.store.Delete(ctx, col, id)
	}
	if err != nil {
		c.log.Warn(ctx, "optimistic cache apply failed", "entity", intent.Entity, "id", id, "error", err)
	}
}

func collectionFor(e models.Entity) (localstore.Collection, bool) {
	switch e {
	case models.EntityTrip:
		return localstore.Trips, true
	case models.EntityBooking:
		return localstore.Bookings, true
	case models.EntityEnquiry:
		return localstore.Enquiries, true
	}
	return "", false
}

// refreshAffected re-pulls the collections a successful mutation touched.
// Fire and forget; the caller already has its answer.
func (c *Client) refreshAffected(ctx context.Context, path string) {
	segment := firstSegment(path)
	bg := context.WithoutCancel(ctx)
	go func() {
		var err error
		switch segment {
		case "trips":
			err = c.engine.SyncTrips(bg)
		case "bookings", "payments":
			err = c.engine.SyncBookings(bg, "")
		case "enquiries":
			err = c.engine.SyncEnquiries(bg)
		default:
			return
		}
		if err != nil {
			c.log.Debug(bg, "post-mutation refresh failed", "path", path, "error", err)
			return
		}
		if err := c.engine.SyncStats(bg); err != nil {
			c.log.Debug(bg, "stats refresh failed", "error", err)
		}
	}()
}

func firstSegment(path string) string {
	clean := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(clean, '?'); i >= 0 {
		clean = clean[:i]
	}
	if i := strings.IndexByte(clean, '/'); i >= 0 {
		clean = clean[:i]
	}
	return clean
}

// handleUnauthorized clears the session on the first 401 of a session.
// Repeated 401s from in-flight requests must not thrash.
func (c *Client) handleUnauthorized(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedOut {
		return
	}
	c.loggedOut = true
	c.session.Clear()
	c.log.Warn(ctx, "session rejected by server, signed out locally")
}
