// Package syncengine keeps the local cache warm: timed pulls of the server
// collections into the local store, and cache-first reads that refresh in the
// background so the UI always has something to show.
package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/tripdesk/internal/client/api"
	"github.com/dmitrijs2005/tripdesk/internal/client/localstore"
	"github.com/dmitrijs2005/tripdesk/internal/client/models"
	"github.com/dmitrijs2005/tripdesk/internal/client/session"
	"github.com/dmitrijs2005/tripdesk/internal/logging"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Fetcher issues authorized GET requests. Implemented by api.Transport.
type Fetcher interface {
	GetJSON(ctx context.Context, path string) ([]byte, error)
}

// Online reports current connectivity. Implemented by netx.Monitor.
type Online interface {
	IsOnline() bool
}

// Engine pulls server collections into the local store on a timer and serves
// reads cache-first. A pull is skipped entirely while unauthenticated or
// offline.
type Engine struct {
	store    *localstore.Store
	api      Fetcher
	session  *session.Store
	online   Online
	log      logging.Logger
	interval time.Duration

	mu      sync.Mutex
	syncing bool
}

func New(store *localstore.Store, fetcher Fetcher, sess *session.Store, online Online, log logging.Logger, interval time.Duration) *Engine {
	return &Engine{
		store:    store,
		api:      fetcher,
		session:  sess,
		online:   online,
		log:      log.With("component", "syncengine"),
		interval: interval,
	}
}

// Run performs periodic full pulls until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.SyncAll(ctx); err != nil {
				e.log.Warn(ctx, "periodic sync incomplete", "error", err)
			}
		}
	}
}

// SyncAll pulls every collection concurrently. One collection failing does
// not stop the others; the combined error reports everything that went wrong.
// Non-reentrant: a pull requested while one is running is a no-op.
func (e *Engine) SyncAll(ctx context.Context) error {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return nil
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	if !e.canSync(ctx) {
		return nil
	}
	e.log.Info(ctx, "starting full sync")

	var (
		errMu  sync.Mutex
		result error
	)
	collect := func(name string, fn func(context.Context) error) func() error {
		return func() error {
			if err := fn(ctx); err != nil {
				e.log.Warn(ctx, "collection sync failed", "collection", name, "error", err)
				errMu.Lock()
				result = multierr.Append(result, err)
				errMu.Unlock()
			}
			return nil
		}
	}

	var g errgroup.Group
	g.Go(collect("trips", e.SyncTrips))
	g.Go(collect("bookings", func(ctx context.Context) error { return e.SyncBookings(ctx, "") }))
	g.Go(collect("enquiries", e.SyncEnquiries))
	g.Go(collect("stats", e.SyncStats))
	g.Go(collect("profile", e.SyncProfile))
	_ = g.Wait()

	if result == nil {
		e.log.Info(ctx, "full sync complete")
	}
	return result
}

func (e *Engine) canSync(ctx context.Context) bool {
	if !e.session.IsAuthenticated() {
		e.log.Debug(ctx, "skipping sync, not authenticated")
		return false
	}
	if e.online != nil && !e.online.IsOnline() {
		e.log.Debug(ctx, "skipping sync while offline")
		return false
	}
	return true
}

// SyncTrips pulls the trip catalog.
func (e *Engine) SyncTrips(ctx context.Context) error {
	return e.pullCollection(ctx, "/trips", "trips", localstore.Trips)
}

// SyncBookings pulls bookings, optionally scoped to one trip.
func (e *Engine) SyncBookings(ctx context.Context, tripID string) error {
	path := "/bookings"
	if tripID != "" {
		path = "/trips/" + tripID + "/bookings"
	}
	return e.pullCollection(ctx, path, "bookings", localstore.Bookings)
}

// SyncEnquiries pulls customer enquiries.
func (e *Engine) SyncEnquiries(ctx context.Context) error {
	return e.pullCollection(ctx, "/enquiries", "enquiries", localstore.Enquiries)
}

// SyncStats pulls the dashboard stats snapshot.
func (e *Engine) SyncStats(ctx context.Context) error {
	return e.pullSingleton(ctx, "/dashboard/stats", localstore.Stats, models.StatsKey)
}

// SyncProfile pulls the signed-in user's profile.
func (e *Engine) SyncProfile(ctx context.Context) error {
	return e.pullSingleton(ctx, "/auth/profile", localstore.Profile, models.ProfileKey)
}

// pullCollection fetches a list endpoint and upserts every record. An empty
// result leaves the cache untouched rather than wiping it: the server answered
// with nothing, which is not the same as the server saying delete everything.
func (e *Engine) pullCollection(ctx context.Context, path, plural string, c localstore.Collection) error {
	body, err := e.api.GetJSON(ctx, path)
	if err != nil {
		return err
	}
	res, err := api.DecodeCollection(body, plural)
	if err != nil {
		return err
	}
	if res.Empty {
		e.log.Debug(ctx, "nothing to cache", "path", path)
		return nil
	}

	recs := make([]localstore.Record, 0, len(res.Records))
	for _, raw := range res.Records {
		id, doc, err := models.Stamp(raw)
		if err != nil {
			return err
		}
		recs = append(recs, localstore.Record{ID: id, Doc: doc})
	}
	if err := e.store.PutMany(ctx, c, recs); err != nil {
		return err
	}
	e.log.Debug(ctx, "cached collection", "path", path, "records", len(recs))
	return nil
}

func (e *Engine) pullSingleton(ctx context.Context, path string, c localstore.Collection, key string) error {
	body, err := e.api.GetJSON(ctx, path)
	if err != nil {
		return err
	}
	obj, err := api.DecodeObject(body)
	if err != nil {
		return err
	}
	if obj == nil {
		return nil
	}

	// Singletons keep their fixed key but carry the same freshness stamp as
	// collection records.
	var doc map[string]any
	if err := json.Unmarshal(obj, &doc); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	doc["timestamp"] = models.Now()
	out, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return e.store.Put(ctx, c, localstore.Record{ID: key, Doc: out})
}

// GetTrips returns cached trips immediately and refreshes in the background.
// An empty cache falls through to a blocking pull.
func (e *Engine) GetTrips(ctx context.Context) ([]json.RawMessage, error) {
	return e.readList(ctx,
		func(ctx context.Context) ([]json.RawMessage, error) { return e.store.GetAll(ctx, localstore.Trips) },
		e.SyncTrips)
}

// GetBookings returns cached bookings, filtered by trip when tripID is set.
func (e *Engine) GetBookings(ctx context.Context, tripID string) ([]json.RawMessage, error) {
	read := func(ctx context.Context) ([]json.RawMessage, error) {
		if tripID != "" {
			return e.store.GetAllByIndex(ctx, localstore.Bookings, "tripId", tripID)
		}
		return e.store.GetAll(ctx, localstore.Bookings)
	}
	return e.readList(ctx, read, func(ctx context.Context) error { return e.SyncBookings(ctx, tripID) })
}

// GetEnquiries returns cached enquiries.
func (e *Engine) GetEnquiries(ctx context.Context) ([]json.RawMessage, error) {
	return e.readList(ctx,
		func(ctx context.Context) ([]json.RawMessage, error) { return e.store.GetAll(ctx, localstore.Enquiries) },
		e.SyncEnquiries)
}

func (e *Engine) readList(ctx context.Context, read func(context.Context) ([]json.RawMessage, error), pull func(context.Context) error) ([]json.RawMessage, error) {
	cached, err := read(ctx)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		e.refreshAsync(ctx, pull)
		return cached, nil
	}

	if !e.canSync(ctx) {
		return cached, nil
	}
	if err := pull(ctx); err != nil {
		return nil, err
	}
	return read(ctx)
}

// GetTrip returns one trip, fetching it on a cache miss.
func (e *Engine) GetTrip(ctx context.Context, id string) (json.RawMessage, error) {
	return e.readOne(ctx, localstore.Trips, id, "/trips/"+id)
}

// GetBooking returns one booking, fetching it on a cache miss.
func (e *Engine) GetBooking(ctx context.Context, id string) (json.RawMessage, error) {
	return e.readOne(ctx, localstore.Bookings, id, "/bookings/"+id)
}

func (e *Engine) readOne(ctx context.Context, c localstore.Collection, id, path string) (json.RawMessage, error) {
	cached, err := e.store.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	if !e.canSync(ctx) {
		return nil, nil
	}

	body, err := e.api.GetJSON(ctx, path)
	if err != nil {
		return nil, err
	}
	obj, err := api.DecodeObject(body)
	if err != nil || obj == nil {
		return nil, err
	}
	recID, doc, err := models.Stamp(obj)
	if err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, c, localstore.Record{ID: recID, Doc: doc}); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetStats returns the cached dashboard snapshot, pulling it on a miss.
func (e *Engine) GetStats(ctx context.Context) (json.RawMessage, error) {
	return e.readSingleton(ctx, localstore.Stats, models.StatsKey, e.SyncStats)
}

// GetProfile returns the cached profile, pulling it on a miss.
func (e *Engine) GetProfile(ctx context.Context) (json.RawMessage, error) {
	return e.readSingleton(ctx, localstore.Profile, models.ProfileKey, e.SyncProfile)
}

func (e *Engine) readSingleton(ctx context.Context, c localstore.Collection, key string, pull func(context.Context) error) (json.RawMessage, error) {
	cached, err := e.store.Get(ctx, c, key)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		e.refreshAsync(ctx, pull)
		return cached, nil
	}
	if !e.canSync(ctx) {
		return nil, nil
	}
	if err := pull(ctx); err != nil {
		return nil, err
	}
	return e.store.Get(ctx, c, key)
}

// refreshAsync revalidates a cached answer in the background. Callers already
// have their data; a failed refresh is only worth a log line.
func (e *Engine) refreshAsync(ctx context.Context, pull func(context.Context) error) {
	if !e.canSync(ctx) {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := pull(bg); err != nil {
			e.log.Debug(bg, "background refresh failed", "error", err)
		}
	}()
}

// ClearLocalData drops the cached server truth. Queued mutations and id
// aliases survive: work recorded offline must not be lost by a logout.
func (e *Engine) ClearLocalData(ctx context.Context) error {
	var result error
	for _, c := range localstore.DomainCollections {
		result = multierr.Append(result, e.store.Clear(ctx, c))
	}
	if result == nil {
		e.log.Info(ctx, "local cache cleared")
	}
	return result
}
