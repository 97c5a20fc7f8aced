package localstore

import "fmt"

// Collection names a local cache table.
type Collection string

const (
	Trips           Collection = "trips"
	Bookings        Collection = "bookings"
	Enquiries       Collection = "enquiries"
	PendingRequests Collection = "pending_requests"
	SyncQueue       Collection = "sync_queue"
	Stats           Collection = "stats"
	Profile         Collection = "profile"
	IDAliases       Collection = "id_aliases"
)

// DomainCollections are the collections that hold cached server truth. They
// are dropped on logout; queue collections deliberately are not.
var DomainCollections = []Collection{Trips, Bookings, Enquiries, Stats, Profile}

type collectionDef struct {
	table string
	// index name (as callers know it) -> generated column backing it
	indexes map[string]string
}

// The registry doubles as a whitelist: table and column names are interpolated
// into SQL, so every identifier must come from here.
var collections = map[Collection]collectionDef{
	Trips:           {table: "trips"},
	Bookings:        {table: "bookings", indexes: map[string]string{"tripId": "trip_id"}},
	Enquiries:       {table: "enquiries", indexes: map[string]string{"timestamp": "ts", "status": "status"}},
	PendingRequests: {table: "pending_requests", indexes: map[string]string{"timestamp": "ts"}},
	SyncQueue:       {table: "sync_queue", indexes: map[string]string{"synced": "synced", "timestamp": "ts"}},
	Stats:           {table: "stats"},
	Profile:         {table: "profile"},
	IDAliases:       {table: "id_aliases"},
}

func resolve(c Collection) (collectionDef, error) {
	def, ok := collections[c]
	if !ok {
		return collectionDef{}, fmt.Errorf("unknown collection %q", c)
	}
	return def, nil
}

func (d collectionDef) column(index string) (string, error) {
	col, ok := d.indexes[index]
	if !ok {
		return "", fmt.Errorf("collection %q has no index %q", d.table, index)
	}
	return col, nil
}
