package models

import "encoding/json"

// Action is the kind of mutation captured by a queued intent.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Entity names the aggregate a queued intent targets.
type Entity string

const (
	EntityBooking Entity = "booking"
	EntityTrip    Entity = "trip"
	EntityPayment Entity = "payment"
	EntityEnquiry Entity = "enquiry"
)

// Plural returns the API path segment for the entity.
func (e Entity) Plural() string {
	switch e {
	case EntityBooking:
		return "bookings"
	case EntityTrip:
		return "trips"
	case EntityPayment:
		return "payments"
	case EntityEnquiry:
		return "enquiries"
	}
	return string(e) + "s"
}

// PendingRequest is a raw HTTP call that failed purely due to absence of
// network and must be replayed as captured. Used for mutating endpoints that
// do not map to a first-class intent.
type PendingRequest struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Data       json.RawMessage   `json:"data,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timestamp  int64             `json:"timestamp"`
	RetryCount int               `json:"retryCount"`
}

// SyncQueueItem is a business-level intent (create/update/delete on an
// entity) recorded while offline. Synced items are retained for a bounded
// audit window rather than deleted immediately.
type SyncQueueItem struct {
	ID        string          `json:"id"`
	Action    Action          `json:"action"`
	Entity    Entity          `json:"entity"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Synced    bool            `json:"synced"`
}

// IDAlias maps the synthetic id of a record created offline to the id the
// server assigned once the create replayed. The local id is the primary key.
type IDAlias struct {
	ID        string `json:"id"` // local (synthetic) id
	ServerID  string `json:"serverId"`
	Entity    Entity `json:"entity"`
	Timestamp int64  `json:"timestamp"`
}
