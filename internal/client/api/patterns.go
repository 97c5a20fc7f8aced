package api

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/tripdesk/internal/client/models"
)

// Intent is a mutation recognized as a first-class create/update/delete on
// one of the primary aggregates.
type Intent struct {
	Action models.Action
	Entity models.Entity
	ID     string // record id for update/delete, empty for create
}

var mutationPatterns = []struct {
	methods []string
	re      *regexp.Regexp
	action  models.Action
	entity  models.Entity
}{
	{[]string{http.MethodPost}, regexp.MustCompile(`^/bookings$`), models.ActionCreate, models.EntityBooking},
	{[]string{http.MethodPut, http.MethodPatch}, regexp.MustCompile(`^/bookings/([^/]+)$`), models.ActionUpdate, models.EntityBooking},
	{[]string{http.MethodDelete}, regexp.MustCompile(`^/bookings/([^/]+)$`), models.ActionDelete, models.EntityBooking},
	{[]string{http.MethodPost}, regexp.MustCompile(`^/trips$`), models.ActionCreate, models.EntityTrip},
	{[]string{http.MethodPut, http.MethodPatch}, regexp.MustCompile(`^/trips/([^/]+)$`), models.ActionUpdate, models.EntityTrip},
	{[]string{http.MethodDelete}, regexp.MustCompile(`^/trips/([^/]+)$`), models.ActionDelete, models.EntityTrip},
	{[]string{http.MethodPost}, regexp.MustCompile(`^/payments$`), models.ActionCreate, models.EntityPayment},
	{[]string{http.MethodPut, http.MethodPatch}, regexp.MustCompile(`^/payments/([^/]+)$`), models.ActionUpdate, models.EntityPayment},
	{[]string{http.MethodDelete}, regexp.MustCompile(`^/payments/([^/]+)$`), models.ActionDelete, models.EntityPayment},
}

// ClassifyMutation maps a mutating endpoint onto a queue intent. Endpoints
// that are not plain CRUD on a primary aggregate — the booking cancel action
// among them — deliberately do not match and are captured as raw pending
// requests instead.
func ClassifyMutation(method, path string) (Intent, bool) {
	clean := stripQuery(path)
	for _, p := range mutationPatterns {
		if !contains(p.methods, method) {
			continue
		}
		m := p.re.FindStringSubmatch(clean)
		if m == nil {
			continue
		}
		intent := Intent{Action: p.action, Entity: p.entity}
		if len(m) > 1 {
			intent.ID = m[1]
		}
		return intent, true
	}
	return Intent{}, false
}

// Queueable reports whether a failed mutation on this path may be captured
// for replay at all. Auth endpoints never queue: replaying a login against a
// stale password is worse than failing fast.
func Queueable(path string) bool {
	return !strings.HasPrefix(stripQuery(path), "/auth")
}

// ReadKind identifies the cache fallback applicable to a GET endpoint.
type ReadKind int

const (
	ReadNone ReadKind = iota
	ReadTripList
	ReadTrip
	ReadBookingList
	ReadBooking
	ReadEnquiryList
	ReadStats
	ReadProfile
)

// ReadPattern carries the parsed fallback route.
type ReadPattern struct {
	Kind   ReadKind
	ID     string
	TripID string // set for booking lists filtered by trip
}

var (
	tripByID       = regexp.MustCompile(`^/trips/([^/]+)$`)
	bookingByID    = regexp.MustCompile(`^/bookings/([^/]+)$`)
	bookingsByTrip = regexp.MustCompile(`^/trips/([^/]+)/bookings$`)
)

// ClassifyRead maps a GET endpoint onto the cached collection that can serve
// it while offline.
func ClassifyRead(path string) (ReadPattern, bool) {
	clean := stripQuery(path)

	switch clean {
	case "/trips":
		return ReadPattern{Kind: ReadTripList}, true
	case "/bookings":
		return ReadPattern{Kind: ReadBookingList, TripID: queryParam(path, "tripId")}, true
	case "/enquiries":
		return ReadPattern{Kind: ReadEnquiryList}, true
	case "/dashboard/stats":
		return ReadPattern{Kind: ReadStats}, true
	case "/auth/profile":
		return ReadPattern{Kind: ReadProfile}, true
	}

	if m := bookingsByTrip.FindStringSubmatch(clean); m != nil {
		return ReadPattern{Kind: ReadBookingList, TripID: m[1]}, true
	}
	if m := tripByID.FindStringSubmatch(clean); m != nil {
		return ReadPattern{Kind: ReadTrip, ID: m[1]}, true
	}
	if m := bookingByID.FindStringSubmatch(clean); m != nil {
		return ReadPattern{Kind: ReadBooking, ID: m[1]}, true
	}
	return ReadPattern{}, false
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func queryParam(path, key string) string {
	i := strings.IndexByte(path, '?')
	if i < 0 {
		return ""
	}
	values, err := url.ParseQuery(path[i+1:])
	if err != nil {
		return ""
	}
	return values.Get(key)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
