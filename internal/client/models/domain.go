package models

// Trip is a bookable trip offered by the agency.
type Trip struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Destination string  `json:"destination"`
	StartDate   string  `json:"startDate,omitempty"`
	EndDate     string  `json:"endDate,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Status      string  `json:"status,omitempty"`
	Timestamp   int64   `json:"timestamp,omitempty"`
}

// Booking is a customer booking against a trip.
type Booking struct {
	ID           string  `json:"id"`
	TripID       string  `json:"tripId"`
	CustomerName string  `json:"customerName,omitempty"`
	Seats        int     `json:"seats,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	Status       string  `json:"status,omitempty"`
	Timestamp    int64   `json:"timestamp,omitempty"`
}

// Enquiry is an inbound customer enquiry.
type Enquiry struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Stats is the dashboard snapshot, cached as a singleton.
type Stats struct {
	ID            string  `json:"id"`
	TotalBookings int     `json:"totalBookings"`
	TotalRevenue  float64 `json:"totalRevenue"`
	ActiveTrips   int     `json:"activeTrips"`
	OpenEnquiries int     `json:"openEnquiries"`
	Timestamp     int64   `json:"timestamp,omitempty"`
}

// Profile is the signed-in user's profile, cached as a singleton.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}
