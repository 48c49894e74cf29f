// Package model defines the client-side entities exchanged with the retreat API.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultPageSize is the fixed number of listings requested per page.
const DefaultPageSize = 5

// Listing is a single bookable retreat. Immutable on the client.
type Listing struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        Date     `json:"date"`
	Location    string   `json:"location"`
	Price       Price    `json:"price"`
	Type        string   `json:"type"`
	Condition   string   `json:"condition"`
	Image       string   `json:"image"`
	Duration    int      `json:"duration"` // days
	Tags        []string `json:"tags"`
}

// SessionUser is the logged-in user together with the auth token.
type SessionUser struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	AuthToken string `json:"token"`
}

// SearchQuery is the (term, page) tuple plus the fixed page size.
type SearchQuery struct {
	Term     string
	Page     int // >= 1
	PageSize int
}

// Normalize clamps Page to >= 1 and fills in the default page size.
func (q SearchQuery) Normalize() SearchQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	return q
}

// ResultPage is one page of listings plus the total page count (>= 1).
type ResultPage struct {
	Items      []Listing
	TotalPages int
}

// Booking is a server-owned booking record; the client only reads RetreatID as membership evidence.
type Booking struct {
	UserID         int    `json:"user_id"`
	RetreatID      int    `json:"retreat_id"`
	UserName       string `json:"user_name"`
	UserEmail      string `json:"user_email"`
	UserPhone      string `json:"user_phone"`
	PaymentDetails string `json:"payment_details"`
	BookingDate    string `json:"booking_date"` // server format, not interpreted
}

// BookingRequest is the POST body for /api/book/:retreatId.
type BookingRequest struct {
	UserID         int       `json:"user_id"`
	UserName       string    `json:"user_name"`
	UserEmail      string    `json:"user_email"`
	UserPhone      string    `json:"user_phone"`
	PaymentDetails string    `json:"payment_details"`
	BookingDate    time.Time `json:"booking_date"`
}

// Date is a calendar date. Decodes "2006-01-02" or RFC 3339, encodes "2006-01-02".
type Date struct{ time.Time }

const dateLayout = "2006-01-02"

// UnmarshalJSON accepts null, a plain date or a full RFC 3339 timestamp.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("date %q: %w", s, err)
	}
	y, m, dd := t.Date()
	d.Time = time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
	return nil
}

// MarshalJSON writes the date as "2006-01-02".
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// String returns "2006-01-02" or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Price is a decimal kept as text. Backends send it either as a string or a JSON number.
type Price string

// UnmarshalJSON accepts "12.50" and 12.5 alike.
func (p *Price) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Price(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = Price(n.String())
	return nil
}
