// Package gateway wraps outbound calls to the retreat listing/booking/auth REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/retreat-client/internal/errs"
	"github.com/and161185/retreat-client/internal/model"
)

// DefaultTimeout bounds every call when the caller does not configure one.
const DefaultTimeout = 10 * time.Second

// maxBody caps response bodies read into memory.
const maxBody = 4 << 20

// Client is an HTTP client for the retreat API. Safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client (tests use httptest servers' clients).
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout sets the per-call timeout. Expiry surfaces as errs.ErrNetwork.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for per-request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New constructs a Client for the API rooted at baseURL (e.g. http://localhost:5000).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: bad base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway: unsupported scheme %q", u.Scheme)
	}
	c := &Client{base: u, http: http.DefaultClient, timeout: DefaultTimeout, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Retreats fetches one page of listings. An empty term lists everything; a non-empty
// term goes to the search endpoint.
func (c *Client) Retreats(ctx context.Context, q model.SearchQuery) (model.ResultPage, error) {
	q = q.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.PageSize))
	path := "/api/retreats"
	if q.Term != "" {
		path = "/api/retreats/search"
		v.Set("search", q.Term)
	}

	body, _, err := c.do(ctx, http.MethodGet, path, v, "", nil)
	if err != nil {
		return model.ResultPage{}, err
	}
	page, err := decodePage(body)
	if err != nil {
		return model.ResultPage{}, fmt.Errorf("retreats: %w", err)
	}
	return page, nil
}

// AllRetreats fetches the non-paginated listing variant.
func (c *Client) AllRetreats(ctx context.Context) ([]model.Listing, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/api/retreats", nil, "", nil)
	if err != nil {
		return nil, err
	}
	page, err := decodePage(body)
	if err != nil {
		return nil, fmt.Errorf("retreats: %w", err)
	}
	return page.Items, nil
}

// UserBookings returns all booking records of userID.
func (c *Client) UserBookings(ctx context.Context, token string, userID int) ([]model.Booking, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/api/book/"+strconv.Itoa(userID), nil, token, nil)
	if err != nil {
		return nil, err
	}
	var out []model.Booking
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("bookings: decode: %w", err)
	}
	return out, nil
}

// Book creates a booking. Only 201 Created counts as success; anything else is a
// *errs.ServerRejectedError carrying the server's message (possibly empty).
func (c *Client) Book(ctx context.Context, token string, retreatID int, req model.BookingRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	body, status, err := c.do(ctx, http.MethodPost, "/api/book/"+strconv.Itoa(retreatID), nil, token, payload)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return &errs.ServerRejectedError{Status: status, Message: serverMessage(body)}
	}
	return nil
}

// Login exchanges credentials for a session user carrying the auth token.
func (c *Client) Login(ctx context.Context, username, password string) (model.SessionUser, error) {
	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	body, _, err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, "", payload)
	if err != nil {
		return model.SessionUser{}, err
	}
	return decodeLogin(body)
}

// do performs one request with a bounded timeout. Non-2xx statuses become
// *errs.ServerRejectedError (401 additionally matches errs.ErrUnauthorized).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, payload []byte) ([]byte, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, u.String(), rdr)
	if err != nil {
		return nil, 0, err
	}
	rid := uuid.Must(uuid.NewV4()).String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", rid)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, c.transportErr(ctx, method, path, rid, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resp.StatusCode, c.transportErr(ctx, method, path, rid, err)
	}

	c.log.Debug("http",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
		zap.String("request_id", rid),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rej := &errs.ServerRejectedError{Status: resp.StatusCode, Message: serverMessage(body)}
		if resp.StatusCode == http.StatusUnauthorized {
			return body, resp.StatusCode, fmt.Errorf("%w: %w", errs.ErrUnauthorized, rej)
		}
		return body, resp.StatusCode, rej
	}
	return body, resp.StatusCode, nil
}

// transportErr maps a failed round-trip: caller cancellation → ErrCancelled, anything else
// (including our own timeout) → ErrNetwork.
func (c *Client) transportErr(parent context.Context, method, path, rid string, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return fmt.Errorf("%s %s: %w", method, path, errs.ErrCancelled)
	}
	c.log.Debug("http failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", rid),
		zap.Error(err),
	)
	return fmt.Errorf("%s %s: %w: %v", method, path, errs.ErrNetwork, err)
}

// serverMessage extracts {"message": ...} or {"error": ...} from an error body.
func serverMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &m) != nil {
		return ""
	}
	if m.Message != "" {
		return m.Message
	}
	return m.Error
}

// decodePage normalizes {retreats,totalPages}, {items,totalPages} and a bare array.
func decodePage(body []byte) (model.ResultPage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []model.Listing
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return model.ResultPage{}, err
		}
		return model.ResultPage{Items: items, TotalPages: 1}, nil
	}
	var wire struct {
		Retreats   []model.Listing `json:"retreats"`
		Items      []model.Listing `json:"items"`
		TotalPages int             `json:"totalPages"`
	}
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return model.ResultPage{}, err
	}
	items := wire.Retreats
	if items == nil {
		items = wire.Items
	}
	if items == nil {
		items = []model.Listing{}
	}
	if wire.TotalPages < 1 {
		wire.TotalPages = 1
	}
	return model.ResultPage{Items: items, TotalPages: wire.TotalPages}, nil
}

type loginUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// decodeLogin accepts a flat {token,id,username,...} payload or one with a nested "user".
func decodeLogin(body []byte) (model.SessionUser, error) {
	var wire struct {
		loginUser
		Token string     `json:"token"`
		User  *loginUser `json:"user"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return model.SessionUser{}, fmt.Errorf("login: decode: %w", err)
	}
	if wire.Token == "" {
		return model.SessionUser{}, errors.New("login: response has no token")
	}
	u := wire.loginUser
	if wire.User != nil {
		u = *wire.User
	}
	return model.SessionUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		AuthToken: wire.Token,
	}, nil
}
