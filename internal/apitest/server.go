// Package apitest runs an in-memory retreat API on an httptest server. Tests across the
// module use it as the black-box backend: it serves listings, search, login and bookings,
// records every request and lets a test block, delay or reject calls.
package apitest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/and161185/retreat-client/internal/model"
)

// Default credentials of the seeded account.
const (
	DefaultUsername = "tyler"
	DefaultPassword = "secret"
	DefaultUserID   = 7
)

// Request is one recorded inbound call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// SearchHook runs before a listing/search response is written. It may block; ctx is the
// request context and is cancelled when the client gives up.
type SearchHook func(ctx context.Context, term string, page int)

type account struct {
	user model.SessionUser
	hash []byte
}

// Server is the fake backend.
type Server struct {
	*httptest.Server

	signKey []byte

	mu         sync.Mutex
	retreats   []model.Listing
	accounts   map[string]account
	bookings   []model.Booking
	requests   []Request
	searchHook SearchHook
	reject     *rejection
}

type rejection struct {
	status  int
	message string
}

// New starts a seeded server and closes it when tb finishes.
func New(tb testing.TB) *Server {
	tb.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		signKey:  []byte("apitest-signing-key"),
		retreats: SeedRetreats(),
		accounts: map[string]account{},
	}
	s.AddUser(model.SessionUser{
		ID:       DefaultUserID,
		Username: DefaultUsername,
		Email:    "tyler@example.com",
		Phone:    "+1-555-0100",
	}, DefaultPassword)

	s.Server = httptest.NewServer(s.router())
	tb.Cleanup(s.Close)
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(s.record)

	api := r.Group("/api")
	api.GET("/retreats", s.listRetreats)
	api.GET("/retreats/search", s.searchRetreats)
	api.POST("/auth/login", s.login)
	api.GET("/book/:userId", s.requireAuth, s.userBookings)
	api.POST("/book/:retreatId", s.requireAuth, s.createBooking)
	return r
}

// AddUser registers an account; the password is stored as a bcrypt hash.
func (s *Server) AddUser(u model.SessionUser, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[u.Username] = account{user: u, hash: hash}
}

// SetRetreats replaces the listing catalogue.
func (s *Server) SetRetreats(items []model.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retreats = append([]model.Listing(nil), items...)
}

// SetSearchHook installs (or clears, with nil) the hook run by listing/search handlers.
func (s *Server) SetSearchHook(h SearchHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchHook = h
}

// RejectBookings makes every booking POST fail with status and message (status 0 clears).
func (s *Server) RejectBookings(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		s.reject = nil
		return
	}
	s.reject = &rejection{status: status, message: message}
}

// AddBooking inserts a booking record directly.
func (s *Server) AddBooking(b model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = append(s.bookings, b)
}

// Bookings returns a copy of all stored bookings.
func (s *Server) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Booking(nil), s.bookings...)
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns recorded requests with the given method whose path starts with prefix.
func (s *Server) RequestsTo(method, prefix string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// ResetRequests forgets recorded requests.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// IssueToken signs an HS256 token for userID valid for ttl (negative ttl yields an expired token).
func (s *Server) IssueToken(userID int, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		panic(err)
	}
	return signed
}

// --- handlers ---

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.Query(),
		Header: c.Request.Header.Clone(),
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) listRetreats(c *gin.Context) {
	s.runHook(c, "")
	s.mu.Lock()
	all := append([]model.Listing(nil), s.retreats...)
	s.mu.Unlock()

	if c.Query("page") == "" && c.Query("limit") == "" {
		c.JSON(http.StatusOK, all)
		return
	}
	s.writePage(c, all)
}

func (s *Server) searchRetreats(c *gin.Context) {
	term := c.Query("search")
	s.runHook(c, term)

	needle := strings.ToLower(term)
	s.mu.Lock()
	var hits []model.Listing
	for _, r := range s.retreats {
		if matches(r, needle) {
			hits = append(hits, r)
		}
	}
	s.mu.Unlock()
	s.writePage(c, hits)
}

func (s *Server) runHook(c *gin.Context, term string) {
	s.mu.Lock()
	hook := s.searchHook
	s.mu.Unlock()
	if hook != nil {
		hook(c.Request.Context(), term, queryInt(c, "page", 1))
	}
}

func (s *Server) writePage(c *gin.Context, items []model.Listing) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", model.DefaultPageSize)

	total := (len(items) + limit - 1) / limit
	if total < 1 {
		total = 1
	}
	from := (page - 1) * limit
	if from > len(items) {
		from = len(items)
	}
	to := from + limit
	if to > len(items) {
		to = len(items)
	}
	c.JSON(http.StatusOK, gin.H{"retreats": items[from:to], "totalPages": total})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}
	s.mu.Lock()
	acc, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":    s.IssueToken(acc.user.ID, time.Hour),
		"id":       acc.user.ID,
		"username": acc.user.Username,
		"email":    acc.user.Email,
		"phone":    acc.user.Phone,
	})
}

func (s *Server) requireAuth(c *gin.Context) {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(h[7:]), &claims, func(t *jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	uid, err := strconv.Atoi(claims.Subject)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	c.Set("uid", uid)
	c.Next()
}

func (s *Server) userBookings(c *gin.Context) {
	uid, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "bad user id"})
		return
	}
	s.mu.Lock()
	out := []model.Booking{}
	for _, b := range s.bookings {
		if b.UserID == uid {
			out = append(out, b)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) createBooking(c *gin.Context) {
	rid, err := strconv.Atoi(c.Param("retreatId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "bad retreat id"})
		return
	}
	var req model.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid booking"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject != nil {
		if s.reject.message == "" {
			c.Status(s.reject.status)
			return
		}
		c.JSON(s.reject.status, gin.H{"message": s.reject.message})
		return
	}
	if !s.hasRetreatLocked(rid) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Retreat not found"})
		return
	}
	for _, b := range s.bookings {
		if b.UserID == req.UserID && b.RetreatID == rid {
			c.JSON(http.StatusConflict, gin.H{"message": "Already booked"})
			return
		}
	}
	s.bookings = append(s.bookings, model.Booking{
		UserID:         req.UserID,
		RetreatID:      rid,
		UserName:       req.UserName,
		UserEmail:      req.UserEmail,
		UserPhone:      req.UserPhone,
		PaymentDetails: req.PaymentDetails,
		BookingDate:    req.BookingDate.UTC().Format(time.RFC3339),
	})
	c.JSON(http.StatusCreated, gin.H{"message": "Booking created"})
}

func (s *Server) hasRetreatLocked(id int) bool {
	for _, r := range s.retreats {
		if r.ID == id {
			return true
		}
	}
	return false
}

func matches(r model.Listing, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.Title), needle) ||
		strings.Contains(strings.ToLower(r.Description), needle) ||
		strings.Contains(strings.ToLower(r.Location), needle) {
		return true
	}
	for _, t := range r.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
