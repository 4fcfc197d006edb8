// Package fakest9 provides a fake ST9 HTTP server for testing purposes.
// It keeps entities, schemas and quarantine flags in memory and answers the
// same paths and status codes as the real store, including index scans with
// page tokens, unique lookups and counters.
//
// To flexibly inject failures, you can configure stub responses
// that match specific requests, along with failure configurations
// that specify how they fail (e.g., delays, error statuses, dropped
// connections).
package fakest9

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/st9db/st9.go/internal/rand"
)

// FailureType represents the type of failure to inject during request processing
type FailureType string

const (
	FailureNone FailureType = "none"
	// FailureRequestDelay delays before processing the request
	FailureRequestDelay FailureType = "request_delay"
	// FailureStatus answers with the configured status and body
	FailureStatus FailureType = "status"
	// FailureInvalidResponse answers 200 with a body that is not JSON
	FailureInvalidResponse FailureType = "invalid_response"
	// FailureDropConnection closes the connection without answering
	FailureDropConnection FailureType = "drop_connection"
)

// RequestMatcher defines criteria for matching incoming requests.
type RequestMatcher struct {
	// Method is the HTTP method to match. Empty matches any method.
	Method string
	// PathPrefix is matched against the escaped request path.
	PathPrefix string
	// Matcher is an optional function for anything else.
	Matcher func(r *http.Request) bool
}

func (m RequestMatcher) match(r *http.Request) bool {
	if m.Method != "" && m.Method != r.Method {
		return false
	}
	if m.PathPrefix != "" && !strings.HasPrefix(r.URL.EscapedPath(), m.PathPrefix) {
		return false
	}
	return m.Matcher == nil || m.Matcher(r)
}

// StubResponse defines a pre-configured response for matching requests.
// A stub with a zero Status only applies its failures and lets the request
// through to the in-memory store.
type StubResponse struct {
	Matcher  RequestMatcher
	Status   int
	Body     string
	Failures []FailureConfig
	// Times limits how often the stub applies. 0 means always.
	Times int

	used int
}

// FailureConfig defines how and when to inject a specific failure type
type FailureConfig struct {
	Type FailureType
	// Probability of triggering this failure (0.0 to 1.0)
	Probability float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
	// Status and Body are used by FailureStatus
	Status int
	Body   string
}

// Request is a request the server received.
type Request struct {
	Method string
	Path   string
	Header http.Header
}

// Server is a fake ST9 server with support for stub responses and failure
// injection.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	router   *mux.Router

	mu             sync.RWMutex
	stubResponses  []*StubResponse
	globalFailures []FailureConfig
	requests       []Request
	db             *memDB
	nukeEnabled    bool
}

// NewServer creates a new fake ST9 server.
// Use "127.0.0.1:0" to bind to a random available port.
func NewServer(addr string) *Server {
	s := &Server{
		addr: addr,
		db:   newMemDB(),
	}

	r := mux.NewRouter()
	r.UseEncodedPath()
	r.Use(s.record, s.inject)

	r.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)
	r.HandleFunc("/1.0/nuke", s.handleNuke).Methods(http.MethodPost)
	r.HandleFunc("/1.0/e/multi", s.handleMultiGet).Methods(http.MethodGet)
	r.HandleFunc("/1.0/e/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/1.0/e/{type}", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/1.0/e/{id}", s.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/1.0/e/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/1.0/i/{spec}", s.handleScan).Methods(http.MethodGet)
	r.HandleFunc("/1.0/u/{spec}", s.handleUnique).Methods(http.MethodGet)
	r.HandleFunc("/1.0/c/{spec:.+}", s.handleCounters).Methods(http.MethodGet)
	r.HandleFunc("/1.0/s/{type}", s.handleGetSchema).Methods(http.MethodGet)
	r.HandleFunc("/1.0/s/{type}", s.handlePutSchema).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/1.0/q/{id}", s.handleQuarantine).Methods(http.MethodGet, http.MethodPost, http.MethodDelete)

	s.router = r
	s.server = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Handler exposes the router, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// AddStubResponse adds a stub response configuration to the server.
// Stub responses are matched in the order they were added.
func (s *Server) AddStubResponse(stub StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubResponses = append(s.stubResponses, &stub)
}

// SetGlobalFailures sets failure configurations that apply to all requests.
// These are checked before stub-specific failures.
func (s *Server) SetGlobalFailures(failures []FailureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalFailures = failures
}

// SetNukeEnabled lets POST /1.0/nuke wipe the store. It answers 403
// otherwise.
func (s *Server) SetNukeEnabled(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nukeEnabled = on
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Request(nil), s.requests...)
}

// ResetRequests forgets the recorded requests.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// Start starts the server and begins accepting connections.
// Returns an error if the server cannot bind to the specified address.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Address returns the actual address the server is listening on.
// This is useful when using "127.0.0.1:0" to get the assigned port.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL is the endpoint to hand to a client.
func (s *Server) URL() string {
	return "http://" + s.Address()
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.RequestURI(), Header: r.Header.Clone()})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		failures := append([]FailureConfig(nil), s.globalFailures...)
		var stub *StubResponse
		for _, st := range s.stubResponses {
			if (st.Times == 0 || st.used < st.Times) && st.Matcher.match(r) {
				st.used++
				stub = st
				break
			}
		}
		if stub != nil {
			failures = append(failures, stub.Failures...)
		}
		s.mu.Unlock()

		for _, f := range failures {
			if !shouldTriggerFailure(f.Probability) {
				continue
			}
			if done := applyFailure(w, f); done {
				return
			}
		}

		if stub != nil && stub.Status != 0 {
			w.WriteHeader(stub.Status)
			_, _ = w.Write([]byte(stub.Body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// applyFailure reports whether the failure answered the request.
func applyFailure(w http.ResponseWriter, f FailureConfig) bool {
	switch f.Type {
	case FailureRequestDelay:
		time.Sleep(randomDuration(f.MinDelay, f.MaxDelay))
		return false
	case FailureStatus:
		w.WriteHeader(f.Status)
		_, _ = w.Write([]byte(f.Body))
		return true
	case FailureInvalidResponse:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("\x00not json"))
		return true
	case FailureDropConnection:
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return true
			}
		}
		w.WriteHeader(http.StatusBadGateway)
		return true
	}
	return false
}

func shouldTriggerFailure(probability float64) bool {
	if probability <= 0 {
		return false
	}
	if probability >= 1 {
		return true
	}
	return rand.Float64() < probability
}

func randomDuration(dMin, dMax time.Duration) time.Duration {
	if dMin >= dMax {
		return dMin
	}
	return dMin + time.Duration(rand.Int64N(int64(dMax-dMin)))
}

// StatusStub answers every matching request with status and body.
func StatusStub(method, pathPrefix string, status int, body string) StubResponse {
	return StubResponse{
		Matcher: RequestMatcher{Method: method, PathPrefix: pathPrefix},
		Status:  status,
		Body:    body,
	}
}
