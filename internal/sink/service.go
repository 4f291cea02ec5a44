// Package sink is a reference quote-request sink: it accepts wizard
// submissions over HTTP, validates them against an OpenAPI contract and
// stores them in a Repository.
package sink

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// DefaultMaxUpload bounds the multipart bodies the sink will parse.
const DefaultMaxUpload = 32 << 20

// Service serves the quote endpoints.
type Service struct {
	repo      Repository
	contract  *Contract
	metrics   *Metrics
	logger    *zap.Logger
	forms     map[string]struct{}
	now       func() time.Time
	newID     func() uuid.UUID
	maxUpload int64
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithForms restricts the accepted form ids. Without it every id is
// accepted.
func WithForms(ids ...string) Option {
	return func(s *Service) {
		if len(ids) == 0 {
			return
		}
		s.forms = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			s.forms[id] = struct{}{}
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides uuid.New.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithMaxUpload bounds parsed multipart bodies in bytes.
func WithMaxUpload(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// NewService wires a Service around repo and the embedded contract.
func NewService(ctx context.Context, repo Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("sink: repository is required")
	}
	contract, err := LoadContract(ctx)
	if err != nil {
		return nil, err
	}
	s := &Service{
		repo:      repo,
		contract:  contract,
		metrics:   NewMetrics(),
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.New,
		maxUpload: DefaultMaxUpload,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Metrics returns the service collectors.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// jsonMiddleware sets the Content-Type header to application/json.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// LoadRoutes mounts the quote endpoints under parent.
func (s *Service) LoadRoutes(parent *mux.Router) {
	router := parent.PathPrefix("/api/quotes").Subrouter()
	router.StrictSlash(false)
	router.Use(jsonMiddleware)

	router.HandleFunc("/{form}", s.HandleCreateQuote).Methods(http.MethodPost)
	router.HandleFunc("/{form}", s.HandleListQuotes).Methods(http.MethodGet)
	router.HandleFunc("/{form}/{id}", s.HandleGetQuote).Methods(http.MethodGet)
}

// Handler returns the complete sink: quote routes, /healthz, /metrics and
// CORS for allowedOrigins (every origin when empty).
func (s *Service) Handler(allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	s.LoadRoutes(router)
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(router)
}

func (s *Service) knownForm(form string) bool {
	if form == "" {
		return false
	}
	if s.forms == nil {
		return true
	}
	_, ok := s.forms[form]
	return ok
}

// ReferenceNumber derives the human-facing reference of a quote id.
func ReferenceNumber(id uuid.UUID) string {
	return "QR-" + strings.ToUpper(id.String()[:8])
}
