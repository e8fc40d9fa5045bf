package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/donor-finder/internal/geo"
	"github.com/example/donor-finder/internal/logging"
	"github.com/example/donor-finder/internal/models"
	"github.com/example/donor-finder/internal/storage"
)

// Publisher announces newly registered donors. *ingest.KafkaProducer satisfies it.
type Publisher interface {
	PublishRegistration(ctx context.Context, d models.Donor) error
}

// Options carries the collaborators and tunables of the API server.
// Store is required; Index and Publisher are optional.
type Options struct {
	Store          storage.DonorStore
	Index          geo.Index
	Publisher      Publisher
	Logger         *slog.Logger
	FrontendURL    string
	QueryLimit     int
	NearbyRadiusKm float64
}

type Server struct {
	store          storage.DonorStore
	index          geo.Index
	publisher      Publisher
	logger         *slog.Logger
	frontendURL    string
	queryLimit     int
	nearbyRadiusKm float64

	mux     *mux.Router
	handler http.Handler
}

const defaultNearbyRadiusKm = 25

func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("httpapi: store is required")
	}
	s := &Server{
		store:          opts.Store,
		index:          opts.Index,
		publisher:      opts.Publisher,
		logger:         opts.Logger,
		frontendURL:    opts.FrontendURL,
		queryLimit:     storage.NormalizeLimit(opts.QueryLimit),
		nearbyRadiusKm: opts.NearbyRadiusKm,
		mux:            mux.NewRouter(),
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.nearbyRadiusKm <= 0 {
		s.nearbyRadiusKm = defaultNearbyRadiusKm
	}
	s.routes()
	s.handler = otelhttp.NewHandler(s.corsMiddleware(s.mux), "donor-finder")
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/donors", s.handleListDonors).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/donors", s.handleRegisterDonor).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/donors/nearby", s.handleNearbyDonors).Methods(http.MethodGet)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())

	s.mux.Use(s.instrument)
	s.mux.NotFoundHandler = s.instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	}))
	s.mux.MethodNotAllowedHandler = s.instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }
