package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/donor-finder/internal/geo"
	"github.com/example/donor-finder/internal/models"
	"github.com/example/donor-finder/internal/observability"
	"github.com/example/donor-finder/internal/ranker"
	"github.com/example/donor-finder/internal/storage"
)

const (
	maxBodyBytes = 64 << 10
	readyTimeout = 2 * time.Second
)

// Search modes recorded on the searches metric.
const (
	modeList      = "list"
	modeProximity = "proximity"
	modeNearby    = "nearby"
)

func (s *Server) handleListDonors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bt, ok := bloodTypeParam(q)
	if !ok {
		writeError(w, http.StatusBadRequest, errInvalidBloodType.Error())
		return
	}
	f := models.DonorFilter{BloodType: bt, Search: q.Get("search"), Limit: s.queryLimit}

	donors, err := s.store.ListDonors(r.Context(), f)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidFilter) {
			writeError(w, http.StatusBadRequest, errInvalidBloodType.Error())
			return
		}
		s.requestLogger(r).Error("list donors failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	ref := referencePoint(q.Get("userLat"), q.Get("userLng"))
	mode := modeList
	if ref != nil {
		mode = modeProximity
	}
	writeJSON(w, http.StatusOK, s.rank(mode, donors, ref))
}

func (s *Server) handleRegisterDonor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	d, err := newDonor(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.CreateDonor(r.Context(), &d); err != nil {
		s.requestLogger(r).Error("create donor failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	observability.DonorsRegistered.Inc()
	s.announce(r, d)
	writeJSON(w, http.StatusCreated, d)
}

// announce pushes a stored donor to the geo index and the event stream.
// Failures are counted and logged; the donor is already persisted.
func (s *Server) announce(r *http.Request, d models.Donor) {
	log := s.requestLogger(r)
	if s.index != nil && d.HasPosition() {
		if err := s.index.Upsert(r.Context(), d.ID, geo.Point{Lat: *d.Lat, Lng: *d.Lng}); err != nil {
			observability.IndexFailures.Inc()
			log.Warn("geo index upsert failed", "donor_id", d.ID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRegistration(r.Context(), d); err != nil {
			observability.PublishFailures.Inc()
			log.Warn("publish registration failed", "donor_id", d.ID, "error", err)
		}
	}
	log.Info("donor registered", "donor_id", d.ID, "blood_type", d.BloodType, "has_position", d.HasPosition())
}

func (s *Server) handleNearbyDonors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(q.Get("lat")), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(q.Get("lng")), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	p := geo.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		writeError(w, http.StatusBadRequest, errOutOfRange.Error())
		return
	}
	radius := s.nearbyRadiusKm
	if v := strings.TrimSpace(q.Get("radiusKm")); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || !(parsed > 0) {
			writeError(w, http.StatusBadRequest, "radiusKm must be a positive number")
			return
		}
		radius = parsed
	}
	limit := s.queryLimit
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = storage.NormalizeLimit(parsed)
	}
	bt, ok := bloodTypeParam(q)
	if !ok {
		writeError(w, http.StatusBadRequest, errInvalidBloodType.Error())
		return
	}
	if s.index == nil {
		writeError(w, http.StatusServiceUnavailable, "Proximity search unavailable")
		return
	}

	// a blood type filter runs after the lookup, so widen the candidate set first
	candidates := limit
	if bt != "" {
		candidates = storage.MaxLimit
	}
	ids, err := s.index.Nearby(r.Context(), p, radius, candidates)
	if err != nil {
		observability.IndexFailures.Inc()
		s.requestLogger(r).Error("geo index lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Geo index error")
		return
	}
	donors, err := s.store.GetDonors(r.Context(), ids)
	if err != nil {
		s.requestLogger(r).Error("get donors failed", "error", err, "candidates", len(ids))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if bt != "" {
		donors = filterBloodType(donors, bt)
	}
	if len(donors) > limit {
		donors = donors[:limit]
	}
	writeJSON(w, http.StatusOK, s.rank(modeNearby, donors, &p))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.requestLogger(r).Warn("readiness check failed", "error", err)
		http.Error(w, "datastore not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) rank(mode string, donors []models.Donor, ref *geo.Point) []ranker.Result {
	start := time.Now()
	out := ranker.Rank(donors, ref)
	observability.RankLatency.Observe(time.Since(start).Seconds())
	observability.RankCandidates.Observe(float64(len(donors)))
	observability.SearchesTotal.WithLabelValues(mode).Inc()
	return out
}

// bloodTypeParam reads the bloodType query value. Empty and "all" mean no filter.
func bloodTypeParam(q url.Values) (models.BloodType, bool) {
	raw := q.Get("bloodType")
	if v := strings.TrimSpace(raw); v == "" || strings.EqualFold(v, "all") {
		return "", true
	}
	return models.ParseBloodType(raw)
}

// referencePoint returns nil unless both values parse and lie in range.
func referencePoint(latRaw, lngRaw string) *geo.Point {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err != nil {
		return nil
	}
	p := geo.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return nil
	}
	return &p
}

func filterBloodType(donors []models.Donor, bt models.BloodType) []models.Donor {
	out := make([]models.Donor, 0, len(donors))
	for _, d := range donors {
		if d.BloodType == bt {
			out = append(out, d)
		}
	}
	return out
}

// validationError messages are returned to the client verbatim.
type validationError string

func (e validationError) Error() string { return string(e) }

const (
	errMissingFields    validationError = "Missing required fields"
	errInvalidBloodType validationError = "Invalid blood type"
	errInvalidAge       validationError = "Age must be a positive number"
	errHalfPosition     validationError = "Both lat and lng are required for a location"
	errOutOfRange       validationError = "Coordinates out of range"
)

// newDonor validates a registration and applies the field defaults.
func newDonor(req models.RegisterRequest) (models.Donor, error) {
	name := strings.TrimSpace(req.Name)
	city := strings.TrimSpace(req.City)
	if name == "" || city == "" || strings.TrimSpace(req.BloodType) == "" {
		return models.Donor{}, errMissingFields
	}
	bt, ok := models.ParseBloodType(req.BloodType)
	if !ok {
		return models.Donor{}, errInvalidBloodType
	}
	if req.Age.Value != nil && *req.Age.Value <= 0 {
		return models.Donor{}, errInvalidAge
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		return models.Donor{}, errHalfPosition
	}
	if p := geo.PointFrom(req.Lat, req.Lng); p != nil && !p.Valid() {
		return models.Donor{}, errOutOfRange
	}

	d := models.Donor{
		Name:          name,
		BloodType:     bt,
		City:          city,
		Contact:       strings.TrimSpace(req.Contact),
		Age:           req.Age.Value,
		Available:     true,
		LastDonation:  strings.TrimSpace(req.LastDonation),
		Lat:           req.Lat,
		Lng:           req.Lng,
		DistanceLabel: models.DefaultDistanceLabel,
	}
	if req.Available != nil {
		d.Available = *req.Available
	}
	if d.Contact == "" {
		d.Contact = models.DefaultContact
	}
	if d.LastDonation == "" {
		d.LastDonation = models.DefaultLastDonation
	}
	return d, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
