// Package api exposes health, metrics, and operator endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/detection"
	"github.com/t77yq/coastal-alert/internal/dispatch"
	"github.com/t77yq/coastal-alert/internal/model"
	"github.com/t77yq/coastal-alert/internal/notify"
	"github.com/t77yq/coastal-alert/internal/storage"
	"github.com/t77yq/coastal-alert/internal/threat"
)

const (
	maxBodyBytes      = 1 << 20
	defaultAuditLimit = 50
	maxAuditLimit     = 500

	defaultDispatchTimeout = 5 * time.Minute

	defaultAlertTitle   = "Coastal Evacuation Alert"
	defaultAlertMessage = "Evacuate immediately if instructed by authorities. Move to higher ground away from coastal areas."
)

// Detector runs and reports on detection cycles
type Detector interface {
	Assess(ctx context.Context, obs model.Observation) model.ThreatAssessment
	RunCycle(ctx context.Context) (*detection.CycleResult, error)
	Ready() bool
}

// StatusSource reports the detection loop status
type StatusSource interface {
	Status() model.CycleStatus
}

// HostSource reports the latest host resource sample
type HostSource interface {
	Latest() model.HostStats
}

// Dispatcher sends an alert envelope to recipients
type Dispatcher interface {
	Dispatch(ctx context.Context, env *model.AlertEnvelope, recipients []model.Recipient) (*model.DispatchResult, error)
}

// AuditQuerier reads the audit history
type AuditQuerier interface {
	Get(ctx context.Context, id string) (*model.AuditRecord, error)
	List(ctx context.Context, filter storage.AuditFilter, offset, limit int) ([]*model.AuditRecord, error)
	Count(ctx context.Context, filter storage.AuditFilter) (int, error)
}

// Deps are the components the HTTP surface delegates to. Host and Audit may be nil.
// DispatchTimeout bounds a manual dispatch and defaults to five minutes.
type Deps struct {
	Detector        Detector
	Status          StatusSource
	Host            HostSource
	Dispatcher      Dispatcher
	Audit           AuditQuerier
	DispatchTimeout time.Duration
}

// Server is the HTTP surface of the service
type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
	deps       Deps
	clock      clockwork.Clock
}

// DispatchRequest is the body of a manual alert trigger
type DispatchRequest struct {
	Level      model.ThreatLevel `json:"level"`
	Zone       string            `json:"zone"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Recipients []model.Recipient `json:"recipients"`
}

// AssessResponse is the result of a dry-run assessment
type AssessResponse struct {
	Assessment    model.ThreatAssessment `json:"assessment"`
	WouldDispatch bool                   `json:"would_dispatch"`
}

// AuditPage is one page of audit records
type AuditPage struct {
	Records []*model.AuditRecord `json:"records"`
	Total   int                  `json:"total"`
	Offset  int                  `json:"offset"`
	Limit   int                  `json:"limit"`
}

// NewServer creates a new HTTP server listening on addr
func NewServer(addr string, deps Deps, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger: logger.Named("api"),
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:  deps,
		clock: clockwork.NewRealClock(),
	}
	if s.deps.DispatchTimeout <= 0 {
		s.deps.DispatchTimeout = defaultDispatchTimeout
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("POST /api/v1/assess", s.handleAssess)
	mux.HandleFunc("POST /api/v1/cycle", s.handleCycle)
	mux.HandleFunc("POST /api/v1/alerts/dispatch", s.handleDispatch)
	mux.HandleFunc("GET /api/v1/audit", s.handleAuditList)
	mux.HandleFunc("GET /api/v1/audit/{id}", s.handleAuditGet)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.deps.Detector.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "no detection cycle has completed yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := struct {
		Detection model.CycleStatus `json:"detection"`
		Host      *model.HostStats  `json:"host,omitempty"`
	}{
		Detection: s.deps.Status.Status(),
	}
	if s.deps.Host != nil {
		host := s.deps.Host.Latest()
		resp.Host = &host
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var obs model.Observation
	if err := decodeBody(w, r, &obs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validateObservation(obs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = s.clock.Now()
	}
	if obs.Source == "" {
		obs.Source = "api"
	}

	a := s.deps.Detector.Assess(r.Context(), obs)
	writeJSON(w, http.StatusOK, AssessResponse{
		Assessment:    a,
		WouldDispatch: threat.ShouldDispatch(a),
	})
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Detector.RunCycle(r.Context())
	switch {
	case errors.Is(err, detection.ErrCycleInProgress):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  err.Error(),
			"result": result,
		})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	req.Level = model.ThreatLevel(strings.ToUpper(strings.TrimSpace(string(req.Level))))
	custom := model.CustomAlert{Title: req.Title, Message: req.Message}
	if strings.TrimSpace(custom.Message) == "" {
		custom.Message = defaultAlertMessage
		if strings.TrimSpace(custom.Title) == "" {
			custom.Title = defaultAlertTitle
		}
	}

	env, err := notify.NewCustomEnvelope(custom, req.Level, strings.TrimSpace(req.Zone), s.clock.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.logger.Info("Manual alert requested",
		zap.String("envelope_id", env.ID),
		zap.String("level", string(env.Level)),
		zap.String("zone", env.Zone),
		zap.Int("explicit_recipients", len(req.Recipients)))

	// A client disconnect must not stop the alert reaching the rest of the population
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.deps.DispatchTimeout)
	defer cancel()

	result, err := s.deps.Dispatcher.Dispatch(ctx, env, req.Recipients)
	if errors.Is(err, dispatch.ErrDirectoryUnavailable) {
		writeJSON(w, http.StatusBadGateway, result)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		writeError(w, http.StatusNotFound, errors.New("audit history is not enabled"))
		return
	}

	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), defaultAuditLimit)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", q.Get("limit")))
		return
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid offset %q", q.Get("offset")))
		return
	}

	filter := storage.AuditFilter{
		ThreatLevel: model.ThreatLevel(strings.ToUpper(q.Get("level"))),
		Zone:        q.Get("zone"),
	}
	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid success %q", v))
			return
		}
		filter.Success = &b
	}

	records, err := s.deps.Audit.List(r.Context(), filter, offset, limit)
	if err != nil {
		s.logger.Error("Failed to list audit records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	total, err := s.deps.Audit.Count(r.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to count audit records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, AuditPage{Records: records, Total: total, Offset: offset, Limit: limit})
}

func (s *Server) handleAuditGet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		writeError(w, http.StatusNotFound, errors.New("audit history is not enabled"))
		return
	}

	rec, err := s.deps.Audit.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error("Failed to get audit record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func validateObservation(obs model.Observation) error {
	if math.IsNaN(obs.WindSpeed) || math.IsInf(obs.WindSpeed, 0) || obs.WindSpeed < 0 {
		return fmt.Errorf("wind_speed must be a non-negative number")
	}
	switch obs.WindUnit {
	case "", model.SpeedMetersPerSecond, model.SpeedKilometersPerHour, model.SpeedKnots:
	default:
		return fmt.Errorf("unknown wind_unit %q", obs.WindUnit)
	}
	if obs.Pressure < 0 {
		return fmt.Errorf("pressure_hpa must not be negative")
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
