package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker answers the probes served next to /metrics. It starts not
// ready; serve marks it ready once the Gmail tools are registered.
type HealthChecker struct {
	sc      *ServerContext
	started time.Time
	ready   atomic.Bool
}

// NewHealthChecker reports on sc. A nil sc only affects the detailed view.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	return &HealthChecker{sc: sc, started: time.Now()}
}

// SetReady flips the readiness probe.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the value last passed to SetReady.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed. It never includes
// token material.
type DetailedHealthResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	Authenticated  bool   `json:"authenticated"`
	ListenerActive bool   `json:"listener_active"`
}

// RegisterHealthEndpoints adds the probes to mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("GET /healthz", h.LivenessHandler())
	mux.Handle("GET /readyz", h.ReadinessHandler())
	mux.Handle("GET /healthz/detailed", h.DetailedHealthHandler())
}

// LivenessHandler answers 200 for as long as the process serves HTTP.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers 503 until SetReady(true) and again once the
// server context shuts down.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		readiness, shutdown := h.state()
		resp := HealthResponse{
			Status: healthStatusOK,
			Checks: map[string]string{"ready": readiness, "shutdown": shutdown},
		}
		code := http.StatusOK
		if readiness != healthStatusOK || shutdown != healthStatusOK {
			resp.Status = healthStatusNotReady
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, resp)
	})
}

// DetailedHealthHandler adds uptime and the sign-in state to the readiness
// result.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := DetailedHealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.started).Truncate(time.Second).String(),
		}
		if h.sc != nil {
			resp.Authenticated = h.sc.IsAuthenticated()
			resp.ListenerActive = h.sc.ListenerActive()
		}

		code := http.StatusOK
		switch readiness, shutdown := h.state(); {
		case readiness != healthStatusOK:
			resp.Status, code = readiness, http.StatusServiceUnavailable
		case shutdown != healthStatusOK:
			resp.Status, code = shutdown, http.StatusServiceUnavailable
		}
		writeHealth(w, code, resp)
	})
}

// state returns the readiness and shutdown check values.
func (h *HealthChecker) state() (readiness, shutdown string) {
	readiness, shutdown = healthStatusOK, healthStatusOK
	if !h.ready.Load() {
		readiness = healthStatusNotReady
	}
	if h.sc != nil && h.sc.IsShutdown() {
		shutdown = healthStatusShuttingDown
	}
	return readiness, shutdown
}

func writeHealth(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
