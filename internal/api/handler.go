// Package api exposes the simulation session over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tirewatch/internal/alerting"
	"tirewatch/internal/report"
	"tirewatch/internal/schema"
	"tirewatch/internal/sensor"
	"tirewatch/internal/session"
)

// Handler serves the v1 API backed by a running session.
type Handler struct {
	session   *session.Session
	startTime time.Time
}

// NewHandler creates an API handler for the given session.
func NewHandler(sess *session.Session) *Handler {
	return &Handler{
		session:   sess,
		startTime: time.Now(),
	}
}

// Routes builds the route table and wraps it with middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/snapshot", h.GetSnapshot)
	mux.HandleFunc("GET /v1/alerts", h.GetAlerts)
	mux.HandleFunc("GET /v1/sensors", h.GetSensors)
	mux.HandleFunc("POST /v1/damage", h.InjectDamage)
	mux.HandleFunc("GET /v1/report", h.GetReport)
	mux.HandleFunc("POST /v1/simulation/reset", h.ResetSimulation)
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /metrics", h.Metrics)

	return withMiddleware(mux)
}

// GetSnapshot handles GET /v1/snapshot.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// GetAlerts handles GET /v1/alerts. An optional ?limit=N returns only the
// most recent N alerts.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	history := h.session.History()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		if limit < len(history) {
			history = history[len(history)-limit:]
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"alerts": history,
		"counts": h.session.Counts(),
	})
}

// GetSensors handles GET /v1/sensors.
func (h *Handler) GetSensors(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"sensors": h.session.Specs(),
		"damage":  h.session.Damage(),
	})
}

// InjectDamage handles POST /v1/damage.
func (h *Handler) InjectDamage(w http.ResponseWriter, r *http.Request) {
	var event schema.DamageEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	accepted, err := h.session.InjectDamage(event)
	if err != nil {
		// Every injection failure is a client problem: schema validation,
		// an unknown sensor, or an onset in the past.
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, session.ErrPastOnset):
			status = http.StatusConflict
		case errors.Is(err, sensor.ErrUnknownSensor):
			status = http.StatusNotFound
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"damage":  accepted,
	})
}

// GetReport handles GET /v1/report. The ?format= parameter selects json
// (default), text, csv, or xlsx.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep := report.Build(h.session)

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		respondJSON(w, http.StatusOK, rep)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, rep.Text())
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="tirewatch-report.csv"`)
		if err := rep.WriteCSV(w); err != nil {
			respondError(w, http.StatusInternalServerError, "csv generation failed")
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="tirewatch-report.xlsx"`)
		if err := rep.WriteXLSX(w); err != nil {
			respondError(w, http.StatusInternalServerError, "xlsx generation failed")
		}
	default:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}

// ResetSimulation handles POST /v1/simulation/reset.
func (h *Handler) ResetSimulation(w http.ResponseWriter, r *http.Request) {
	h.session.Reset()
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tick":    h.session.Completed(),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if worst, ok := h.session.WorstSeverity(); ok && worst.Rank() >= alerting.SeverityEmergency.Rank() {
		status = "degraded"
	}

	resp := map[string]any{
		"status":         status,
		"tick":           h.session.Completed(),
		"alerts_total":   h.session.Counts().Total,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	}

	respondJSON(w, http.StatusOK, resp)
}

// Metrics handles GET /metrics (Prometheus format).
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	counts := h.session.Counts()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP tirewatch_ticks_total Total simulation ticks completed\n")
	fmt.Fprintf(w, "# TYPE tirewatch_ticks_total counter\n")
	fmt.Fprintf(w, "tirewatch_ticks_total %d\n\n", h.session.Completed())

	fmt.Fprintf(w, "# HELP tirewatch_alerts_total Total alerts emitted\n")
	fmt.Fprintf(w, "# TYPE tirewatch_alerts_total counter\n")
	fmt.Fprintf(w, "tirewatch_alerts_total %d\n\n", counts.Total)

	fmt.Fprintf(w, "# HELP tirewatch_alerts_by_severity_total Alerts emitted per severity\n")
	fmt.Fprintf(w, "# TYPE tirewatch_alerts_by_severity_total counter\n")
	for _, sev := range alerting.Severities() {
		fmt.Fprintf(w, "tirewatch_alerts_by_severity_total{severity=%q} %d\n", sev, counts.BySeverity[sev])
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "# HELP tirewatch_alerts_by_category_total Alerts emitted per anomaly category\n")
	fmt.Fprintf(w, "# TYPE tirewatch_alerts_by_category_total counter\n")
	for _, cat := range schema.Categories() {
		fmt.Fprintf(w, "tirewatch_alerts_by_category_total{category=%q} %d\n", cat, counts.ByCategory[cat])
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "# HELP tirewatch_uptime_seconds Uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE tirewatch_uptime_seconds gauge\n")
	fmt.Fprintf(w, "tirewatch_uptime_seconds %d\n", int(time.Since(h.startTime).Seconds()))
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
