package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tinysense/sensord/pkg/alert"
	"github.com/tinysense/sensord/pkg/engine"
	"github.com/tinysense/sensord/pkg/httpx"
	"github.com/tinysense/sensord/pkg/reading"
)

// Handler serves the dashboard API on top of the engine's read accessors and
// mutators.
type Handler struct {
	engine    *engine.Engine
	startTime time.Time
}

// NewHandler creates the API handler.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{
		engine:    eng,
		startTime: time.Now(),
	}
}

// HandleCurrent returns the latest reading plus buffer and pressure state.
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	latest, ok := h.engine.Latest()
	if !ok {
		httpx.RespondErrorString(w, http.StatusServiceUnavailable, "no data")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, struct {
		Reading reading.Reading `json:"reading"`
		Stats   engine.Stats    `json:"stats"`
	}{
		Reading: latest,
		Stats:   h.engine.Stats(),
	})
}

// HandleHistory returns a series selected by ?range=detailed|aggregated|all.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	rng, err := engine.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	data := h.engine.History(rng)
	httpx.RespondJSON(w, http.StatusOK, struct {
		Range string            `json:"range"`
		Count int               `json:"count"`
		Data  []reading.Reading `json:"data"`
	}{
		Range: string(rng),
		Count: len(data),
		Data:  data,
	})
}

// HandleStats returns buffer sizes, pressure and clock state.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, h.engine.Stats())
}

// HandleAlerts returns all alert states keyed by metric.
func (h *Handler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, h.engine.Alerts())
}

// HandleSetThreshold updates one metric's alert threshold.
// Body: {"threshold": 40.0}. Out-of-range values are rejected with the prior
// threshold unchanged.
func (h *Handler) HandleSetThreshold(w http.ResponseWriter, r *http.Request) {
	metric, err := alert.ParseMetric(mux.Vars(r)["metric"])
	if err != nil {
		httpx.RespondError(w, http.StatusNotFound, err)
		return
	}

	var body struct {
		Threshold float64 `json:"threshold"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.engine.SetThreshold(r.Context(), metric, body.Threshold); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, alert.ErrUnknownMetric) {
			status = http.StatusNotFound
		}
		httpx.RespondError(w, status, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, h.engine.Alerts()[metric])
}

// HandleAcknowledge acknowledges an active alert. No-op when inactive.
func (h *Handler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	metric, err := alert.ParseMetric(mux.Vars(r)["metric"])
	if err != nil {
		httpx.RespondError(w, http.StatusNotFound, err)
		return
	}

	if err := h.engine.Acknowledge(metric); err != nil {
		httpx.RespondError(w, http.StatusNotFound, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, h.engine.Alerts()[metric])
}

// HandleSave triggers an on-demand snapshot.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Save(r.Context()); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// HandleHealth returns service health status.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"uptime":  time.Since(h.startTime).String(),
	})
}
