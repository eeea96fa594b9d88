package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"acta-transcript-engine/internal/app"
	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/observability/logging"
	"acta-transcript-engine/internal/schema"
	"acta-transcript-engine/internal/service/transcript"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	app       *app.Application
	validator *schema.Validator
	log       zerolog.Logger
}

func newHandlers(application *app.Application) *handlers {
	return &handlers{
		app:       application,
		validator: schema.New(),
		log:       logging.WithComponent("http"),
	}
}

type openSessionRequest struct {
	ID     string               `json:"id,omitempty"`
	Config models.SessionConfig `json:"config"`
}

// eventRequest is a recognition event posted by a client that runs its own
// provider connection.
type eventRequest struct {
	Type       string  `json:"type" validate:"required,oneof=final interim utterance_end status"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Speaker    string  `json:"speaker,omitempty"`
	Status     string  `json:"status,omitempty" validate:"omitempty,oneof=connected closed error"`
	Detail     string  `json:"detail,omitempty"`
}

type closeSessionResponse struct {
	models.Summary
	Insights      *models.Insights `json:"insights,omitempty"`
	InsightsError string           `json:"insightsError,omitempty"`
}

func (h *handlers) openSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	s, err := h.app.Controller.Open(req.ID, req.Config)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	cfg := s.Config()
	writeJSON(w, http.StatusCreated, models.Status{
		EventType: string(models.FamilyStatus),
		SessionID: s.ID(),
		State:     models.StateConnected,
		Message:   "Session connected",
		Config:    &cfg,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *handlers) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": h.app.Controller.IDs()})
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.app.Controller.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) closeSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.app.Controller.Close(chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := closeSessionResponse{Summary: summary}
	if want, _ := strconv.ParseBool(r.URL.Query().Get("insights")); want && h.app.Insights != nil {
		ins, err := h.app.Analyze(r.Context(), summary)
		if err != nil {
			h.log.Warn().Err(err).Str("sessionId", summary.SessionID).Msg("Insights extraction failed")
			resp.InsightsError = err.Error()
		} else {
			resp.Insights = ins
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) postEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Type == "status" && req.Status == "" {
		writeError(w, http.StatusBadRequest, "status events need a status")
		return
	}

	if err := h.app.Controller.Dispatch(chi.URLParam(r, "id"), req.event()); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) recentEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.app.Controller.Snapshot(id); err != nil {
		writeEngineError(w, err)
		return
	}
	evs := h.app.Recorder.Events(id)
	if family := r.URL.Query().Get("family"); family != "" {
		evs = h.app.Recorder.Family(id, models.Family(family))
	}
	if evs == nil {
		evs = []models.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

func (h *handlers) subscribe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.app.Controller.Snapshot(id); err != nil {
		writeEngineError(w, err)
		return
	}
	h.app.Hub.ServeWS(w, r, id)
}

func (req eventRequest) event() transcript.Event {
	switch req.Type {
	case "final", "interim":
		return transcript.RecognitionEvent{
			Text:       req.Text,
			IsFinal:    req.Type == "final",
			Confidence: req.Confidence,
			Speaker:    req.Speaker,
		}
	case "utterance_end":
		return transcript.UtteranceEndEvent{}
	default:
		return transcript.ProviderStatus{Kind: transcript.ProviderStatusKind(req.Status), Detail: req.Detail}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeEngineError maps controller errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transcript.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, transcript.ErrAlreadyOpen):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, transcript.ErrInvalidConfig), errors.Is(err, transcript.ErrMalformedEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
