package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"sessionlimit/internal/domain"
	"sessionlimit/internal/dto"
	"sessionlimit/internal/identity"
	"sessionlimit/internal/netutil"
	"sessionlimit/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// sessionTokenHeader carries the session token a client received on login.
const sessionTokenHeader = "X-Session-Token"

const maxBodyBytes = 4 << 10

type handler struct {
	sessions   service.SessionService
	logger     *slog.Logger
	trustProxy bool
}

func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	var body dto.CreateSessionRequest
	if err := decodeOptional(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var force *domain.SessionID
	if body.ForceSessionID != nil {
		id, err := uuid.Parse(strings.TrimSpace(*body.ForceSessionID))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid forceSessionId")
			return
		}
		force = &id
	}
	h.create(w, r, userID, force)
}

func (h *handler) forceSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	var body dto.ForceSessionRequest
	if err := decodeOptional(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(body.SessionID))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sessionId")
		return
	}
	h.create(w, r, userID, &id)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request, userID string, force *domain.SessionID) {
	res, err := h.sessions.CreateSession(r.Context(), service.CreateSessionRequest{
		UserID:         userID,
		UserAgent:      r.UserAgent(),
		IPAddress:      netutil.ClientIP(r, h.trustProxy),
		ForceSessionID: force,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if res.Outcome == service.OutcomeLimitExceeded {
		writeJSON(w, http.StatusConflict, dto.LimitExceededResponse{
			Status:          res.Outcome.String(),
			Message:         "maximum number of active devices reached",
			CurrentSessions: sessionViews(res.ActiveSessions, nil),
			MaxDevices:      res.MaxDevices,
		})
		return
	}
	writeJSON(w, http.StatusCreated, dto.CreateSessionResponse{
		Status:    res.Outcome.String(),
		SessionID: res.Session.ID.String(),
		Token:     res.Session.Token,
	})
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	active, err := h.sessions.ListActiveSessions(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var current *domain.SessionID
	if tok := r.Header.Get(sessionTokenHeader); tok != "" {
		s, err := h.sessions.ResolveToken(r.Context(), userID, tok)
		switch {
		case err == nil:
			current = &s.ID
		case !errors.Is(err, domain.ErrSessionNotFound):
			h.writeServiceError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, dto.ListSessionsResponse{
		Sessions:   sessionViews(active, current),
		MaxDevices: h.sessions.MaxDevices(),
	})
}

func (h *handler) terminateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	ended, err := h.sessions.TerminateSession(r.Context(), userID, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !ended {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) validateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	res, err := h.sessions.ValidateSession(r.Context(), userID, r.UserAgent())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !res.Valid {
		writeJSON(w, http.StatusOK, dto.ValidateSessionResponse{Message: "no active session for this device"})
		return
	}
	writeJSON(w, http.StatusOK, dto.ValidateSessionResponse{Valid: true, SessionID: res.SessionID.String()})
}

func (h *handler) heartbeat(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	touched, err := h.sessions.TouchSession(r.Context(), userID, r.Header.Get(sessionTokenHeader))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !touched {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	sub, ok := identity.SubjectFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	}
	return sub, ok
}

// decodeOptional accepts an empty body as the zero value.
func decodeOptional(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func sessionViews(sessions []domain.Session, current *domain.SessionID) []dto.SessionView {
	out := make([]dto.SessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, dto.SessionView{
			SessionID: s.ID.String(),
			DeviceInfo: dto.DeviceInfo{
				Browser:         s.Device.Browser,
				OperatingSystem: s.Device.OperatingSystem,
				DeviceType:      s.Device.DeviceType,
			},
			IPAddress:    s.IPAddress,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
			IsCurrent:    current != nil && *current == s.ID,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

func (h *handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	default:
		h.logger.ErrorContext(r.Context(), "session request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
