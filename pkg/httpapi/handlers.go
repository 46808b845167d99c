package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pairgate/pairgate/internal/logger"
	"github.com/pairgate/pairgate/internal/observability"
	"github.com/pairgate/pairgate/pkg/pairing"
	"github.com/pairgate/pairgate/pkg/session"
)

const defaultLogLines = 200

// pairCodeResponse is the success payload for /api/pair-code.
type pairCodeResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
	PairCode  string `json:"pairCode"`
	QRCode    string `json:"qrCode"`
	Message   string `json:"message"`
}

// sessionInfo is one entry of the /api/sessions listing.
type sessionInfo struct {
	SessionID string    `json:"sessionId"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
	Alive     bool      `json:"alive"`
}

// handlePairCode creates a session and returns its one-time pairing code.
func (s *Server) handlePairCode(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")

	sess, result, err := s.registry.Create(r.Context(), phone)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidPhone):
			respondError(w, http.StatusBadRequest, "Missing or invalid phone parameter")
		case errors.Is(err, pairing.ErrCapabilityUnavailable):
			respondError(w, http.StatusInternalServerError, "Pairing backend does not support code issuance")
		default:
			s.logger.Error().Err(err).Msg("Session creation failed")
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	qrDataURL, err := s.renderQR(result.Code)
	if err != nil {
		// The code is unusable without its QR rendering; retire the
		// session rather than stranding a half-delivered one.
		s.logger.Error().Err(err).Str("sessionId", sess.ID).Msg("QR rendering failed")
		s.registry.Delete(sess.ID)
		respondError(w, http.StatusInternalServerError, "Failed to render QR code")
		return
	}

	respondJSON(w, http.StatusOK, pairCodeResponse{
		Status:    "success",
		SessionID: sess.ID,
		PairCode:  result.Code,
		QRCode:    qrDataURL,
		Message:   "Use this code or QR in WhatsApp → Linked Devices → Link a device",
	})
}

// handleDownloadSession streams the session's credential bundle as a zip
// archive and retires the session on every exit path once streaming has
// been attempted.
func (s *Server) handleDownloadSession(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Missing sessionId")
		return
	}

	sess, ok := s.registry.Lookup(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Session not found or expired")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.ID+".zip"))
	w.Header().Set("Content-Type", "application/zip")

	// One-shot semantics: a corrupted download must not strand the
	// session, so deletion runs regardless of how the stream ends.
	defer func() {
		if s.registry.Delete(sess.ID) {
			observability.RecordSessionDownloaded()
			s.logger.Info().Str("sessionId", sess.ID).Msg("Session downloaded, cleaning up")
		}
	}()

	if err := s.packager.Stream(sess.Dir, w); err != nil {
		// Headers are most likely already written; all that is left is
		// to abort the stream and log the failure.
		s.logger.Error().Err(err).Str("sessionId", sess.ID).Msg("Archive streaming failed")
	}
}

// handleSessions lists live sessions for the admin surface.
func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.registry.List()

	list := make([]sessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		list = append(list, sessionInfo{
			SessionID: sess.ID,
			Phone:     sess.Phone,
			CreatedAt: sess.CreatedAt,
			Alive:     sess.Alive,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(list),
		"sessions": list,
	})
}

// handleLogs tails the append-only lifecycle log.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines := defaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid lines parameter")
			return
		}
		lines = n
	}

	logs, err := logger.Tail(s.options.LogFile, lines)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read logs")
		respondError(w, http.StatusInternalServerError, "Error reading logs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}
