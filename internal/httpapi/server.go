// Package httpapi exposes the verification and permission-sync endpoints the
// linking frontend talks to. All responses are JSON; failures use the
// envelope {"success": false, "error": "..."}.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/degenRobot/rise-tg-bot/permissions"
	"github.com/degenRobot/rise-tg-bot/verify"
)

type Server struct {
	protocol *verify.Protocol
	perms    permissions.Store
	logger   *slog.Logger
}

func NewServer(protocol *verify.Protocol, perms permissions.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{protocol: protocol, perms: perms, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/verify/message", s.handleVerifyMessage)
		r.Post("/verify/signature", s.handleVerifySignature)
		r.Get("/verify/status/{id}", s.handleVerifyStatus)
		r.Post("/permissions/sync", s.handlePermissionsSync)
		r.Post("/permissions/revoke", s.handlePermissionsRevoke)
		r.Get("/users/by-telegram/{id}", s.handleUserByTelegram)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type verifyMessageRequest struct {
	TelegramID     string `json:"telegram_id"`
	TelegramHandle string `json:"telegram_handle"`
}

func (s *Server) handleVerifyMessage(w http.ResponseWriter, r *http.Request) {
	var req verifyMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TelegramID == "" || req.TelegramHandle == "" {
		writeError(w, http.StatusBadRequest, "telegram_id and telegram_handle are required")
		return
	}
	challenge, err := verify.CreateChallenge(req.TelegramID, req.TelegramHandle)
	if err != nil {
		s.logger.Error("create challenge failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create challenge")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   challenge.Message,
		"nonce":     challenge.Nonce,
		"timestamp": challenge.Timestamp,
	})
}

func (s *Server) handleVerifySignature(w http.ResponseWriter, r *http.Request) {
	var req verify.LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	link, err := s.protocol.VerifyAndLink(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "link": link})
}

func (s *Server) handleVerifyStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	link, ok, err := s.protocol.GetActiveLink(r.Context(), id)
	if err != nil {
		s.logger.Error("link lookup failed", "telegram_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up link")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "verified": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"verified":       true,
		"wallet_address": link.WalletAddress,
		"verified_at":    link.VerifiedAt,
	})
}

type syncRequest struct {
	WalletAddress string               `json:"wallet_address"`
	Permissions   []permissions.Record `json:"permissions"`
}

// handlePermissionsSync upserts the frontend's view of a wallet's grants and
// sweeps expired records opportunistically, as every sync is a natural
// cleanup point.
func (s *Server) handlePermissionsSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "wallet_address is required")
		return
	}
	for _, rec := range req.Permissions {
		if err := s.perms.Upsert(r.Context(), req.WalletAddress, rec); err != nil {
			s.logger.Error("permission upsert failed", "wallet", req.WalletAddress, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store permission")
			return
		}
	}

	removed, err := s.perms.CleanupExpired(r.Context(), time.Now())
	if err != nil {
		// The sync itself succeeded; a lost cleanup just waits for the next one.
		s.logger.Warn("expired permission cleanup failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"synced":  len(req.Permissions),
		"removed": removed,
	})
}

type revokeRequest struct {
	WalletAddress string `json:"wallet_address"`
	PermissionID  string `json:"permission_id"`
}

func (s *Server) handlePermissionsRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WalletAddress == "" || req.PermissionID == "" {
		writeError(w, http.StatusBadRequest, "wallet_address and permission_id are required")
		return
	}
	removed, err := s.perms.Revoke(r.Context(), req.WalletAddress, req.PermissionID)
	if err != nil {
		s.logger.Error("permission revoke failed", "wallet", req.WalletAddress, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to revoke permission")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "revoked": removed})
}

func (s *Server) handleUserByTelegram(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	link, ok, err := s.protocol.GetActiveLink(r.Context(), id)
	if err != nil {
		s.logger.Error("link lookup failed", "telegram_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up link")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no active link for identity")
		return
	}
	records, err := s.perms.ListByTelegramID(r.Context(), id)
	if err != nil {
		s.logger.Error("permission list failed", "telegram_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list permissions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"link":        link,
		"permissions": records,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
