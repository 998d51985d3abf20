package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/purr4furr/purr-backend/internal/auth"
	svcErr "github.com/purr4furr/purr-backend/internal/errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := svcErr.Status(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
		respondJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func mustUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
	}
	return id, ok
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func queryCursor(r *http.Request) *string {
	if v := r.URL.Query().Get("cursor"); v != "" {
		return &v
	}
	return nil
}

// --- auth ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondErr(w, svcErr.Invalid("malformed request body"))
		return
	}
	creds, err := s.authSvc.Register(r.Context(), in)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, creds)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondErr(w, svcErr.Invalid("malformed request body"))
		return
	}
	creds, err := s.authSvc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, creds)
}

// --- feed and decisions ---

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", s.feedLimit)

	feed, err := s.backend.GetFeed(r.Context(), userID, limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"profiles": feed})
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	matched, err := s.backend.LikeUser(r.Context(), userID, chi.URLParam(r, "userID"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"matched": matched})
}

func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	if err := s.backend.UnlikeUser(r.Context(), userID, chi.URLParam(r, "userID")); err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePass(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	if err := s.backend.PassUser(r.Context(), userID, chi.URLParam(r, "userID")); err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleLikedProfiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	profiles, err := s.backend.GetLikedProfiles(r.Context(), userID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

// --- liked-you ---

func (s *Server) handleLikedYou(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	if s.paged == nil {
		s.respondErr(w, svcErr.ErrNotFound)
		return
	}
	profiles, next, err := s.paged.LikedYou(r.Context(), userID, queryCursor(r), queryInt(r, "limit", s.feedLimit))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	resp := map[string]any{"profiles": profiles}
	if next != nil {
		resp["next_cursor"] = *next
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLikedYouCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	if s.paged == nil {
		s.respondErr(w, svcErr.ErrNotFound)
		return
	}
	count, err := s.paged.CountLikedYou(r.Context(), userID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// --- matches and chat ---

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	matches, err := s.backend.GetMatches(r.Context(), userID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// isParticipant checks that the user belongs to the match before exposing
// its history. Conversations are visible to their two members only.
func (s *Server) isParticipant(ctx context.Context, userID, matchID string) (bool, error) {
	matches, err := s.backend.GetMatches(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		if m.MatchID == matchID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	matchID := chi.URLParam(r, "matchID")

	member, err := s.isParticipant(r.Context(), userID, matchID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if !member {
		s.respondErr(w, svcErr.ErrForbidden)
		return
	}

	// cursor requests page backwards through history; otherwise the full
	// conversation comes back oldest first
	if cursor := queryCursor(r); cursor != nil && s.paged != nil {
		msgs, next, err := s.paged.GetMatchMessagesPage(r.Context(), matchID, cursor, queryInt(r, "limit", 50))
		if err != nil {
			s.respondErr(w, err)
			return
		}
		resp := map[string]any{"messages": msgs}
		if next != nil {
			resp["next_cursor"] = *next
		}
		respondJSON(w, http.StatusOK, resp)
		return
	}

	msgs, err := s.backend.GetMatchMessages(r.Context(), matchID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var in struct {
		ReceiverID string `json:"receiver_id"`
		Content    string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondErr(w, svcErr.Invalid("malformed request body"))
		return
	}

	msg, err := s.backend.SendMessage(r.Context(), chi.URLParam(r, "matchID"), userID, in.ReceiverID, in.Content)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	if err := s.backend.MarkMessagesAsRead(r.Context(), chi.URLParam(r, "matchID"), userID); err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- presence ---

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	if err := s.backend.UpdateLastActive(r.Context(), userID); err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGoInactive(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUserID(w, r)
	if !ok {
		return
	}
	if err := s.backend.SetUserInactive(r.Context(), userID); err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
