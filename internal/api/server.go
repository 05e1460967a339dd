// Package api implements C10, the admission HTTP surface that fronts the
// socket layer: room creation, doctor claim/release, and a paginated
// history read, plus a health endpoint. It never issues bearer tokens —
// it only verifies the ones a doctor already holds.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"roomcoordinator/internal/registry"
	"roomcoordinator/pkg/interfaces"
	"roomcoordinator/pkg/types"
)

// cachePinger is satisfied by internal/cache's RedisCache but is not part
// of interfaces.Cache itself, since most callers never need liveness.
type cachePinger interface {
	Ping(ctx context.Context) error
}

// ARCHITECTURAL DISCOVERY: the API layer is a pure translation between
// HTTP and C3/C4 — no business logic beyond the translation lives here;
// the exclusivity and anonymity invariants are enforced one layer down.
type Server struct {
	rooms    interfaces.RoomStore
	messages interfaces.MessageStore
	verifier interfaces.TokenVerifier
	cache    interfaces.Cache
	registry *registry.Registry
	router   *http.ServeMux
}

func NewServer(rooms interfaces.RoomStore, messages interfaces.MessageStore, verifier interfaces.TokenVerifier, cache interfaces.Cache, reg *registry.Registry) *Server {
	s := &Server{
		rooms:    rooms,
		messages: messages,
		verifier: verifier,
		cache:    cache,
		registry: reg,
		router:   http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/rooms", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRooms))))
	s.router.Handle("/api/rooms/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRoomByID))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createRoom(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRoomByID dispatches /api/rooms/{id}/claim, /release and /messages.
func (s *Server) handleRoomByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		s.sendError(w, "room id and action required", http.StatusBadRequest)
		return
	}
	roomID, action := parts[0], parts[1]

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch {
	case action == "claim" && r.Method == http.MethodPost:
		s.claimRoom(w, r, roomID)
	case action == "release" && r.Method == http.MethodPost:
		s.releaseRoom(w, r, roomID)
	case action == "messages" && r.Method == http.MethodGet:
		s.listMessages(w, r, roomID)
	default:
		s.sendError(w, "not found", http.StatusNotFound)
	}
}

type CreateRoomResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageResponse struct {
	ID                string    `json:"id"`
	SenderRole        string    `json:"sender_role"`
	SenderID          *string   `json:"sender_id,omitempty"`
	Content           string    `json:"content"`
	TranslatedContent *string   `json:"translated_content,omitempty"`
	Language          string    `json:"language"`
	TargetLanguage    *string   `json:"target_language,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	IsAudioOrigin     bool      `json:"is_audio_origin"`
}

type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Store       string    `json:"store"`
	Cache       string    `json:"cache"`
	Sessions    int       `json:"active_sessions"`
	ActiveRooms int       `json:"active_rooms"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// createRoom never returns the fresh cipher key over HTTP; it is handed
// to sockets only during the join_room/cipher_key_exchange handshake.
func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.rooms.CreateRoom(r.Context())
	if err != nil {
		s.sendErrorForKind(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(CreateRoomResponse{ID: room.ID, CreatedAt: room.CreatedAt})
}

func (s *Server) claimRoom(w http.ResponseWriter, r *http.Request, roomID string) {
	principal, err := s.authenticateDoctor(r)
	if err != nil {
		s.sendErrorForKind(w, err)
		return
	}
	if err := s.rooms.ClaimDoctor(r.Context(), roomID, principal.ID); err != nil {
		s.sendErrorForKind(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "claimed"})
}

func (s *Server) releaseRoom(w http.ResponseWriter, r *http.Request, roomID string) {
	principal, err := s.authenticateDoctor(r)
	if err != nil {
		s.sendErrorForKind(w, err)
		return
	}
	if err := s.rooms.ReleaseDoctor(r.Context(), roomID, principal.ID); err != nil {
		s.sendErrorForKind(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "released"})
}

// listMessages requires the caller to be the room's current claimant —
// a doctor who never claimed the room, or one whose release already went
// through, gets 403 rather than the decrypted transcript.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request, roomID string) {
	principal, err := s.authenticateDoctor(r)
	if err != nil {
		s.sendErrorForKind(w, err)
		return
	}

	room, err := s.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		s.sendErrorForKind(w, err)
		return
	}
	if room.DoctorID == nil || *room.DoctorID != principal.ID {
		s.sendError(w, "caller has not claimed this room", http.StatusForbidden)
		return
	}

	limit, offset := parsePagination(r)
	msgs, err := s.messages.Page(r.Context(), roomID, room.CipherKey, limit, offset)
	if err != nil {
		s.sendErrorForKind(w, err)
		return
	}

	resp := ListMessagesResponse{Messages: make([]MessageResponse, len(msgs))}
	for i, m := range msgs {
		resp.Messages[i] = MessageResponse{
			ID:                m.ID,
			SenderRole:        string(m.SenderRole),
			SenderID:          m.SenderID,
			Content:           m.Content,
			TranslatedContent: m.TranslatedContent,
			Language:          m.Language,
			TargetLanguage:    m.TargetLanguage,
			Timestamp:         m.Timestamp,
			IsAudioOrigin:     m.IsAudioOrigin,
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	storeStatus := "healthy"
	if err := s.rooms.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		storeStatus = fmt.Sprintf("error: %v", err)
	}

	cacheStatus := "not_configured"
	if pinger, ok := s.cache.(cachePinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			status = "unhealthy"
			cacheStatus = fmt.Sprintf("error: %v", err)
		} else {
			cacheStatus = "healthy"
		}
	}

	stats := s.registry.Stats()

	resp := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Store:       storeStatus,
		Cache:       cacheStatus,
		Sessions:    stats.TotalSessions,
		ActiveRooms: stats.ActiveRooms,
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) authenticateDoctor(r *http.Request) (interfaces.Principal, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return interfaces.Principal{}, types.NewError(types.KindUnauthenticated, "missing bearer token")
	}
	principal, err := s.verifier.Verify(strings.TrimPrefix(header, prefix))
	if err != nil {
		return interfaces.Principal{}, err
	}
	if principal.Kind != "doctor" {
		return interfaces.Principal{}, types.NewError(types.KindForbidden, "token is not a doctor token")
	}
	return principal, nil
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func (s *Server) sendErrorForKind(w http.ResponseWriter, err error) {
	switch types.KindOf(err) {
	case types.KindNotFound:
		s.sendError(w, err.Error(), http.StatusNotFound)
	case types.KindConflict:
		s.sendError(w, err.Error(), http.StatusConflict)
	case types.KindUnauthenticated:
		s.sendError(w, err.Error(), http.StatusUnauthorized)
	case types.KindForbidden:
		s.sendError(w, err.Error(), http.StatusForbidden)
	case types.KindInvalidArgument:
		s.sendError(w, err.Error(), http.StatusBadRequest)
	default:
		s.sendError(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
