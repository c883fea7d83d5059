// ABOUTME: HTTP API handlers for auth, chat room management, and SSE chat
// ABOUTME: Streams analysis turns as server-sent events in data-frame format

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fabworks/iqc-gateway/internal/auth"
	"github.com/fabworks/iqc-gateway/internal/chat"
	"github.com/fabworks/iqc-gateway/internal/store"
)

// sendJSONError writes a JSON error response with the given status code.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendJSON writes a JSON response with the given status code.
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	if parts[1] == "" {
		return "", errors.New("empty token")
	}
	return parts[1], nil
}

type registerRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := g.authSvc.Register(r.Context(), req.UserID, req.DisplayName, req.Password); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			sendJSONError(w, http.StatusConflict, "user already exists")
			return
		}
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sendJSON(w, http.StatusCreated, map[string]string{"user_id": req.UserID})
}

type loginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := g.authSvc.Login(r.Context(), req.UserID, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		g.logger.Error("login failed", "error", err)
		sendJSONError(w, http.StatusInternalServerError, "login failed")
		return
	}

	sendJSON(w, http.StatusOK, session)
}

func (g *Gateway) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, err := bearerToken(r)
	if err != nil {
		sendJSONError(w, http.StatusUnauthorized, err.Error())
		return
	}

	user, err := g.authSvc.VerifyToken(r.Context(), token)
	if err != nil {
		sendJSONError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"valid":        true,
		"user_id":      user.ID,
		"display_name": user.DisplayName,
	})
}

func (g *Gateway) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, err := bearerToken(r)
	if err != nil {
		sendJSONError(w, http.StatusUnauthorized, err.Error())
		return
	}

	session, err := g.authSvc.RefreshToken(r.Context(), token)
	if err != nil {
		sendJSONError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	sendJSON(w, http.StatusOK, session)
}

// handleChatRooms handles collection-level chat room operations.
func (g *Gateway) handleChatRooms(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	switch r.Method {
	case http.MethodPost:
		room, err := g.store.CreateChatRoom(r.Context(), userID)
		if err != nil {
			g.logger.Error("creating chat room", "error", err)
			sendJSONError(w, http.StatusInternalServerError, "failed to create chat room")
			return
		}
		sendJSON(w, http.StatusCreated, room)

	case http.MethodGet:
		rooms, err := g.store.ListChatRooms(r.Context(), userID)
		if err != nil {
			g.logger.Error("listing chat rooms", "error", err)
			sendJSONError(w, http.StatusInternalServerError, "failed to list chat rooms")
			return
		}
		sendJSON(w, http.StatusOK, map[string]any{"chatrooms": rooms})

	default:
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleChatRoomRoutes dispatches /api/chatrooms/{id} and
// /api/chatrooms/{id}/history.
func (g *Gateway) handleChatRoomRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/chatrooms/")
	if rest == "" {
		sendJSONError(w, http.StatusNotFound, "not found")
		return
	}

	idPart, tail, _ := strings.Cut(rest, "/")
	chatroomID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid chatroom id")
		return
	}

	switch {
	case tail == "history" && r.Method == http.MethodGet:
		g.handleHistory(w, r, chatroomID)
	case tail == "" && r.Method == http.MethodPut:
		g.handleRenameChatRoom(w, r, chatroomID)
	case tail == "" && r.Method == http.MethodDelete:
		g.handleDeleteChatRoom(w, r, chatroomID)
	default:
		sendJSONError(w, http.StatusNotFound, "not found")
	}
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request, chatroomID int64) {
	userID := auth.UserFromContext(r.Context())

	entries, err := g.chatSvc.History(r.Context(), chatroomID, userID)
	if err != nil {
		if errors.Is(err, chat.ErrRoomNotFound) {
			sendJSONError(w, http.StatusNotFound, "chat room not found")
			return
		}
		g.logger.Error("loading history", "chatroom_id", chatroomID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{"history": entries})
}

type renameRequest struct {
	Name string `json:"name"`
}

func (g *Gateway) handleRenameChatRoom(w http.ResponseWriter, r *http.Request, chatroomID int64) {
	userID := auth.UserFromContext(r.Context())

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		sendJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := g.store.RenameChatRoom(r.Context(), chatroomID, userID, req.Name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sendJSONError(w, http.StatusNotFound, "chat room not found")
			return
		}
		g.logger.Error("renaming chat room", "chatroom_id", chatroomID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "failed to rename chat room")
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (g *Gateway) handleDeleteChatRoom(w http.ResponseWriter, r *http.Request, chatroomID int64) {
	userID := auth.UserFromContext(r.Context())

	if err := g.store.DeleteChatRoom(r.Context(), chatroomID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sendJSONError(w, http.StatusNotFound, "chat room not found")
			return
		}
		g.logger.Error("deleting chat room", "chatroom_id", chatroomID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "failed to delete chat room")
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}

type chatRequest struct {
	ChatroomID int64  `json:"chatroom_id"`
	Choice     string `json:"choice"`
	Message    string `json:"message"`
}

// handleChat processes a chat turn and streams progress as server-sent
// events. Each event is a single data frame carrying a JSON payload.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ChatroomID == 0 || req.Message == "" {
		sendJSONError(w, http.StatusBadRequest, "chatroom_id and message are required")
		return
	}

	// Check if client supports flushing before starting the stream
	flusher, ok := w.(http.Flusher)
	if !ok {
		sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	userID := auth.UserFromContext(r.Context())
	emit := func(event any) {
		g.writeDataFrame(w, event)
		flusher.Flush()
	}

	_, err := g.chatSvc.ProcessTurn(r.Context(), req.ChatroomID, userID, req.Choice, req.Message, emit)
	if err != nil {
		// Headers are already sent, so errors surface as a final frame
		if !errors.Is(err, chat.ErrRoomNotFound) {
			g.logger.Error("processing chat turn", "chatroom_id", req.ChatroomID, "error", err)
			emit(chat.Notice{Msg: "An error occurred while processing your request."})
		}
	}
}

// writeDataFrame serializes an event as one SSE data frame.
func (g *Gateway) writeDataFrame(w http.ResponseWriter, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		g.logger.Error("marshaling SSE event", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

type editMessageRequest struct {
	ChatroomID int64  `json:"chatroom_id"`
	ChatID     int64  `json:"chat_id"`
	Choice     string `json:"choice"`
	Message    string `json:"message"`
}

// handleEditMessage re-runs an analysis for an edited message and replaces
// the stored history entry.
func (g *Gateway) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ChatroomID == 0 || req.ChatID == 0 || req.Message == "" {
		sendJSONError(w, http.StatusBadRequest, "chatroom_id, chat_id and message are required")
		return
	}

	userID := auth.UserFromContext(r.Context())
	resp, err := g.chatSvc.EditTurn(r.Context(), req.ChatroomID, req.ChatID, userID, req.Choice, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrRoomNotFound) {
			sendJSONError(w, http.StatusNotFound, "chat room not found")
			return
		}
		g.logger.Error("editing message", "chatroom_id", req.ChatroomID, "chat_id", req.ChatID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "failed to edit message")
		return
	}

	sendJSON(w, http.StatusOK, resp)
}
