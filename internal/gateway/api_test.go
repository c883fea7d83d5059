// ABOUTME: Tests for the HTTP API: auth flow, chat room CRUD, SSE chat
// ABOUTME: Exercises handlers through httptest against an in-memory store

package gateway

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabworks/iqc-gateway/internal/config"
	"github.com/fabworks/iqc-gateway/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Server:   config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{Path: ":memory:"},
		Auth: config.AuthConfig{
			JWTSecret: "test-secret-do-not-use",
			TokenTTL:  time.Hour,
		},
	}

	g := newWithStore(cfg, store.NewMockStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(g.routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path, token string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// registerAndLogin creates a user and returns a valid bearer token.
func registerAndLogin(t *testing.T, srv *httptest.Server, userID string) string {
	t.Helper()

	resp := postJSON(t, srv, "/api/auth/register", "", map[string]string{
		"user_id":      userID,
		"display_name": "Test User",
		"password":     "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv, "/api/auth/login", "", map[string]string{
		"user_id":  userID,
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &session)
	require.NotEmpty(t, session.Token)
	return session.Token
}

func TestRegisterLoginFlow(t *testing.T) {
	srv := newTestServer(t)

	token := registerAndLogin(t, srv, "alice")
	require.NotEmpty(t, token)

	// Duplicate registration is rejected
	resp := postJSON(t, srv, "/api/auth/register", "", map[string]string{
		"user_id":      "alice",
		"display_name": "Alice Again",
		"password":     "different",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Wrong password
	resp = postJSON(t, srv, "/api/auth/login", "", map[string]string{
		"user_id":  "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Unknown user looks the same as a wrong password
	resp = postJSON(t, srv, "/api/auth/login", "", map[string]string{
		"user_id":  "nobody",
		"password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestVerifyAndRefreshToken(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	resp := doRequest(t, srv, http.MethodGet, "/api/auth/verify", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var verify struct {
		Valid  bool   `json:"valid"`
		UserID string `json:"user_id"`
	}
	decodeBody(t, resp, &verify)
	assert.True(t, verify.Valid)
	assert.Equal(t, "alice", verify.UserID)

	resp = doRequest(t, srv, http.MethodGet, "/api/auth/verify", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, srv, http.MethodPost, "/api/auth/refresh", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	decodeBody(t, resp, &session)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "alice", session.UserID)
}

func TestChatRoomsRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/api/chatrooms", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv, "/api/chat", "", map[string]any{"chatroom_id": 1, "message": "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestChatRoomLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	// Create
	resp := postJSON(t, srv, "/api/chatrooms", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var room struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, resp, &room)
	require.NotZero(t, room.ID)

	// List
	resp = doRequest(t, srv, http.MethodGet, "/api/chatrooms", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		ChatRooms []json.RawMessage `json:"chatrooms"`
	}
	decodeBody(t, resp, &list)
	assert.Len(t, list.ChatRooms, 1)

	// Rename
	resp = putJSON(t, srv, fmt.Sprintf("/api/chatrooms/%d", room.ID), token, map[string]string{"name": "PCM investigation"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// History of an empty room
	resp = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/chatrooms/%d/history", room.ID), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Another user cannot see the room
	otherToken := registerAndLogin(t, srv, "bob")
	resp = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/chatrooms/%d/history", room.ID), otherToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Delete
	resp = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/chatrooms/%d", room.ID), token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/chatrooms/%d/history", room.ID), token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func putJSON(t *testing.T, srv *httptest.Server, path, token string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, srv.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

// readSSEFrames collects every data frame from an SSE response body.
func readSSEFrames(t *testing.T, body io.Reader) []map[string]any {
	t.Helper()

	var frames []map[string]any
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		frames = append(frames, frame)
	}
	require.NoError(t, scanner.Err())
	return frames
}

func TestChatStreamConfirmationFlow(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	resp := postJSON(t, srv, "/api/chatrooms", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var room struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, resp, &room)

	// First turn: the assistant asks for confirmation
	resp = postJSON(t, srv, "/api/chat", token, map[string]any{
		"chatroom_id": room.ID,
		"choice":      "pcm",
		"message":     "trend please",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := readSSEFrames(t, resp.Body)
	resp.Body.Close()
	require.Len(t, frames, 1)
	assert.NotEmpty(t, frames[0]["msg"])
	require.Contains(t, frames[0], "conversation")

	// Second turn: approval runs the analysis and streams progress
	resp = postJSON(t, srv, "/api/chat", token, map[string]any{
		"chatroom_id": room.ID,
		"choice":      "pcm",
		"message":     "yes, run it",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frames = readSSEFrames(t, resp.Body)
	resp.Body.Close()
	require.NotEmpty(t, frames)

	var progressSeen bool
	for _, frame := range frames[:len(frames)-1] {
		if _, ok := frame["progress_message"]; ok {
			progressSeen = true
		}
	}
	assert.True(t, progressSeen, "expected progress frames before the result")

	final := frames[len(frames)-1]
	require.Contains(t, final, "response")
	assert.NotEmpty(t, final["message_id"])
	assert.NotZero(t, final["chat_id"])

	response, ok := final["response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "lot_start", response["result"])
	// The live frame carries the full payload; only history strips it
	assert.Contains(t, response, "real_data")

	// History now holds the executed turn, still without raw data
	resp = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/chatrooms/%d/history", room.ID), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		History []struct {
			UserMessage string `json:"user_message"`
			BotResponse string `json:"bot_response"`
		} `json:"history"`
	}
	decodeBody(t, resp, &history)
	require.Len(t, history.History, 1)
	assert.Equal(t, "yes, run it", history.History[0].UserMessage)
	assert.Contains(t, history.History[0].BotResponse, `"result":"lot_start"`)
	assert.NotContains(t, history.History[0].BotResponse, "real_data")
}

func TestChatUnknownRoomEmitsNotice(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	resp := postJSON(t, srv, "/api/chat", token, map[string]any{
		"chatroom_id": 999,
		"choice":      "pcm",
		"message":     "trend please",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frames := readSSEFrames(t, resp.Body)
	resp.Body.Close()
	require.Len(t, frames, 1)
	assert.Equal(t, "Chat room not found.", frames[0]["msg"])
}

func TestEditMessage(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	resp := postJSON(t, srv, "/api/chatrooms", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var room struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, resp, &room)

	// Run a full turn to create a history entry
	resp = postJSON(t, srv, "/api/chat", token, map[string]any{
		"chatroom_id": room.ID, "choice": "pcm", "message": "trend please",
	})
	resp.Body.Close()
	resp = postJSON(t, srv, "/api/chat", token, map[string]any{
		"chatroom_id": room.ID, "choice": "pcm", "message": "yes, run it",
	})
	frames := readSSEFrames(t, resp.Body)
	resp.Body.Close()
	require.NotEmpty(t, frames)
	chatID := int64(frames[len(frames)-1]["chat_id"].(float64))

	resp = postJSON(t, srv, "/api/edit_message", token, map[string]any{
		"chatroom_id": room.ID,
		"chat_id":     chatID,
		"choice":      "pcm",
		"message":     "point view instead",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var edit struct {
		Success  bool            `json:"success"`
		Response json.RawMessage `json:"response"`
	}
	decodeBody(t, resp, &edit)
	assert.True(t, edit.Success)
	assert.Contains(t, string(edit.Response), "lot_point")
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, srv, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestHelpEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/api/help", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var index struct {
		Topics []struct {
			Topic string `json:"topic"`
			Title string `json:"title"`
		} `json:"topics"`
	}
	decodeBody(t, resp, &index)
	require.NotEmpty(t, index.Topics)

	resp = doRequest(t, srv, http.MethodGet, "/api/help/"+index.Topics[0].Topic, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(raw), "<h1")

	resp = doRequest(t, srv, http.MethodGet, "/api/help/../secrets", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestFormatHelpTitle(t *testing.T) {
	assert.Equal(t, "Getting Started", formatHelpTitle("getting-started"))
	assert.Equal(t, "Api", formatHelpTitle("api"))
}
