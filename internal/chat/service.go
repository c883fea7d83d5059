// ABOUTME: Chat turn service bridging the dialogue coordinator and the executor
// ABOUTME: Streams progress events and persists messages, responses, and history

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fabworks/iqc-gateway/internal/conversation"
	"github.com/fabworks/iqc-gateway/internal/dataset"
	"github.com/fabworks/iqc-gateway/internal/store"
)

// ErrRoomNotFound is returned when the chat room does not exist or belongs to
// another user.
var ErrRoomNotFound = errors.New("chat room not found")

// EventSink receives intermediate events during a streamed turn. Each event
// is JSON-serializable and becomes one SSE frame on the wire.
type EventSink func(event any)

// Progress is a transient status update shown while a turn is processed.
type Progress struct {
	ProgressMessage string `json:"progress_message"`
}

// Notice is a terminal chat message without an execution payload: dialogue
// replies, validation errors, and processing failures.
type Notice struct {
	Msg          string                   `json:"msg"`
	Conversation *conversation.TurnResult `json:"conversation,omitempty"`
}

// TurnResponse is the final frame of a successfully executed turn.
type TurnResponse struct {
	ChatID     int64           `json:"chat_id"`
	MessageID  string          `json:"message_id"`
	ResponseID string          `json:"response_id"`
	Response   *dataset.Result `json:"response"`
}

// EditResponse is the result of regenerating an existing history entry.
type EditResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	ChatID     int64           `json:"chat_id"`
	ResponseID string          `json:"response_id"`
	Response   *dataset.Result `json:"response"`
}

// Service processes chat turns end to end: dialogue coordination, module
// execution, and history persistence.
type Service struct {
	store    store.Store
	manager  *conversation.Manager
	executor *dataset.Executor
	logger   *slog.Logger
}

func NewService(st store.Store, manager *conversation.Manager, executor *dataset.Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		manager:  manager,
		executor: executor,
		logger:   logger.With("component", "chat"),
	}
}

// ProcessTurn runs one chat turn. Dialogue replies (confirmation prompts,
// modification prompts) are emitted and the turn ends there; once the
// coordinator signals readiness the confirmed module is executed, the run is
// persisted, and the full payload is returned. History entries store the
// response without real_data.
func (s *Service) ProcessTurn(ctx context.Context, chatroomID int64, userID, choiceHint, message string, emit EventSink) (*TurnResponse, error) {
	if _, err := s.ownedRoom(ctx, chatroomID, userID); err != nil {
		emit(Notice{Msg: "Chat room not found."})
		return nil, err
	}

	turn, err := s.manager.HandleTurn(ctx, chatroomID, userID, choiceHint, message)
	if err != nil {
		return nil, fmt.Errorf("handling turn: %w", err)
	}

	if turn.Err != "" {
		// Recoverable processing failure; nothing was persisted.
		emit(Notice{Msg: turn.Text})
		return nil, nil
	}

	if !turn.Ready {
		emit(Notice{Msg: turn.Text, Conversation: turn})
		return nil, nil
	}

	userTime := time.Now().UTC()
	dataType, _ := turn.Params["data_type"].(string)
	userMsg := &store.Message{
		ID:         uuid.NewString(),
		ChatroomID: chatroomID,
		UserID:     userID,
		Role:       store.RoleUser,
		DataType:   dataType,
		Content:    message,
		CreatedAt:  userTime,
	}
	if err := s.store.SaveMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("saving message: %w", err)
	}

	emit(Progress{ProgressMessage: "Processing message..."})
	emit(Progress{ProgressMessage: "Analyzing data..."})

	result, err := s.executor.Execute(ctx, turn.Module, turn.Params)
	if err != nil {
		s.logger.Error("module execution failed", "module", turn.Module, "error", err)
		emit(Notice{Msg: fmt.Sprintf("An error occurred while processing the data: %v", err)})
		return nil, nil
	}
	emit(Progress{ProgressMessage: fmt.Sprintf("Generating %s data...", strings.ToUpper(result.Result))})

	fullPayload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	botResp := &store.BotResponse{
		ID:         uuid.NewString(),
		MessageID:  userMsg.ID,
		ChatroomID: chatroomID,
		UserID:     userID,
		Content:    string(fullPayload),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveBotResponse(ctx, botResp); err != nil {
		return nil, fmt.Errorf("saving bot response: %w", err)
	}

	history, err := historyJSON(result)
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}
	chatID, err := s.store.AddChatEntry(ctx, &store.ChatEntry{
		ChatroomID:   chatroomID,
		UserID:       userID,
		UserMessage:  message,
		BotResponse:  history,
		UserTime:     userTime,
		ResponseTime: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("saving history: %w", err)
	}

	// The executed module is recorded on the session so elliptical follow-ups
	// keep working. A conflict here means another turn already moved the
	// session on; the delivered result is unaffected.
	if err := s.manager.CompleteExecution(ctx, chatroomID, userID); err != nil {
		s.logger.Warn("completing execution", "chatroom_id", chatroomID, "user_id", userID, "error", err)
	}

	resp := &TurnResponse{
		ChatID:     chatID,
		MessageID:  userMsg.ID,
		ResponseID: botResp.ID,
		Response:   result,
	}
	emit(resp)
	return resp, nil
}

// EditTurn regenerates the payload for an existing history entry from an
// edited message. The message is re-classified from scratch; the dialogue
// session is not involved.
func (s *Service) EditTurn(ctx context.Context, chatroomID, chatID int64, userID, choiceHint, message string) (*EditResponse, error) {
	if _, err := s.ownedRoom(ctx, chatroomID, userID); err != nil {
		return nil, err
	}

	var extractor conversation.KeywordExtractor
	module, params, err := extractor.Extract(ctx, message, choiceHint)
	if err != nil {
		return nil, fmt.Errorf("classifying edited message: %w", err)
	}

	result, err := s.executor.Execute(ctx, module, params)
	if err != nil {
		return nil, fmt.Errorf("executing module: %w", err)
	}

	fullPayload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	botResp := &store.BotResponse{
		ID:         uuid.NewString(),
		ChatroomID: chatroomID,
		UserID:     userID,
		Content:    string(fullPayload),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveBotResponse(ctx, botResp); err != nil {
		return nil, fmt.Errorf("saving bot response: %w", err)
	}

	history, err := historyJSON(result)
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}
	err = s.store.UpdateChatEntry(ctx, chatroomID, chatID, userID, message, history)
	if errors.Is(err, store.ErrNotFound) {
		// The referenced entry is gone; record the regenerated turn as new
		// history rather than dropping it.
		if _, err := s.store.AddChatEntry(ctx, &store.ChatEntry{
			ChatroomID:   chatroomID,
			UserID:       userID,
			UserMessage:  message,
			BotResponse:  history,
			UserTime:     time.Now().UTC(),
			ResponseTime: time.Now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("saving history: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("updating history: %w", err)
	}

	return &EditResponse{
		Success:    true,
		Message:    "Message updated successfully.",
		ChatID:     chatID,
		ResponseID: botResp.ID,
		Response:   result,
	}, nil
}

// History returns the stored entries for a room, oldest first.
func (s *Service) History(ctx context.Context, chatroomID int64, userID string) ([]*store.ChatEntry, error) {
	if _, err := s.ownedRoom(ctx, chatroomID, userID); err != nil {
		return nil, err
	}
	return s.store.ListChatEntries(ctx, chatroomID, userID)
}

func (s *Service) ownedRoom(ctx context.Context, chatroomID int64, userID string) (*store.ChatRoom, error) {
	room, err := s.store.GetChatRoom(ctx, chatroomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("loading chat room: %w", err)
	}
	if room.UserID != userID {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// historyJSON renders the result envelope for history storage with the bulk
// real_data payload stripped.
func historyJSON(result *dataset.Result) (string, error) {
	trimmed := *result
	trimmed.RealData = nil
	raw, err := json.Marshal(&trimmed)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
