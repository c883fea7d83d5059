// ABOUTME: Conversation coordinator running one state-machine step per inbound turn
// ABOUTME: Load, transition, and version-gated save around a confirm/modify dialogue

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fabworks/iqc-gateway/internal/store"
)

// maxModificationAttempts bounds the confirm/modify loop. The fourth
// consecutive rejection aborts the dialogue and resets to initial.
const maxModificationAttempts = 3

// SessionStore defines what the coordinator needs from storage.
type SessionStore interface {
	GetOrCreateConversationSession(ctx context.Context, chatroomID int64, userID string) (*store.ConversationSession, int64, error)
	SaveConversationSession(ctx context.Context, chatroomID int64, userID string, sess *store.ConversationSession, expectedVersion int64) error
}

// TurnResult is the dialogue response for one turn. Exactly one of
// RequiresConfirmation, ModificationMode, Ready, or Err describes the
// outcome; Text always carries the user-facing reply.
type TurnResult struct {
	Text                 string         `json:"response"`
	RequiresConfirmation bool           `json:"requires_confirmation,omitempty"`
	ModificationMode     bool           `json:"modification_mode,omitempty"`
	Ready                bool           `json:"ready,omitempty"`
	Module               string         `json:"module,omitempty"`
	Params               map[string]any `json:"params,omitempty"`
	Err                  string         `json:"error,omitempty"`
}

// Manager orchestrates one conversation turn: it loads the session record,
// applies the state machine, and writes the updated record back guarded by
// the version read at load time. On a version conflict the turn fails and
// the caller decides whether to resubmit; retrying blindly here could
// double-apply a modification.
type Manager struct {
	sessions  SessionStore
	extractor ParamExtractor
	logger    *slog.Logger
}

// NewManager creates a coordinator. A nil extractor falls back to the
// keyword-based default.
func NewManager(sessions SessionStore, extractor ParamExtractor, logger *slog.Logger) *Manager {
	if extractor == nil {
		extractor = KeywordExtractor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:  sessions,
		extractor: extractor,
		logger:    logger.With("component", "conversation"),
	}
}

// HandleTurn runs exactly one state-machine step for the inbound message and
// returns the dialogue response. State is persisted only when the transition
// completed; recoverable failures (extraction errors) leave the stored
// session untouched so the user can retry the same turn.
func (m *Manager) HandleTurn(ctx context.Context, chatroomID int64, userID, choiceHint, message string) (*TurnResult, error) {
	loaded, version, err := m.sessions.GetOrCreateConversationSession(ctx, chatroomID, userID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	// Transitions work on a copy; the loaded record is never mutated, which
	// keeps the version-gated write easy to reason about.
	next := *loaded

	if !next.State.Valid() {
		m.logger.Warn("resetting unrecognized session state",
			"chatroom_id", chatroomID,
			"user_id", userID,
			"state", next.State)
		resetToInitial(&next)
	}

	var result *TurnResult
	switch next.State {
	case store.StateInitial:
		result, err = m.beginDialogue(ctx, &next, choiceHint, message)

	case store.StateParameterConfirmation:
		result = m.resolveConfirmation(&next, message)

	case store.StateParameterModification:
		result, err = m.applyModification(ctx, &next, message)

	case store.StateExecutionReady:
		// The executor normally resets the session before the next turn
		// arrives. A turn landing here is treated like a corrupt state:
		// reset, then process as a fresh query.
		m.logger.Warn("turn arrived in execution_ready state, resetting",
			"chatroom_id", chatroomID,
			"user_id", userID)
		resetToInitial(&next)
		result, err = m.beginDialogue(ctx, &next, choiceHint, message)
	}
	if err != nil {
		// Recoverable: report to the user, persist nothing.
		return &TurnResult{
			Text: fmt.Sprintf("Could not process the request: %v. Please try again.", err),
			Err:  err.Error(),
		}, nil
	}

	if err := m.sessions.SaveConversationSession(ctx, chatroomID, userID, &next, version); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return result, nil
}

// CompleteExecution records a successful module run and returns the session
// to the initial state. Callers invoke this after executing the module a
// Ready turn handed them. The write is version-gated like any other.
func (m *Manager) CompleteExecution(ctx context.Context, chatroomID int64, userID string) error {
	sess, version, err := m.sessions.GetOrCreateConversationSession(ctx, chatroomID, userID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	next := *sess
	if next.CurrentModule != "" {
		next.LastExecutedModule = next.CurrentModule
	}
	resetToInitial(&next)

	if err := m.sessions.SaveConversationSession(ctx, chatroomID, userID, &next, version); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	m.logger.Debug("execution completed",
		"chatroom_id", chatroomID,
		"user_id", userID,
		"module", next.LastExecutedModule)
	return nil
}

// beginDialogue extracts a tentative module and parameter set and moves the
// session to parameter confirmation.
func (m *Manager) beginDialogue(ctx context.Context, sess *store.ConversationSession, choiceHint, message string) (*TurnResult, error) {
	module, params, err := m.extractor.Extract(ctx, message, choiceHint)
	if err != nil {
		return nil, err
	}

	sess.CurrentModule = module
	sess.ExtractedParams = params
	sess.ModificationAttempts = 0
	sess.State = store.StateParameterConfirmation

	return &TurnResult{
		Text:                 "Shall I run the analysis with these parameters? If anything is wrong, tell me what to change.",
		RequiresConfirmation: true,
		Module:               module,
		Params:               params,
	}, nil
}

// resolveConfirmation interprets the user's answer to a pending parameter
// confirmation.
func (m *Manager) resolveConfirmation(sess *store.ConversationSession, message string) *TurnResult {
	switch analyzeConfirmation(message) {
	case confirmApproved:
		sess.State = store.StateExecutionReady
		return &TurnResult{
			Text:   "Ready to execute.",
			Ready:  true,
			Module: sess.CurrentModule,
			Params: sess.ExtractedParams,
		}

	case confirmModify:
		sess.ModificationAttempts++
		if sess.ModificationAttempts > maxModificationAttempts {
			resetToInitial(sess)
			return &TurnResult{
				Text: "Too many modification attempts. Please start over with a new request.",
			}
		}
		sess.State = store.StateParameterModification
		return &TurnResult{
			Text:             "What would you like to change? Please be specific.",
			ModificationMode: true,
		}

	default:
		// Stay put until the answer is clear.
		return &TurnResult{
			Text:                 `Please answer "yes" to proceed or describe the change you want.`,
			RequiresConfirmation: true,
		}
	}
}

// applyModification merges the requested change into the pending parameters
// and returns to confirmation.
func (m *Manager) applyModification(ctx context.Context, sess *store.ConversationSession, message string) (*TurnResult, error) {
	params, err := m.extractor.Merge(ctx, sess.ExtractedParams, message, sess.CurrentModule)
	if err != nil {
		return nil, err
	}

	sess.ExtractedParams = params
	sess.State = store.StateParameterConfirmation

	return &TurnResult{
		Text:                 "Here are the updated parameters. Shall I proceed?",
		RequiresConfirmation: true,
		Module:               sess.CurrentModule,
		Params:               params,
	}, nil
}

// resetToInitial clears the dialogue fields. LastExecutedModule survives the
// reset so elliptical follow-ups keep working.
func resetToInitial(sess *store.ConversationSession) {
	sess.State = store.StateInitial
	sess.CurrentModule = ""
	sess.ExtractedParams = nil
	sess.ModificationAttempts = 0
}

type confirmation int

const (
	confirmUnclear confirmation = iota
	confirmApproved
	confirmModify
)

// Approval is checked before rejection, matching the production keyword
// lists (English plus Korean).
var (
	approvalKeywords = []string{"yes", "confirm", "run", "proceed", "네", "맞", "응", "진행", "실행", "좋아"}
	rejectKeywords   = []string{"no", "change", "redo", "modify", "wrong", "아니", "수정", "변경", "다시", "틀려"}
)

func analyzeConfirmation(message string) confirmation {
	msg := strings.ToLower(strings.TrimSpace(message))
	for _, k := range approvalKeywords {
		if strings.Contains(msg, k) {
			return confirmApproved
		}
	}
	for _, k := range rejectKeywords {
		if strings.Contains(msg, k) {
			return confirmModify
		}
	}
	return confirmUnclear
}
