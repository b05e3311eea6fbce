package fsm

import (
	"log/slog"
	"sync"

	"github.com/calbot/calbot/internal/models"
)

// StateStore manages per-user conversation state for multi-step dialogs.
// State lives only for the lifetime of the process; there is no persistence
// across restarts. All operations are keyed by Telegram user id.
type StateStore interface {
	// SetState replaces any existing state for the user unconditionally.
	SetState(userID int64, flow models.Flow, step models.Step, data map[models.DataKey]string)

	// GetState returns the current state, or the canonical empty state
	// (FlowNone, no step, empty data) if none exists. It never fails.
	GetState(userID int64) models.ConversationState

	// ClearState removes the user's state. Clearing an absent state is a no-op.
	ClearState(userID int64)

	// MergeData shallow-merges partial into the user's accumulated data,
	// creating an empty-flow entry first if none exists.
	MergeData(userID int64, partial map[models.DataKey]string)
}

// InMemoryStateStore is the process-local StateStore used by the bot.
// The mutex only guarantees map safety; two rapid messages from the same
// user still resolve as last-write-wins (the dialog contract does not
// serialize same-user messages).
type InMemoryStateStore struct {
	mu     sync.RWMutex
	states map[int64]models.ConversationState
}

// NewInMemoryStateStore creates an empty in-memory state store.
func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{states: make(map[int64]models.ConversationState)}
}

// SetState replaces any existing state for the user unconditionally.
func (s *InMemoryStateStore) SetState(userID int64, flow models.Flow, step models.Step, data map[models.DataKey]string) {
	if data == nil {
		data = make(map[models.DataKey]string)
	}
	s.mu.Lock()
	s.states[userID] = models.ConversationState{
		UserID: userID,
		Flow:   flow,
		Step:   step,
		Data:   data,
	}
	s.mu.Unlock()
	slog.Debug("StateStore SetState", "userID", userID, "flow", flow, "step", step)
}

// GetState returns the current state for the user, or the canonical empty state.
func (s *InMemoryStateStore) GetState(userID int64) models.ConversationState {
	s.mu.RLock()
	state, ok := s.states[userID]
	s.mu.RUnlock()
	if !ok {
		return models.ConversationState{UserID: userID, Data: make(map[models.DataKey]string)}
	}
	return state
}

// ClearState removes the user's state. Idempotent.
func (s *InMemoryStateStore) ClearState(userID int64) {
	s.mu.Lock()
	delete(s.states, userID)
	s.mu.Unlock()
	slog.Debug("StateStore ClearState", "userID", userID)
}

// MergeData shallow-merges partial into the user's accumulated data.
func (s *InMemoryStateStore) MergeData(userID int64, partial map[models.DataKey]string) {
	s.mu.Lock()
	state, ok := s.states[userID]
	if !ok {
		state = models.ConversationState{UserID: userID, Data: make(map[models.DataKey]string)}
	}
	if state.Data == nil {
		state.Data = make(map[models.DataKey]string)
	}
	for k, v := range partial {
		state.Data[k] = v
	}
	s.states[userID] = state
	s.mu.Unlock()
	slog.Debug("StateStore MergeData", "userID", userID, "keys", len(partial))
}
