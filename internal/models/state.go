// Package models defines conversation state structures for multi-step dialogs.
package models

// Flow identifies a multi-step conversational procedure.
type Flow string

// Step identifies the current position within a flow's linear sequence.
type Step string

// DataKey is a key for partially collected dialog input.
type DataKey string

// Flow constants.
const (
	FlowNone     Flow = ""
	FlowCreate   Flow = "CREATE"
	FlowEdit     Flow = "EDIT"
	FlowDelete   Flow = "DELETE"
	FlowInvite   Flow = "INVITE"
	FlowShare    Flow = "SHARE"
	FlowPublicOf Flow = "PUBLIC_OF"
)

// Step constants for the CREATE flow.
const (
	StepCreateWaitName    Step = "CREATE_WAIT_NAME"
	StepCreateWaitDate    Step = "CREATE_WAIT_DATE"
	StepCreateWaitTime    Step = "CREATE_WAIT_TIME"
	StepCreateWaitDetails Step = "CREATE_WAIT_DETAILS"
)

// Step constants for the EDIT flow.
const (
	StepEditWaitID         Step = "EDIT_WAIT_ID"
	StepEditWaitNewDetails Step = "EDIT_WAIT_NEW_DETAILS"
)

// Step constants for the DELETE flow.
const (
	StepDeleteWaitID Step = "DELETE_WAIT_ID"
)

// Step constants for the INVITE flow.
const (
	StepInviteWaitParticipantID Step = "INVITE_WAIT_PARTICIPANT_ID"
	StepInviteWaitEventID       Step = "INVITE_WAIT_EVENT_ID"
	StepInviteWaitDetails       Step = "INVITE_WAIT_DETAILS"
)

// Step constants for the SHARE flow.
const (
	StepShareWaitEventID    Step = "SHARE_WAIT_EVENT_ID"
	StepShareWaitVisibility Step = "SHARE_WAIT_VISIBILITY"
)

// Step constants for the PUBLIC_OF flow.
const (
	StepPublicOfWaitUserID Step = "PUBLIC_OF_WAIT_USER_ID"
)

// Data key constants for accumulated dialog input.
const (
	DataKeyName          DataKey = "name"
	DataKeyDate          DataKey = "date"
	DataKeyTime          DataKey = "time"
	DataKeyEventID       DataKey = "event_id"
	DataKeyParticipantID DataKey = "participant_id"
)

// ConversationState is the in-memory dialog position of one user.
// A zero-value state (FlowNone) means no dialog is active.
type ConversationState struct {
	UserID int64              `json:"user_id"`
	Flow   Flow               `json:"flow"`
	Step   Step               `json:"step"`
	Data   map[DataKey]string `json:"data,omitempty"`
}

// Active reports whether the user is currently inside a dialog.
func (s ConversationState) Active() bool {
	return s.Flow != FlowNone
}
