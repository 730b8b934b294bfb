package websocket

import "github.com/google/uuid"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer  Action = "answer"
	ActionClear   Action = "clear"
	ActionGoto    Action = "goto"
	ActionNext    Action = "next"
	ActionPrev    Action = "prev"
	ActionSubmit  Action = "submit"
	ActionRefresh Action = "refresh"
	ActionPing    Action = "ping"
)

// RequestPayload is the single shape of every client message. Fields not
// used by an action are ignored.
type RequestPayload struct {
	Action   Action `json:"action"`
	QID      string `json:"q_id,omitempty"`
	OptionID string `json:"option_id,omitempty"`
	Index    *int   `json:"index,omitempty"`
}

// QuestionID parses q_id.
func (r *RequestPayload) QuestionID() (uuid.UUID, error) {
	return uuid.Parse(r.QID)
}

// Option parses option_id.
func (r *RequestPayload) Option() (uuid.UUID, error) {
	return uuid.Parse(r.OptionID)
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

// Workspace events carry the session package's event names verbatim:
// session, tick, navigation, notice and completed.
const (
	EventError Event = "error"
	EventPong  Event = "pong"
)

// ResponsePayload wraps every server message.
type ResponsePayload struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
