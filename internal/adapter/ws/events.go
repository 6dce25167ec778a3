package ws

// Event type constants for WebSocket messages.
const (
	EventApprovalRequested = "approval.requested"
	EventApprovalResolved  = "approval.resolved"
	EventActionExecuted    = "action.executed"
)

// ApprovalRequestedEvent is broadcast when a request enters the pending set.
type ApprovalRequestedEvent struct {
	RequestID      string `json:"request_id"`
	Kind           string `json:"kind"`
	Target         string `json:"target"`
	Criticality    string `json:"criticality"`
	TimeoutMinutes int    `json:"timeout_minutes"`
}

// ApprovalResolvedEvent is broadcast when a request reaches a terminal state.
type ApprovalResolvedEvent struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Feedback  string `json:"feedback,omitempty"`
}

// ActionExecutedEvent is broadcast after an approved action runs.
type ActionExecutedEvent struct {
	RequestID string `json:"request_id"`
	Kind      string `json:"kind"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}
