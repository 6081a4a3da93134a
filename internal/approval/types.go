package approval

import "time"

// Status tracks the lifecycle of an approval request. Transitions go from
// pending to exactly one terminal state and are never reversed.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is one human-approval request gating a sensitive tool call.
type Request struct {
	ID         string         `json:"id"`
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args"`
	Reason     string         `json:"reason"`
	Status     Status         `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Terminal reports whether the request has been decided.
func (r *Request) Terminal() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected
}
