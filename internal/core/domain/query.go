package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Query struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	AnalysisID    string    `json:"analysis_id"`
	Message       string    `json:"message"`
	Response      string    `json:"response"`
	IsFollowUp    bool      `json:"is_follow_up"`
	ParentQueryID *string   `json:"parent_query_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
