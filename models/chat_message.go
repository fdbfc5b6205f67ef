package models

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one line of the conversation transcript. LogID links an
// assistant message to the ProteinLog it confirmed; messages referencing a
// deleted log are pruned together with it.
type ChatMessage struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Role      string    `gorm:"not null" json:"role"` // "user" | "assistant"
	Text      string    `json:"text,omitempty"`
	LogID     string    `gorm:"index" json:"logId,omitempty"`
	Timestamp int64     `gorm:"index;not null" json:"timestamp"`
	CreatedAt time.Time `json:"-"`
}
