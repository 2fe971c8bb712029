// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package database

import (
	"time"
)

// Memory is a named container of records and chat history owned by a
// single user. The owner is the opaque subject identifier issued by the
// external identity provider; users themselves are not stored here.
type Memory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"index;not null" json:"user_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for Memory
func (Memory) TableName() string {
	return "memvault_memories"
}

// MemoryRecord is a free-text record attached to a memory. Records
// carry their owner redundantly so ownership can be checked without
// joining through the parent.
type MemoryRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MemoryID  uint      `gorm:"index;not null" json:"memory_id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Metadata  string    `gorm:"type:text;default:'{}'" json:"metadata"` // JSON object
	CreatedAt time.Time `json:"created_at"`

	// Foreign key relationship
	Memory Memory `gorm:"foreignKey:MemoryID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for MemoryRecord
func (MemoryRecord) TableName() string {
	return "memvault_records"
}

// ChatMessage is one entry of the rolling transcript attached to a
// memory. Messages are never updated after creation; the retention
// enforcer caps the transcript per (user, memory) pair.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MemoryID  uint      `gorm:"index;not null" json:"memory_id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Role      string    `gorm:"not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Foreign key relationship
	Memory Memory `gorm:"foreignKey:MemoryID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for ChatMessage
func (ChatMessage) TableName() string {
	return "memvault_chat_messages"
}

// Role constants for chat messages
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ValidMessageRoles returns all valid chat message roles
func ValidMessageRoles() []string {
	return []string{
		RoleUser,
		RoleAssistant,
		RoleSystem,
	}
}

// IsValidMessageRole checks if a chat message role is valid
func IsValidMessageRole(role string) bool {
	for _, valid := range ValidMessageRoles() {
		if role == valid {
			return true
		}
	}
	return false
}
