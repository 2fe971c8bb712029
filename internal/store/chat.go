// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/memvault/memvault/internal/database"
	"github.com/memvault/memvault/internal/policy"
)

// AppendMessage appends a chat message to the caller's memory and then
// invokes the retention enforcer for that (caller, memory) pair. The
// prune runs after the insert has committed; its failure never rolls
// the message back.
func (s *Store) AppendMessage(ctx context.Context, caller string, memoryID uint, role, content string) (*database.ChatMessage, error) {
	if !database.IsValidMessageRole(role) {
		return nil, &ValidationError{Field: "role", Reason: fmt.Sprintf("must be one of %s", strings.Join(database.ValidMessageRoles(), ", "))}
	}
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	msg := &database.ChatMessage{
		MemoryID: memoryID,
		UserID:   caller,
		Role:     role,
		Content:  content,
	}

	if err := policy.Authorize(s.db.WithContext(ctx), policy.OpInsert, caller, policy.ForMessage(msg)); err != nil {
		return nil, translate(err)
	}

	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create chat message: %w", err)
	}

	s.enforcer.PruneAfterInsert(caller, memoryID)

	return msg, nil
}

// ListMessages returns the transcript of one of the caller's memories,
// most recent first. The retention enforcer keeps the persisted rows
// within the configured limit, so the result is already capped.
func (s *Store) ListMessages(ctx context.Context, caller string, memoryID uint) ([]database.ChatMessage, error) {
	if _, err := s.GetMemory(ctx, caller, memoryID); err != nil {
		return nil, err
	}

	var messages []database.ChatMessage
	err := s.db.WithContext(ctx).
		Where("memory_id = ? AND user_id = ?", memoryID, caller).
		Order("created_at DESC").
		Order("id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return messages, nil
}
