// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/database"
	"github.com/memvault/memvault/internal/policy"
	"gorm.io/gorm"
)

// MemoryUpdate carries the mutable fields of a memory. Nil fields are
// left unchanged. There is no UpdatedAt field on purpose: mutation time
// is always stamped server-side.
type MemoryUpdate struct {
	Title       *string
	Description *string
}

// CreateMemory creates a memory owned by the caller
func (s *Store) CreateMemory(ctx context.Context, caller, title, description string) (*database.Memory, error) {
	if strings.TrimSpace(title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}

	mem := &database.Memory{
		UserID:      caller,
		Title:       title,
		Description: description,
	}

	if err := policy.Authorize(s.db.WithContext(ctx), policy.OpInsert, caller, policy.ForMemory(mem)); err != nil {
		return nil, translate(err)
	}

	if err := s.db.WithContext(ctx).Create(mem).Error; err != nil {
		return nil, fmt.Errorf("failed to create memory: %w", err)
	}

	return mem, nil
}

// ListMemories returns the caller's memories, most recent first
func (s *Store) ListMemories(ctx context.Context, caller string) ([]database.Memory, error) {
	var memories []database.Memory
	err := s.db.WithContext(ctx).
		Where("user_id = ?", caller).
		Order("created_at DESC").
		Find(&memories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	return memories, nil
}

// GetMemory returns one memory by id. Absent and unowned rows are both
// reported as ErrNotFound.
func (s *Store) GetMemory(ctx context.Context, caller string, id uint) (*database.Memory, error) {
	var mem database.Memory
	if err := s.db.WithContext(ctx).First(&mem, id).Error; err != nil {
		return nil, translate(err)
	}

	if err := policy.Authorize(s.db.WithContext(ctx), policy.OpSelect, caller, policy.ForMemory(&mem)); err != nil {
		return nil, translate(err)
	}

	return &mem, nil
}

// UpdateMemory applies the non-nil fields of upd and stamps updated_at
// with the current server time. A caller-supplied timestamp is never
// honored.
func (s *Store) UpdateMemory(ctx context.Context, caller string, id uint, upd MemoryUpdate) (*database.Memory, error) {
	mem, err := s.GetMemory(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(s.db.WithContext(ctx), policy.OpUpdate, caller, policy.ForMemory(mem)); err != nil {
		return nil, translate(err)
	}

	changes := map[string]interface{}{}
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
		}
		changes["title"] = *upd.Title
	}
	if upd.Description != nil {
		changes["description"] = *upd.Description
	}
	if len(changes) == 0 {
		return mem, nil
	}

	changes["updated_at"] = time.Now().UTC()

	err = s.db.WithContext(ctx).Model(&database.Memory{}).
		Where("id = ? AND user_id = ?", id, caller).
		Updates(changes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}

	return s.GetMemory(ctx, caller, id)
}

// DeleteMemory deletes a memory and cascades to its records and chat
// messages inside one transaction, so no orphaned dependent can
// persist.
func (s *Store) DeleteMemory(ctx context.Context, caller string, id uint) error {
	mem, err := s.GetMemory(ctx, caller, id)
	if err != nil {
		return err
	}

	if err := policy.Authorize(s.db.WithContext(ctx), policy.OpDelete, caller, policy.ForMemory(mem)); err != nil {
		return translate(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("memory_id = ?", id).Delete(&database.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("memory_id = ?", id).Delete(&database.MemoryRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&database.Memory{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}

	if s.search != nil {
		if err := s.search.RemoveMemory(ctx, id); err != nil {
			s.log.WithError(err).WithField("memory_id", id).Warn("failed to remove memory embeddings")
		}
	}

	return nil
}
