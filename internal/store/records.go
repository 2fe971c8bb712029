// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/memvault/memvault/internal/database"
	"github.com/memvault/memvault/internal/policy"
)

// RecordUpdate carries the mutable fields of a record. Nil fields are
// left unchanged.
type RecordUpdate struct {
	Content  *string
	Metadata map[string]interface{}
}

// CreateRecord creates a record under the caller's memory. The record
// owner is forced to the caller; a mismatched or unowned parent is
// rejected before any row is written.
func (s *Store) CreateRecord(ctx context.Context, caller string, memoryID uint, content string, metadata map[string]interface{}) (*database.MemoryRecord, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	meta, err := encodeMetadata(metadata)
	if err != nil {
		return nil, &ValidationError{Field: "metadata", Reason: err.Error()}
	}

	rec := &database.MemoryRecord{
		MemoryID: memoryID,
		UserID:   caller,
		Content:  content,
		Metadata: meta,
	}

	if err := policy.Authorize(s.db.WithContext(ctx), policy.OpInsert, caller, policy.ForRecord(rec)); err != nil {
		return nil, translate(err)
	}

	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	s.indexRecord(ctx, rec)

	return rec, nil
}

// ListRecords returns the records of one of the caller's memories,
// most recent first
func (s *Store) ListRecords(ctx context.Context, caller string, memoryID uint) ([]database.MemoryRecord, error) {
	// The parent must exist and belong to the caller; otherwise the
	// memory is reported as not found rather than an empty list under
	// someone else's container.
	if _, err := s.GetMemory(ctx, caller, memoryID); err != nil {
		return nil, err
	}

	var records []database.MemoryRecord
	err := s.db.WithContext(ctx).
		Where("memory_id = ? AND user_id = ?", memoryID, caller).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// GetRecord returns one record by id, subject to the ownership chain
func (s *Store) GetRecord(ctx context.Context, caller string, id uint) (*database.MemoryRecord, error) {
	var rec database.MemoryRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translate(err)
	}

	if err := policy.Authorize(s.db.WithContext(ctx), policy.OpSelect, caller, policy.ForRecord(&rec)); err != nil {
		return nil, translate(err)
	}

	return &rec, nil
}

// UpdateRecord revises a record's content or metadata
func (s *Store) UpdateRecord(ctx context.Context, caller string, id uint, upd RecordUpdate) (*database.MemoryRecord, error) {
	rec, err := s.GetRecord(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(s.db.WithContext(ctx), policy.OpUpdate, caller, policy.ForRecord(rec)); err != nil {
		return nil, translate(err)
	}

	changes := map[string]interface{}{}
	if upd.Content != nil {
		if strings.TrimSpace(*upd.Content) == "" {
			return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
		}
		changes["content"] = *upd.Content
	}
	if upd.Metadata != nil {
		meta, err := encodeMetadata(upd.Metadata)
		if err != nil {
			return nil, &ValidationError{Field: "metadata", Reason: err.Error()}
		}
		changes["metadata"] = meta
	}
	if len(changes) == 0 {
		return rec, nil
	}

	err = s.db.WithContext(ctx).Model(&database.MemoryRecord{}).
		Where("id = ? AND user_id = ?", id, caller).
		Updates(changes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	fresh, err := s.GetRecord(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if upd.Content != nil {
		s.indexRecord(ctx, fresh)
	}

	return fresh, nil
}

// DeleteRecord deletes one record by id
func (s *Store) DeleteRecord(ctx context.Context, caller string, id uint) error {
	rec, err := s.GetRecord(ctx, caller, id)
	if err != nil {
		return err
	}

	if err := policy.Authorize(s.db.WithContext(ctx), policy.OpDelete, caller, policy.ForRecord(rec)); err != nil {
		return translate(err)
	}

	err = s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, caller).
		Delete(&database.MemoryRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	if s.search != nil {
		if err := s.search.RemoveRecord(ctx, id); err != nil {
			s.log.WithError(err).Warn("failed to remove record embedding")
		}
	}

	return nil
}

// indexRecord registers the record content for relevance search. The
// write has already committed, so indexing failure only costs
// searchability, never the record itself.
func (s *Store) indexRecord(ctx context.Context, rec *database.MemoryRecord) {
	if s.search == nil {
		return
	}
	if err := s.search.IndexRecord(ctx, rec.UserID, rec.MemoryID, rec.ID, rec.Content); err != nil {
		s.log.WithError(err).WithField("record_id", rec.ID).Warn("failed to index record for search")
	}
}

// encodeMetadata serializes the open key-value map, defaulting to an
// empty JSON object
func encodeMetadata(metadata map[string]interface{}) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("not serializable: %v", err)
	}
	return string(data), nil
}
