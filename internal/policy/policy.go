// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package policy evaluates the row-level ownership predicate that gates
// every store operation: the caller must own the row, and when the row
// has a parent memory the caller must own that parent too. The parent
// owner is loaded from the database at evaluation time, so a stale or
// forged owner field on the row itself cannot widen access.
package policy

import (
	"errors"
	"fmt"

	"github.com/memvault/memvault/internal/database"
	"gorm.io/gorm"
)

// ErrDenied is returned when the ownership predicate does not hold.
// Callers translate it into their not-found response so that an
// unauthorized row is indistinguishable from an absent one.
var ErrDenied = errors.New("access denied")

// Op identifies the operation being authorized
type Op string

const (
	OpSelect Op = "select"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Row is any entity subject to the ownership predicate. ParentMemoryID
// reports the parent memory reference, or ok=false for top-level
// entities (Memory itself).
type Row interface {
	OwnerID() string
	ParentMemoryID() (id uint, ok bool)
}

// Authorize evaluates the ownership predicate for one row-level
// operation. For OpInsert the row is the proposed row, validated before
// anything is written. Any failure aborts the operation; there are no
// partial effects because nothing has executed yet.
func Authorize(db *gorm.DB, op Op, caller string, row Row) error {
	if caller == "" {
		return denied(op, "no caller identity")
	}
	if row.OwnerID() != caller {
		return denied(op, "caller does not own row")
	}

	parentID, ok := row.ParentMemoryID()
	if !ok {
		return nil
	}

	var parent database.Memory
	err := db.Select("id", "user_id").First(&parent, parentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return denied(op, "parent memory does not exist")
		}
		return fmt.Errorf("failed to load parent memory: %w", err)
	}

	if parent.UserID != caller {
		return denied(op, "caller does not own parent memory")
	}

	return nil
}

// denied wraps ErrDenied with the operation and reason so denial logs
// say what was attempted, while errors.Is matching stays intact
func denied(op Op, reason string) error {
	return fmt.Errorf("%s: %s: %w", op, reason, ErrDenied)
}

// memoryRow adapts database.Memory to the Row interface
type memoryRow struct{ m *database.Memory }

func (r memoryRow) OwnerID() string              { return r.m.UserID }
func (r memoryRow) ParentMemoryID() (uint, bool) { return 0, false }

// recordRow adapts database.MemoryRecord to the Row interface
type recordRow struct{ r *database.MemoryRecord }

func (r recordRow) OwnerID() string              { return r.r.UserID }
func (r recordRow) ParentMemoryID() (uint, bool) { return r.r.MemoryID, true }

// messageRow adapts database.ChatMessage to the Row interface
type messageRow struct{ m *database.ChatMessage }

func (r messageRow) OwnerID() string              { return r.m.UserID }
func (r messageRow) ParentMemoryID() (uint, bool) { return r.m.MemoryID, true }

// ForMemory wraps a memory for predicate evaluation
func ForMemory(m *database.Memory) Row { return memoryRow{m} }

// ForRecord wraps a record for predicate evaluation
func ForRecord(r *database.MemoryRecord) Row { return recordRow{r} }

// ForMessage wraps a chat message for predicate evaluation
func ForMessage(m *database.ChatMessage) Row { return messageRow{m} }
