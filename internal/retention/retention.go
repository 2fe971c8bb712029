// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package retention bounds the chat transcript of each (user, memory)
// pair to a fixed keep-count of most-recent messages. The prune runs as
// a post-insert hook on the chat write path, not as a database trigger,
// so ordering relative to the just-inserted row is explicit.
package retention

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultHistoryLimit is the number of chat messages kept per
// (user, memory) pair when no limit is configured.
const DefaultHistoryLimit = 10

// Enforcer prunes chat transcripts after inserts
type Enforcer struct {
	db    *gorm.DB
	limit int
	log   *logrus.Logger
}

// NewEnforcer creates a retention enforcer. A limit below 1 falls back
// to DefaultHistoryLimit.
func NewEnforcer(db *gorm.DB, limit int, log *logrus.Logger) *Enforcer {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Enforcer{db: db, limit: limit, log: log}
}

// Limit returns the configured keep-count
func (e *Enforcer) Limit() int {
	return e.limit
}

// Prune deletes every chat message for (userID, memoryID) beyond the
// most recent limit rows, ranked by created_at then id descending. The
// id tiebreak gives a total order even when timestamps collide. The
// whole prune is a single DELETE statement, so concurrent inserts can
// at worst overshoot briefly and converge on the next prune.
//
// Re-running on an already-compliant transcript deletes nothing.
func (e *Enforcer) Prune(userID string, memoryID uint) (int64, error) {
	result := e.db.Exec(`
		DELETE FROM memvault_chat_messages
		WHERE user_id = ? AND memory_id = ?
		AND id NOT IN (
			SELECT id FROM memvault_chat_messages
			WHERE user_id = ? AND memory_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)`,
		userID, memoryID, userID, memoryID, e.limit)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune chat messages: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// PruneAfterInsert runs Prune as best-effort cleanup after a committed
// insert. A failure never surfaces to the caller: the accepted message
// stands and the transcript may transiently exceed the limit until the
// next insert. The failure is logged for operator visibility.
func (e *Enforcer) PruneAfterInsert(userID string, memoryID uint) {
	pruned, err := e.Prune(userID, memoryID)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"user_id":   userID,
			"memory_id": memoryID,
		}).WithError(err).Warn("retention prune failed; transcript may exceed limit")
		return
	}

	if pruned > 0 {
		e.log.WithFields(logrus.Fields{
			"user_id":   userID,
			"memory_id": memoryID,
			"pruned":    pruned,
		}).Debug("pruned chat transcript")
	}
}
