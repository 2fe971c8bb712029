// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package policy

import (
	"path/filepath"
	"testing"

	"github.com/memvault/memvault/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := &database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
		LogLevel:   logger.Silent,
	}

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.Migrate(db))
	return db
}

func TestAuthorize_Memory(t *testing.T) {
	db := setupDB(t)

	mem := &database.Memory{UserID: "alice", Title: "Notes"}
	require.NoError(t, db.Create(mem).Error)

	tests := []struct {
		name   string
		caller string
		op     Op
		want   error
	}{
		{"owner select", "alice", OpSelect, nil},
		{"owner update", "alice", OpUpdate, nil},
		{"owner delete", "alice", OpDelete, nil},
		{"other user select", "bob", OpSelect, ErrDenied},
		{"other user delete", "bob", OpDelete, ErrDenied},
		{"empty caller", "", OpSelect, ErrDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(db, tt.op, tt.caller, ForMemory(mem))
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestAuthorize_DenialNamesOperation(t *testing.T) {
	db := setupDB(t)

	mem := &database.Memory{UserID: "alice", Title: "Notes"}
	require.NoError(t, db.Create(mem).Error)

	err := Authorize(db, OpDelete, "bob", ForMemory(mem))
	require.ErrorIs(t, err, ErrDenied)
	assert.Contains(t, err.Error(), string(OpDelete))

	err = Authorize(db, OpUpdate, "bob", ForMemory(mem))
	require.ErrorIs(t, err, ErrDenied)
	assert.Contains(t, err.Error(), string(OpUpdate))
}

func TestAuthorize_RecordOwnershipChain(t *testing.T) {
	db := setupDB(t)

	mem := &database.Memory{UserID: "alice", Title: "Notes"}
	require.NoError(t, db.Create(mem).Error)

	rec := &database.MemoryRecord{MemoryID: mem.ID, UserID: "alice", Content: "x"}
	require.NoError(t, db.Create(rec).Error)

	// Owner passes both links of the chain
	assert.NoError(t, Authorize(db, OpSelect, "alice", ForRecord(rec)))

	// Different caller fails on the row's own owner field
	assert.ErrorIs(t, Authorize(db, OpSelect, "bob", ForRecord(rec)), ErrDenied)
}

func TestAuthorize_RowOwnerDisagreesWithParent(t *testing.T) {
	db := setupDB(t)

	aliceMem := &database.Memory{UserID: "alice", Title: "Alice's"}
	require.NoError(t, db.Create(aliceMem).Error)

	// Forged row: owner claims bob but points at alice's memory. Bob
	// matches the row owner, yet the parent check must still fail.
	forged := &database.MemoryRecord{MemoryID: aliceMem.ID, UserID: "bob", Content: "x"}
	assert.ErrorIs(t, Authorize(db, OpInsert, "bob", ForRecord(forged)), ErrDenied)
}

func TestAuthorize_MissingParent(t *testing.T) {
	db := setupDB(t)

	// Proposed insert referencing a parent that does not exist
	rec := &database.MemoryRecord{MemoryID: 999, UserID: "alice", Content: "x"}
	assert.ErrorIs(t, Authorize(db, OpInsert, "alice", ForRecord(rec)), ErrDenied)
}

func TestAuthorize_MessageChain(t *testing.T) {
	db := setupDB(t)

	mem := &database.Memory{UserID: "alice", Title: "Chat"}
	require.NoError(t, db.Create(mem).Error)

	msg := &database.ChatMessage{MemoryID: mem.ID, UserID: "alice", Role: database.RoleUser, Content: "hi"}
	assert.NoError(t, Authorize(db, OpInsert, "alice", ForMessage(msg)))
	assert.ErrorIs(t, Authorize(db, OpInsert, "mallory", ForMessage(msg)), ErrDenied)
}
