// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/memvault/memvault/internal/database"
	"github.com/memvault/memvault/internal/retention"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T, limit int) *Store {
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
	require.NoError(t, database.CreateIndexes(db))

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return New(db, retention.NewEnforcer(db, limit, log), nil, log)
}

func TestNew_Defaults(t *testing.T) {
	s := newTestStore(t, 0)
	assert.Equal(t, retention.DefaultHistoryLimit, s.HistoryLimit())
	assert.NotNil(t, s.DB())
}

func TestCreateMemory(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Trip planning", "notes for the trip")
	require.NoError(t, err)
	assert.NotZero(t, mem.ID)
	assert.Equal(t, "alice", mem.UserID)
	assert.Equal(t, "Trip planning", mem.Title)
	assert.False(t, mem.CreatedAt.IsZero())
	assert.False(t, mem.UpdatedAt.Before(mem.CreatedAt))
}

func TestCreateMemory_EmptyTitle(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	tests := []string{"", "   ", "\t\n"}
	for _, title := range tests {
		_, err := s.CreateMemory(ctx, "alice", title, "")
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	}
}

func TestListMemories_OwnerScoped(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	_, err := s.CreateMemory(ctx, "alice", "First", "")
	require.NoError(t, err)
	_, err = s.CreateMemory(ctx, "alice", "Second", "")
	require.NoError(t, err)
	_, err = s.CreateMemory(ctx, "bob", "Bob's", "")
	require.NoError(t, err)

	memories, err := s.ListMemories(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, memories, 2)
	for _, m := range memories {
		assert.Equal(t, "alice", m.UserID)
	}

	memories, err = s.ListMemories(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestGetMemory_CrossUserHidden(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Private", "")
	require.NoError(t, err)

	// Owner can read
	got, err := s.GetMemory(ctx, "alice", mem.ID)
	require.NoError(t, err)
	assert.Equal(t, mem.ID, got.ID)

	// Another caller gets the same answer as for an absent row
	_, err = s.GetMemory(ctx, "bob", mem.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetMemory(ctx, "bob", 99999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMemory_StampsServerTime(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Before", "")
	require.NoError(t, err)
	before := mem.UpdatedAt

	title := "After"
	updated, err := s.UpdateMemory(ctx, "alice", mem.ID, MemoryUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.False(t, updated.UpdatedAt.Before(before))
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
}

func TestUpdateMemory_CrossUserHidden(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Private", "")
	require.NoError(t, err)

	title := "Hijacked"
	_, err = s.UpdateMemory(ctx, "bob", mem.ID, MemoryUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	// Unchanged
	got, err := s.GetMemory(ctx, "alice", mem.ID)
	require.NoError(t, err)
	assert.Equal(t, "Private", got.Title)
}

func TestUpdateMemory_NoChanges(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Same", "")
	require.NoError(t, err)

	got, err := s.UpdateMemory(ctx, "alice", mem.ID, MemoryUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Same", got.Title)
}

func TestDeleteMemory_Cascades(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Doomed", "")
	require.NoError(t, err)

	_, err = s.CreateRecord(ctx, "alice", mem.ID, "record one", nil)
	require.NoError(t, err)
	_, err = s.CreateRecord(ctx, "alice", mem.ID, "record two", nil)
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "alice", mem.ID, database.RoleUser, "hello")
	require.NoError(t, err)

	require.NoError(t, s.DeleteMemory(ctx, "alice", mem.ID))

	_, err = s.GetMemory(ctx, "alice", mem.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// No dangling dependents
	var recCount, msgCount int64
	s.DB().Model(&database.MemoryRecord{}).Where("memory_id = ?", mem.ID).Count(&recCount)
	s.DB().Model(&database.ChatMessage{}).Where("memory_id = ?", mem.ID).Count(&msgCount)
	assert.Zero(t, recCount)
	assert.Zero(t, msgCount)
}

func TestDeleteMemory_CrossUserHidden(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Protected", "")
	require.NoError(t, err)

	err = s.DeleteMemory(ctx, "bob", mem.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetMemory(ctx, "alice", mem.ID)
	assert.NoError(t, err)
}
