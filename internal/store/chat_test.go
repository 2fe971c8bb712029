// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/memvault/memvault/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendMessage(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Chat", "")
	require.NoError(t, err)

	msg, err := s.AppendMessage(ctx, "alice", mem.ID, database.RoleUser, "hello")
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.Equal(t, "alice", msg.UserID)

	// Assistant and system actors write as the owner's session
	_, err = s.AppendMessage(ctx, "alice", mem.ID, database.RoleAssistant, "hi there")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "alice", mem.ID, database.RoleSystem, "context reset")
	require.NoError(t, err)
}

func TestAppendMessage_Validation(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Chat", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		role    string
		content string
	}{
		{"invalid role", "moderator", "hello"},
		{"empty role", "", "hello"},
		{"empty content", database.RoleUser, ""},
		{"blank content", database.RoleUser, "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AppendMessage(ctx, "alice", mem.ID, tt.role, tt.content)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestAppendMessage_ForeignMemoryRejected(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Chat", "")
	require.NoError(t, err)

	_, err = s.AppendMessage(ctx, "bob", mem.ID, database.RoleUser, "hello?")
	assert.ErrorIs(t, err, ErrNotFound)

	var count int64
	s.DB().Model(&database.ChatMessage{}).Count(&count)
	assert.Zero(t, count)
}

func TestAppendMessage_FifteenInsertsKeepTenMostRecent(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Chat", "")
	require.NoError(t, err)

	// Strictly increasing timestamps so survival order is unambiguous
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		msg := &database.ChatMessage{
			MemoryID:  mem.ID,
			UserID:    "alice",
			Role:      database.RoleUser,
			Content:   fmt.Sprintf("message %d", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.DB().Create(msg).Error)
	}
	// The post-insert hook converges the transcript regardless of how
	// many rows accumulated in between
	_, err = s.AppendMessage(ctx, "alice", mem.ID, database.RoleUser, "message 16")
	require.NoError(t, err)

	messages, err := s.ListMessages(ctx, "alice", mem.ID)
	require.NoError(t, err)
	require.Len(t, messages, 10)

	// Newest first: 16 down to 7; messages 1-6 are gone
	for i, msg := range messages {
		assert.Equal(t, fmt.Sprintf("message %d", 16-i), msg.Content)
	}
}

func TestAppendMessage_BoundHoldsAfterEveryInsert(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Chat", "")
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		_, err := s.AppendMessage(ctx, "alice", mem.ID, database.RoleUser, fmt.Sprintf("message %d", i+1))
		require.NoError(t, err)

		var count int64
		s.DB().Model(&database.ChatMessage{}).
			Where("memory_id = ? AND user_id = ?", mem.ID, "alice").Count(&count)
		assert.LessOrEqual(t, count, int64(s.HistoryLimit()))
	}
}

func TestListMessages_CrossUserHidden(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	mem, err := s.CreateMemory(ctx, "alice", "Chat", "")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "alice", mem.ID, database.RoleUser, "secret")
	require.NoError(t, err)

	_, err = s.ListMessages(ctx, "bob", mem.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
