package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"teamchat-core/server/internal/models"
)

func TestCanModifyMessage(t *testing.T) {
	now := time.Now()
	deletedAt := now

	tests := []struct {
		name   string
		userID int64
		msg    *models.Message
		want   bool
	}{
		{
			name:   "sender within window",
			userID: 1,
			msg:    &models.Message{SenderID: 1, CreatedAt: now.Add(-time.Minute)},
			want:   true,
		},
		{
			name:   "not the sender",
			userID: 2,
			msg:    &models.Message{SenderID: 1, CreatedAt: now.Add(-time.Minute)},
			want:   false,
		},
		{
			name:   "outside edit window",
			userID: 1,
			msg:    &models.Message{SenderID: 1, CreatedAt: now.Add(-EditWindow - time.Minute)},
			want:   false,
		},
		{
			name:   "already deleted",
			userID: 1,
			msg:    &models.Message{SenderID: 1, CreatedAt: now.Add(-time.Minute), DeletedAt: &deletedAt},
			want:   false,
		},
		{
			name:   "one second inside window boundary",
			userID: 1,
			msg:    &models.Message{SenderID: 1, CreatedAt: now.Add(-EditWindow + time.Second)},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanModifyMessage(tt.userID, tt.msg))
		})
	}
}

func TestCanDeleteMessage(t *testing.T) {
	now := time.Now()
	deletedAt := now
	staleMsg := &models.Message{SenderID: 1, CreatedAt: now.Add(-EditWindow - time.Hour)}
	freshMsg := &models.Message{SenderID: 1, CreatedAt: now.Add(-time.Minute)}
	deletedMsg := &models.Message{SenderID: 1, CreatedAt: now.Add(-time.Minute), DeletedAt: &deletedAt}

	assert.True(t, CanDeleteMessage(1, freshMsg, false), "sender within window can always delete")
	assert.False(t, CanDeleteMessage(2, staleMsg, false), "non-admin non-sender cannot delete a stale message")
	assert.True(t, CanDeleteMessage(2, staleMsg, true), "workspace admin can delete regardless of window")
	assert.False(t, CanDeleteMessage(2, deletedMsg, true), "cannot delete an already-deleted message")
}
