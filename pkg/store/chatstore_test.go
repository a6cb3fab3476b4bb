package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/R-Krishnananda/leaf-disease-predictor/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// a named shared in-memory DB keeps gorm's pooled connections on the
	// same database; the test name keeps tests isolated from each other
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Chat{}, &models.ChatMessage{}))
	return db
}

func TestAppendTurnCreatesSessionLazily(t *testing.T) {
	st := NewChatStore(newTestDB(t))
	ctx := context.Background()

	chat, err := st.AppendTurn(ctx, "farmer@example.com", "Leaf Rust", "How do I treat leaf rust?", "Use a fungicide.")
	require.NoError(t, err)
	assert.Equal(t, "farmer@example.com", chat.UserEmail)
	assert.Equal(t, "Leaf Rust", chat.DiseaseTitle)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, "user", chat.Messages[0].Role)
	assert.Equal(t, "How do I treat leaf rust?", chat.Messages[0].Content)
	assert.Equal(t, "assistant", chat.Messages[1].Role)
	assert.Equal(t, "Use a fungicide.", chat.Messages[1].Content)
}

func TestAppendTurnTwiceKeepsSingleSessionInOrder(t *testing.T) {
	st := NewChatStore(newTestDB(t))
	ctx := context.Background()

	_, err := st.AppendTurn(ctx, "farmer@example.com", "Leaf Rust", "user1", "assistant1")
	require.NoError(t, err)
	chat, err := st.AppendTurn(ctx, "farmer@example.com", "Leaf Rust", "user2", "assistant2")
	require.NoError(t, err)

	var count int64
	require.NoError(t, st.db.Model(&models.Chat{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "expected a single session per (owner, topic)")

	require.Len(t, chat.Messages, 4)
	want := []string{"user1", "assistant1", "user2", "assistant2"}
	for i, content := range want {
		assert.Equal(t, content, chat.Messages[i].Content)
	}
	wantRoles := []string{"user", "assistant", "user", "assistant"}
	for i, role := range wantRoles {
		assert.Equal(t, role, chat.Messages[i].Role)
	}
}

func TestAppendTurnSeparateTopicsSeparateSessions(t *testing.T) {
	st := NewChatStore(newTestDB(t))
	ctx := context.Background()

	_, err := st.AppendTurn(ctx, "farmer@example.com", "Leaf Rust", "a", "b")
	require.NoError(t, err)
	_, err = st.AppendTurn(ctx, "farmer@example.com", "Powdery Mildew", "c", "d")
	require.NoError(t, err)

	sessions, err := st.ListSessions(ctx, "farmer@example.com")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestListSessionsOrderedByUpdatedAtDesc(t *testing.T) {
	st := NewChatStore(newTestDB(t))
	ctx := context.Background()

	titles := []string{"First", "Second", "Third"}
	base := time.Now().Add(-time.Hour)
	for i, title := range titles {
		chat, err := st.AppendTurn(ctx, "farmer@example.com", title, "q", "a")
		require.NoError(t, err)
		// pin distinct update times: First oldest, Third newest
		require.NoError(t, st.db.Model(&models.Chat{}).Where("id = ?", chat.ID).
			Update("updated_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	sessions, err := st.ListSessions(ctx, "farmer@example.com")
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "Third", sessions[0].DiseaseTitle)
	assert.Equal(t, "Second", sessions[1].DiseaseTitle)
	assert.Equal(t, "First", sessions[2].DiseaseTitle)
}

func TestListSessionsEmptyForUnknownOwner(t *testing.T) {
	st := NewChatStore(newTestDB(t))

	sessions, err := st.ListSessions(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestListSessionsScopedToOwner(t *testing.T) {
	st := NewChatStore(newTestDB(t))
	ctx := context.Background()

	_, err := st.AppendTurn(ctx, "alice@example.com", "Leaf Rust", "q", "a")
	require.NoError(t, err)
	_, err = st.AppendTurn(ctx, "bob@example.com", "Leaf Rust", "q", "a")
	require.NoError(t, err)

	sessions, err := st.ListSessions(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "alice@example.com", sessions[0].UserEmail)
}

func TestAppendTurnStorageUnavailable(t *testing.T) {
	db := newTestDB(t)
	st := NewChatStore(db)
	require.NoError(t, db.Migrator().DropTable(&models.ChatMessage{}))

	_, err := st.AppendTurn(context.Background(), "farmer@example.com", "Leaf Rust", "q", "a")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	// the transaction must roll back; a failed turn leaves no session behind
	var count int64
	require.NoError(t, db.Model(&models.Chat{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListSessionsStorageUnavailable(t *testing.T) {
	db := newTestDB(t)
	st := NewChatStore(db)
	require.NoError(t, db.Migrator().DropTable(&models.Chat{}))

	_, err := st.ListSessions(context.Background(), "farmer@example.com")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
