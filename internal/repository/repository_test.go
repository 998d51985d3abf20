package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/purr4furr/purr-backend/internal/db"
	"github.com/purr4furr/purr-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setup in-memory DB
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&db.Profile{}, &db.Like{}, &db.Pass{}, &db.Match{}, &db.Message{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func TestLikeCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	require.NoError(t, repo.Create(ctx, "u1", "u2"))
	// second like on the same pair must not double the edge
	require.NoError(t, repo.Create(ctx, "u1", "u2"))

	var count int64
	dbase.Model(&db.Like{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLikeExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	require.NoError(t, repo.Create(ctx, "u1", "u2"))

	ok, err := repo.Exists(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, ok)

	// reverse direction is a separate edge
	ok, err = repo.Exists(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Delete(ctx, "u1", "u2"))
	ok, err = repo.Exists(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLikersExcludesPassedUsers(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	likes := repository.NewLikeRepository(dbase)
	passes := repository.NewPassRepository(dbase)

	// u2 and u3 liked u1
	require.NoError(t, likes.Create(ctx, "u2", "u1"))
	require.NoError(t, likes.Create(ctx, "u3", "u1"))
	// u1 passed u3 → exclude
	require.NoError(t, passes.Create(ctx, "u1", "u3"))

	got, _, err := likes.Likers(ctx, "u1", nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u2", got[0].LikerID)

	count, err := likes.CountLikers(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLikersPagination(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	likes := repository.NewLikeRepository(dbase)

	for _, liker := range []string{"a", "b", "c"} {
		require.NoError(t, likes.Create(ctx, liker, "u1"))
	}

	page1, token, err := likes.Likers(ctx, "u1", nil, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotNil(t, token)

	page2, token2, err := likes.Likers(ctx, "u1", token, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Nil(t, token2)

	seen := map[string]bool{}
	for _, l := range append(page1, page2...) {
		seen[l.LikerID] = true
	}
	assert.Len(t, seen, 3)
}

func TestMatchCreateIfAbsentIsCanonicalAndIdempotent(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	m1, created, err := repo.CreateIfAbsent(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "u1", m1.User1ID)
	assert.Equal(t, "u2", m1.User2ID)

	// reverse order resolves to the same row
	m2, created, err := repo.CreateIfAbsent(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, m1.ID, m2.ID)

	var count int64
	dbase.Model(&db.Match{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestMatchDeleteByPairRemovesMessages(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	matches := repository.NewMatchRepository(dbase)
	messages := repository.NewMessageRepository(dbase)

	m, _, err := matches.CreateIfAbsent(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NoError(t, messages.Create(ctx, &db.Message{
		ID: "m1", MatchID: m.ID, SenderID: "u1", ReceiverID: "u2",
		Content: "hi", MessageType: "text",
	}))

	require.NoError(t, matches.DeleteByPair(ctx, "u2", "u1"))

	var mc, msgc int64
	dbase.Model(&db.Match{}).Count(&mc)
	dbase.Model(&db.Message{}).Count(&msgc)
	assert.Equal(t, int64(0), mc)
	assert.Equal(t, int64(0), msgc)

	// deleting an absent pair is a no-op
	require.NoError(t, matches.DeleteByPair(ctx, "u1", "u2"))
}

func TestMessageMarkReadIsMonotonic(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMessageRepository(dbase)

	require.NoError(t, repo.Create(ctx, &db.Message{
		ID: "m1", MatchID: "match1", SenderID: "u2", ReceiverID: "u1",
		Content: "hello", MessageType: "text",
	}))
	require.NoError(t, repo.Create(ctx, &db.Message{
		ID: "m2", MatchID: "match1", SenderID: "u1", ReceiverID: "u2",
		Content: "hey", MessageType: "text",
	}))

	n, err := repo.MarkRead(ctx, "match1", "u1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n) // only the message addressed to u1

	// second invocation has nothing left to stamp
	n, err = repo.MarkRead(ctx, "match1", "u1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	unread, err := repo.UnreadCount(ctx, "match1", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	// u2's copy is still unread
	unread, err = repo.UnreadCount(ctx, "match1", "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestMessageListAndLast(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMessageRepository(dbase)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, dbase.Create(&db.Message{
			ID: id, MatchID: "match1", SenderID: "u1", ReceiverID: "u2",
			Content: id, MessageType: "text",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}).Error)
	}

	history, err := repo.ListByMatch(ctx, "match1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "m1", history[0].ID)
	assert.Equal(t, "m3", history[2].ID)

	last, err := repo.Last(ctx, "match1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "m3", last.ID)

	// empty conversation → nil, no error
	last, err = repo.Last(ctx, "no-such-match")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestMessagePagination(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMessageRepository(dbase)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, dbase.Create(&db.Message{
			ID: string(rune('a'+i)), MatchID: "match1", SenderID: "u1", ReceiverID: "u2",
			Content: "x", MessageType: "text",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}).Error)
	}

	page1, token, err := repo.ListByMatchPage(ctx, "match1", nil, 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.NotNil(t, token)
	assert.Equal(t, "e", page1[0].ID) // newest first

	page2, token2, err := repo.ListByMatchPage(ctx, "match1", token, 3)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Nil(t, token2)
}

func TestCandidatesExcludesSelfIncompleteLikedAndPassed(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	require.NoError(t, db.SeedMinimalTestData(dbase))

	profiles := repository.NewProfileRepository(dbase)
	likes := repository.NewLikeRepository(dbase)
	passes := repository.NewPassRepository(dbase)

	// baseline: u1 sees u2 and u3 (u4 incomplete, self excluded)
	got, err := profiles.Candidates(ctx, "u1", 10, true, true)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// after liking u2 and passing u3 the feed pool is empty
	require.NoError(t, likes.Create(ctx, "u1", "u2"))
	require.NoError(t, passes.Create(ctx, "u1", "u3"))

	got, err = profiles.Candidates(ctx, "u1", 10, true, true)
	require.NoError(t, err)
	assert.Empty(t, got)
}
