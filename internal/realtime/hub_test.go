package realtime_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purr4furr/purr-backend/internal/realtime"
)

type testEvent struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func setupHub(t *testing.T) *realtime.Hub {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return realtime.NewHub(client, log)
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	hub := setupHub(t)

	got := make(chan testEvent, 1)
	sub := realtime.SubscribeJSON(hub, realtime.MessageChannel("match1"), func(e testEvent) {
		got <- e
	})
	defer sub.Close()

	// give the subscriber a moment to attach
	time.Sleep(50 * time.Millisecond)

	err := hub.Publish(context.Background(), realtime.MessageChannel("match1"),
		testEvent{ID: "m1", Content: "hi"})
	require.NoError(t, err)

	select {
	case e := <-got:
		assert.Equal(t, "m1", e.ID)
		assert.Equal(t, "hi", e.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscriptionIsFilteredByChannel(t *testing.T) {
	hub := setupHub(t)

	got := make(chan testEvent, 2)
	sub := realtime.SubscribeJSON(hub, realtime.MessageChannel("match1"), func(e testEvent) {
		got <- e
	})
	defer sub.Close()

	time.Sleep(50 * time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, realtime.MessageChannel("other"), testEvent{ID: "wrong"}))
	require.NoError(t, hub.Publish(ctx, realtime.MessageChannel("match1"), testEvent{ID: "right"}))

	select {
	case e := <-got:
		assert.Equal(t, "right", e.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	hub := setupHub(t)

	got := make(chan testEvent, 1)
	sub := realtime.SubscribeJSON(hub, realtime.MatchChannel("u1"), func(e testEvent) {
		got <- e
	})

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sub.Close())

	_ = hub.Publish(context.Background(), realtime.MatchChannel("u1"), testEvent{ID: "late"})

	select {
	case <-got:
		t.Fatal("received event after Close")
	case <-time.After(200 * time.Millisecond):
	}
}
