package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/resauth/token-service/broadcast"
)

func newTestBroadcaster(t *testing.T) *broadcast.Redis {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return broadcast.NewRedis(rdb)
}

func TestPublishReachesSubscribedGroup(t *testing.T) {
	b := newTestBroadcaster(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group := broadcast.Group{Email: "alice@example.com", ClientClass: "web"}
	events, err := b.Subscribe(ctx, group)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, group, broadcast.Event{Reason: "user requested logout"}))

	select {
	case ev := <-events:
		require.Equal(t, "user requested logout", ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("logout event not delivered")
	}
}

func TestPublishDoesNotCrossGroups(t *testing.T) {
	b := newTestBroadcaster(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	webGroup := broadcast.Group{Email: "alice@example.com", ClientClass: "web"}
	mobileGroup := broadcast.Group{Email: "alice@example.com", ClientClass: "mobile"}

	webEvents, err := b.Subscribe(ctx, webGroup)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, mobileGroup, broadcast.Event{Reason: "logout"}))

	select {
	case <-webEvents:
		t.Fatal("web group received a mobile-only event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishToEmptyGroupSucceeds(t *testing.T) {
	b := newTestBroadcaster(t)

	group := broadcast.Group{Email: "nobody@example.com", ClientClass: "web"}
	require.NoError(t, b.Publish(context.Background(), group, broadcast.Event{Reason: "logout"}))
}

func TestGroupChannelEscapesDelimiters(t *testing.T) {
	a := broadcast.Group{Email: "alice:web@example.com", ClientClass: "x"}
	b := broadcast.Group{Email: "alice", ClientClass: "web@example.com:x"}
	require.NotEqual(t, a.Channel(), b.Channel())
}

func TestNoopBroadcaster(t *testing.T) {
	require.NoError(t, broadcast.Noop{}.Publish(context.Background(),
		broadcast.Group{Email: "a@b.c", ClientClass: "web"}, broadcast.Event{Reason: "logout"}))
}
