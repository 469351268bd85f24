package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	t.Helper()
	c, err := NewCache(Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestKVSetGetDel(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, c.Del(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKVExpiry(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "short", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := c.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	ok, err := c.SetNX(ctx, "lock", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := c.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, "a", v)
}

func TestSetOps(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.SAdd(ctx, "s", "a", "b", "a"))
	members, err := c.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	ok, err := c.SIsMember(ctx, "s", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.SRem(ctx, "s", "a"))
	ok, err = c.SIsMember(ctx, "s", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestZSetOrdering(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.ZAdd(ctx, "board", 3, "alice"))
	require.NoError(t, c.ZAdd(ctx, "board", 7, "bob"))
	require.NoError(t, c.ZAdd(ctx, "board", 5, "carol"))

	top, err := c.ZRevRange(ctx, "board", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol", "alice"}, top)

	// Updating a member's score re-ranks it.
	require.NoError(t, c.ZAdd(ctx, "board", 9, "alice"))
	top, err = c.ZRevRange(ctx, "board", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, top)

	score, err := c.ZScore(ctx, "board", "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(9), score)
}

func TestListPushTrim(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.LPush(ctx, "recent", "1"))
	require.NoError(t, c.LPush(ctx, "recent", "2"))
	require.NoError(t, c.LPush(ctx, "recent", "3"))

	items, err := c.LRange(ctx, "recent", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, items)

	require.NoError(t, c.LTrim(ctx, "recent", 0, 1))
	items, err = c.LRange(ctx, "recent", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2"}, items)
}

func TestPubSubFanOut(t *testing.T) {
	ctx := context.Background()
	ps := NewPubSub(16)

	ch1, cancel1, err := ps.Subscribe(ctx, "events")
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := ps.Subscribe(ctx, "events")
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, ps.Publish(ctx, "events", "hello"))

	for _, ch := range []<-chan *LocalMessage{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, "events", msg.Channel)
			assert.Equal(t, "hello", msg.Payload)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive message")
		}
	}
}
