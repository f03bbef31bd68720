package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	store := NewRedisStoreFromClient(client)
	t.Cleanup(func() { _ = store.Close() })

	return store, m
}

func TestMarkSeen_TestAndSet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.MarkSeen(ctx, []string{"p:seen:a", "p:seen:b"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, first)

	second, err := store.MarkSeen(ctx, []string{"p:seen:a", "p:seen:c"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, second)
}

func TestMarkSeen_TTL(t *testing.T) {
	store, m := newTestStore(t)
	ctx := context.Background()

	_, err := store.MarkSeen(ctx, []string{"p:seen:a"}, time.Minute)
	require.NoError(t, err)

	m.FastForward(2 * time.Minute)

	again, err := store.MarkSeen(ctx, []string{"p:seen:a"}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, again, "expired marker should be settable again")
}

func TestCommitRecords_FullFootprint(t *testing.T) {
	store, m := newTestStore(t)
	ctx := context.Background()

	err := store.CommitRecords(ctx, []CommitEntry{{
		RecordKey: "p:req:a",
		Raw:       []byte(`{"id":"a"}`),
		TimeKey:   "p:requests:by_date",
		Member:    "a",
		Score:     1000,
		SetKeys:   []string{"p:ip:1.2.3.4", "p:mode:block"},
	}}, 0)
	require.NoError(t, err)

	raw, found, err := store.Get(ctx, "p:req:a")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"id":"a"}`, string(raw))

	ids, err := store.RangeByScore(ctx, "p:requests:by_date", 0, 9999)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	members, err := store.SetMembers(ctx, "p:ip:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, members)

	assert.False(t, m.Exists("p:seen:a"), "commit does not touch markers")
}

func TestCommitRecords_TTLOnRecordAndSets(t *testing.T) {
	store, m := newTestStore(t)
	ctx := context.Background()

	err := store.CommitRecords(ctx, []CommitEntry{{
		RecordKey: "p:req:a",
		Raw:       []byte(`{"id":"a"}`),
		TimeKey:   "p:requests:by_date",
		Member:    "a",
		Score:     1000,
		SetKeys:   []string{"p:mode:block"},
	}}, time.Minute)
	require.NoError(t, err)

	m.FastForward(2 * time.Minute)

	_, found, err := store.Get(ctx, "p:req:a")
	require.NoError(t, err)
	assert.False(t, found)

	members, err := store.SetMembers(ctx, "p:mode:block")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRangeByScore_AscendingAndBounds(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	entries := []CommitEntry{
		{RecordKey: "p:req:c", Raw: []byte(`{}`), TimeKey: "z", Member: "c", Score: 3000},
		{RecordKey: "p:req:a", Raw: []byte(`{}`), TimeKey: "z", Member: "a", Score: 1000},
		{RecordKey: "p:req:b", Raw: []byte(`{}`), TimeKey: "z", Member: "b", Score: 2000},
	}
	require.NoError(t, store.CommitRecords(ctx, entries, 0))

	ids, err := store.RangeByScore(ctx, "z", 1000, 2000)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids, "inclusive bounds, ascending by score")

	n, err := store.SortedSetCard(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRemoveByScoreBelow(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	entries := []CommitEntry{
		{RecordKey: "p:req:old", Raw: []byte(`{}`), TimeKey: "z", Member: "old", Score: 100},
		{RecordKey: "p:req:new", Raw: []byte(`{}`), TimeKey: "z", Member: "new", Score: 5000},
	}
	require.NoError(t, store.CommitRecords(ctx, entries, 0))

	removed, err := store.RemoveByScoreBelow(ctx, "z", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	ids, err := store.RangeByScore(ctx, "z", 0, 9999)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids)
}

func TestGet_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	_, found, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListOps(t *testing.T) {
	store, m := newTestStore(t)
	ctx := context.Background()

	_, err := m.Push("requests", `{"id":"a"}`, `{"id":"b"}`, `{"id":"c"}`)
	require.NoError(t, err)

	n, err := store.ListLength(ctx, "requests")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	items, err := store.ListRange(ctx, "requests", 0, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.JSONEq(t, `{"id":"a"}`, string(items[0]))
	assert.JSONEq(t, `{"id":"b"}`, string(items[1]))
}

func TestScanExistsDelete(t *testing.T) {
	store, m := newTestStore(t)
	ctx := context.Background()

	m.Set("p:seen:a", "1")
	m.Set("p:seen:b", "1")
	m.Set("p:req:a", "{}")

	keys, err := store.ScanKeys(ctx, "p:seen:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p:seen:a", "p:seen:b"}, keys)

	ok, err := store.Exists(ctx, "p:req:a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "p:seen:a"))
	ok, err = store.Exists(ctx, "p:seen:a")
	require.NoError(t, err)
	assert.False(t, ok)
}
