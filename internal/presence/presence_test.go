package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, ttl), mr
}

func indexedPosition(t *testing.T, store *RedisStore, userID uuid.UUID) (lon, lat float64) {
	t.Helper()

	positions, err := store.client.GeoPos(context.Background(), geoKey, userID.String()).Result()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.NotNil(t, positions[0], "user missing from geo index")
	return positions[0].Longitude, positions[0].Latitude
}

func TestRedisMarkOnlineSetsFlagAndGeo(t *testing.T) {
	req := require.New(t)
	store, mr := newRedisStore(t, 30*time.Second)
	ctx := context.Background()

	userID := uuid.New()
	online, err := store.IsOnline(ctx, userID)
	req.NoError(err)
	req.False(online)

	req.NoError(store.MarkOnline(ctx, userID, 13.405, 52.52))

	online, err = store.IsOnline(ctx, userID)
	req.NoError(err)
	req.True(online)
	req.Equal(30*time.Second, mr.TTL(keyPrefix+userID.String()))

	lon, lat := indexedPosition(t, store, userID)
	req.InDelta(13.405, lon, 1e-4)
	req.InDelta(52.52, lat, 1e-4)
}

func TestRedisPresenceExpires(t *testing.T) {
	req := require.New(t)
	store, mr := newRedisStore(t, 30*time.Second)
	ctx := context.Background()

	userID := uuid.New()
	req.NoError(store.MarkOnline(ctx, userID, 0, 0))

	mr.FastForward(20 * time.Second)
	req.NoError(store.MarkOnline(ctx, userID, 0, 0))
	mr.FastForward(20 * time.Second)

	online, err := store.IsOnline(ctx, userID)
	req.NoError(err)
	req.True(online)

	mr.FastForward(11 * time.Second)
	online, err = store.IsOnline(ctx, userID)
	req.NoError(err)
	req.False(online)
}

func TestRedisClampsPolarLatitude(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	for _, tc := range []struct {
		lat  float64
		want float64
	}{
		{89.9, maxGeoLatitude},
		{86, maxGeoLatitude},
		{85.06, maxGeoLatitude},
		{maxGeoLatitude, maxGeoLatitude},
		{85, 85},
		{-85.06, -maxGeoLatitude},
		{-89.9, -maxGeoLatitude},
	} {
		userID := uuid.New()
		require.NoError(t, store.MarkOnline(ctx, userID, 10, tc.lat))

		lon, lat := indexedPosition(t, store, userID)
		require.InDelta(t, 10, lon, 1e-4, "lat %v", tc.lat)
		require.InDelta(t, tc.want, lat, 1e-4, "lat %v", tc.lat)
	}
}

func TestRedisUnavailable(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	mr.Close()

	err := store.MarkOnline(context.Background(), uuid.New(), 0, 0)
	require.Error(t, err)
}

func newBadgerStore(t *testing.T, ttl time.Duration) *BadgerStore {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewBadgerStore(db, ttl)
}

func storedCoords(t *testing.T, store *BadgerStore, userID uuid.UUID) (string, bool) {
	t.Helper()

	var raw string
	err := store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(geoEntryKey(userID))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		raw = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false
	}
	require.NoError(t, err)
	return raw, true
}

func TestBadgerMarkOnline(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t, time.Minute)
	ctx := context.Background()

	userID := uuid.New()
	online, err := store.IsOnline(ctx, userID)
	req.NoError(err)
	req.False(online)

	_, ok := storedCoords(t, store, userID)
	req.False(ok)

	req.NoError(store.MarkOnline(ctx, userID, -73.9857, 40.7484))

	online, err = store.IsOnline(ctx, userID)
	req.NoError(err)
	req.True(online)

	coords, ok := storedCoords(t, store, userID)
	req.True(ok)
	req.Equal("-73.9857,40.7484", coords)
}

func TestBadgerPresenceExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for badger ttl")
	}
	req := require.New(t)
	store := newBadgerStore(t, time.Second)
	ctx := context.Background()

	userID := uuid.New()
	req.NoError(store.MarkOnline(ctx, userID, 0, 0))

	time.Sleep(2100 * time.Millisecond)

	online, err := store.IsOnline(ctx, userID)
	req.NoError(err)
	req.False(online)

	_, ok := storedCoords(t, store, userID)
	req.True(ok)
}

func TestBadgerCanceledContext(t *testing.T) {
	store := newBadgerStore(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.MarkOnline(ctx, uuid.New(), 0, 0), context.Canceled)
}
