package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// BadgerStore is the embedded single-node presence store. Flags expire through
// badger entry TTLs.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

func NewBadgerStore(db *badger.DB, ttl time.Duration) *BadgerStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &BadgerStore{db: db, ttl: ttl}
}

func presenceKey(userID uuid.UUID) []byte {
	return []byte(keyPrefix + userID.String())
}

func geoEntryKey(userID uuid.UUID) []byte {
	return []byte(geoKey + ":" + userID.String())
}

func (s *BadgerStore) MarkOnline(ctx context.Context, userID uuid.UUID, lon, lat float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	coords := strconv.FormatFloat(lon, 'f', -1, 64) + "," + strconv.FormatFloat(lat, 'f', -1, 64)
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(presenceKey(userID), []byte("1")).WithTTL(s.ttl)); err != nil {
			return err
		}
		return txn.Set(geoEntryKey(userID), []byte(coords))
	})
	if err != nil {
		return fmt.Errorf("presence.badger.mark_online: %w", err)
	}
	return nil
}

func (s *BadgerStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(presenceKey(userID))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("presence.badger.is_online: %w", err)
	}
}
