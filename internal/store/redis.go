package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lorem111/claerdex/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and re-populate the cache; reads
// check Redis first then fall back to the primary.
//
// Version is cached alongside the record, so a cached read still carries a
// valid CAS token for a later SaveAccount against the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// cachedAccount carries Version explicitly: the model excludes it from the
// public JSON representation.
type cachedAccount struct {
	Account model.Account `json:"account"`
	Version int64         `json:"version"`
}

func (s *CachedStore) LoadAccount(ctx context.Context, address string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(address)).Bytes()
	if err == nil {
		var c cachedAccount
		if json.Unmarshal(data, &c) == nil {
			a := c.Account
			a.Version = c.Version
			return &a, nil
		}
	}

	// Cache miss: read from primary.
	a, err := s.primary.LoadAccount(ctx, address)
	if err != nil {
		return nil, err
	}

	s.cacheAccount(ctx, a)
	return a, nil
}

func (s *CachedStore) SaveAccount(ctx context.Context, acct *model.Account) error {
	if err := s.primary.SaveAccount(ctx, acct); err != nil {
		// A conflicting save means our cached copy is stale.
		s.rdb.Del(ctx, accountKey(acct.Address))
		return err
	}
	s.cacheAccount(ctx, acct)
	return nil
}

func (s *CachedStore) cacheAccount(ctx context.Context, a *model.Account) {
	c := cachedAccount{Account: *a, Version: a.Version}
	if data, err := json.Marshal(c); err == nil {
		s.rdb.Set(ctx, accountKey(a.Address), data, s.ttl)
	}
}

func accountKey(address string) string { return fmt.Sprintf("account:%s", address) }
