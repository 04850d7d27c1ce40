package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stayhaven/reservations/internal/domain"
)

// DraftStore keeps one reservation draft per principal, last write wins.
// The key TTL mirrors the draft's own ExpiresAt; readers still check
// ExpiresAt so a slow expiry never resurrects a stale draft.
type DraftStore struct {
	client *redis.Client
}

func NewDraftStore(client *redis.Client) *DraftStore {
	return &DraftStore{client: client}
}

func draftKey(principalID string) string {
	return "draft:" + principalID
}

func (s *DraftStore) Save(ctx context.Context, principalID string, draft domain.ReservationDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	ttl := time.Until(draft.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrExpiredSession
	}
	return s.client.Set(ctx, draftKey(principalID), data, ttl).Err()
}

func (s *DraftStore) Get(ctx context.Context, principalID string) (domain.ReservationDraft, error) {
	val, err := s.client.Get(ctx, draftKey(principalID)).Bytes()
	if err == redis.Nil {
		return domain.ReservationDraft{}, domain.ErrExpiredSession
	}
	if err != nil {
		return domain.ReservationDraft{}, err
	}
	var draft domain.ReservationDraft
	if err := json.Unmarshal(val, &draft); err != nil {
		// A corrupt draft is fatal to the flow, never a zero-price booking.
		return domain.ReservationDraft{}, domain.ErrExpiredSession
	}
	if draft.Expired(time.Now()) {
		return domain.ReservationDraft{}, domain.ErrExpiredSession
	}
	return draft, nil
}

func (s *DraftStore) Delete(ctx context.Context, principalID string) error {
	return s.client.Del(ctx, draftKey(principalID)).Err()
}

// Scan walks every live draft slot. Used by the sweeper to find drafts whose
// embedded expiry passed while the key is still present.
func (s *DraftStore) Scan(ctx context.Context, fn func(principalID string, draft domain.ReservationDraft) error) error {
	iter := s.client.Scan(ctx, 0, "draft:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return err
		}
		var draft domain.ReservationDraft
		if err := json.Unmarshal(val, &draft); err != nil {
			continue
		}
		if err := fn(key[len("draft:"):], draft); err != nil {
			return err
		}
	}
	return iter.Err()
}
