package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/daytrip-kr/go-daytrip/internal/types"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Store keeps live conversations in a TTL cache. Conversations are in-memory
// only; expiry is the cleanup story, there is no persistence.
type Store struct {
	cache *cache.Cache
}

// NewStore builds a store whose entries expire ttl after their last write.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{cache: cache.New(ttl, 2*ttl)}
}

func (s *Store) Get(id uuid.UUID) (*types.Conversation, error) {
	v, found := s.cache.Get(id.String())
	if !found {
		return nil, ErrConversationNotFound
	}
	conv, ok := v.(*types.Conversation)
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// Put saves the conversation and resets its expiry, so an active conversation
// stays alive as long as the user keeps talking.
func (s *Store) Put(conv *types.Conversation) {
	s.cache.Set(conv.ID.String(), conv, cache.DefaultExpiration)
}

func (s *Store) Delete(id uuid.UUID) {
	s.cache.Delete(id.String())
}
