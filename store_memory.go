package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory implementation of
// RefreshTokenStore and ApiKeyStore. It is suitable for development,
// testing, and single-instance deployments where persistence is not
// required; the Consume transition holds the write lock for its whole
// duration, which gives the same replay guarantee a database constraint
// provides.
type MemoryStore struct {
	mu            sync.RWMutex
	refreshTokens map[string]*RefreshToken
	apiKeys       map[uuid.UUID]*ApiKey
	apiKeysByVal  map[string]uuid.UUID
}

var (
	_ RefreshTokenStore = (*MemoryStore)(nil)
	_ ApiKeyStore       = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		refreshTokens: map[string]*RefreshToken{},
		apiKeys:       map[uuid.UUID]*ApiKey{},
		apiKeysByVal:  map[string]uuid.UUID{},
	}
}

func cloneRefreshToken(t *RefreshToken) *RefreshToken {
	clone := *t
	if t.LastUsedAt != nil {
		lastUsed := *t.LastUsedAt
		clone.LastUsedAt = &lastUsed
	}
	if t.CreatedAt != nil {
		created := *t.CreatedAt
		clone.CreatedAt = &created
	}
	return &clone
}

func cloneApiKey(k *ApiKey) *ApiKey {
	clone := *k
	if k.ExpiresAt != nil {
		expires := *k.ExpiresAt
		clone.ExpiresAt = &expires
	}
	if k.CreatedAt != nil {
		created := *k.CreatedAt
		clone.CreatedAt = &created
	}
	return &clone
}

func (s *MemoryStore) SaveToken(ctx context.Context, token *RefreshToken) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := cloneRefreshToken(token)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}
	s.refreshTokens[record.Token] = record

	return cloneRefreshToken(record), nil
}

func (s *MemoryStore) GetByValue(ctx context.Context, value string) (*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.refreshTokens[value]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	return cloneRefreshToken(record), nil
}

func (s *MemoryStore) Consume(ctx context.Context, value string, at time.Time, replacement *RefreshToken) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.refreshTokens[value]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	if record.Used {
		return nil, ErrRefreshTokenUsed
	}
	if record.Revoked {
		return nil, ErrRefreshTokenRevoked
	}

	record.Used = true
	lastUsed := at
	record.LastUsedAt = &lastUsed

	next := cloneRefreshToken(replacement)
	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	if next.CreatedAt == nil {
		created := at
		next.CreatedAt = &created
	}
	s.refreshTokens[next.Token] = next

	return cloneRefreshToken(next), nil
}

func (s *MemoryStore) Revoke(ctx context.Context, value string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.refreshTokens[value]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	record.Revoked = true

	return cloneRefreshToken(record), nil
}

func (s *MemoryStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.refreshTokens {
		if record.UserID == userID && !record.Revoked {
			record.Revoked = true
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*RefreshToken
	for _, record := range s.refreshTokens {
		if record.UserID == userID {
			records = append(records, cloneRefreshToken(record))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		var a, b time.Time
		if records[i].CreatedAt != nil {
			a = *records[i].CreatedAt
		}
		if records[j].CreatedAt != nil {
			b = *records[j].CreatedAt
		}
		return a.After(b)
	})
	return records, nil
}

func (s *MemoryStore) SaveKey(ctx context.Context, key *ApiKey) (*ApiKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := cloneApiKey(key)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}
	s.apiKeys[record.ID] = record
	s.apiKeysByVal[record.KeyValue] = record.ID

	return cloneApiKey(record), nil
}

func (s *MemoryStore) GetKeyByValue(ctx context.Context, value string) (*ApiKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.apiKeysByVal[value]
	if !ok {
		return nil, ErrApiKeyNotFound
	}
	return cloneApiKey(s.apiKeys[id]), nil
}

func (s *MemoryStore) GetKeyByID(ctx context.Context, id uuid.UUID) (*ApiKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.apiKeys[id]
	if !ok {
		return nil, ErrApiKeyNotFound
	}
	return cloneApiKey(record), nil
}

func (s *MemoryStore) ListKeysByOwner(ctx context.Context, userID uuid.UUID) ([]*ApiKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*ApiKey
	for _, record := range s.apiKeys {
		if record.UserID == userID {
			records = append(records, cloneApiKey(record))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		var a, b time.Time
		if records[i].CreatedAt != nil {
			a = *records[i].CreatedAt
		}
		if records[j].CreatedAt != nil {
			b = *records[j].CreatedAt
		}
		return a.After(b)
	})
	return records, nil
}

func (s *MemoryStore) DeactivateKey(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.apiKeys[id]
	if !ok {
		return ErrApiKeyNotFound
	}
	record.Active = false
	return nil
}
