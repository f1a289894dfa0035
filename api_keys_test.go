package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	auth "github.com/Zarichney-Development/zarichney-api-sub000"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyManager(t *testing.T, principals ...*auth.Principal) (*auth.ApiKeyManager, *auth.MemoryStore) {
	t.Helper()
	store := auth.NewMemoryStore()
	manager := auth.NewApiKeyManager(store, newStubLookup(principals...))
	return manager, store
}

func TestApiKeyManager_Create(t *testing.T) {
	ctx := context.Background()
	owner := &auth.Principal{ID: uuid.New(), Email: "person@example.com"}

	t.Run("creates an active key with the raw secret", func(t *testing.T) {
		manager, store := newTestKeyManager(t, owner)
		sink := &captureSink{}
		manager.WithActivitySink(sink)

		key, err := manager.Create(ctx, owner.ID, "ci deploy", "used by the pipeline", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, key.KeyValue)
		assert.True(t, key.Active)
		assert.Equal(t, owner.ID, key.UserID)
		assert.Equal(t, "ci deploy", key.Name)

		stored, err := store.GetKeyByID(ctx, key.ID)
		require.NoError(t, err)
		assert.Equal(t, key.KeyValue, stored.KeyValue)

		require.Len(t, sink.byType(auth.ActivityEventApiKeyCreated), 1)
	})

	t.Run("rejects a missing owner", func(t *testing.T) {
		manager, _ := newTestKeyManager(t, owner)

		_, err := manager.Create(ctx, uuid.Nil, "key", "", nil)
		assert.Error(t, err)
	})

	t.Run("rejects a blank name", func(t *testing.T) {
		manager, _ := newTestKeyManager(t, owner)

		_, err := manager.Create(ctx, owner.ID, "   ", "", nil)
		assert.Error(t, err)
	})

	t.Run("rejects an overlong name", func(t *testing.T) {
		manager, _ := newTestKeyManager(t, owner)

		_, err := manager.Create(ctx, owner.ID, strings.Repeat("x", 101), "", nil)
		assert.Error(t, err)
	})

	t.Run("secrets are unique across keys", func(t *testing.T) {
		manager, _ := newTestKeyManager(t, owner)

		first, err := manager.Create(ctx, owner.ID, "one", "", nil)
		require.NoError(t, err)
		second, err := manager.Create(ctx, owner.ID, "two", "", nil)
		require.NoError(t, err)

		assert.NotEqual(t, first.KeyValue, second.KeyValue)
	})
}

func TestApiKeyManager_Validate(t *testing.T) {
	ctx := context.Background()
	owner := &auth.Principal{ID: uuid.New(), Email: "person@example.com"}

	t.Run("resolves a valid key to its owner", func(t *testing.T) {
		manager, _ := newTestKeyManager(t, owner)

		key, err := manager.Create(ctx, owner.ID, "ci", "", nil)
		require.NoError(t, err)

		principal, err := manager.Validate(ctx, key.KeyValue)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, principal.ID)
	})

	t.Run("empty value is a validation failure", func(t *testing.T) {
		manager, _ := newTestKeyManager(t, owner)

		_, err := manager.Validate(ctx, "  ")
		assert.Error(t, err)
	})

	t.Run("unknown value is not found", func(t *testing.T) {
		manager, _ := newTestKeyManager(t, owner)

		_, err := manager.Validate(ctx, "ghost")
		assert.ErrorIs(t, err, auth.ErrApiKeyNotFound)
	})

	t.Run("key created already past its expiry is immediately invalid", func(t *testing.T) {
		manager, _ := newTestKeyManager(t, owner)
		past := time.Now().Add(-time.Minute)

		key, err := manager.Create(ctx, owner.ID, "stale", "", &past)
		require.NoError(t, err)

		_, err = manager.Validate(ctx, key.KeyValue)
		assert.ErrorIs(t, err, auth.ErrApiKeyExpired)
	})

	t.Run("expiry wins over revocation", func(t *testing.T) {
		manager, store := newTestKeyManager(t, owner)
		past := time.Now().Add(-time.Minute)

		key, err := manager.Create(ctx, owner.ID, "stale", "", &past)
		require.NoError(t, err)
		require.NoError(t, store.DeactivateKey(ctx, key.ID))

		_, err = manager.Validate(ctx, key.KeyValue)
		assert.ErrorIs(t, err, auth.ErrApiKeyExpired)
	})

	t.Run("revoked key is rejected", func(t *testing.T) {
		manager, _ := newTestKeyManager(t, owner)

		key, err := manager.Create(ctx, owner.ID, "ci", "", nil)
		require.NoError(t, err)
		ok, err := manager.Revoke(ctx, key.ID, owner.ID)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = manager.Validate(ctx, key.KeyValue)
		assert.ErrorIs(t, err, auth.ErrApiKeyRevoked)
	})

	t.Run("key whose owner vanished fails", func(t *testing.T) {
		manager, _ := newTestKeyManager(t)

		key, err := manager.Create(ctx, uuid.New(), "orphan", "", nil)
		require.NoError(t, err)

		_, err = manager.Validate(ctx, key.KeyValue)
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})
}

func TestApiKeyManager_Revoke(t *testing.T) {
	ctx := context.Background()
	owner := &auth.Principal{ID: uuid.New(), Email: "person@example.com"}
	stranger := uuid.New()

	t.Run("owner can revoke", func(t *testing.T) {
		manager, store := newTestKeyManager(t, owner)
		sink := &captureSink{}
		manager.WithActivitySink(sink)

		key, err := manager.Create(ctx, owner.ID, "ci", "", nil)
		require.NoError(t, err)

		ok, err := manager.Revoke(ctx, key.ID, owner.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		stored, err := store.GetKeyByID(ctx, key.ID)
		require.NoError(t, err)
		assert.False(t, stored.Active)

		require.Len(t, sink.byType(auth.ActivityEventApiKeyRevoked), 1)
	})

	t.Run("missing key and foreign key are indistinguishable", func(t *testing.T) {
		manager, store := newTestKeyManager(t, owner)

		key, err := manager.Create(ctx, owner.ID, "ci", "", nil)
		require.NoError(t, err)

		ok, err := manager.Revoke(ctx, uuid.New(), owner.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = manager.Revoke(ctx, key.ID, stranger)
		require.NoError(t, err)
		assert.False(t, ok)

		stored, err := store.GetKeyByID(ctx, key.ID)
		require.NoError(t, err)
		assert.True(t, stored.Active, "a stranger must not be able to revoke")
	})
}

func TestApiKeyManager_Reads(t *testing.T) {
	ctx := context.Background()
	owner := &auth.Principal{ID: uuid.New(), Email: "person@example.com"}
	stranger := uuid.New()

	t.Run("get by id is owner scoped and redacted", func(t *testing.T) {
		manager, _ := newTestKeyManager(t, owner)

		key, err := manager.Create(ctx, owner.ID, "ci", "", nil)
		require.NoError(t, err)

		got, err := manager.GetByID(ctx, key.ID, owner.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Empty(t, got.KeyValue)
		assert.Equal(t, key.ID, got.ID)

		got, err = manager.GetByID(ctx, key.ID, stranger)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = manager.GetByID(ctx, uuid.New(), owner.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list by owner is redacted", func(t *testing.T) {
		manager, _ := newTestKeyManager(t, owner)

		_, err := manager.Create(ctx, owner.ID, "one", "", nil)
		require.NoError(t, err)
		_, err = manager.Create(ctx, owner.ID, "two", "", nil)
		require.NoError(t, err)

		records, err := manager.ListByOwner(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, records, 2)
		for _, record := range records {
			assert.Empty(t, record.KeyValue)
		}
	})
}
