package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/Zarichney-Development/zarichney-api-sub000"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RefreshTokens(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	newToken := func(value string) *auth.RefreshToken {
		return &auth.RefreshToken{
			ID:        uuid.New(),
			UserID:    userID,
			Token:     value,
			ExpiresAt: time.Now().Add(time.Hour),
		}
	}

	t.Run("save and fetch by value", func(t *testing.T) {
		store := auth.NewMemoryStore()

		saved, err := store.SaveToken(ctx, newToken("tok-1"))
		require.NoError(t, err)
		assert.NotNil(t, saved.CreatedAt)

		got, err := store.GetByValue(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, saved.ID, got.ID)
	})

	t.Run("fetch missing value", func(t *testing.T) {
		store := auth.NewMemoryStore()

		_, err := store.GetByValue(ctx, "nope")
		assert.ErrorIs(t, err, auth.ErrRefreshTokenNotFound)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		store := auth.NewMemoryStore()

		_, err := store.SaveToken(ctx, newToken("tok-1"))
		require.NoError(t, err)

		got, err := store.GetByValue(ctx, "tok-1")
		require.NoError(t, err)
		got.Revoked = true

		again, err := store.GetByValue(ctx, "tok-1")
		require.NoError(t, err)
		assert.False(t, again.Revoked)
	})

	t.Run("consume marks used and inserts replacement", func(t *testing.T) {
		store := auth.NewMemoryStore()
		at := time.Now()

		_, err := store.SaveToken(ctx, newToken("old"))
		require.NoError(t, err)

		fresh, err := store.Consume(ctx, "old", at, newToken("new"))
		require.NoError(t, err)
		assert.Equal(t, "new", fresh.Token)

		old, err := store.GetByValue(ctx, "old")
		require.NoError(t, err)
		assert.True(t, old.Used)
		require.NotNil(t, old.LastUsedAt)
		assert.WithinDuration(t, at, *old.LastUsedAt, time.Second)

		got, err := store.GetByValue(ctx, "new")
		require.NoError(t, err)
		assert.False(t, got.Used)
	})

	t.Run("consume of a consumed token fails and does not insert", func(t *testing.T) {
		store := auth.NewMemoryStore()

		_, err := store.SaveToken(ctx, newToken("old"))
		require.NoError(t, err)

		_, err = store.Consume(ctx, "old", time.Now(), newToken("first"))
		require.NoError(t, err)

		_, err = store.Consume(ctx, "old", time.Now(), newToken("second"))
		assert.ErrorIs(t, err, auth.ErrRefreshTokenUsed)

		_, err = store.GetByValue(ctx, "second")
		assert.ErrorIs(t, err, auth.ErrRefreshTokenNotFound)
	})

	t.Run("consume of a revoked token fails", func(t *testing.T) {
		store := auth.NewMemoryStore()

		_, err := store.SaveToken(ctx, newToken("tok"))
		require.NoError(t, err)
		_, err = store.Revoke(ctx, "tok")
		require.NoError(t, err)

		_, err = store.Consume(ctx, "tok", time.Now(), newToken("next"))
		assert.ErrorIs(t, err, auth.ErrRefreshTokenRevoked)
	})

	t.Run("consume of a missing token fails", func(t *testing.T) {
		store := auth.NewMemoryStore()

		_, err := store.Consume(ctx, "ghost", time.Now(), newToken("next"))
		assert.ErrorIs(t, err, auth.ErrRefreshTokenNotFound)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		store := auth.NewMemoryStore()

		_, err := store.SaveToken(ctx, newToken("tok"))
		require.NoError(t, err)

		first, err := store.Revoke(ctx, "tok")
		require.NoError(t, err)
		assert.True(t, first.Revoked)

		second, err := store.Revoke(ctx, "tok")
		require.NoError(t, err)
		assert.True(t, second.Revoked)
	})

	t.Run("revoke missing token fails", func(t *testing.T) {
		store := auth.NewMemoryStore()

		_, err := store.Revoke(ctx, "ghost")
		assert.ErrorIs(t, err, auth.ErrRefreshTokenNotFound)
	})

	t.Run("revoke all for user counts touched records once", func(t *testing.T) {
		store := auth.NewMemoryStore()
		otherUser := uuid.New()

		for _, v := range []string{"a", "b", "c"} {
			_, err := store.SaveToken(ctx, newToken(v))
			require.NoError(t, err)
		}
		_, err := store.SaveToken(ctx, &auth.RefreshToken{
			ID: uuid.New(), UserID: otherUser, Token: "other", ExpiresAt: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
		_, err = store.Revoke(ctx, "c")
		require.NoError(t, err)

		count, err := store.RevokeAllForUser(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		count, err = store.RevokeAllForUser(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		other, err := store.GetByValue(ctx, "other")
		require.NoError(t, err)
		assert.False(t, other.Revoked)
	})

	t.Run("list for user returns newest first", func(t *testing.T) {
		store := auth.NewMemoryStore()
		base := time.Now()

		for i, v := range []string{"first", "second", "third"} {
			created := base.Add(time.Duration(i) * time.Minute)
			_, err := store.SaveToken(ctx, &auth.RefreshToken{
				ID:        uuid.New(),
				UserID:    userID,
				Token:     v,
				ExpiresAt: base.Add(time.Hour),
				CreatedAt: &created,
			})
			require.NoError(t, err)
		}

		records, err := store.ListForUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "third", records[0].Token)
		assert.Equal(t, "first", records[2].Token)
	})
}

func TestMemoryStore_ApiKeys(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	newKey := func(value string) *auth.ApiKey {
		return &auth.ApiKey{
			ID:       uuid.New(),
			UserID:   userID,
			KeyValue: value,
			Name:     "test key",
			Active:   true,
		}
	}

	t.Run("save and fetch by value and id", func(t *testing.T) {
		store := auth.NewMemoryStore()

		saved, err := store.SaveKey(ctx, newKey("key-1"))
		require.NoError(t, err)

		byVal, err := store.GetKeyByValue(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, saved.ID, byVal.ID)

		byID, err := store.GetKeyByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, "key-1", byID.KeyValue)
	})

	t.Run("missing keys", func(t *testing.T) {
		store := auth.NewMemoryStore()

		_, err := store.GetKeyByValue(ctx, "nope")
		assert.ErrorIs(t, err, auth.ErrApiKeyNotFound)

		_, err = store.GetKeyByID(ctx, uuid.New())
		assert.ErrorIs(t, err, auth.ErrApiKeyNotFound)

		err = store.DeactivateKey(ctx, uuid.New())
		assert.ErrorIs(t, err, auth.ErrApiKeyNotFound)
	})

	t.Run("deactivate clears the active flag", func(t *testing.T) {
		store := auth.NewMemoryStore()

		saved, err := store.SaveKey(ctx, newKey("key-1"))
		require.NoError(t, err)

		require.NoError(t, store.DeactivateKey(ctx, saved.ID))
		require.NoError(t, store.DeactivateKey(ctx, saved.ID), "repeat deactivation is a no-op")

		got, err := store.GetKeyByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.False(t, got.Active)
	})

	t.Run("list by owner only sees the owner's keys", func(t *testing.T) {
		store := auth.NewMemoryStore()

		_, err := store.SaveKey(ctx, newKey("mine"))
		require.NoError(t, err)
		_, err = store.SaveKey(ctx, &auth.ApiKey{
			ID: uuid.New(), UserID: uuid.New(), KeyValue: "theirs", Name: "other", Active: true,
		})
		require.NoError(t, err)

		records, err := store.ListKeysByOwner(ctx, userID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "mine", records[0].KeyValue)
	})
}
