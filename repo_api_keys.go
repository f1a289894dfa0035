package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeactivateApiKeySQL clears the active flag. Running it against an
// already-inactive key is harmless, which is what makes revocation
// idempotent.
var DeactivateApiKeySQL = `UPDATE "api_keys" AS "ak"
SET
	"active" = FALSE
WHERE
	"ak"."id" = ?
RETURNING *;`

// ApiKeys is the persistence surface for API key records.
type ApiKeys interface {
	repository.Repository[*ApiKey]
	ApiKeyStore

	GetKeyByValueTx(ctx context.Context, tx bun.IDB, value string) (*ApiKey, error)
	DeactivateKeyTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type apiKeys struct {
	repository.Repository[*ApiKey]
	db *bun.DB
}

var (
	_ ApiKeys                        = (*apiKeys)(nil)
	_ repository.Repository[*ApiKey] = (*apiKeys)(nil)
)

// NewApiKeysRepository builds the bun-backed API key store.
func NewApiKeysRepository(db *bun.DB) ApiKeys {
	repo := repository.NewRepository[*ApiKey](db, repository.ModelHandlers[*ApiKey]{
		NewRecord: func() *ApiKey { return &ApiKey{} },
		GetID: func(k *ApiKey) uuid.UUID {
			if k == nil {
				return uuid.Nil
			}
			return k.ID
		},
		SetID: func(k *ApiKey, id uuid.UUID) {
			if k != nil {
				k.ID = id
			}
		},
		GetIdentifier: func() string {
			return "key_value"
		},
	})

	return &apiKeys{
		Repository: repo,
		db:         db,
	}
}

func (r *apiKeys) SaveKey(ctx context.Context, key *ApiKey) (*ApiKey, error) {
	if key != nil && key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	return r.Repository.Create(ctx, key)
}

func (r *apiKeys) GetKeyByValue(ctx context.Context, value string) (*ApiKey, error) {
	return r.GetKeyByValueTx(ctx, r.db, value)
}

func (r *apiKeys) GetKeyByValueTx(ctx context.Context, tx bun.IDB, value string) (*ApiKey, error) {
	record := &ApiKey{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.key_value = ?", strings.TrimSpace(value)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrApiKeyNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *apiKeys) GetKeyByID(ctx context.Context, id uuid.UUID) (*ApiKey, error) {
	record := &ApiKey{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrApiKeyNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *apiKeys) ListKeysByOwner(ctx context.Context, userID uuid.UUID) ([]*ApiKey, error) {
	var records []*ApiKey
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *apiKeys) DeactivateKey(ctx context.Context, id uuid.UUID) error {
	return r.DeactivateKeyTx(ctx, r.db, id)
}

func (r *apiKeys) DeactivateKeyTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := r.Repository.RawTx(ctx, tx, DeactivateApiKeySQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return ErrApiKeyNotFound
	}

	return nil
}
