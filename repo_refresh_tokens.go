package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeRefreshTokenSQL flips a token to used only while it is still
// live. The WHERE clause is the atomic compare-and-transition that keeps
// two concurrent rotations from both succeeding: the losing statement
// matches zero rows.
var ConsumeRefreshTokenSQL = `UPDATE "refresh_tokens" AS "rt"
SET
	"used" = TRUE,
	"last_used_at" = ?
WHERE
	"rt"."token" = ?
AND "rt"."used" = FALSE
AND "rt"."revoked" = FALSE
RETURNING *;`

// RevokeRefreshTokenSQL flips the revoked flag unconditionally; revoking
// an already-used or already-expired token still succeeds.
var RevokeRefreshTokenSQL = `UPDATE "refresh_tokens" AS "rt"
SET
	"revoked" = TRUE
WHERE
	"rt"."token" = ?
RETURNING *;`

// RevokeUserRefreshTokensSQL revokes every live token a user owns.
var RevokeUserRefreshTokensSQL = `UPDATE "refresh_tokens" AS "rt"
SET
	"revoked" = TRUE
WHERE
	"rt"."user_id" = ?
AND "rt"."revoked" = FALSE
RETURNING *;`

// RefreshTokens is the persistence surface for refresh token records.
type RefreshTokens interface {
	repository.Repository[*RefreshToken]
	RefreshTokenStore

	GetByValueTx(ctx context.Context, tx bun.IDB, value string) (*RefreshToken, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, value string, at time.Time, replacement *RefreshToken) (*RefreshToken, error)
	RevokeTokenTx(ctx context.Context, tx bun.IDB, value string) (*RefreshToken, error)
}

type refreshTokens struct {
	repository.Repository[*RefreshToken]
	db *bun.DB
}

var (
	_ RefreshTokens                        = (*refreshTokens)(nil)
	_ repository.Repository[*RefreshToken] = (*refreshTokens)(nil)
)

// NewRefreshTokensRepository builds the bun-backed refresh token store.
func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(t *RefreshToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *RefreshToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &refreshTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *refreshTokens) SaveToken(ctx context.Context, token *RefreshToken) (*RefreshToken, error) {
	if token != nil && token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	return r.Repository.Create(ctx, token)
}

func (r *refreshTokens) GetByValue(ctx context.Context, value string) (*RefreshToken, error) {
	return r.GetByValueTx(ctx, r.db, value)
}

func (r *refreshTokens) GetByValueTx(ctx context.Context, tx bun.IDB, value string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", strings.TrimSpace(value)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *refreshTokens) Consume(ctx context.Context, value string, at time.Time, replacement *RefreshToken) (*RefreshToken, error) {
	var record *RefreshToken
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, err = r.ConsumeTx(ctx, tx, value, at, replacement)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *refreshTokens) ConsumeTx(ctx context.Context, tx bun.IDB, value string, at time.Time, replacement *RefreshToken) (*RefreshToken, error) {
	res, err := r.Repository.RawTx(ctx, tx, ConsumeRefreshTokenSQL, at, strings.TrimSpace(value))
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		// The conditional update matched nothing: either the record does
		// not exist or another rotation already claimed it.
		current, err := r.GetByValueTx(ctx, tx, value)
		if err != nil {
			return nil, err
		}
		if current.Revoked && !current.Used {
			return nil, ErrRefreshTokenRevoked
		}
		return nil, ErrRefreshTokenUsed
	}

	if replacement.ID == uuid.Nil {
		replacement.ID = uuid.New()
	}

	return r.Repository.CreateTx(ctx, tx, replacement)
}

func (r *refreshTokens) Revoke(ctx context.Context, value string) (*RefreshToken, error) {
	return r.RevokeTokenTx(ctx, r.db, value)
}

func (r *refreshTokens) RevokeTokenTx(ctx context.Context, tx bun.IDB, value string) (*RefreshToken, error) {
	res, err := r.Repository.RawTx(ctx, tx, RevokeRefreshTokenSQL, strings.TrimSpace(value))
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrRefreshTokenNotFound
	}

	return res[0], nil
}

func (r *refreshTokens) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	res, err := r.Repository.Raw(ctx, RevokeUserRefreshTokensSQL, userID.String())
	if err != nil {
		return 0, err
	}
	return len(res), nil
}

func (r *refreshTokens) ListForUser(ctx context.Context, userID uuid.UUID) ([]*RefreshToken, error) {
	var records []*RefreshToken
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
