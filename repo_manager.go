package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	RefreshTokens() RefreshTokens
	ApiKeys() ApiKeys
}

type mngr struct {
	db            *bun.DB
	refreshTokens RefreshTokens
	apiKeys       ApiKeys
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		refreshTokens: NewRefreshTokensRepository(db),
		apiKeys:       NewApiKeysRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.refreshTokens == nil {
		return errors.New("repository refreshTokens should be initialized")
	}

	if m.apiKeys == nil {
		return errors.New("repository apiKeys should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) RefreshTokens() RefreshTokens {
	return m.refreshTokens
}

func (m mngr) ApiKeys() ApiKeys {
	return m.apiKeys
}
