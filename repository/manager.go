package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type mngr struct {
	db    *bun.DB
	users repository.Repository[*identity.User]
	roles repository.Repository[*identity.Role]
}

var _ identity.RepositoryManager = (*mngr)(nil)

// NewRepositoryManager returns the users and roles repositories over db.
func NewRepositoryManager(db *bun.DB) identity.RepositoryManager {
	return &mngr{
		db:    db,
		users: identity.NewUsersRepository(db),
		roles: identity.NewRolesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
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

func (m mngr) Users() repository.Repository[*identity.User] {
	return m.users
}

func (m mngr) Roles() repository.Repository[*identity.Role] {
	return m.roles
}
