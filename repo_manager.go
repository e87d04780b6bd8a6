package identity

import (
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() repository.Repository[*User]
	Roles() repository.Repository[*Role]
}

// NewUsersRepository returns the users repository. Users are identified by
// their user name.
func NewUsersRepository(db *bun.DB) repository.Repository[*User] {
	handlers := repository.ModelHandlers[*User]{
		NewRecord: func() *User {
			return &User{}
		},
		GetID: func(record *User) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *User, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "user_name"
		},
		GetIdentifierValue: func(record *User) string {
			if record == nil {
				return ""
			}
			return record.UserName
		},
	}
	return repository.NewRepository(db, handlers)
}

// NewRolesRepository returns the roles repository. Roles are identified by
// their name.
func NewRolesRepository(db *bun.DB) repository.Repository[*Role] {
	handlers := repository.ModelHandlers[*Role]{
		NewRecord: func() *Role {
			return &Role{}
		},
		GetID: func(record *Role) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Role, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
		GetIdentifierValue: func(record *Role) string {
			if record == nil {
				return ""
			}
			return record.Name
		},
	}
	return repository.NewRepository(db, handlers)
}
