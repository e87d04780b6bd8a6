package identity

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

// DeriveClaimsMessage asks for the claims of the named user.
type DeriveClaimsMessage struct {
	UserName string `json:"user_name"`
}

func (e DeriveClaimsMessage) Type() string { return "identity.claims.derive" }

func (e DeriveClaimsMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UserName, validation.Required, validation.Length(1, 256)),
	)
}

// DeriveClaimsQuery materializes the principal of a stored user.
type DeriveClaimsQuery struct {
	store   UserStore
	factory PrincipalFactory
}

var _ command.Querier[DeriveClaimsMessage, *ClaimsSet] = (*DeriveClaimsQuery)(nil)

// NewDeriveClaimsQuery returns a query that looks users up in store and
// builds their principal with factory.
func NewDeriveClaimsQuery(store UserStore, factory PrincipalFactory) *DeriveClaimsQuery {
	return &DeriveClaimsQuery{store: store, factory: factory}
}

func (q *DeriveClaimsQuery) Query(ctx context.Context, msg DeriveClaimsMessage) (*ClaimsSet, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during claims derivation",
		)
	default:
		return q.query(ctx, msg)
	}
}

func (q *DeriveClaimsQuery) query(ctx context.Context, msg DeriveClaimsMessage) (*ClaimsSet, error) {
	if err := msg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid derive claims request").
			WithTextCode(TextCodeInvalidInput)
	}
	if q.store == nil || q.factory == nil {
		return nil, ErrStoreRequired
	}

	userName := strings.TrimSpace(msg.UserName)
	user, err := q.store.FindUserByName(ctx, userName)
	if err != nil {
		return nil, storeError(err, "failed to find user", map[string]any{"user_name": userName})
	}
	if user == nil {
		return nil, goerrors.New("user not found: "+userName, goerrors.CategoryNotFound).
			WithTextCode(TextCodeUserNotFound).
			WithMetadata(map[string]any{"user_name": userName})
	}

	return q.factory.CreatePrincipal(ctx, user)
}
