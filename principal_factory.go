package identity

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// IdentityOptions holds the claim types the store is configured with.
type IdentityOptions struct {
	UserIDClaimType   string `koanf:"user_id_claim_type" mapstructure:"user_id_claim_type" yaml:"user_id_claim_type"`
	UserNameClaimType string `koanf:"user_name_claim_type" mapstructure:"user_name_claim_type" yaml:"user_name_claim_type"`
	RoleClaimType     string `koanf:"role_claim_type" mapstructure:"role_claim_type" yaml:"role_claim_type"`
}

// DefaultIdentityOptions returns sub/name/role.
func DefaultIdentityOptions() IdentityOptions {
	return IdentityOptions{
		UserIDClaimType:   ClaimSubject,
		UserNameClaimType: ClaimName,
		RoleClaimType:     ClaimRole,
	}
}

// normalize fills blank claim types with their defaults.
func (o IdentityOptions) normalize() IdentityOptions {
	def := DefaultIdentityOptions()
	if strings.TrimSpace(o.UserIDClaimType) == "" {
		o.UserIDClaimType = def.UserIDClaimType
	}
	if strings.TrimSpace(o.UserNameClaimType) == "" {
		o.UserNameClaimType = def.UserNameClaimType
	}
	if strings.TrimSpace(o.RoleClaimType) == "" {
		o.RoleClaimType = def.RoleClaimType
	}
	return o
}

// PrincipalFactory materializes the claims of a user.
type PrincipalFactory interface {
	CreatePrincipal(ctx context.Context, user *User) (*ClaimsSet, error)
}

// PrincipalFactoryFunc adapts a function into a PrincipalFactory.
type PrincipalFactoryFunc func(ctx context.Context, user *User) (*ClaimsSet, error)

// CreatePrincipal implements PrincipalFactory.
func (f PrincipalFactoryFunc) CreatePrincipal(ctx context.Context, user *User) (*ClaimsSet, error) {
	return f(ctx, user)
}

// DefaultPrincipalFactory builds the base identity: the user id claim,
// the user name claim, and the user's stored claims when the store keeps
// them.
type DefaultPrincipalFactory struct {
	store   UserStore
	options IdentityOptions
}

// NewDefaultPrincipalFactory returns a factory reading from store.
func NewDefaultPrincipalFactory(store UserStore, options IdentityOptions) *DefaultPrincipalFactory {
	return &DefaultPrincipalFactory{store: store, options: options.normalize()}
}

// CreatePrincipal implements PrincipalFactory.
func (f *DefaultPrincipalFactory) CreatePrincipal(ctx context.Context, user *User) (*ClaimsSet, error) {
	if user == nil {
		return nil, ErrNilUser
	}
	if f.store == nil {
		return nil, ErrStoreRequired
	}

	set := NewClaimsSet(
		NewClaim(f.options.UserIDClaimType, f.store.GetUserID(user)),
		NewClaim(f.options.UserNameClaimType, f.store.GetUserName(user)),
	)

	if f.store.SupportsUserClaim() {
		stored, err := f.store.GetClaims(ctx, user)
		if err != nil {
			return nil, storeError(err, "failed to load user claims", map[string]any{
				"user_name": f.store.GetUserName(user),
			})
		}
		set.AddAll(stored)
	}

	return set, nil
}

// ComposedPrincipalFactory runs a base factory and then augments its output
// with a ClaimsDeriver.
type ComposedPrincipalFactory struct {
	base    PrincipalFactory
	deriver *ClaimsDeriver
}

// NewComposedPrincipalFactory composes base and deriver.
func NewComposedPrincipalFactory(base PrincipalFactory, deriver *ClaimsDeriver) *ComposedPrincipalFactory {
	return &ComposedPrincipalFactory{base: base, deriver: deriver}
}

// NewPrincipalFactory wires the default factory and a deriver over the same
// store.
func NewPrincipalFactory(store IdentityStore, options IdentityOptions, opts ...DeriverOption) *ComposedPrincipalFactory {
	opts = append([]DeriverOption{WithIdentityOptions(options)}, opts...)
	return NewComposedPrincipalFactory(
		NewDefaultPrincipalFactory(store, options),
		NewClaimsDeriver(store, opts...),
	)
}

// CreatePrincipal implements PrincipalFactory.
func (f *ComposedPrincipalFactory) CreatePrincipal(ctx context.Context, user *User) (*ClaimsSet, error) {
	if f.deriver == nil {
		return nil, goerrors.New("claims deriver is required", goerrors.CategoryInternal).
			WithTextCode(TextCodeInvalidInput)
	}

	var base *ClaimsSet
	if f.base != nil {
		var err error
		if base, err = f.base.CreatePrincipal(ctx, user); err != nil {
			return nil, err
		}
	}

	return f.deriver.Derive(ctx, user, base)
}
