package identity

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const deriverLoggerName = "identity.deriver"

// ClaimsDeriver augments a base identity with the standard profile claims
// and the user's role claims.
type ClaimsDeriver struct {
	store          IdentityStore
	options        IdentityOptions
	logger         Logger
	loggerProvider LoggerProvider
}

// DeriverOption configures a ClaimsDeriver.
type DeriverOption func(*ClaimsDeriver)

// NewClaimsDeriver returns a deriver reading from store.
func NewClaimsDeriver(store IdentityStore, opts ...DeriverOption) *ClaimsDeriver {
	d := &ClaimsDeriver{
		store:   store,
		options: DefaultIdentityOptions(),
	}
	d.loggerProvider, d.logger = ResolveLogger(deriverLoggerName, nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.options = d.options.normalize()

	return d
}

// WithIdentityOptions sets the claim types the store is configured with.
func WithIdentityOptions(options IdentityOptions) DeriverOption {
	return func(d *ClaimsDeriver) {
		d.options = options
	}
}

// WithDeriverLogger overrides the deriver logger.
func WithDeriverLogger(logger Logger) DeriverOption {
	return func(d *ClaimsDeriver) {
		d.loggerProvider, d.logger = ResolveLogger(deriverLoggerName, nil, logger)
	}
}

// WithDeriverLoggerProvider overrides the deriver logger provider.
func WithDeriverLoggerProvider(provider LoggerProvider) DeriverOption {
	return func(d *ClaimsDeriver) {
		d.loggerProvider, d.logger = ResolveLogger(deriverLoggerName, provider, d.logger)
	}
}

// Derive augments base using the capabilities the store declares. A nil
// base starts from an empty set. The returned set is base itself.
func (d *ClaimsDeriver) Derive(ctx context.Context, user *User, base *ClaimsSet) (*ClaimsSet, error) {
	if d.store == nil {
		return nil, ErrStoreRequired
	}
	return d.DeriveWith(ctx, user, base, ResolveCapabilities(d.store))
}

// DeriveWith augments base using explicit capabilities. Steps run in order
// and each one inspects the current state of the set.
func (d *ClaimsDeriver) DeriveWith(ctx context.Context, user *User, base *ClaimsSet, caps Capabilities) (*ClaimsSet, error) {
	if user == nil {
		return nil, ErrNilUser
	}
	if d.store == nil {
		return nil, ErrStoreRequired
	}
	if base == nil {
		base = NewClaimsSet()
	}

	userName := d.store.GetUserName(user)

	if !base.HasType(ClaimSubject) {
		base.Add(NewClaim(ClaimSubject, d.store.GetUserID(user)))
	}

	// Only a claim of the configured user name type is substituted.
	nameClaimType := d.options.UserNameClaimType
	if found, ok := base.FindFirst(func(c Claim) bool {
		return c.Type == nameClaimType && c.Value == userName
	}); ok {
		base.Remove(found)
		base.Add(NewClaim(ClaimPreferredUserName, userName))
	}

	if !base.HasType(ClaimName) {
		base.Add(NewClaim(ClaimName, userName))
	}

	if caps.Email {
		if email := d.store.GetEmail(user); strings.TrimSpace(email) != "" {
			base.Add(NewClaim(ClaimEmail, email))
			base.Add(NewBoolClaim(ClaimEmailVerified, d.store.IsEmailConfirmed(user)))
		}
	}

	if caps.PhoneNumber {
		if phone := d.store.GetPhoneNumber(user); strings.TrimSpace(phone) != "" {
			base.Add(NewClaim(ClaimPhoneNumber, phone))
			base.Add(NewBoolClaim(ClaimPhoneNumberVerified, d.store.IsPhoneNumberConfirmed(user)))
		}
	}

	if caps.Roles {
		if err := d.addRoleClaims(ctx, user, userName, base); err != nil {
			return nil, err
		}
	}

	d.logger.Debug("derived claims", "user_name", userName, "claims", base.Len())

	return base, nil
}

func (d *ClaimsDeriver) addRoleClaims(ctx context.Context, user *User, userName string, set *ClaimsSet) error {
	roles, err := d.store.GetUserRoles(ctx, user)
	if err != nil {
		return storeError(err, "failed to load user roles", map[string]any{
			"user_name": userName,
		})
	}

	for _, roleName := range roles {
		set.Add(NewClaim(d.options.RoleClaimType, roleName))
	}

	for _, roleName := range roles {
		role, err := d.store.FindRoleByName(ctx, roleName)
		if err != nil {
			return storeError(err, "failed to find role", map[string]any{
				"user_name": userName,
				"role":      roleName,
			})
		}
		if role == nil {
			return goerrors.New("role not found: "+roleName, goerrors.CategoryNotFound).
				WithTextCode(TextCodeRoleNotFound).
				WithMetadata(map[string]any{
					"user_name": userName,
					"role":      roleName,
				})
		}

		claims, err := d.store.GetRoleClaims(ctx, role)
		if err != nil {
			return storeError(err, "failed to load role claims", map[string]any{
				"user_name": userName,
				"role":      roleName,
			})
		}
		set.AddAll(claims)
	}

	return nil
}
