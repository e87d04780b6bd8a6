package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-repository-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

const (
	storeLoggerName          = "identity.store"
	roleClaimsCacheKeyPrefix = "go-identity::role_claims::v1"
)

// IdentityStore is the bun backed identity store.
type IdentityStore struct {
	identity.UserAccessors

	db               *bun.DB
	repos            identity.RepositoryManager
	policy           identity.PasswordPolicy
	hasher           identity.PasswordHasher
	deterministicIDs bool
	defaultRegion    string
	capabilities     identity.Capabilities
	cache            repositorycache.CacheService
	logger           identity.Logger
	loggerProvider   identity.LoggerProvider
	now              func() time.Time
}

var _ identity.IdentityStore = (*IdentityStore)(nil)

// StoreOption configures an IdentityStore.
type StoreOption func(*IdentityStore)

// NewIdentityStore returns a store over db. Every capability is enabled
// and passwords must satisfy identity.DefaultPasswordPolicy.
func NewIdentityStore(db *bun.DB, opts ...StoreOption) *IdentityStore {
	s := &IdentityStore{
		db:     db,
		repos:  NewRepositoryManager(db),
		policy: identity.DefaultPasswordPolicy(),
		hasher: identity.HashPassword,
		capabilities: identity.Capabilities{
			Email:       true,
			PhoneNumber: true,
			Roles:       true,
			UserClaims:  true,
		},
		now: time.Now,
	}
	s.loggerProvider, s.logger = identity.ResolveLogger(storeLoggerName, nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// WithPasswordPolicy overrides the password policy.
func WithPasswordPolicy(policy identity.PasswordPolicy) StoreOption {
	return func(s *IdentityStore) {
		s.policy = policy
	}
}

// WithPasswordHasher overrides the password hashing function.
func WithPasswordHasher(hasher identity.PasswordHasher) StoreOption {
	return func(s *IdentityStore) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithDeterministicIDs derives ids of new users and roles from their names.
func WithDeterministicIDs(enabled bool) StoreOption {
	return func(s *IdentityStore) {
		s.deterministicIDs = enabled
	}
}

// WithDefaultRegion sets the region used to parse phone numbers without a
// country prefix, e.g. "US".
func WithDefaultRegion(region string) StoreOption {
	return func(s *IdentityStore) {
		s.defaultRegion = strings.ToUpper(strings.TrimSpace(region))
	}
}

// WithCapabilities overrides the declared capabilities.
func WithCapabilities(caps identity.Capabilities) StoreOption {
	return func(s *IdentityStore) {
		s.capabilities = caps
	}
}

// WithRoleClaimsCache caches role claim reads in cache.
func WithRoleClaimsCache(cache repositorycache.CacheService) StoreOption {
	return func(s *IdentityStore) {
		s.cache = cache
	}
}

// WithStoreLogger overrides the store logger.
func WithStoreLogger(logger identity.Logger) StoreOption {
	return func(s *IdentityStore) {
		s.loggerProvider, s.logger = identity.ResolveLogger(storeLoggerName, nil, logger)
	}
}

// WithStoreLoggerProvider overrides the store logger provider.
func WithStoreLoggerProvider(provider identity.LoggerProvider) StoreOption {
	return func(s *IdentityStore) {
		s.loggerProvider, s.logger = identity.ResolveLogger(storeLoggerName, provider, s.logger)
	}
}

// Repositories exposes the underlying repositories.
func (s *IdentityStore) Repositories() identity.RepositoryManager {
	return s.repos
}

func (s *IdentityStore) SupportsUserEmail() bool       { return s.capabilities.Email }
func (s *IdentityStore) SupportsUserPhoneNumber() bool { return s.capabilities.PhoneNumber }
func (s *IdentityStore) SupportsUserRole() bool        { return s.capabilities.Roles }
func (s *IdentityStore) SupportsUserClaim() bool       { return s.capabilities.UserClaims }

// FindUserByName returns nil, nil when no user has the name.
func (s *IdentityStore) FindUserByName(ctx context.Context, name string) (*identity.User, error) {
	return s.findUserByName(ctx, s.db, name)
}

func (s *IdentityStore) findUserByName(ctx context.Context, tx bun.IDB, name string) (*identity.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	user, err := s.repos.Users().GetByIdentifierTx(ctx, tx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to find user").
			WithTextCode(identity.TextCodeStoreUnavailable).
			WithMetadata(map[string]any{"user_name": name})
	}
	return user, nil
}

// FindRoleByName returns nil, nil when no role has the name.
func (s *IdentityStore) FindRoleByName(ctx context.Context, name string) (*identity.Role, error) {
	return s.findRoleByName(ctx, s.db, name)
}

func (s *IdentityStore) findRoleByName(ctx context.Context, tx bun.IDB, name string) (*identity.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	role, err := s.repos.Roles().GetByIdentifierTx(ctx, tx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to find role").
			WithTextCode(identity.TextCodeStoreUnavailable).
			WithMetadata(map[string]any{"role": name})
	}
	return role, nil
}

// CreateUser validates the password, hashes it and stores the user. On
// success user carries its id.
func (s *IdentityStore) CreateUser(ctx context.Context, user *identity.User, password string) identity.Result {
	if user == nil || strings.TrimSpace(user.UserName) == "" {
		return identity.FailedWith(identity.ResultInvalidUserName, "User name is invalid, can only contain letters or digits.")
	}
	user.UserName = strings.TrimSpace(user.UserName)

	if errs := s.policy.Check(password); len(errs) > 0 {
		return identity.Failed(errs...)
	}

	hash, err := s.hasher(password)
	if err != nil {
		return s.unavailable("hash_password", err)
	}

	var result identity.Result
	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.findUserByName(ctx, tx, user.UserName)
		if err != nil {
			return err
		}
		if existing != nil {
			result = duplicateUserName(user.UserName)
			return nil
		}

		record := *user
		record.PasswordHash = hash
		record.PhoneNumber = s.normalizePhone(record.PhoneNumber)
		record.ID = s.newID(record.ID, "user", record.UserName)
		now := s.now().UTC()
		record.CreatedAt = &now
		record.UpdatedAt = &now

		created, err := s.repos.Users().CreateTx(ctx, tx, &record)
		if err != nil {
			if isUniqueViolation(err) {
				result = duplicateUserName(user.UserName)
				return nil
			}
			return err
		}

		*user = *created
		result = identity.Success()
		return nil
	})
	if err != nil {
		return s.unavailable("create_user", err)
	}

	if result.Succeeded {
		s.logger.Debug("user stored", "user_name", user.UserName, "user_id", user.ID.String())
	}
	return result
}

// CreateRole stores role. On success role carries its id.
func (s *IdentityStore) CreateRole(ctx context.Context, role *identity.Role) identity.Result {
	if role == nil || strings.TrimSpace(role.Name) == "" {
		return identity.FailedWith(identity.ResultInvalidRoleName, "Role name is invalid.")
	}
	role.Name = strings.TrimSpace(role.Name)

	var result identity.Result
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.findRoleByName(ctx, tx, role.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			result = duplicateRoleName(role.Name)
			return nil
		}

		record := *role
		record.ID = s.newID(record.ID, "role", record.Name)
		now := s.now().UTC()
		record.CreatedAt = &now

		created, err := s.repos.Roles().CreateTx(ctx, tx, &record)
		if err != nil {
			if isUniqueViolation(err) {
				result = duplicateRoleName(role.Name)
				return nil
			}
			return err
		}

		*role = *created
		result = identity.Success()
		return nil
	})
	if err != nil {
		return s.unavailable("create_role", err)
	}
	return result
}

// AddClaims stores claims against user in one transaction, keeping their
// order.
func (s *IdentityStore) AddClaims(ctx context.Context, user *identity.User, claims []identity.Claim) identity.Result {
	if user == nil || user.ID == uuid.Nil {
		return identity.FailedWith(identity.ResultInvalidUserName, "User must be stored before claims can be added.")
	}
	if res := validateClaims(claims); !res.Succeeded {
		return res
	}
	if len(claims) == 0 {
		return identity.Success()
	}

	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, c := range claims {
			row := &identity.UserClaim{
				UserID:     user.ID,
				ClaimType:  c.Type,
				ClaimValue: c.Value,
				ValueKind:  string(c.Kind()),
			}
			if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.unavailable("add_claims", err)
	}
	return identity.Success()
}

// AddRoleClaim stores claim against role and drops the cached claims of
// the role.
func (s *IdentityStore) AddRoleClaim(ctx context.Context, role *identity.Role, claim identity.Claim) identity.Result {
	if role == nil || role.ID == uuid.Nil {
		return identity.FailedWith(identity.ResultInvalidRoleName, "Role must be stored before claims can be added.")
	}
	if res := validateClaims([]identity.Claim{claim}); !res.Succeeded {
		return res
	}

	row := &identity.RoleClaim{
		RoleID:     role.ID,
		ClaimType:  claim.Type,
		ClaimValue: claim.Value,
		ValueKind:  string(claim.Kind()),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return s.unavailable("add_role_claim", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, RoleClaimsCacheKey(role.ID)); err != nil {
			s.logger.Warn("failed to invalidate role claims cache", "role", role.Name, "error", err)
		}
	}

	return identity.Success()
}

// AddToRole adds user to the named role.
func (s *IdentityStore) AddToRole(ctx context.Context, user *identity.User, roleName string) identity.Result {
	if user == nil || user.ID == uuid.Nil {
		return identity.FailedWith(identity.ResultInvalidUserName, "User must be stored before roles can be assigned.")
	}
	roleName = strings.TrimSpace(roleName)

	var result identity.Result
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		role, err := s.findRoleByName(ctx, tx, roleName)
		if err != nil {
			return err
		}
		if role == nil {
			result = identity.FailedWith(identity.ResultRoleNotFound, fmt.Sprintf("Role %s does not exist.", roleName))
			return nil
		}

		exists, err := tx.NewSelect().
			Model((*identity.UserRole)(nil)).
			Where("?TableAlias.user_id = ?", user.ID).
			Where("?TableAlias.role_id = ?", role.ID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			result = identity.FailedWith(identity.ResultUserAlreadyInRole, fmt.Sprintf("User already in role '%s'.", roleName))
			return nil
		}

		membership := &identity.UserRole{UserID: user.ID, RoleID: role.ID}
		if _, err := tx.NewInsert().Model(membership).Exec(ctx); err != nil {
			return err
		}

		result = identity.Success()
		return nil
	})
	if err != nil {
		return s.unavailable("add_to_role", err)
	}
	return result
}

// GetUserRoles returns role names in membership order.
func (s *IdentityStore) GetUserRoles(ctx context.Context, user *identity.User) ([]string, error) {
	if user == nil {
		return nil, identity.ErrNilUser
	}

	var memberships []identity.UserRole
	err := s.db.NewSelect().
		Model(&memberships).
		Relation("Role").
		Where("?TableAlias.user_id = ?", user.ID).
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to load user roles").
			WithTextCode(identity.TextCodeStoreUnavailable).
			WithMetadata(map[string]any{"user_name": user.UserName})
	}

	roles := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if m.Role != nil {
			roles = append(roles, m.Role.Name)
		}
	}
	return roles, nil
}

// GetClaims returns the claims stored against user in insertion order.
func (s *IdentityStore) GetClaims(ctx context.Context, user *identity.User) ([]identity.Claim, error) {
	if user == nil {
		return nil, identity.ErrNilUser
	}

	var rows []identity.UserClaim
	err := s.db.NewSelect().
		Model(&rows).
		Where("?TableAlias.user_id = ?", user.ID).
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to load user claims").
			WithTextCode(identity.TextCodeStoreUnavailable).
			WithMetadata(map[string]any{"user_name": user.UserName})
	}

	claims := make([]identity.Claim, 0, len(rows))
	for _, r := range rows {
		claims = append(claims, r.ToClaim())
	}
	return claims, nil
}

// GetRoleClaims returns the claims of role in insertion order.
func (s *IdentityStore) GetRoleClaims(ctx context.Context, role *identity.Role) ([]identity.Claim, error) {
	if role == nil {
		return nil, goerrors.New("role is required", goerrors.CategoryBadInput).
			WithTextCode(identity.TextCodeInvalidInput)
	}

	if s.cache == nil {
		return s.loadRoleClaims(ctx, role)
	}

	claims, err := repositorycache.GetOrFetch(ctx, s.cache, RoleClaimsCacheKey(role.ID), func(ctx context.Context) ([]identity.Claim, error) {
		return s.loadRoleClaims(ctx, role)
	})
	if err != nil {
		return nil, err
	}
	return append([]identity.Claim(nil), claims...), nil
}

func (s *IdentityStore) loadRoleClaims(ctx context.Context, role *identity.Role) ([]identity.Claim, error) {
	var rows []identity.RoleClaim
	err := s.db.NewSelect().
		Model(&rows).
		Where("?TableAlias.role_id = ?", role.ID).
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to load role claims").
			WithTextCode(identity.TextCodeStoreUnavailable).
			WithMetadata(map[string]any{"role": role.Name})
	}

	claims := make([]identity.Claim, 0, len(rows))
	for _, r := range rows {
		claims = append(claims, r.ToClaim())
	}
	return claims, nil
}

// RoleClaimsCacheKey returns the cache key of the claims of a role:
// go-identity::role_claims::v1::<role id>
func RoleClaimsCacheKey(roleID uuid.UUID) string {
	return roleClaimsCacheKeyPrefix + "::" + roleID.String()
}

func (s *IdentityStore) newID(current uuid.UUID, kind, name string) uuid.UUID {
	if current != uuid.Nil {
		return current
	}
	if s.deterministicIDs {
		if id, err := hashid.NewUUID(kind + ":" + name); err == nil {
			return id
		}
	}
	return uuid.New()
}

// normalizePhone formats valid numbers as E.164 and keeps anything else as
// given.
func (s *IdentityStore) normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	num, err := phonenumbers.Parse(phone, s.defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return phone
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func (s *IdentityStore) unavailable(step string, err error) identity.Result {
	s.logger.Error("identity store operation failed", "step", step, "error", err)
	return identity.FailedWith(identity.ResultStoreUnavailable, err.Error())
}

func validateClaims(claims []identity.Claim) identity.Result {
	for _, c := range claims {
		if strings.TrimSpace(c.Type) == "" {
			return identity.FailedWith(identity.ResultInvalidClaim, "Claim type is required.")
		}
		if !c.ValueKind.IsValid() {
			return identity.FailedWith(identity.ResultInvalidClaim, fmt.Sprintf("Claim %s has an unknown value kind %q.", c.Type, string(c.ValueKind)))
		}
	}
	return identity.Success()
}

func duplicateUserName(name string) identity.Result {
	return identity.FailedWith(identity.ResultDuplicateUserName, fmt.Sprintf("Username '%s' is already taken.", name))
}

func duplicateRoleName(name string) identity.Result {
	return identity.FailedWith(identity.ResultDuplicateRoleName, fmt.Sprintf("Role name '%s' is already taken.", name))
}

func isNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) || goerrors.IsNotFound(err)
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique violation")
}
