package identity_test

import (
	"context"
	"fmt"
	"strings"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Trace(message string, args ...any) { l.record("trace", message, args...) }
func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }
func (l *captureLogger) Fatal(message string, args ...any) { l.record("fatal", message, args...) }
func (l *captureLogger) WithContext(context.Context) identity.Logger {
	return l
}

func (l *captureLogger) messages(level string) []string {
	var out []string
	for _, c := range l.calls {
		if c.level == level {
			out = append(out, c.message)
		}
	}
	return out
}

type loggerProviderSpy struct {
	logger identity.Logger
	names  []string
}

func (p *loggerProviderSpy) GetLogger(name string) identity.Logger {
	p.names = append(p.names, name)
	return p.logger
}

// memoryStore is an in-memory identity store. Every capability is on unless
// caps is overridden.
type memoryStore struct {
	identity.UserAccessors

	caps        identity.Capabilities
	users       map[string]*identity.User
	roles       map[string]*identity.Role
	passwords   map[string]string
	userClaims  map[uuid.UUID][]identity.Claim
	roleClaims  map[uuid.UUID][]identity.Claim
	memberships map[uuid.UUID][]string

	// reject, when set, may veto a mutation by returning a failed result.
	reject func(op, name string) *identity.Result
	calls  []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		caps: identity.Capabilities{
			Email:       true,
			PhoneNumber: true,
			Roles:       true,
			UserClaims:  true,
		},
		users:       map[string]*identity.User{},
		roles:       map[string]*identity.Role{},
		passwords:   map[string]string{},
		userClaims:  map[uuid.UUID][]identity.Claim{},
		roleClaims:  map[uuid.UUID][]identity.Claim{},
		memberships: map[uuid.UUID][]string{},
	}
}

var _ identity.IdentityStore = (*memoryStore)(nil)

func (s *memoryStore) track(op, name string) *identity.Result {
	s.calls = append(s.calls, op+":"+name)
	if s.reject != nil {
		return s.reject(op, name)
	}
	return nil
}

func (s *memoryStore) FindUserByName(_ context.Context, name string) (*identity.User, error) {
	s.calls = append(s.calls, "find_user:"+name)
	return s.users[name], nil
}

func (s *memoryStore) CreateUser(_ context.Context, user *identity.User, password string) identity.Result {
	if res := s.track("create_user", user.UserName); res != nil {
		return *res
	}
	if _, ok := s.users[user.UserName]; ok {
		return identity.FailedWith(identity.ResultDuplicateUserName, fmt.Sprintf("Username '%s' is already taken.", user.UserName))
	}
	if errs := identity.DefaultPasswordPolicy().Check(password); len(errs) > 0 {
		return identity.Failed(errs...)
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	stored := *user
	s.users[user.UserName] = &stored
	s.passwords[user.UserName] = password
	return identity.Success()
}

func (s *memoryStore) AddClaims(_ context.Context, user *identity.User, claims []identity.Claim) identity.Result {
	if res := s.track("add_claims", user.UserName); res != nil {
		return *res
	}
	s.userClaims[user.ID] = append(s.userClaims[user.ID], claims...)
	return identity.Success()
}

func (s *memoryStore) AddToRole(_ context.Context, user *identity.User, roleName string) identity.Result {
	if res := s.track("add_to_role", user.UserName+"/"+roleName); res != nil {
		return *res
	}
	if _, ok := s.roles[roleName]; !ok {
		return identity.FailedWith(identity.ResultRoleNotFound, fmt.Sprintf("Role %s does not exist.", roleName))
	}
	for _, r := range s.memberships[user.ID] {
		if r == roleName {
			return identity.FailedWith(identity.ResultUserAlreadyInRole, fmt.Sprintf("User already in role '%s'.", roleName))
		}
	}
	s.memberships[user.ID] = append(s.memberships[user.ID], roleName)
	return identity.Success()
}

func (s *memoryStore) GetUserRoles(_ context.Context, user *identity.User) ([]string, error) {
	return append([]string(nil), s.memberships[user.ID]...), nil
}

func (s *memoryStore) GetClaims(_ context.Context, user *identity.User) ([]identity.Claim, error) {
	return append([]identity.Claim(nil), s.userClaims[user.ID]...), nil
}

func (s *memoryStore) FindRoleByName(_ context.Context, name string) (*identity.Role, error) {
	s.calls = append(s.calls, "find_role:"+name)
	return s.roles[name], nil
}

func (s *memoryStore) CreateRole(_ context.Context, role *identity.Role) identity.Result {
	if res := s.track("create_role", role.Name); res != nil {
		return *res
	}
	if _, ok := s.roles[role.Name]; ok {
		return identity.FailedWith(identity.ResultDuplicateRoleName, fmt.Sprintf("Role name '%s' is already taken.", role.Name))
	}
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	stored := *role
	s.roles[role.Name] = &stored
	return identity.Success()
}

func (s *memoryStore) AddRoleClaim(_ context.Context, role *identity.Role, claim identity.Claim) identity.Result {
	if res := s.track("add_role_claim", role.Name+"/"+claim.Type); res != nil {
		return *res
	}
	s.roleClaims[role.ID] = append(s.roleClaims[role.ID], claim)
	return identity.Success()
}

func (s *memoryStore) GetRoleClaims(_ context.Context, role *identity.Role) ([]identity.Claim, error) {
	return append([]identity.Claim(nil), s.roleClaims[role.ID]...), nil
}

func (s *memoryStore) SupportsUserEmail() bool       { return s.caps.Email }
func (s *memoryStore) SupportsUserPhoneNumber() bool { return s.caps.PhoneNumber }
func (s *memoryStore) SupportsUserRole() bool        { return s.caps.Roles }
func (s *memoryStore) SupportsUserClaim() bool       { return s.caps.UserClaims }

func (s *memoryStore) callsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range s.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// seedUser stores a user with its claims and memberships directly.
func (s *memoryStore) seedUser(user *identity.User, claims []identity.Claim, roles ...string) *identity.User {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	s.users[user.UserName] = user
	s.userClaims[user.ID] = append(s.userClaims[user.ID], claims...)
	s.memberships[user.ID] = append(s.memberships[user.ID], roles...)
	return user
}

// seedRole stores a role with its claims directly.
func (s *memoryStore) seedRole(name string, claims ...identity.Claim) *identity.Role {
	role := &identity.Role{ID: uuid.New(), Name: name}
	s.roles[name] = role
	s.roleClaims[role.ID] = append(s.roleClaims[role.ID], claims...)
	return role
}

// MockIdentityStore implements identity.IdentityStore
type MockIdentityStore struct {
	mock.Mock
	identity.UserAccessors
}

func (m *MockIdentityStore) FindUserByName(ctx context.Context, name string) (*identity.User, error) {
	args := m.Called(ctx, name)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockIdentityStore) CreateUser(ctx context.Context, user *identity.User, password string) identity.Result {
	args := m.Called(ctx, user, password)
	return args.Get(0).(identity.Result)
}

func (m *MockIdentityStore) AddClaims(ctx context.Context, user *identity.User, claims []identity.Claim) identity.Result {
	args := m.Called(ctx, user, claims)
	return args.Get(0).(identity.Result)
}

func (m *MockIdentityStore) AddToRole(ctx context.Context, user *identity.User, roleName string) identity.Result {
	args := m.Called(ctx, user, roleName)
	return args.Get(0).(identity.Result)
}

func (m *MockIdentityStore) GetUserRoles(ctx context.Context, user *identity.User) ([]string, error) {
	args := m.Called(ctx, user)
	roles, _ := args.Get(0).([]string)
	return roles, args.Error(1)
}

func (m *MockIdentityStore) GetClaims(ctx context.Context, user *identity.User) ([]identity.Claim, error) {
	args := m.Called(ctx, user)
	claims, _ := args.Get(0).([]identity.Claim)
	return claims, args.Error(1)
}

func (m *MockIdentityStore) FindRoleByName(ctx context.Context, name string) (*identity.Role, error) {
	args := m.Called(ctx, name)
	role, _ := args.Get(0).(*identity.Role)
	return role, args.Error(1)
}

func (m *MockIdentityStore) CreateRole(ctx context.Context, role *identity.Role) identity.Result {
	args := m.Called(ctx, role)
	return args.Get(0).(identity.Result)
}

func (m *MockIdentityStore) AddRoleClaim(ctx context.Context, role *identity.Role, claim identity.Claim) identity.Result {
	args := m.Called(ctx, role, claim)
	return args.Get(0).(identity.Result)
}

func (m *MockIdentityStore) GetRoleClaims(ctx context.Context, role *identity.Role) ([]identity.Claim, error) {
	args := m.Called(ctx, role)
	claims, _ := args.Get(0).([]identity.Claim)
	return claims, args.Error(1)
}

func (m *MockIdentityStore) SupportsUserEmail() bool       { return true }
func (m *MockIdentityStore) SupportsUserPhoneNumber() bool { return true }
func (m *MockIdentityStore) SupportsUserRole() bool        { return true }
func (m *MockIdentityStore) SupportsUserClaim() bool       { return true }
