package identity

import (
	"context"
	"strings"
)

// Result error codes reported by stores.
const (
	ResultDuplicateUserName               = "DuplicateUserName"
	ResultDuplicateRoleName               = "DuplicateRoleName"
	ResultInvalidUserName                 = "InvalidUserName"
	ResultInvalidRoleName                 = "InvalidRoleName"
	ResultInvalidClaim                    = "InvalidClaim"
	ResultRoleNotFound                    = "RoleNotFound"
	ResultUserAlreadyInRole               = "UserAlreadyInRole"
	ResultPasswordTooShort                = "PasswordTooShort"
	ResultPasswordRequiresDigit           = "PasswordRequiresDigit"
	ResultPasswordRequiresLower           = "PasswordRequiresLower"
	ResultPasswordRequiresUpper           = "PasswordRequiresUpper"
	ResultPasswordRequiresNonAlphanumeric = "PasswordRequiresNonAlphanumeric"
	ResultStoreUnavailable                = "StoreUnavailable"
)

// ResultError describes why a store mutation was rejected.
type ResultError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Result is the outcome of a store mutation. Errors keeps the store's
// order; callers usually surface only the first one.
type Result struct {
	Succeeded bool          `json:"succeeded"`
	Errors    []ResultError `json:"errors,omitempty"`
}

// Success is the result of an accepted mutation.
func Success() Result {
	return Result{Succeeded: true}
}

// Failed is the result of a rejected mutation.
func Failed(errs ...ResultError) Result {
	return Result{Succeeded: false, Errors: append([]ResultError(nil), errs...)}
}

// FailedWith builds a single error failure.
func FailedWith(code, description string) Result {
	return Failed(ResultError{Code: code, Description: description})
}

// FirstError returns the description of the first error, or a generic
// message when the store did not report any.
func (r Result) FirstError() string {
	for _, e := range r.Errors {
		if d := strings.TrimSpace(e.Description); d != "" {
			return d
		}
		if c := strings.TrimSpace(e.Code); c != "" {
			return c
		}
	}
	return "identity store rejected the operation"
}

// FirstCode returns the code of the first error, if any.
func (r Result) FirstCode() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Code
}

// UserStore is the user half of the identity store. Lookups return nil,
// nil when nothing matches.
type UserStore interface {
	FindUserByName(ctx context.Context, name string) (*User, error)
	CreateUser(ctx context.Context, user *User, password string) Result
	AddClaims(ctx context.Context, user *User, claims []Claim) Result
	AddToRole(ctx context.Context, user *User, roleName string) Result
	GetUserRoles(ctx context.Context, user *User) ([]string, error)
	GetClaims(ctx context.Context, user *User) ([]Claim, error)

	GetUserID(user *User) string
	GetUserName(user *User) string
	GetEmail(user *User) string
	IsEmailConfirmed(user *User) bool
	GetPhoneNumber(user *User) string
	IsPhoneNumberConfirmed(user *User) bool

	SupportsUserEmail() bool
	SupportsUserPhoneNumber() bool
	SupportsUserRole() bool
	SupportsUserClaim() bool
}

// RoleStore is the role half of the identity store.
type RoleStore interface {
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	CreateRole(ctx context.Context, role *Role) Result
	AddRoleClaim(ctx context.Context, role *Role, claim Claim) Result
	GetRoleClaims(ctx context.Context, role *Role) ([]Claim, error)
}

// IdentityStore is everything the deriver and the seeder need.
type IdentityStore interface {
	UserStore
	RoleStore
}

// Capabilities are the optional features a store declares.
type Capabilities struct {
	Email       bool
	PhoneNumber bool
	Roles       bool
	UserClaims  bool
}

// ResolveCapabilities queries the store's capability flags.
func ResolveCapabilities(store UserStore) Capabilities {
	if store == nil {
		return Capabilities{}
	}
	return Capabilities{
		Email:       store.SupportsUserEmail(),
		PhoneNumber: store.SupportsUserPhoneNumber(),
		Roles:       store.SupportsUserRole(),
		UserClaims:  store.SupportsUserClaim(),
	}
}

// UserAccessors implements the accessor half of UserStore for the User
// model. Stores embed it when the record fields are authoritative.
type UserAccessors struct{}

func (UserAccessors) GetUserID(user *User) string {
	if user == nil {
		return ""
	}
	return user.ID.String()
}

func (UserAccessors) GetUserName(user *User) string {
	if user == nil {
		return ""
	}
	return user.UserName
}

func (UserAccessors) GetEmail(user *User) string {
	if user == nil {
		return ""
	}
	return user.Email
}

func (UserAccessors) IsEmailConfirmed(user *User) bool {
	return user != nil && user.EmailConfirmed
}

func (UserAccessors) GetPhoneNumber(user *User) string {
	if user == nil {
		return ""
	}
	return user.PhoneNumber
}

func (UserAccessors) IsPhoneNumberConfirmed(user *User) bool {
	return user != nil && user.PhoneNumberConfirmed
}
