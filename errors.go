package identity

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to errors returned by this package.
const (
	TextCodeSeedFailed        = "IDENTITY_SEED_FAILED"
	TextCodeStoreUnavailable  = "IDENTITY_STORE_UNAVAILABLE"
	TextCodeRoleNotFound      = "IDENTITY_ROLE_NOT_FOUND"
	TextCodeUserNotFound      = "IDENTITY_USER_NOT_FOUND"
	TextCodeInvalidInput      = "IDENTITY_INVALID_INPUT"
	TextCodeInvalidSeedConfig = "IDENTITY_INVALID_SEED_CONFIG"
)

// ErrNilUser is returned when claims are requested for a nil user.
var ErrNilUser = goerrors.New("user is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidInput)

// ErrStoreRequired is returned by components built without a store.
var ErrStoreRequired = goerrors.New("identity store is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidInput)

// SeedError builds the fatal error raised when a store rejects a seed step.
// Only the first reported error description is surfaced.
func SeedError(result Result, entity, name, step string) *goerrors.Error {
	return goerrors.New(result.FirstError(), goerrors.CategoryOperation).
		WithTextCode(TextCodeSeedFailed).
		WithMetadata(map[string]any{
			"entity":      entity,
			"name":        name,
			"step":        step,
			"result_code": result.FirstCode(),
		})
}

// storeError wraps a failed store read.
func storeError(err error, message string, metadata map[string]any) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryExternal, message).
		WithTextCode(TextCodeStoreUnavailable).
		WithMetadata(metadata)
}

// IsSeedError reports whether err was raised by a rejected seed step.
func IsSeedError(err error) bool {
	return hasTextCode(err, TextCodeSeedFailed)
}

// IsRoleNotFound reports whether err signals a role membership pointing at
// a role the store does not know.
func IsRoleNotFound(err error) bool {
	return hasTextCode(err, TextCodeRoleNotFound)
}

// IsUserNotFound reports whether err signals a missing user.
func IsUserNotFound(err error) bool {
	return hasTextCode(err, TextCodeUserNotFound)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return strings.EqualFold(richErr.TextCode, code)
	}
	return false
}
