package identity

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput)

// ErrMismatchedHashAndPassword is returned when a password does not match
// its hash.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode("IDENTITY_PASSWORD_MISMATCH")

// PasswordHasher turns a cleartext password into the hash persisted on a User.
type PasswordHasher func(password string) (string, error)

var _ PasswordHasher = HashPassword

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// CheckUserPassword reports whether password matches the stored hash of user.
func CheckUserPassword(user *User, password string) error {
	if user == nil || user.PasswordHash == "" {
		return ErrMismatchedHashAndPassword
	}
	return ComparePasswordAndHash(password, user.PasswordHash)
}
