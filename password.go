package identity

import (
	"fmt"
	"unicode"
)

// PasswordPolicy describes the rules a new password must satisfy.
type PasswordPolicy struct {
	RequiredLength         int  `koanf:"required_length" mapstructure:"required_length" yaml:"required_length" json:"required_length"`
	RequireDigit           bool `koanf:"require_digit" mapstructure:"require_digit" yaml:"require_digit" json:"require_digit"`
	RequireLowercase       bool `koanf:"require_lowercase" mapstructure:"require_lowercase" yaml:"require_lowercase" json:"require_lowercase"`
	RequireUppercase       bool `koanf:"require_uppercase" mapstructure:"require_uppercase" yaml:"require_uppercase" json:"require_uppercase"`
	RequireNonAlphanumeric bool `koanf:"require_non_alphanumeric" mapstructure:"require_non_alphanumeric" yaml:"require_non_alphanumeric" json:"require_non_alphanumeric"`
}

// DefaultPasswordPolicy requires six characters with a digit, a lower
// case letter, an upper case letter and a symbol.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		RequiredLength:         6,
		RequireDigit:           true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireNonAlphanumeric: true,
	}
}

// Check returns every violated rule in a stable order. An empty slice means
// the password is acceptable.
func (p PasswordPolicy) Check(password string) []ResultError {
	var errs []ResultError

	if len([]rune(password)) < p.RequiredLength {
		errs = append(errs, ResultError{
			Code:        ResultPasswordTooShort,
			Description: fmt.Sprintf("Passwords must be at least %d characters.", p.RequiredLength),
		})
	}

	var hasDigit, hasLower, hasUpper, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case !unicode.IsLetter(r):
			hasSymbol = true
		}
	}

	if p.RequireNonAlphanumeric && !hasSymbol {
		errs = append(errs, ResultError{
			Code:        ResultPasswordRequiresNonAlphanumeric,
			Description: "Passwords must have at least one non alphanumeric character.",
		})
	}
	if p.RequireDigit && !hasDigit {
		errs = append(errs, ResultError{
			Code:        ResultPasswordRequiresDigit,
			Description: "Passwords must have at least one digit ('0'-'9').",
		})
	}
	if p.RequireLowercase && !hasLower {
		errs = append(errs, ResultError{
			Code:        ResultPasswordRequiresLower,
			Description: "Passwords must have at least one lowercase ('a'-'z').",
		})
	}
	if p.RequireUppercase && !hasUpper {
		errs = append(errs, ResultError{
			Code:        ResultPasswordRequiresUpper,
			Description: "Passwords must have at least one uppercase ('A'-'Z').",
		})
	}

	return errs
}
