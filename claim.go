package identity

import (
	"strconv"
	"strings"
)

// Standard claim types emitted by the deriver.
const (
	ClaimSubject             = "sub"
	ClaimName                = "name"
	ClaimPreferredUserName   = "preferred_username"
	ClaimGivenName           = "given_name"
	ClaimFamilyName          = "family_name"
	ClaimEmail               = "email"
	ClaimEmailVerified       = "email_verified"
	ClaimPhoneNumber         = "phone_number"
	ClaimPhoneNumberVerified = "phone_number_verified"
	ClaimRole                = "role"
	ClaimWebSite             = "website"
	ClaimAddress             = "address"
)

// ValueKind hints downstream serializers how to encode a claim value.
type ValueKind string

const (
	ValueKindString  ValueKind = "string"
	ValueKindBoolean ValueKind = "boolean"
	ValueKindJSON    ValueKind = "json"
)

// IsValid reports whether k is a known value kind. The empty kind is
// treated as string.
func (k ValueKind) IsValid() bool {
	switch k {
	case "", ValueKindString, ValueKindBoolean, ValueKindJSON:
		return true
	default:
		return false
	}
}

// Normalize maps the empty kind to ValueKindString.
func (k ValueKind) Normalize() ValueKind {
	if k == "" {
		return ValueKindString
	}
	return ValueKind(strings.ToLower(string(k)))
}

// Claim is a typed assertion about an identity.
type Claim struct {
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	ValueKind ValueKind `json:"value_kind,omitempty"`
}

// NewClaim returns a string valued claim.
func NewClaim(claimType, value string) Claim {
	return Claim{Type: claimType, Value: value, ValueKind: ValueKindString}
}

// NewBoolClaim returns a boolean claim using the literal "true"/"false".
func NewBoolClaim(claimType string, value bool) Claim {
	return Claim{Type: claimType, Value: strconv.FormatBool(value), ValueKind: ValueKindBoolean}
}

// NewJSONClaim returns a claim whose value is a JSON document.
func NewJSONClaim(claimType, value string) Claim {
	return Claim{Type: claimType, Value: value, ValueKind: ValueKindJSON}
}

// Kind returns the claim value kind, defaulting to string.
func (c Claim) Kind() ValueKind {
	return c.ValueKind.Normalize()
}

// Equal compares type, value and normalized kind.
func (c Claim) Equal(other Claim) bool {
	return c.Type == other.Type && c.Value == other.Value && c.Kind() == other.Kind()
}
