package identity

import (
	"encoding/json"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimsSet is the ordered collection of claims representing one principal.
// Duplicate types are allowed.
type ClaimsSet struct {
	claims []Claim
}

// NewClaimsSet returns a set holding a copy of the given claims.
func NewClaimsSet(claims ...Claim) *ClaimsSet {
	s := &ClaimsSet{}
	s.AddAll(claims)
	return s
}

// Len returns the number of claims.
func (s *ClaimsSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.claims)
}

// Claims returns a copy of the claims in order.
func (s *ClaimsSet) Claims() []Claim {
	if s == nil {
		return nil
	}
	return append([]Claim(nil), s.claims...)
}

// Add appends a claim.
func (s *ClaimsSet) Add(claim Claim) {
	s.claims = append(s.claims, claim)
}

// AddAll appends claims in order.
func (s *ClaimsSet) AddAll(claims []Claim) {
	s.claims = append(s.claims, claims...)
}

// HasType reports whether any claim has the given type.
func (s *ClaimsSet) HasType(claimType string) bool {
	_, ok := s.FindFirst(func(c Claim) bool { return c.Type == claimType })
	return ok
}

// FindFirst returns the first claim matching the predicate.
func (s *ClaimsSet) FindFirst(match func(Claim) bool) (Claim, bool) {
	if s == nil || match == nil {
		return Claim{}, false
	}
	for _, c := range s.claims {
		if match(c) {
			return c, true
		}
	}
	return Claim{}, false
}

// First returns the value of the first claim of the given type.
func (s *ClaimsSet) First(claimType string) (string, bool) {
	c, ok := s.FindFirst(func(c Claim) bool { return c.Type == claimType })
	return c.Value, ok
}

// OfType returns every claim with the given type, in order.
func (s *ClaimsSet) OfType(claimType string) []Claim {
	if s == nil {
		return nil
	}
	var out []Claim
	for _, c := range s.claims {
		if c.Type == claimType {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many claims carry the given type.
func (s *ClaimsSet) Count(claimType string) int {
	return len(s.OfType(claimType))
}

// Remove deletes the first claim equal to claim and reports whether one was
// removed.
func (s *ClaimsSet) Remove(claim Claim) bool {
	if s == nil {
		return false
	}
	for i, c := range s.claims {
		if c.Equal(claim) {
			s.claims = append(s.claims[:i], s.claims[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (s *ClaimsSet) Clone() *ClaimsSet {
	return NewClaimsSet(s.Claims()...)
}

// MapClaims converts the set into JWT map claims. Types seen once become
// scalars, repeated types become arrays. Boolean claims are parsed into
// bools and JSON claims are decoded, falling back to the raw string when
// the value does not parse.
func (s *ClaimsSet) MapClaims() jwt.MapClaims {
	out := jwt.MapClaims{}
	if s == nil {
		return out
	}

	repeated := map[string]bool{}
	for _, c := range s.claims {
		value := claimValue(c)
		existing, ok := out[c.Type]
		switch {
		case !ok:
			out[c.Type] = value
		case repeated[c.Type]:
			out[c.Type] = append(existing.([]any), value)
		default:
			out[c.Type] = []any{existing, value}
			repeated[c.Type] = true
		}
	}

	return out
}

func claimValue(c Claim) any {
	switch c.Kind() {
	case ValueKindBoolean:
		if b, err := strconv.ParseBool(c.Value); err == nil {
			return b
		}
	case ValueKindJSON:
		var decoded any
		if err := json.Unmarshal([]byte(c.Value), &decoded); err == nil {
			return decoded
		}
	}
	return c.Value
}
