package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the stored identity record.
type User struct {
	bun.BaseModel        `bun:"table:identity_users,alias:iu"`
	ID                   uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserName             string     `bun:"user_name,notnull,unique" json:"user_name,omitempty"`
	Email                string     `bun:"email" json:"email,omitempty"`
	EmailConfirmed       bool       `bun:"email_confirmed,notnull" json:"email_confirmed,omitempty"`
	PhoneNumber          string     `bun:"phone_number" json:"phone_number,omitempty"`
	PhoneNumberConfirmed bool       `bun:"phone_number_confirmed,notnull" json:"phone_number_confirmed,omitempty"`
	PasswordHash         string     `bun:"password_hash" json:"-"`
	CreatedAt            *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt            *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Role is a named group whose claims are granted to every member.
type Role struct {
	bun.BaseModel `bun:"table:identity_roles,alias:ir"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// UserClaim is a claim stored against a user. Rows are read back in
// insertion order.
type UserClaim struct {
	bun.BaseModel `bun:"table:identity_user_claims,alias:iuc"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id,omitempty"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	ClaimType     string    `bun:"claim_type,notnull" json:"claim_type"`
	ClaimValue    string    `bun:"claim_value,notnull" json:"claim_value"`
	ValueKind     string    `bun:"value_kind,notnull" json:"value_kind,omitempty"`
}

// ToClaim converts the row into a Claim.
func (c UserClaim) ToClaim() Claim {
	return Claim{Type: c.ClaimType, Value: c.ClaimValue, ValueKind: ValueKind(c.ValueKind).Normalize()}
}

// RoleClaim is a claim stored against a role.
type RoleClaim struct {
	bun.BaseModel `bun:"table:identity_role_claims,alias:irc"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id,omitempty"`
	RoleID        uuid.UUID `bun:"role_id,notnull,type:uuid" json:"role_id,omitempty"`
	ClaimType     string    `bun:"claim_type,notnull" json:"claim_type"`
	ClaimValue    string    `bun:"claim_value,notnull" json:"claim_value"`
	ValueKind     string    `bun:"value_kind,notnull" json:"value_kind,omitempty"`
}

// ToClaim converts the row into a Claim.
func (c RoleClaim) ToClaim() Claim {
	return Claim{Type: c.ClaimType, Value: c.ClaimValue, ValueKind: ValueKind(c.ValueKind).Normalize()}
}

// UserRole links a user to a role. The autoincrement id records
// membership order.
type UserRole struct {
	bun.BaseModel `bun:"table:identity_user_roles,alias:iur"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id,omitempty"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	RoleID        uuid.UUID `bun:"role_id,notnull,type:uuid" json:"role_id,omitempty"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}
