package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestClaimRowsToClaim(t *testing.T) {
	userClaim := UserClaim{ClaimType: "email_verified", ClaimValue: "true", ValueKind: "boolean"}
	assert.Equal(t, NewBoolClaim("email_verified", true), userClaim.ToClaim())

	roleClaim := RoleClaim{ClaimType: "sysadmin", ClaimValue: "true"}
	assert.Equal(t, NewClaim("sysadmin", "true"), roleClaim.ToClaim())
}

func TestUserAccessors(t *testing.T) {
	id := uuid.New()
	user := &User{
		ID:                   id,
		UserName:             "alice",
		Email:                "alice@example.com",
		EmailConfirmed:       true,
		PhoneNumber:          "+14155550100",
		PhoneNumberConfirmed: false,
	}

	var accessors UserAccessors
	assert.Equal(t, id.String(), accessors.GetUserID(user))
	assert.Equal(t, "alice", accessors.GetUserName(user))
	assert.Equal(t, "alice@example.com", accessors.GetEmail(user))
	assert.True(t, accessors.IsEmailConfirmed(user))
	assert.Equal(t, "+14155550100", accessors.GetPhoneNumber(user))
	assert.False(t, accessors.IsPhoneNumberConfirmed(user))

	assert.Empty(t, accessors.GetUserID(nil))
	assert.Empty(t, accessors.GetUserName(nil))
	assert.Empty(t, accessors.GetEmail(nil))
	assert.False(t, accessors.IsEmailConfirmed(nil))
	assert.Empty(t, accessors.GetPhoneNumber(nil))
}

func TestResolveCapabilitiesNilStore(t *testing.T) {
	assert.Equal(t, Capabilities{}, ResolveCapabilities(nil))
}
