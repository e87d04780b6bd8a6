package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// DemoPassword is the password of the demonstration users.
const DemoPassword = "Pass123$"

const demoAddress = `{"street_address":"One Hacker Way","locality":"Heidelberg","postal_code":69118,"country":"Germany"}`

// ClaimDefinition declares a claim to seed.
type ClaimDefinition struct {
	Type      string    `koanf:"type" mapstructure:"type" yaml:"type" json:"type"`
	Value     string    `koanf:"value" mapstructure:"value" yaml:"value" json:"value"`
	ValueKind ValueKind `koanf:"value_kind" mapstructure:"value_kind" yaml:"value_kind" json:"value_kind,omitempty"`
}

// Claim converts the definition into a Claim.
func (d ClaimDefinition) Claim() Claim {
	return Claim{Type: d.Type, Value: d.Value, ValueKind: d.ValueKind.Normalize()}
}

func (d ClaimDefinition) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Type, validation.Required),
		validation.Field(&d.ValueKind, validation.By(validValueKind)),
		validation.Field(&d.Value, validation.By(func(value any) error {
			return validClaimValue(d.ValueKind.Normalize(), d.Value)
		})),
	)
}

// RoleDefinition declares a role and the claims granted to its members.
type RoleDefinition struct {
	Name   string            `koanf:"name" mapstructure:"name" yaml:"name" json:"name"`
	Claims []ClaimDefinition `koanf:"claims" mapstructure:"claims" yaml:"claims" json:"claims,omitempty"`
}

func (d RoleDefinition) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Length(1, 256)),
		validation.Field(&d.Claims),
	)
}

// UserDefinition declares a user, its claims and its role memberships.
type UserDefinition struct {
	UserName             string            `koanf:"user_name" mapstructure:"user_name" yaml:"user_name" json:"user_name"`
	Password             string            `koanf:"password" mapstructure:"password" yaml:"password" json:"-"`
	Email                string            `koanf:"email" mapstructure:"email" yaml:"email" json:"email,omitempty"`
	EmailConfirmed       bool              `koanf:"email_confirmed" mapstructure:"email_confirmed" yaml:"email_confirmed" json:"email_confirmed,omitempty"`
	PhoneNumber          string            `koanf:"phone_number" mapstructure:"phone_number" yaml:"phone_number" json:"phone_number,omitempty"`
	PhoneNumberConfirmed bool              `koanf:"phone_number_confirmed" mapstructure:"phone_number_confirmed" yaml:"phone_number_confirmed" json:"phone_number_confirmed,omitempty"`
	Claims               []ClaimDefinition `koanf:"claims" mapstructure:"claims" yaml:"claims" json:"claims,omitempty"`
	Roles                []string          `koanf:"roles" mapstructure:"roles" yaml:"roles" json:"roles,omitempty"`
}

// User returns the record to create for the definition.
func (d UserDefinition) User() *User {
	return &User{
		UserName:             strings.TrimSpace(d.UserName),
		Email:                strings.TrimSpace(d.Email),
		EmailConfirmed:       d.EmailConfirmed,
		PhoneNumber:          strings.TrimSpace(d.PhoneNumber),
		PhoneNumberConfirmed: d.PhoneNumberConfirmed,
	}
}

// ClaimList returns the declared claims in order.
func (d UserDefinition) ClaimList() []Claim {
	out := make([]Claim, 0, len(d.Claims))
	for _, c := range d.Claims {
		out = append(out, c.Claim())
	}
	return out
}

func (d UserDefinition) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.UserName, validation.Required, validation.Length(1, 256)),
		validation.Field(&d.Password, validation.Required),
		validation.Field(&d.Email, is.Email),
		validation.Field(&d.Claims),
		validation.Field(&d.Roles, validation.By(noBlankEntries)),
	)
}

// SeedConfig is the declarative baseline the seeder provisions.
type SeedConfig struct {
	SkipDemoData bool             `koanf:"skip_demo_data" mapstructure:"skip_demo_data" yaml:"skip_demo_data" json:"skip_demo_data,omitempty"`
	Roles        []RoleDefinition `koanf:"roles" mapstructure:"roles" yaml:"roles" json:"roles,omitempty"`
	Users        []UserDefinition `koanf:"users" mapstructure:"users" yaml:"users" json:"users,omitempty"`
}

// IsEmpty reports whether nothing is declared.
func (c SeedConfig) IsEmpty() bool {
	return len(c.Roles) == 0 && len(c.Users) == 0
}

// WithDemoFallback returns the demo baseline when nothing is declared and
// demo data was not disabled.
func (c SeedConfig) WithDemoFallback() SeedConfig {
	if !c.IsEmpty() || c.SkipDemoData {
		return c
	}
	demo := DemoSeedConfig()
	demo.SkipDemoData = c.SkipDemoData
	return demo
}

func (c SeedConfig) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Roles, validation.By(uniqueRoleNames)),
		validation.Field(&c.Users, validation.By(uniqueUserNames)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid seed configuration").
			WithTextCode(TextCodeInvalidSeedConfig)
	}
	return nil
}

// DemoSeedConfig returns the demonstration baseline: a Manager and an
// Employee role, and the users alice and bob.
func DemoSeedConfig() SeedConfig {
	return SeedConfig{
		Roles: []RoleDefinition{
			{
				Name: "Manager",
				Claims: []ClaimDefinition{
					{Type: "sysadmin", Value: "true"},
					{Type: "write_access", Value: "true"},
				},
			},
			{
				Name: "Employee",
				Claims: []ClaimDefinition{
					{Type: "read_only", Value: "true"},
				},
			},
		},
		Users: []UserDefinition{
			{
				UserName: "alice",
				Password: DemoPassword,
				Claims:   demoProfileClaims("Alice", "Smith", "AliceSmith@email.com", "http://alice.com"),
				Roles:    []string{"Manager"},
			},
			{
				UserName: "bob",
				Password: DemoPassword,
				Claims: append(
					demoProfileClaims("Bob", "Smith", "BobSmith@email.com", "http://bob.com"),
					ClaimDefinition{Type: "location", Value: "somewhere"},
				),
				Roles: []string{"Employee"},
			},
		},
	}
}

func demoProfileClaims(given, family, email, website string) []ClaimDefinition {
	return []ClaimDefinition{
		{Type: ClaimName, Value: given + " " + family},
		{Type: ClaimGivenName, Value: given},
		{Type: ClaimFamilyName, Value: family},
		{Type: ClaimEmail, Value: email},
		{Type: ClaimEmailVerified, Value: "true", ValueKind: ValueKindBoolean},
		{Type: ClaimWebSite, Value: website},
		{Type: ClaimAddress, Value: demoAddress, ValueKind: ValueKindJSON},
	}
}

// LoadSeedConfigFile reads a YAML seed file.
func LoadSeedConfigFile(path string) (SeedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedConfig{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read seed file").
			WithTextCode(TextCodeInvalidSeedConfig).
			WithMetadata(map[string]any{"path": path})
	}
	return ParseSeedConfig(data)
}

// ParseSeedConfig decodes and validates a YAML seed document.
func ParseSeedConfig(data []byte) (SeedConfig, error) {
	var cfg SeedConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SeedConfig{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse seed file").
			WithTextCode(TextCodeInvalidSeedConfig)
	}
	if err := cfg.Validate(); err != nil {
		return SeedConfig{}, err
	}
	return cfg, nil
}

func validValueKind(value any) error {
	kind, _ := value.(ValueKind)
	if !kind.Normalize().IsValid() {
		return fmt.Errorf("unknown value kind %q", string(kind))
	}
	return nil
}

func validClaimValue(kind ValueKind, value string) error {
	switch kind {
	case ValueKindJSON:
		if !json.Valid([]byte(value)) {
			return errors.New("must be a valid JSON document")
		}
	case ValueKindBoolean:
		if value != "true" && value != "false" {
			return errors.New(`must be "true" or "false"`)
		}
	}
	return nil
}

func noBlankEntries(value any) error {
	items, _ := value.([]string)
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			return errors.New("must not contain blank entries")
		}
	}
	return nil
}

func uniqueRoleNames(value any) error {
	roles, _ := value.([]RoleDefinition)
	seen := map[string]bool{}
	for _, r := range roles {
		if seen[r.Name] {
			return fmt.Errorf("duplicate role %q", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

func uniqueUserNames(value any) error {
	users, _ := value.([]UserDefinition)
	seen := map[string]bool{}
	for _, u := range users {
		if seen[u.UserName] {
			return fmt.Errorf("duplicate user %q", u.UserName)
		}
		seen[u.UserName] = true
	}
	return nil
}
