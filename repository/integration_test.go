package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/repository"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func newSQLiteClient(t *testing.T) *persistence.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:identity-it-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	cfg := identity.PersistenceConfig{
		Driver:                "sqlite3",
		Server:                dsn,
		PingTimeoutExpression: "1s",
		OtelIdentifier:        "go-identity-tests",
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	require.NoError(t, identity.RegisterMigrations(client, cfg.Dialect()))
	return client
}

type seededSystem struct {
	client *persistence.Client
	store  *repository.IdentityStore
	seeder *identity.Seeder
	logger *captureLogger
	query  *identity.DeriveClaimsQuery
}

func newSeededSystem(t *testing.T) seededSystem {
	t.Helper()

	client := newSQLiteClient(t)
	cache, err := repositorycache.NewCacheService(repositorycache.DefaultConfig())
	require.NoError(t, err)

	store := repository.NewIdentityStore(client.DB(),
		repository.WithPasswordHasher(plainHasher),
		repository.WithDeterministicIDs(true),
		repository.WithRoleClaimsCache(cache),
	)
	logger := &captureLogger{}
	seeder := identity.NewSeeder(store, client, identity.DemoSeedConfig(), identity.WithSeederLogger(logger))
	factory := identity.NewPrincipalFactory(store, identity.DefaultIdentityOptions())

	return seededSystem{
		client: client,
		store:  store,
		seeder: seeder,
		logger: logger,
		query:  identity.NewDeriveClaimsQuery(store, factory),
	}
}

func TestSeedAndDerive_EmptyStore(t *testing.T) {
	ctx := context.Background()
	sys := newSeededSystem(t)

	require.NoError(t, identity.NewEnsureSeedDataHandler(sys.seeder).Execute(ctx, identity.EnsureSeedDataMessage{}))

	alice, err := sys.store.FindUserByName(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, alice)
	roles, err := sys.store.GetUserRoles(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Manager"}, roles)

	manager, err := sys.store.FindRoleByName(ctx, "Manager")
	require.NoError(t, err)
	require.NotNil(t, manager)
	managerClaims, err := sys.store.GetRoleClaims(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, []identity.Claim{
		identity.NewClaim("sysadmin", "true"),
		identity.NewClaim("write_access", "true"),
	}, managerClaims)

	set, err := sys.query.Query(ctx, identity.DeriveClaimsMessage{UserName: "alice"})
	require.NoError(t, err)

	claims := set.MapClaims()
	assert.Equal(t, alice.ID.String(), claims["sub"])
	assert.Equal(t, "Alice Smith", claims["name"])
	assert.Equal(t, "alice", claims["preferred_username"])
	assert.Equal(t, "Manager", claims["role"])
	assert.Equal(t, "true", claims["sysadmin"])
	assert.Equal(t, true, claims["email_verified"])
	assert.IsType(t, map[string]any{}, claims["address"])

	bobSet, err := sys.query.Query(ctx, identity.DeriveClaimsMessage{UserName: "bob"})
	require.NoError(t, err)
	location, _ := bobSet.First("location")
	assert.Equal(t, "somewhere", location)
	readOnly, _ := bobSet.First("read_only")
	assert.Equal(t, "true", readOnly)
}

func TestSeedAndDerive_Idempotent(t *testing.T) {
	ctx := context.Background()
	sys := newSeededSystem(t)

	first, err := sys.seeder.Run(ctx)
	require.NoError(t, err)
	assert.True(t, first.Changed())

	before, err := sys.query.Query(ctx, identity.DeriveClaimsMessage{UserName: "alice"})
	require.NoError(t, err)

	second, err := sys.seeder.Run(ctx)
	require.NoError(t, err)
	assert.False(t, second.Changed())
	assert.Equal(t, []string{"alice", "bob"}, second.ExistingUsers)
	assert.Contains(t, sys.logger.messages("info"), "alice already exists")

	after, err := sys.query.Query(ctx, identity.DeriveClaimsMessage{UserName: "alice"})
	require.NoError(t, err)
	assert.Equal(t, before.Claims(), after.Claims())

	users, total, err := sys.store.Repositories().Users().List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, users, 2)
}

func TestSeedAndDerive_ExistingUser(t *testing.T) {
	ctx := context.Background()
	sys := newSeededSystem(t)

	require.NoError(t, sys.client.Migrate(ctx))
	manual := &identity.User{UserName: "alice"}
	require.True(t, sys.store.CreateUser(ctx, manual, identity.DemoPassword).Succeeded)

	require.NoError(t, sys.seeder.EnsureSeedData(ctx))

	assert.Equal(t, []string{
		"Manager role created",
		"Employee role created",
		"alice already exists",
		"bob created",
	}, sys.logger.messages("info"))

	alice, err := sys.store.FindUserByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, manual.ID, alice.ID)

	roles, err := sys.store.GetUserRoles(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, roles, "existing users are left untouched")
}

func TestSeedAndDerive_ConfirmedEmail(t *testing.T) {
	ctx := context.Background()

	config := identity.SeedConfig{
		Users: []identity.UserDefinition{{
			UserName:       "x",
			Password:       identity.DemoPassword,
			Email:          "x@y.com",
			EmailConfirmed: true,
		}},
	}
	client := newSQLiteClient(t)
	store := repository.NewIdentityStore(client.DB(), repository.WithPasswordHasher(plainHasher))
	require.NoError(t, identity.NewSeeder(store, client, config).EnsureSeedData(ctx))

	user, err := store.FindUserByName(ctx, "x")
	require.NoError(t, err)
	require.NotNil(t, user)

	set, err := identity.NewClaimsDeriver(store).Derive(ctx, user, nil)
	require.NoError(t, err)

	email, _ := set.First(identity.ClaimEmail)
	assert.Equal(t, "x@y.com", email)
	verified := set.OfType(identity.ClaimEmailVerified)
	require.Len(t, verified, 1)
	assert.Equal(t, "true", verified[0].Value)
	assert.Equal(t, identity.ValueKindBoolean, verified[0].Kind())
}

func TestSeed_RejectedUserAbortsRun(t *testing.T) {
	ctx := context.Background()
	client := newSQLiteClient(t)
	store := repository.NewIdentityStore(client.DB(), repository.WithPasswordHasher(plainHasher))

	config := identity.DemoSeedConfig()
	config.Users[0].Roles = []string{"Ghost"}

	err := identity.NewSeeder(store, client, config).EnsureSeedData(ctx)
	require.Error(t, err)
	assert.True(t, identity.IsSeedError(err))

	bob, err := store.FindUserByName(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, bob, "users after the failing one are not provisioned")
}
