package identity

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const seederLoggerName = "identity.seeder"

// SeedReport lists what a seed run created and what it found in place.
type SeedReport struct {
	CreatedRoles  []string `json:"created_roles,omitempty"`
	ExistingRoles []string `json:"existing_roles,omitempty"`
	CreatedUsers  []string `json:"created_users,omitempty"`
	ExistingUsers []string `json:"existing_users,omitempty"`
}

// Changed reports whether the run created anything.
func (r SeedReport) Changed() bool {
	return len(r.CreatedRoles) > 0 || len(r.CreatedUsers) > 0
}

// Seeder provisions the declared roles and users. Existing entities are
// left untouched, so running it repeatedly converges on the same state.
type Seeder struct {
	store          IdentityStore
	migrator       Migrator
	config         SeedConfig
	activitySink   ActivitySink
	logger         Logger
	loggerProvider LoggerProvider
	now            func() time.Time
}

// SeederOption configures a Seeder.
type SeederOption func(*Seeder)

// NewSeeder returns a seeder that migrates with migrator and provisions
// config into store. A nil migrator skips the migration step.
func NewSeeder(store IdentityStore, migrator Migrator, config SeedConfig, opts ...SeederOption) *Seeder {
	s := &Seeder{
		store:        store,
		migrator:     migrator,
		config:       config,
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
	s.loggerProvider, s.logger = ResolveLogger(seederLoggerName, nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// WithSeederLogger overrides the seeder logger.
func WithSeederLogger(logger Logger) SeederOption {
	return func(s *Seeder) {
		s.loggerProvider, s.logger = ResolveLogger(seederLoggerName, nil, logger)
	}
}

// WithSeederLoggerProvider overrides the seeder logger provider.
func WithSeederLoggerProvider(provider LoggerProvider) SeederOption {
	return func(s *Seeder) {
		s.loggerProvider, s.logger = ResolveLogger(seederLoggerName, provider, s.logger)
	}
}

// WithActivitySink records seed events into sink.
func WithActivitySink(sink ActivitySink) SeederOption {
	return func(s *Seeder) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithSeederClock overrides the clock used to stamp activity events.
func WithSeederClock(now func() time.Time) SeederOption {
	return func(s *Seeder) {
		if now != nil {
			s.now = now
		}
	}
}

// EnsureSeedData runs the seeder and discards the report.
func (s *Seeder) EnsureSeedData(ctx context.Context) error {
	_, err := s.Run(ctx)
	return err
}

// Run migrates the schema, then provisions roles followed by users. The
// first rejected store mutation aborts the run.
func (s *Seeder) Run(ctx context.Context) (SeedReport, error) {
	report := SeedReport{}

	if s.store == nil {
		return report, ErrStoreRequired
	}

	if err := s.config.Validate(); err != nil {
		return report, err
	}

	if s.migrator != nil {
		if err := s.migrator.Migrate(ctx); err != nil {
			return report, s.fail(ctx, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to migrate identity schema").
				WithTextCode(TextCodeStoreUnavailable))
		}
	}

	for _, def := range s.config.Roles {
		if err := ctx.Err(); err != nil {
			return report, s.cancelled(err)
		}
		created, err := s.ensureRole(ctx, def)
		if err != nil {
			return report, s.fail(ctx, err)
		}
		if created {
			report.CreatedRoles = append(report.CreatedRoles, def.Name)
		} else {
			report.ExistingRoles = append(report.ExistingRoles, def.Name)
		}
	}

	for _, def := range s.config.Users {
		if err := ctx.Err(); err != nil {
			return report, s.cancelled(err)
		}
		created, err := s.ensureUser(ctx, def)
		if err != nil {
			return report, s.fail(ctx, err)
		}
		if created {
			report.CreatedUsers = append(report.CreatedUsers, def.UserName)
		} else {
			report.ExistingUsers = append(report.ExistingUsers, def.UserName)
		}
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventSeedCompleted,
		Entity:    ActivityEntitySeed,
		Metadata: map[string]any{
			"created_roles": len(report.CreatedRoles),
			"created_users": len(report.CreatedUsers),
		},
	})

	return report, nil
}

func (s *Seeder) ensureRole(ctx context.Context, def RoleDefinition) (bool, error) {
	existing, err := s.store.FindRoleByName(ctx, def.Name)
	if err != nil {
		return false, storeError(err, "failed to find role", map[string]any{"role": def.Name})
	}

	if existing != nil {
		s.logger.Info(fmt.Sprintf("%s role already exists", def.Name), "role", def.Name)
		s.record(ctx, ActivityEvent{EventType: ActivityEventRoleExists, Entity: ActivityEntityRole, Name: def.Name})
		return false, nil
	}

	role := &Role{Name: def.Name}
	if result := s.store.CreateRole(ctx, role); !result.Succeeded {
		return false, SeedError(result, ActivityEntityRole, def.Name, "create")
	}

	for _, c := range def.Claims {
		if result := s.store.AddRoleClaim(ctx, role, c.Claim()); !result.Succeeded {
			return false, SeedError(result, ActivityEntityRole, def.Name, "add_claim")
		}
	}

	s.logger.Info(fmt.Sprintf("%s role created", def.Name), "role", def.Name, "claims", len(def.Claims))
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventRoleCreated,
		Entity:    ActivityEntityRole,
		Name:      def.Name,
		Metadata:  map[string]any{"claims": len(def.Claims)},
	})

	return true, nil
}

func (s *Seeder) ensureUser(ctx context.Context, def UserDefinition) (bool, error) {
	existing, err := s.store.FindUserByName(ctx, def.UserName)
	if err != nil {
		return false, storeError(err, "failed to find user", map[string]any{"user_name": def.UserName})
	}

	if existing != nil {
		s.logger.Info(fmt.Sprintf("%s already exists", def.UserName), "user_name", def.UserName)
		s.record(ctx, ActivityEvent{EventType: ActivityEventUserExists, Entity: ActivityEntityUser, Name: def.UserName})
		return false, nil
	}

	user := def.User()
	if result := s.store.CreateUser(ctx, user, def.Password); !result.Succeeded {
		return false, SeedError(result, ActivityEntityUser, def.UserName, "create")
	}

	if len(def.Claims) > 0 {
		if result := s.store.AddClaims(ctx, user, def.ClaimList()); !result.Succeeded {
			return false, SeedError(result, ActivityEntityUser, def.UserName, "add_claims")
		}
	}

	for _, roleName := range def.Roles {
		if result := s.store.AddToRole(ctx, user, roleName); !result.Succeeded {
			return false, SeedError(result, ActivityEntityUser, def.UserName, "add_to_role")
		}
	}

	s.logger.Info(fmt.Sprintf("%s created", def.UserName), "user_name", def.UserName, "roles", def.Roles)
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventUserCreated,
		Entity:    ActivityEntityUser,
		Name:      def.UserName,
		Metadata: map[string]any{
			"claims": len(def.Claims),
			"roles":  append([]string(nil), def.Roles...),
		},
	})

	return true, nil
}

func (s *Seeder) fail(ctx context.Context, err error) error {
	s.logger.Error("identity seed failed", "error", err)

	meta := map[string]any{"error": err.Error()}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		meta["text_code"] = richErr.TextCode
		for k, v := range richErr.Metadata {
			meta[k] = v
		}
	}
	s.record(ctx, ActivityEvent{EventType: ActivityEventSeedFailed, Entity: ActivityEntitySeed, Metadata: meta})

	return err
}

func (s *Seeder) cancelled(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during identity seed")
}

func (s *Seeder) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	sink := normalizeActivitySink(s.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("seed activity sink error", "error", err, "event", string(event.EventType))
	}
}
