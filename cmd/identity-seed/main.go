package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/activitymap"
	"github.com/goliatone/go-identity/repository"
	"github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
	"gopkg.in/yaml.v3"
)

type options struct {
	configPath       string
	seedPath         string
	driver           string
	server           string
	debug            bool
	skipDemo         bool
	deterministicIDs bool
	region           string
	printClaims      bool
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var o options

	flagSet := pflag.NewFlagSet("identity-seed", pflag.ContinueOnError)
	flagSet.StringVarP(&o.configPath, "config", "c", "", "path to a YAML configuration file")
	flagSet.StringVar(&o.seedPath, "seed", "", "path to a YAML seed file, overrides the seed section of --config")
	flagSet.StringVar(&o.driver, "driver", "", "database driver: sqlite3 or postgres")
	flagSet.StringVar(&o.server, "dsn", "", "database connection string")
	flagSet.BoolVar(&o.debug, "debug", false, "log SQL queries")
	flagSet.BoolVar(&o.skipDemo, "skip-demo", false, "do not fall back to the demo users when no seed data is declared")
	flagSet.BoolVar(&o.deterministicIDs, "deterministic-ids", true, "derive user and role ids from their names")
	flagSet.StringVar(&o.region, "region", "", "default region for phone numbers without a country prefix")
	flagSet.BoolVar(&o.printClaims, "print-claims", true, "print the derived claims of every seeded user")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("identity-seed"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)

	cfg, err := identity.LoadConfig(ctx, yamlLoader(o.configPath), runtimeOverrides(flagSet, o))
	if err != nil {
		return err
	}

	if o.seedPath != "" {
		seed, err := identity.LoadSeedConfigFile(o.seedPath)
		if err != nil {
			return err
		}
		cfg.Seed = seed.WithDemoFallback()
	}

	client, err := openPersistence(cfg.Persistence)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := identity.RegisterMigrations(client, cfg.Persistence.Dialect()); err != nil {
		return err
	}

	cacheService, err := repositorycache.NewCacheService(repositorycache.DefaultConfig())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create role claims cache")
	}

	store := repository.NewIdentityStore(client.DB(),
		repository.WithPasswordPolicy(cfg.Password),
		repository.WithDeterministicIDs(o.deterministicIDs),
		repository.WithDefaultRegion(o.region),
		repository.WithRoleClaimsCache(cacheService),
		repository.WithStoreLoggerProvider(lgr),
	)

	seeder := identity.NewSeeder(store, client, cfg.Seed,
		identity.WithSeederLoggerProvider(lgr),
		identity.WithActivitySink(identity.ActivitySinkFunc(func(_ context.Context, event identity.ActivityEvent) error {
			record := activitymap.Normalize(event)
			lgr.GetLogger("identity.activity").Debug("seed activity",
				"actor", record.ActorID,
				"verb", record.Verb,
				"object_type", record.ObjectType,
				"object_id", record.ObjectID,
				"metadata", record.Metadata,
			)
			return nil
		})),
	)

	if err := identity.NewEnsureSeedDataHandler(seeder).Execute(ctx, identity.EnsureSeedDataMessage{}); err != nil {
		return err
	}

	if !o.printClaims {
		return nil
	}

	query := identity.NewDeriveClaimsQuery(store, identity.NewPrincipalFactory(store, cfg.Identity,
		identity.WithDeriverLoggerProvider(lgr),
	))

	for _, def := range cfg.Seed.Users {
		claims, err := query.Query(ctx, identity.DeriveClaimsMessage{UserName: def.UserName})
		if err != nil {
			return err
		}
		fmt.Printf("%s:\n%s\n", def.UserName, print.MaybeHighlightJSON(claims.MapClaims()))
	}

	return nil
}

func openPersistence(cfg identity.PersistenceConfig) (*persistence.Client, error) {
	driverName := sqliteshim.ShimName
	var dialect schema.Dialect = sqlitedialect.New()
	if cfg.Dialect() == identity.DialectPostgres {
		driverName = "postgres"
		dialect = pgdialect.New()
	}

	sqlDB, err := sql.Open(driverName, cfg.GetServer())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to open database").
			WithTextCode(identity.TextCodeStoreUnavailable)
	}
	if cfg.Dialect() == identity.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	persistence.RegisterModel((*identity.User)(nil))
	persistence.RegisterModel((*identity.Role)(nil))
	persistence.RegisterModel((*identity.UserClaim)(nil))
	persistence.RegisterModel((*identity.RoleClaim)(nil))
	persistence.RegisterModel((*identity.UserRole)(nil))

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to create persistence client").
			WithTextCode(identity.TextCodeStoreUnavailable)
	}
	return client, nil
}

func yamlLoader(path string) identity.RawConfigLoader {
	return identity.RawConfigLoaderFunc(func(context.Context) (map[string]any, error) {
		raw := map[string]any{}
		if strings.TrimSpace(path) == "" {
			return raw, nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	})
}

// runtimeOverrides returns the flags set on the command line as a config
// layer.
func runtimeOverrides(flagSet *pflag.FlagSet, o options) map[string]any {
	persistenceLayer := map[string]any{}
	if flagSet.Changed("driver") {
		persistenceLayer["driver"] = o.driver
	}
	if flagSet.Changed("dsn") {
		persistenceLayer["server"] = o.server
	}
	if flagSet.Changed("debug") {
		persistenceLayer["debug"] = o.debug
	}

	out := map[string]any{}
	if len(persistenceLayer) > 0 {
		out["persistence"] = persistenceLayer
	}
	if flagSet.Changed("skip-demo") {
		out["seed"] = map[string]any{"skip_demo_data": o.skipDemo}
	}
	return out
}
