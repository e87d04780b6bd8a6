package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

// Default persistence settings.
const (
	DefaultDriver      = "sqlite3"
	DefaultServer      = "file:identity.db?cache=shared&_foreign_keys=on"
	DefaultPingTimeout = "5s"
	DefaultOtelID      = "go-identity"
)

// PersistenceConfig satisfies the go-persistence-bun client config.
type PersistenceConfig struct {
	Driver                string `koanf:"driver" mapstructure:"driver" yaml:"driver" json:"driver"`
	Server                string `koanf:"server" mapstructure:"server" yaml:"server" json:"server"`
	Debug                 bool   `koanf:"debug" mapstructure:"debug" yaml:"debug" json:"debug"`
	PingTimeoutExpression string `koanf:"ping_timeout" mapstructure:"ping_timeout" yaml:"ping_timeout" json:"ping_timeout"`
	OtelIdentifier        string `koanf:"otel_identifier" mapstructure:"otel_identifier" yaml:"otel_identifier" json:"otel_identifier"`
}

func (p PersistenceConfig) GetDriver() string {
	return p.Driver
}

func (p PersistenceConfig) GetServer() string {
	return p.Server
}

func (p PersistenceConfig) GetDebug() bool {
	return p.Debug
}

// GetPingTimeout parses the ping timeout, falling back to the default.
func (p PersistenceConfig) GetPingTimeout() time.Duration {
	if dur, err := time.ParseDuration(strings.TrimSpace(p.PingTimeoutExpression)); err == nil && dur > 0 {
		return dur
	}
	dur, _ := time.ParseDuration(DefaultPingTimeout)
	return dur
}

func (p PersistenceConfig) GetOtelIdentifier() string {
	return p.OtelIdentifier
}

// Dialect returns "postgres" or "sqlite" based on the driver name.
func (p PersistenceConfig) Dialect() string {
	driver := strings.ToLower(strings.TrimSpace(p.Driver))
	switch {
	case strings.Contains(driver, "postgres"), driver == "pg", driver == "pgx":
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

func (p PersistenceConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Driver, validation.Required),
		validation.Field(&p.Server, validation.Required),
		validation.Field(&p.PingTimeoutExpression, validation.By(func(value any) error {
			expr, _ := value.(string)
			if strings.TrimSpace(expr) == "" {
				return nil
			}
			_, err := time.ParseDuration(expr)
			return err
		})),
	)
}

// Config is the top level configuration of the identity module.
type Config struct {
	Persistence PersistenceConfig `koanf:"persistence" mapstructure:"persistence" yaml:"persistence" json:"persistence"`
	Identity    IdentityOptions   `koanf:"identity" mapstructure:"identity" yaml:"identity" json:"identity"`
	Password    PasswordPolicy    `koanf:"password" mapstructure:"password" yaml:"password" json:"password"`
	Seed        SeedConfig        `koanf:"seed" mapstructure:"seed" yaml:"seed" json:"seed"`
}

// DefaultConfig returns the defaults. Seed declarations are left empty and
// resolved by LoadConfig.
func DefaultConfig() Config {
	return Config{
		Persistence: PersistenceConfig{
			Driver:                DefaultDriver,
			Server:                DefaultServer,
			PingTimeoutExpression: DefaultPingTimeout,
			OtelIdentifier:        DefaultOtelID,
		},
		Identity: DefaultIdentityOptions(),
		Password: DefaultPasswordPolicy(),
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return goerrors.New("config is required", goerrors.CategoryBadInput).
			WithTextCode(TextCodeInvalidInput)
	}
	if err := c.Persistence.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid persistence configuration").
			WithTextCode(TextCodeInvalidInput)
	}
	return c.Seed.Validate()
}

// RawConfigLoader loads an unstructured configuration document.
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// RawConfigLoaderFunc adapts a function into a RawConfigLoader.
type RawConfigLoaderFunc func(ctx context.Context) (map[string]any, error)

// LoadRaw implements RawConfigLoader.
func (f RawConfigLoaderFunc) LoadRaw(ctx context.Context) (map[string]any, error) {
	if f == nil {
		return map[string]any{}, nil
	}
	return f(ctx)
}

// LoadConfig merges the loaded document with runtime overrides (runtime
// wins) on top of DefaultConfig. When the result declares no seed data the
// demo baseline is used unless seed.skip_demo_data is set.
func LoadConfig(ctx context.Context, loader RawConfigLoader, runtime map[string]any) (Config, error) {
	loaded := map[string]any{}
	if loader != nil {
		raw, err := loader.LoadRaw(ctx)
		if err != nil {
			return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to load configuration").
				WithTextCode(TextCodeInvalidInput)
		}
		if raw != nil {
			loaded = raw
		}
	}
	if runtime == nil {
		runtime = map[string]any{}
	}

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("config", 10),
			loaded,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtime,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryInternal, "options stack build failed")
	}

	merged, err := stack.Merge()
	if err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryInternal, "options merge failed")
	}

	cfg, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(DefaultConfig()),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return Config{}, richErr
		}
		return Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration").
			WithTextCode(TextCodeInvalidInput)
	}

	cfg.Identity = cfg.Identity.normalize()
	cfg.Seed = cfg.Seed.WithDemoFallback()

	return cfg, nil
}
