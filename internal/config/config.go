package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Rana718/fireseed/internal/fixture"
)

const (
	FileName  = "fireseed.config"
	EnvPrefix = "FIRESEED"

	DefaultEmulatorHost = "localhost:8080"
	DefaultDatabaseID   = "(default)"
)

// Keys are the config keys, matching the flag names.
var Keys = []string{
	"serviceAccount", "projectId", "databaseId", "file", "reseed",
	"useEmulator", "emulatorHost", "batchSize", "deletePageSize", "maxDepth",
	"identityCollections", "dryRun", "logLevel", "logFormat",
}

// ProjectEnv lists the environment variables consulted for the project id,
// after the flag and the service account.
var ProjectEnv = []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT"}

type Config struct {
	ServiceAccount      string   `json:"serviceAccount" mapstructure:"serviceAccount"`
	ProjectID           string   `json:"projectId" mapstructure:"projectId"`
	DatabaseID          string   `json:"databaseId" mapstructure:"databaseId" validate:"required"`
	File                string   `json:"file" mapstructure:"file" validate:"required"`
	Reseed              bool     `json:"reseed" mapstructure:"reseed"`
	UseEmulator         bool     `json:"useEmulator" mapstructure:"useEmulator"`
	EmulatorHost        string   `json:"emulatorHost" mapstructure:"emulatorHost" validate:"omitempty,hostname_port"`
	BatchSize           int      `json:"batchSize" mapstructure:"batchSize" validate:"min=1,max=500"`
	DeletePageSize      int      `json:"deletePageSize" mapstructure:"deletePageSize" validate:"min=1,max=500"`
	MaxDepth            int      `json:"maxDepth" mapstructure:"maxDepth" validate:"min=1,max=64"`
	IdentityCollections []string `json:"identityCollections" mapstructure:"identityCollections" validate:"dive,required,excludesall=/"`
	DryRun              bool     `json:"dryRun" mapstructure:"dryRun"`
	LogLevel            string   `json:"logLevel" mapstructure:"logLevel" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat           string   `json:"logFormat" mapstructure:"logFormat" validate:"oneof=text json"`
}

// BindEnv wires the environment into v. Every key can be set through
// FIRESEED_<KEY>; a few keys also honour the variables the Firebase tooling
// already uses.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	aliases := map[string][]string{
		"serviceAccount": {"FIRESEED_SERVICE_ACCOUNT"},
		"emulatorHost":   {"FIRESTORE_EMULATOR_HOST"},
		"useEmulator":    {"USE_FIRESTORE_EMULATOR"},
	}
	// Unmarshal only sees keys viper knows about, so each one is bound
	// explicitly rather than left to AutomaticEnv.
	for _, key := range Keys {
		input := append([]string{key}, aliases[key]...)
		if err := v.BindEnv(input...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set defaults
	if cfg.File == "" {
		cfg.File = fixture.DefaultPath
	}
	if cfg.DatabaseID == "" {
		cfg.DatabaseID = DefaultDatabaseID
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 400
	}
	if cfg.DeletePageSize == 0 {
		cfg.DeletePageSize = 200
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 16
	}
	if len(cfg.IdentityCollections) == 0 {
		cfg.IdentityCollections = append([]string(nil), fixture.DefaultIdentityCollections...)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	// A host alone is enough to select the emulator.
	if cfg.EmulatorHost != "" {
		cfg.UseEmulator = true
	}
	if cfg.UseEmulator && cfg.EmulatorHost == "" {
		cfg.EmulatorHost = DefaultEmulatorHost
	}

	return &cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if strings.TrimSpace(c.File) == "" {
		return fmt.Errorf("file cannot be empty")
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	name := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "min", "max":
		return fmt.Sprintf("%s must be between %s, got %v", name, bounds[fe.Field()], fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", name, fe.Param(), fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", name, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
}

var bounds = map[string]string{
	"BatchSize":      "1 and 500",
	"DeletePageSize": "1 and 500",
	"MaxDepth":       "1 and 64",
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// ProjectEnvValues returns the values of ProjectEnv in order.
func ProjectEnvValues() []string {
	values := make([]string, len(ProjectEnv))
	for i, name := range ProjectEnv {
		values[i] = os.Getenv(name)
	}
	return values
}
