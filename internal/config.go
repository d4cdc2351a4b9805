package internal

import (
	"fmt"
	"log/slog"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/othala/internal/detect"
	"github.com/starford/othala/internal/refs"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Vault      VaultConfig       `yaml:"vault"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	References ReferencesConfig  `yaml:"references"`
	Detection  DetectionConfig   `yaml:"detection"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.References.Validate(); err != nil {
		return err
	}
	return c.Detection.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory and path
// prefixes excluded from reference processing.
type VaultConfig struct {
	Path   string   `yaml:"path"`
	Ignore []string `yaml:"ignore"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ReferencesConfig selects the key-equivalence policy and count threshold.
type ReferencesConfig struct {
	Policy            string `yaml:"policy"`
	MinRefCountThresh int    `yaml:"min_ref_count_threshold"`
}

// Validate validates the references configuration.
func (c *ReferencesConfig) Validate() error {
	if c.Policy == "" {
		c.Policy = refs.CaseInsensitive{}.ID()
	}
	if _, err := refs.PolicyByID(c.Policy); err != nil {
		return fmt.Errorf("references: %w", err)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.MinRefCountThresh, validation.Min(0)),
	)
}

// DetectionConfig holds implicit link detection configuration.
type DetectionConfig struct {
	Mode       string             `yaml:"mode"`
	Dictionary DictionaryConfig   `yaml:"dictionary"`
	RegexRules []detect.RegexRule `yaml:"regex_rules"`
}

// DictionaryConfig holds dictionary detector configuration.
type DictionaryConfig struct {
	Basenames             bool     `yaml:"basenames"`
	Aliases               bool     `yaml:"aliases"`
	Headings              bool     `yaml:"headings"`
	CustomList            bool     `yaml:"custom_list"`
	CustomPhrases         []string `yaml:"custom_phrases"`
	MinPhraseLength       int      `yaml:"min_phrase_length"`
	RequireWordBoundaries bool     `yaml:"require_word_boundaries"`
}

// Validate validates the detection configuration, compiling every regex rule
// so misconfiguration fails at startup.
func (c *DetectionConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = string(detect.ModeOff)
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required,
			validation.In(string(detect.ModeOff), string(detect.ModeRegex), string(detect.ModeDictionary))),
	); err != nil {
		return err
	}
	for _, rule := range c.RegexRules {
		if rule.Pattern == "" {
			return fmt.Errorf("detection: rule with empty pattern")
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("detection: rule %q: %w", rule.Pattern, err)
		}
	}
	return nil
}

// Settings converts the detection configuration into runtime settings.
func (c *DetectionConfig) Settings() detect.Settings {
	return detect.Settings{
		Mode: detect.Mode(c.Mode),
		Dictionary: detect.DictionarySettings{
			Basenames:             c.Dictionary.Basenames,
			Aliases:               c.Dictionary.Aliases,
			Headings:              c.Dictionary.Headings,
			CustomList:            c.Dictionary.CustomList,
			CustomPhrases:         c.Dictionary.CustomPhrases,
			MinPhraseLength:       c.Dictionary.MinPhraseLength,
			RequireWordBoundaries: c.Dictionary.RequireWordBoundaries,
		},
		RegexRules: c.RegexRules,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./othala.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		References: ReferencesConfig{
			Policy:            refs.CaseInsensitive{}.ID(),
			MinRefCountThresh: 1,
		},
		Detection: DetectionConfig{
			Mode: string(detect.ModeOff),
			Dictionary: DictionaryConfig{
				Basenames:             true,
				Aliases:               true,
				MinPhraseLength:       3,
				RequireWordBoundaries: true,
			},
		},
	}
}
