// Package config defines the data structures related to configuration and
// includes functions for loading and validating it.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/end-of-trade/pkg/constants"
	"github.com/iwvelando/end-of-trade/pkg/mathutil"
	"github.com/iwvelando/end-of-trade/pkg/validation"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for end-of-trade.
type Configuration struct {
	Floats     FloatConfig      `yaml:"floats,omitempty"`
	Settlement SettlementConfig `yaml:"settlement,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Output     OutputConfig     `yaml:"output,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

// FloatConfig holds the target values of the two cash pools. Amounts are
// decimal strings so they are never parsed through binary floating point.
type FloatConfig struct {
	TillTarget string `yaml:"tillTarget,omitempty"`
	SafeTarget string `yaml:"safeTarget,omitempty"`
}

// SettlementConfig holds settlement thresholds.
type SettlementConfig struct {
	VarianceWarning string `yaml:"varianceWarning,omitempty"`
}

// StoreConfig selects where reconciliation records are kept.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // memory, sqlite
	Path   string `yaml:"path,omitempty"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("floats.tillTarget", constants.DefaultTillTarget)
	v.SetDefault("floats.safeTarget", constants.DefaultSafeTarget)
	v.SetDefault("settlement.varianceWarning", constants.DefaultVarianceWarning)
	v.SetDefault("store.driver", constants.StoreDriverMemory)
	v.SetDefault("store.path", constants.DefaultSQLitePath)
	v.SetDefault("output.format", constants.OutputFormatPretty)
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Environment variables prefixed END_OF_TRADE_ override
// file values, e.g. END_OF_TRADE_FLOATS_TILLTARGET.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

// Default returns the configuration used when no file is supplied.
func Default() *Configuration {
	conf, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return conf
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	if err := configuration.validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

func (c *Configuration) validate() error {
	for name, raw := range map[string]string{
		"floats.tillTarget":          c.Floats.TillTarget,
		"floats.safeTarget":          c.Floats.SafeTarget,
		"settlement.varianceWarning": c.Settlement.VarianceWarning,
	} {
		d, err := mathutil.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d.IsNegative() || (name != "settlement.varianceWarning" && d.IsZero()) {
			return fmt.Errorf("invalid %s: must be positive, got %s", name, raw)
		}
	}

	if err := validation.ValidateStoreDriver(c.Store.Driver); err != nil {
		return err
	}
	if c.Store.Driver == constants.StoreDriverSQLite && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the %s driver", constants.StoreDriverSQLite)
	}

	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
			return err
		}
	}
	return nil
}

// TillTarget returns the till float target.
func (c *Configuration) TillTarget() decimal.Decimal {
	return mustParse(c.Floats.TillTarget)
}

// SafeTarget returns the safe float target.
func (c *Configuration) SafeTarget() decimal.Decimal {
	return mustParse(c.Floats.SafeTarget)
}

// VarianceWarning returns the settlement variance threshold.
func (c *Configuration) VarianceWarning() decimal.Decimal {
	return mustParse(c.Settlement.VarianceWarning)
}

func mustParse(raw string) decimal.Decimal {
	d, err := mathutil.Parse(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	validator := validation.FloatValidator{
		TillTarget:      c.TillTarget(),
		SafeTarget:      c.SafeTarget(),
		VarianceWarning: c.VarianceWarning(),
	}
	return validator.ValidateAll()
}
