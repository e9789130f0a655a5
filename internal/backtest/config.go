package backtest

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/quantfold/replay/pkg/errors"
)

// Config holds every recognized option of a backtest run. A config that fails
// Validate is the single fatal error surface of the engine; everything past
// construction recovers locally.
type Config struct {
	// InitialCash is the starting cash balance. Must be positive.
	InitialCash float64 `yaml:"initial_cash" json:"initial_cash" validate:"required,gt=0" jsonschema:"title=Initial Cash,description=Starting cash balance in USD,minimum=0"`
	// CommissionRate is charged as a fraction of trade notional on both sides.
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" validate:"gte=0" jsonschema:"title=Commission Rate,description=Commission as a fraction of trade notional,minimum=0"`
	// SlippageRate moves the fill price adversely: up for buys, down for sells.
	SlippageRate float64 `yaml:"slippage_rate" json:"slippage_rate" validate:"gte=0" jsonschema:"title=Slippage Rate,description=Adverse price impact as a fraction of the reference price,minimum=0"`
	// MinConfidence is the threshold below which signals are ignored.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence" validate:"gte=0,lte=1" jsonschema:"title=Minimum Confidence,description=Signals below this confidence are skipped,minimum=0,maximum=1"`
	// MaxAllocationFraction caps the fraction of current cash a single trade
	// may target before confidence scaling.
	MaxAllocationFraction float64 `yaml:"max_allocation_fraction" json:"max_allocation_fraction" validate:"gt=0,lte=1" jsonschema:"title=Max Allocation Fraction,description=Fraction of current cash a full-confidence trade targets,minimum=0,maximum=1"`
	// StartTime and EndTime optionally bound the valuation date range.
	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the valuation range"`
	EndTime   optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the valuation range"`
}

// UnmarshalYAML implements custom unmarshaling for Config
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain struct {
		InitialCash           float64    `yaml:"initial_cash"`
		CommissionRate        float64    `yaml:"commission_rate"`
		SlippageRate          float64    `yaml:"slippage_rate"`
		MinConfidence         float64    `yaml:"min_confidence"`
		MaxAllocationFraction float64    `yaml:"max_allocation_fraction"`
		StartTime             *time.Time `yaml:"start_time"`
		EndTime               *time.Time `yaml:"end_time"`
	}

	var config plain
	if err := unmarshal(&config); err != nil {
		return err
	}

	c.InitialCash = config.InitialCash
	c.CommissionRate = config.CommissionRate
	c.SlippageRate = config.SlippageRate
	c.MinConfidence = config.MinConfidence
	c.MaxAllocationFraction = config.MaxAllocationFraction

	if config.MaxAllocationFraction == 0 {
		c.MaxAllocationFraction = DefaultConfig().MaxAllocationFraction
	}

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// Validate checks the config at construction time.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest config", err)
	}

	return nil
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		InitialCash:           100000,
		CommissionRate:        0.001,
		SlippageRate:          0.0001,
		MinConfidence:         0,
		MaxAllocationFraction: 0.1,
		StartTime:             optional.None[time.Time](),
		EndTime:               optional.None[time.Time](),
	}
}

// TestConfig returns a deterministic frictionless config for tests: no
// commission, no slippage, no confidence floor.
func TestConfig() Config {
	config := DefaultConfig()
	config.CommissionRate = 0
	config.SlippageRate = 0

	return config
}

// GenerateSchema generates a JSON schema for the Config
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtest-config"
	schema.Description = "Configuration schema for a backtest run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates a JSON schema string for the Config
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
