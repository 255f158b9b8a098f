package fedavg

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/absmach/fedavg/pkg/serde"
	"github.com/absmach/fedavg/strategy"
	"github.com/pelletier/go-toml"
)

const defInitTimeout = "30s"

type Config struct {
	Strategy StrategyConfig `toml:"strategy"`
	MQTT     MQTTConfig     `toml:"mqtt"`
}

type StrategyConfig struct {
	AcceptFailures        *bool  `toml:"accept_failures"`
	MinAvailableClients   int    `toml:"min_available_clients"`
	InitTimeout           string `toml:"init_timeout"`
	InitialParametersFile string `toml:"initial_parameters_file"`
}

type MQTTConfig struct {
	ClientID  string `toml:"client_id"`
	ClientKey string `toml:"client_key"`
	DomainID  string `toml:"domain_id"`
	ChannelID string `toml:"channel_id"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// StrategyConfig converts the file settings into the service configuration,
// loading the initial parameters when a file is named. Failures are accepted
// unless accept_failures is set to false.
func (c StrategyConfig) StrategyConfig(baseTopic string) (strategy.Config, error) {
	timeout := c.InitTimeout
	if timeout == "" {
		timeout = defInitTimeout
	}
	d, err := time.ParseDuration(timeout)
	if err != nil {
		return strategy.Config{}, fmt.Errorf("invalid init_timeout: %w", err)
	}

	cfg := strategy.Config{
		AcceptFailures:      c.AcceptFailures == nil || *c.AcceptFailures,
		MinAvailableClients: c.MinAvailableClients,
		InitTimeout:         d,
		BaseTopic:           baseTopic,
	}

	if c.InitialParametersFile != "" {
		p, err := LoadParameters(c.InitialParametersFile)
		if err != nil {
			return strategy.Config{}, err
		}
		cfg.InitialParameters = &p
	}

	return cfg, nil
}

// LoadParameters reads serialized parameters stored as JSON.
func LoadParameters(path string) (serde.Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return serde.Parameters{}, fmt.Errorf("error reading parameters file: %w", err)
	}

	var p serde.Parameters
	if err := json.Unmarshal(data, &p); err != nil {
		return serde.Parameters{}, fmt.Errorf("error parsing parameters file: %w", err)
	}

	return p, nil
}
