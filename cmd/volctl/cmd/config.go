package cmd

import (
	"os"

	"gopkg.in/yaml.v3"
)

// volctlConfig holds default option values loadable from a YAML file via
// --config, so a project can pin its volume identifier, publisher, and
// namespace choices once instead of repeating flags on every invocation.
type volctlConfig struct {
	VolumeIdentifier string `yaml:"volume_identifier"`
	PublisherID      string `yaml:"publisher_id"`
	ApplicationID    string `yaml:"application_id"`
	SystemID         string `yaml:"system_id"`
	Joliet           bool   `yaml:"joliet"`
	RockRidge        bool   `yaml:"rock_ridge"`
	UDF              bool   `yaml:"udf"`
}

func defaultConfig() volctlConfig {
	return volctlConfig{
		VolumeIdentifier: "VOLISO",
		Joliet:           true,
		RockRidge:        true,
	}
}

func loadConfig(path string) (volctlConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
