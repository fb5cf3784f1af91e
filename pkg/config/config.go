// Package config loads the compilation pipeline's tunables: worker
// counts for parallel passes, the liveness solver's iteration cap, the
// virtual-memory pools' segment sizes, and the log level.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// PipelineConfig holds all configuration for a pipeline run.
type PipelineConfig struct {
	Pipeline PipelineSection `mapstructure:"pipeline"`
	VM       VMSection       `mapstructure:"vm"`
	Log      LogSection      `mapstructure:"log"`
}

// PipelineSection holds the passes' own tunables.
type PipelineSection struct {
	WorkerCount          int `mapstructure:"worker_count"`
	LivenessIterationCap int `mapstructure:"liveness_iteration_cap"`
}

// VMSection holds the virtual-memory pools' tunables.
type VMSection struct {
	CodePoolSegmentSize int `mapstructure:"code_pool_segment_size"`
	DataPoolSegmentSize int `mapstructure:"data_pool_segment_size"`
}

// LogSection holds logging configuration.
type LogSection struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*PipelineConfig, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/corebackend")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from in-memory content (useful
// for testing).
func LoadFromReader(configType string, content []byte) (*PipelineConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.worker_count", 4)
	v.SetDefault("pipeline.liveness_iteration_cap", 100)

	v.SetDefault("vm.code_pool_segment_size", 64*1024)
	v.SetDefault("vm.data_pool_segment_size", 4*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *PipelineConfig) Validate() error {
	if c.Pipeline.WorkerCount < 1 {
		return fmt.Errorf("pipeline worker count must be at least 1")
	}
	if c.Pipeline.LivenessIterationCap < 1 {
		return fmt.Errorf("liveness iteration cap must be at least 1")
	}
	if c.VM.CodePoolSegmentSize <= 0 {
		return fmt.Errorf("code pool segment size must be positive")
	}
	if c.VM.DataPoolSegmentSize <= 0 {
		return fmt.Errorf("data pool segment size must be positive")
	}
	return nil
}
