// Package config loads the broker's YAML configuration file, grounded
// on the same os.ReadFile + yaml.Unmarshal shape the pack's fluxor
// config loader uses, adapted to this broker's settings.
package config

import (
	"fmt"
	"os"

	"flowlog/internal/broker"
	"flowlog/internal/partition"
	"flowlog/internal/segment"

	"gopkg.in/yaml.v3"
)

// SegmentConfig mirrors segment.Config in YAML-friendly field names.
type SegmentConfig struct {
	SizeBytes     int64 `yaml:"size_bytes"`
	IndexMaxBytes int64 `yaml:"index_max_bytes"`
}

// PartitionConfig mirrors partition.Config's non-segment fields.
type PartitionConfig struct {
	MessagesRequiredToSave uint32 `yaml:"messages_required_to_save"`
	CacheSizeMessages      int    `yaml:"cache_size_messages"`
}

// Config is the top-level broker configuration file shape.
type Config struct {
	ListenAddr string          `yaml:"listen_addr"`
	PathRoot   string          `yaml:"path_root"`
	Segment    SegmentConfig   `yaml:"segment"`
	Partition  PartitionConfig `yaml:"partition"`
}

// Default returns the configuration the teacher's broker previously
// hardcoded in cmd/broker/main.go, now used as the fallback when no
// file is supplied or a file omits a field.
func Default() Config {
	seg := segment.DefaultConfig()
	part := partition.DefaultConfig()
	return Config{
		ListenAddr: "127.0.0.1:9092",
		PathRoot:   part.PathRoot,
		Segment: SegmentConfig{
			SizeBytes:     seg.MaxSizeBytes,
			IndexMaxBytes: seg.IndexMaxBytes,
		},
		Partition: PartitionConfig{
			MessagesRequiredToSave: part.MessagesRequiredToSave,
			CacheSizeMessages:      part.CacheSizeMessages,
		},
	}
}

// Load reads and unmarshals the YAML file at path over the defaults,
// so a config file only needs to specify the fields it overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ToPartitionConfig builds the internal/partition.Config this broker
// configuration describes.
func (c Config) ToPartitionConfig() partition.Config {
	return partition.Config{
		Segment: segment.Config{
			MaxSizeBytes:  c.Segment.SizeBytes,
			IndexMaxBytes: c.Segment.IndexMaxBytes,
		},
		MessagesRequiredToSave: c.Partition.MessagesRequiredToSave,
		CacheSizeMessages:      c.Partition.CacheSizeMessages,
		PathRoot:               c.PathRoot,
	}
}

// ToBrokerConfig builds the internal/broker.Config this broker
// configuration describes.
func (c Config) ToBrokerConfig() broker.Config {
	return broker.Config{ListenAddr: c.ListenAddr}
}
