package partition

import "flowlog/internal/segment"

// Config mirrors the engine-wide configuration keys from spec §6.
type Config struct {
	Segment                segment.Config
	MessagesRequiredToSave uint32
	CacheSizeMessages      int
	PathRoot               string
}

func DefaultConfig() Config {
	return Config{
		Segment:                segment.DefaultConfig(),
		MessagesRequiredToSave: 10_000,
		CacheSizeMessages:      1_000,
		PathRoot:               "./data",
	}
}
