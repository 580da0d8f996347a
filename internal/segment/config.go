package segment

// Config bounds a single segment's on-disk files. IndexMaxBytes governs
// the offset index; the time index is sized to hold exactly as many
// entries as the offset index can (spec invariant: the two always have
// equal length), so it needs no separate knob.
type Config struct {
	MaxSizeBytes  int64
	IndexMaxBytes int64
}

func DefaultConfig() Config {
	return Config{
		MaxSizeBytes:  1 << 30, // 1 GiB
		IndexMaxBytes: 10 << 20,
	}
}

func (c Config) timeIndexMaxBytes() int64 {
	maxEntries := c.IndexMaxBytes / offsetEntryWidth
	return maxEntries * timeEntryWidth
}
