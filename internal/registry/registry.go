// Package registry is the thin, in-memory lookup layer that addresses
// a Partition by its (stream, topic, partition) key and owns the
// directory layout each partition is rooted at.
package registry

import (
	"fmt"
	"path/filepath"
	"sync"

	"flowlog/internal/apperr"
	"flowlog/internal/partition"

	"go.uber.org/zap"
)

// Key addresses one partition within the stream/topic hierarchy.
type Key struct {
	StreamID    string
	TopicID     string
	PartitionID uint32
}

func (k Key) path(pathRoot string) string {
	return filepath.Join(pathRoot, k.StreamID, k.TopicID, fmt.Sprintf("%d", k.PartitionID))
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d", k.StreamID, k.TopicID, k.PartitionID)
}

// Registry maps Keys to open Partitions, creating their on-disk
// directories on demand and holding every partition opened so far.
type Registry struct {
	mu         sync.RWMutex
	pathRoot   string
	config     partition.Config
	logger     *zap.Logger
	partitions map[Key]*partition.Partition
}

func New(pathRoot string, cfg partition.Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		pathRoot:   pathRoot,
		config:     cfg,
		logger:     logger,
		partitions: make(map[Key]*partition.Partition),
	}
}

// GetPartition returns the already-open partition for key, if any.
func (r *Registry) GetPartition(key Key) (*partition.Partition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.partitions[key]
	return p, ok
}

// CreatePartition opens (or creates, if absent on disk) the partition
// at key and registers it. Calling it again for an already-registered
// key returns the existing instance rather than erroring, so dispatch
// handlers can treat "create" as idempotent.
func (r *Registry) CreatePartition(key Key) (*partition.Partition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.partitions[key]; ok {
		return p, nil
	}

	p, err := partition.Open(key.String(), key.path(r.pathRoot), r.config, r.logger)
	if err != nil {
		return nil, err
	}
	r.partitions[key] = p
	r.logger.Info("partition created", zap.String("key", key.String()))
	return p, nil
}

// DeletePartition closes every segment of the partition at key, removes
// its files from disk, and forgets it.
func (r *Registry) DeletePartition(key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.partitions[key]
	if !ok {
		return apperr.New(apperr.KindNotFound, "partition not registered: "+key.String())
	}
	delete(r.partitions, key)
	return p.Delete()
}

// ListPartitions returns the partition ids registered under a given
// stream/topic, in no particular order.
func (r *Registry) ListPartitions(streamID, topicID string) []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []uint32
	for k := range r.partitions {
		if k.StreamID == streamID && k.TopicID == topicID {
			out = append(out, k.PartitionID)
		}
	}
	return out
}

// Close shuts down every open partition, returning the first error
// encountered (if any) after attempting all of them.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for key, p := range r.partitions {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.partitions, key)
	}
	return firstErr
}
