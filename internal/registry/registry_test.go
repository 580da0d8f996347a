package registry

import (
	"os"
	"testing"

	"flowlog/internal/message"
	"flowlog/internal/partition"
	"flowlog/internal/segment"

	"github.com/stretchr/testify/require"
)

func testConfig() partition.Config {
	cfg := partition.DefaultConfig()
	cfg.Segment = segment.Config{MaxSizeBytes: 1 << 20, IndexMaxBytes: 64 * 1024}
	return cfg
}

func TestCreatePartitionIsIdempotent(t *testing.T) {
	r := New(t.TempDir(), testConfig(), nil)
	key := Key{StreamID: "orders", TopicID: "events", PartitionID: 0}

	p1, err := r.CreatePartition(key)
	require.NoError(t, err)

	p2, err := r.CreatePartition(key)
	require.NoError(t, err)
	require.Same(t, p1, p2)
}

func TestGetPartitionReflectsAppends(t *testing.T) {
	r := New(t.TempDir(), testConfig(), nil)
	key := Key{StreamID: "orders", TopicID: "events", PartitionID: 1}

	p, err := r.CreatePartition(key)
	require.NoError(t, err)
	require.NoError(t, p.AppendMessages([]*message.Message{{Payload: []byte("x")}}))

	got, ok := r.GetPartition(key)
	require.True(t, ok)
	require.EqualValues(t, 0, got.CurrentOffset())
}

func TestDeletePartitionRemovesFromRegistry(t *testing.T) {
	r := New(t.TempDir(), testConfig(), nil)
	key := Key{StreamID: "orders", TopicID: "events", PartitionID: 2}

	p, err := r.CreatePartition(key)
	require.NoError(t, err)
	require.NoError(t, p.AppendMessages([]*message.Message{{Payload: []byte("x")}}))

	dir := key.path(r.pathRoot)
	_, err = os.Stat(dir)
	require.NoError(t, err, "partition directory should exist before deletion")

	require.NoError(t, r.DeletePartition(key))
	_, ok := r.GetPartition(key)
	require.False(t, ok)

	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err), "partition directory should be removed on delete")

	err = r.DeletePartition(key)
	require.Error(t, err)
}

func TestListPartitionsScopedToStreamTopic(t *testing.T) {
	r := New(t.TempDir(), testConfig(), nil)
	_, err := r.CreatePartition(Key{StreamID: "s", TopicID: "t", PartitionID: 0})
	require.NoError(t, err)
	_, err = r.CreatePartition(Key{StreamID: "s", TopicID: "t", PartitionID: 1})
	require.NoError(t, err)
	_, err = r.CreatePartition(Key{StreamID: "s", TopicID: "other", PartitionID: 0})
	require.NoError(t, err)

	ids := r.ListPartitions("s", "t")
	require.ElementsMatch(t, []uint32{0, 1}, ids)
}
