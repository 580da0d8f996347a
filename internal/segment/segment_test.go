package segment

import (
	"testing"

	"flowlog/internal/message"

	"github.com/stretchr/testify/require"
)

func smallConfig() Config {
	return Config{MaxSizeBytes: 4096, IndexMaxBytes: 4096}
}

func appendN(t *testing.T, s *Segment, start uint64, n int, ts uint64) {
	t.Helper()
	for i := 0; i < n; i++ {
		m := &message.Message{
			Offset:    start + uint64(i),
			Timestamp: ts + uint64(i),
			Payload:   []byte("payload"),
		}
		require.NoError(t, s.AppendMessage(m))
	}
}

func TestAppendVisibleBeforePersist(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, 0, smallConfig())
	require.NoError(t, err)
	defer s.Close()

	appendN(t, s, 0, 3, 1000)

	got, err := s.GetMessages(0, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.EqualValues(t, 0, got[0].Offset)
	require.EqualValues(t, 2, got[2].Offset)
}

func TestPersistThenGetMessages(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, 0, smallConfig())
	require.NoError(t, err)
	defer s.Close()

	appendN(t, s, 0, 5, 1000)
	require.NoError(t, s.PersistMessages())
	require.Empty(t, s.pendingMsg)

	got, err := s.GetMessages(1, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.EqualValues(t, 1, got[0].Offset)
	require.EqualValues(t, 3, got[2].Offset)
}

func TestSegmentClosesWhenFull(t *testing.T) {
	dir := t.TempDir()
	// Exactly 10 messages' worth of bytes (HeaderSize(36)+len("payload")=43
	// each): large enough that all 10 buffered appends fit within the log's
	// capacity, small enough that persisting them fills it exactly.
	cfg := Config{MaxSizeBytes: 430, IndexMaxBytes: 4096}
	s, err := Create(dir, 0, cfg)
	require.NoError(t, err)
	defer s.Close()

	appendN(t, s, 0, 10, 1000)
	require.NoError(t, s.PersistMessages())
	require.True(t, s.IsClosed)
	require.Greater(t, s.EndOffset, uint64(0))

	err = s.AppendMessage(&message.Message{Offset: s.EndOffset + 1, Timestamp: 2000, Payload: []byte("x")})
	require.Error(t, err)
}

func TestGetMessagesEmptySegment(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, 0, smallConfig())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetMessages(0, 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStartOffsetForTimestamp(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, 0, smallConfig())
	require.NoError(t, err)
	defer s.Close()

	appendN(t, s, 0, 5, 1000) // timestamps 1000..1004
	require.NoError(t, s.PersistMessages())

	off := s.StartOffsetForTimestamp(1002)
	require.EqualValues(t, 2, off)

	off = s.StartOffsetForTimestamp(9999)
	require.EqualValues(t, 0, off)
}

func TestRecoveryRebuildsIndexesFromLog(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig()

	s, err := Create(dir, 0, cfg)
	require.NoError(t, err)
	appendN(t, s, 0, 4, 5000)
	require.NoError(t, s.PersistMessages())
	require.NoError(t, s.Close())

	reopened, err := Open(dir, 0, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	require.EqualValues(t, 3, reopened.CurrentOffset)

	got, err := reopened.GetMessages(0, 10)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, m := range got {
		require.EqualValues(t, i, m.Offset)
	}
}

func TestRecoveryStopsAtZeroPaddedGap(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig()

	s, err := Create(dir, 0, cfg)
	require.NoError(t, err)
	appendN(t, s, 0, 3, 1000)
	require.NoError(t, s.PersistMessages())
	// Append a 4th record but never persist it: the bytes never reach
	// the mmap, so the on-disk log legitimately ends after the 3
	// persisted records once we drop this Segment without closing it.
	appendN(t, s, 3, 1, 2000)

	reopened, err := Open(dir, 0, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	require.EqualValues(t, 2, reopened.CurrentOffset)
	got, err := reopened.GetMessages(0, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
}
