package partition

import (
	"testing"

	"flowlog/internal/message"
	"flowlog/internal/segment"

	"github.com/stretchr/testify/require"
)

func testConfig(segmentMaxBytes int64) Config {
	cfg := DefaultConfig()
	cfg.Segment = segment.Config{MaxSizeBytes: segmentMaxBytes, IndexMaxBytes: 64 * 1024}
	cfg.MessagesRequiredToSave = 10_000
	cfg.CacheSizeMessages = 1_000
	return cfg
}

func msg(payload string) *message.Message {
	return &message.Message{Payload: []byte(payload)}
}

func TestFirstAppendLandsAtOffsetZero(t *testing.T) {
	dir := t.TempDir()
	p, err := Open("p0", dir, testConfig(1<<20), nil)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.AppendMessages([]*message.Message{msg("hello")}))

	got, err := p.GetFirstMessages(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.EqualValues(t, 0, got[0].Offset)
	require.Equal(t, "hello", string(got[0].Payload))
}

func TestEmptyPartitionReadsReturnEmpty(t *testing.T) {
	dir := t.TempDir()
	p, err := Open("p0", dir, testConfig(1<<20), nil)
	require.NoError(t, err)
	defer p.Close()

	first, err := p.GetFirstMessages(10)
	require.NoError(t, err)
	require.Empty(t, first)

	last, err := p.GetLastMessages(10)
	require.NoError(t, err)
	require.Empty(t, last)

	byOffset, err := p.GetMessagesByOffset(0, 5)
	require.NoError(t, err)
	require.Empty(t, byOffset)

	byTs, err := p.GetMessagesByTimestamp(100, 5)
	require.NoError(t, err)
	require.Empty(t, byTs)
}

func TestAppendDenseMonotonicOffsets(t *testing.T) {
	dir := t.TempDir()
	p, err := Open("p0", dir, testConfig(1<<20), nil)
	require.NoError(t, err)
	defer p.Close()

	const n = 50
	batch := make([]*message.Message, n)
	for i := range batch {
		batch[i] = msg("m")
	}
	require.NoError(t, p.AppendMessages(batch))

	got, err := p.GetMessagesByOffset(0, n)
	require.NoError(t, err)
	require.Len(t, got, n)
	for i, m := range got {
		require.EqualValues(t, i, m.Offset)
	}
}

func TestRollOnSize(t *testing.T) {
	dir := t.TempDir()
	// msg("0123456789") encodes to 46 bytes (HeaderSize 36 + 10-byte
	// payload); 230 is an exact multiple of that so a segment fills to
	// precisely its budget on a message boundary instead of overshooting
	// it mid-persist.
	p, err := Open("p0", dir, testConfig(230), nil)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 20; i++ {
		require.NoError(t, p.AppendMessages([]*message.Message{msg("0123456789")}))
	}

	require.Greater(t, len(p.segmentRefs), 1)

	got, err := p.GetMessagesByOffset(0, 1000)
	require.NoError(t, err)
	require.Len(t, got, 20)
	for i, m := range got {
		require.EqualValues(t, i, m.Offset)
	}
}

func TestPersistThreshold(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(1 << 20)
	cfg.MessagesRequiredToSave = 5
	p, err := Open("p0", dir, cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 4; i++ {
		require.NoError(t, p.AppendMessages([]*message.Message{msg("x")}))
	}
	require.EqualValues(t, 4, p.unsavedMessagesCount)

	require.NoError(t, p.AppendMessages([]*message.Message{msg("x")}))
	require.EqualValues(t, 0, p.unsavedMessagesCount)
}

func TestGetMessagesByTimestamp(t *testing.T) {
	dir := t.TempDir()
	p, err := Open("p0", dir, testConfig(1<<20), nil)
	require.NoError(t, err)
	defer p.Close()

	ticks := []uint64{100, 200, 300, 400}
	p.now = func() uint64 {
		ts := ticks[0]
		ticks = ticks[1:]
		return ts
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, p.AppendMessages([]*message.Message{msg("m")}))
	}

	got, err := p.GetMessagesByTimestamp(250, 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	require.EqualValues(t, 2, got[0].Offset)
	require.EqualValues(t, 300, got[0].Timestamp)
}

func TestGetNextMessagesConsumerFlow(t *testing.T) {
	dir := t.TempDir()
	p, err := Open("p0", dir, testConfig(1<<20), nil)
	require.NoError(t, err)
	defer p.Close()

	batch := make([]*message.Message, 5)
	for i := range batch {
		batch[i] = msg("m")
	}
	require.NoError(t, p.AppendMessages(batch))

	const consumer = uint32(1)
	got, err := p.GetNextMessages(consumer, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.EqualValues(t, 0, got[0].Offset)
	require.EqualValues(t, 2, got[2].Offset)

	require.NoError(t, p.StoreConsumerOffset(consumer, 2))

	got, err = p.GetNextMessages(consumer, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.EqualValues(t, 2, got[0].Offset)
	require.EqualValues(t, 4, got[2].Offset)
}

func TestStoreConsumerOffsetRejectsBeyondCurrent(t *testing.T) {
	dir := t.TempDir()
	p, err := Open("p0", dir, testConfig(1<<20), nil)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.AppendMessages([]*message.Message{msg("a")}))
	err = p.StoreConsumerOffset(1, 5)
	require.Error(t, err)
}

func TestCrashRecovery(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(1 << 20)
	cfg.MessagesRequiredToSave = 8

	p, err := Open("p0", dir, cfg, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, p.AppendMessages([]*message.Message{msg("x")}))
	}
	// 10 appended, 8 persisted (threshold crossed once); simulate a crash
	// by dropping the partition without a clean Close.
	require.EqualValues(t, 8, p.currentOffset-uint64(p.unsavedMessagesCount)+1)

	reopened, err := Open("p0", dir, cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	require.EqualValues(t, 7, reopened.CurrentOffset())

	require.NoError(t, reopened.AppendMessages([]*message.Message{msg("next")}))
	require.EqualValues(t, 8, reopened.CurrentOffset())
}
