package segment

import (
	"os"

	"github.com/tysonmote/gommap"
)

// mmapFile is a fixed-capacity, memory-mapped file. Callers track their own
// logical size; mmapFile only owns the mapping, pre-allocation, and sync.
type mmapFile struct {
	file *os.File
	data gommap.MMap
	cap  int64
}

func openMmapFile(path string, capBytes int64) (*mmapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if fi.Size() < capBytes {
		if err := f.Truncate(capBytes); err != nil {
			f.Close()
			return nil, err
		}
	}

	data, err := gommap.Map(f.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &mmapFile{file: f, data: data, cap: capBytes}, nil
}

func (m *mmapFile) writeAt(pos int64, b []byte) {
	copy(m.data[pos:], b)
}

func (m *mmapFile) readAt(pos int64, n int) []byte {
	return m.data[pos : pos+int64(n)]
}

func (m *mmapFile) sync() error {
	return m.data.Sync(gommap.MS_SYNC)
}

func (m *mmapFile) close() error {
	if err := m.sync(); err != nil {
		return err
	}
	if err := m.data.UnsafeUnmap(); err != nil {
		return err
	}
	return m.file.Close()
}

// truncateToLogicalSize trims the backing file down to n bytes of actual
// data, discarding the pre-allocated tail. Must be called after close().
func (m *mmapFile) truncateToLogicalSize(n int64) error {
	return os.Truncate(m.file.Name(), n)
}

func (m *mmapFile) remove() error {
	path := m.file.Name()
	_ = m.data.UnsafeUnmap()
	_ = m.file.Close()
	return os.Remove(path)
}
