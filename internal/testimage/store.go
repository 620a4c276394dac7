// Package testimage synthesizes minimal, valid FAT32 images in memory and
// adapts them to block.Store, standing in for mkfs.fat/dosfsck fixtures in
// tests that can't shell out to real tooling.
package testimage

import (
	"io"
	"sync"

	"github.com/xaionaro-go/bytesextra"
)

// Store adapts an io.ReadWriteSeeker backed by an in-memory byte slice to
// block.Store's ReaderAt/WriterAt/Closer surface, serializing access with a
// mutex since bytesextra's seeker keeps a single cursor.
type Store struct {
	mu   sync.Mutex
	rws  io.ReadWriteSeeker
	size int64
}

// NewStore wraps data (kept by reference) as a Store.
func NewStore(data []byte) *Store {
	return &Store{
		rws:  bytesextra.NewReadWriteSeeker(data),
		size: int64(len(data)),
	}
}

// ReadAt implements io.ReaderAt.
func (s *Store) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rws.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(s.rws, p)
}

// WriteAt implements io.WriterAt.
func (s *Store) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rws.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return s.rws.Write(p)
}

// Close is a no-op; there's no OS handle backing an in-memory store.
func (s *Store) Close() error {
	return nil
}

// Size returns the byte length of the backing buffer.
func (s *Store) Size() int64 {
	return s.size
}
