// Package block provides a sector-addressed view over a file or block device,
// with a byte-offset escape hatch for reading the boot sector before the true
// sector size is known.
package block

import (
	"io"
	"os"

	"github.com/dargueta/fat32resize/errors"
	"github.com/dargueta/fat32resize/system"
)

// Store is the minimal random-access surface a Device needs from its backing
// file. *os.File satisfies it directly; tests back it with an in-memory
// buffer (see internal/testimage).
type Store interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}

// syncer is implemented by backing stores that can flush to stable storage.
// *os.File implements it; in-memory test stores don't need to.
type syncer interface {
	Sync() error
}

// Device is a sector-addressed wrapper around a Store.
//
// Its fields are unexported; the accessor methods read and change them and
// keep TotalSectors consistent with SectorSize.
type Device struct {
	store      Store
	path       string
	writable   bool
	sectorSize uint32
	// totalSize is the backing store's size in bytes, discovered once at
	// open time. TotalSectors is derived from this and the current sector
	// size, which starts at 512 and is corrected once the boot sector is
	// parsed (see SetSectorSize).
	totalSize int64
}

// Open opens path for sector I/O. writable selects read-write vs read-only
// access; dry-run callers should pass false. The device's sector size starts
// at the common default of 512 bytes; call SetSectorSize once the real value
// is known from the boot sector.
func Open(path string, writable bool) (*Device, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}

	file, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, errors.ErrDeviceNotFound.Wrap(err)
	}

	size, err := system.BlockDeviceSize(file)
	if err != nil {
		file.Close()
		return nil, errors.ErrIO.Wrap(err)
	}

	return &Device{
		store:      file,
		path:       path,
		writable:   writable,
		sectorSize: 512,
		totalSize:  size,
	}, nil
}

// NewFromStore builds a Device directly from an already-open Store, used by
// tests to back a Device with an in-memory buffer instead of a real file.
func NewFromStore(store Store, path string, writable bool, sectorSize uint32, totalSize int64) *Device {
	return &Device{
		store:      store,
		path:       path,
		writable:   writable,
		sectorSize: sectorSize,
		totalSize:  totalSize,
	}
}

// Path returns the path the device was opened from.
func (d *Device) Path() string {
	return d.path
}

// Writable reports whether the device was opened for read-write access.
func (d *Device) Writable() bool {
	return d.writable
}

// SectorSize returns the currently configured sector size in bytes.
func (d *Device) SectorSize() uint32 {
	return d.sectorSize
}

// TotalSectors returns the number of whole sectors of the current SectorSize
// that fit in the backing store.
func (d *Device) TotalSectors() uint64 {
	return uint64(d.totalSize) / uint64(d.sectorSize)
}

// SetSectorSize updates the device's sector size, recomputing TotalSectors
// against the previously discovered byte size. Called once the boot sector
// reveals the filesystem's real bytes-per-sector.
func (d *Device) SetSectorSize(sectorSize uint32) {
	d.sectorSize = sectorSize
}

// ReadSectors reads count sectors starting at sector start.
func (d *Device) ReadSectors(start uint64, count uint32) ([]byte, error) {
	offset := int64(start) * int64(d.sectorSize)
	buf := make([]byte, int64(count)*int64(d.sectorSize))

	if _, err := readFullAt(d.store, buf, offset); err != nil {
		return nil, errors.ErrIO.Wrap(err)
	}
	return buf, nil
}

// ReadSector reads a single sector.
func (d *Device) ReadSector(sector uint64) ([]byte, error) {
	return d.ReadSectors(sector, 1)
}

// WriteSectors writes data, whose length must be a multiple of the sector
// size, starting at sector start.
func (d *Device) WriteSectors(start uint64, data []byte) error {
	offset := int64(start) * int64(d.sectorSize)
	if _, err := d.store.WriteAt(data, offset); err != nil {
		return errors.ErrIO.Wrap(err)
	}
	return nil
}

// WriteSector writes exactly one sector's worth of data. data must be exactly
// SectorSize() bytes long.
func (d *Device) WriteSector(sector uint64, data []byte) error {
	if uint32(len(data)) != d.sectorSize {
		return errors.ErrIO.WithMessage(
			"write length does not match sector size",
		)
	}
	return d.WriteSectors(sector, data)
}

// ReadBytesAt reads length bytes at a raw byte offset, for use before the
// sector size is known (bootstrapping the boot sector read).
func (d *Device) ReadBytesAt(offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := readFullAt(d.store, buf, offset); err != nil {
		return nil, errors.ErrIO.Wrap(err)
	}
	return buf, nil
}

// WriteBytesAt writes data at a raw byte offset.
func (d *Device) WriteBytesAt(offset int64, data []byte) error {
	if _, err := d.store.WriteAt(data, offset); err != nil {
		return errors.ErrIO.Wrap(err)
	}
	return nil
}

// Sync commits all prior writes to stable storage.
func (d *Device) Sync() error {
	if s, ok := d.store.(syncer); ok {
		if err := s.Sync(); err != nil {
			return errors.ErrIO.Wrap(err)
		}
	}
	return nil
}

// Close releases the underlying store.
func (d *Device) Close() error {
	return d.store.Close()
}

// readFullAt reads exactly len(buf) bytes at offset, since io.ReaderAt.ReadAt
// is only guaranteed to fill buf or return an error, which os.File.ReadAt
// already does but other ReaderAt implementations might not.
func readFullAt(r io.ReaderAt, buf []byte, offset int64) (int, error) {
	n, err := r.ReadAt(buf, offset)
	if err == io.EOF && n == len(buf) {
		err = nil
	}
	return n, err
}
