package fat32

import (
	"encoding/binary"

	"github.com/dargueta/fat32resize/block"
	"github.com/dargueta/fat32resize/errors"
)

const bytesPerEntry = 4

// Table provides read and write access to the FAT copies described by a
// BootSector, keeping every copy in sync on write the way mounted FAT32
// drivers expect.
type Table struct {
	dev  *block.Device
	boot *BootSector
}

// NewTable returns a Table that reads and writes the FAT copies geometry
// described by boot from dev.
func NewTable(dev *block.Device, boot *BootSector) *Table {
	return &Table{dev: dev, boot: boot}
}

// CopyOffset returns the byte offset of the start of FAT copy index (0-based)
// from the start of the device.
func (t *Table) CopyOffset(index uint8) int64 {
	sectorSize := int64(t.boot.BytesPerSector())
	firstFAT := int64(t.boot.FirstFATSector())
	fatSize := int64(t.boot.FATSize())
	return (firstFAT + int64(index)*fatSize) * sectorSize
}

// ReadEntry reads the raw 32-bit entry for cluster c from the first FAT
// copy, reserved bits included.
func (t *Table) ReadEntry(c uint32) (uint32, error) {
	offset := t.CopyOffset(0) + int64(c)*bytesPerEntry
	raw, err := t.dev.ReadBytesAt(offset, bytesPerEntry)
	if err != nil {
		return 0, errors.ErrIO.Wrap(err)
	}
	return binary.LittleEndian.Uint32(raw), nil
}

// WriteEntry sets cluster c's value to value in every FAT copy, preserving
// each copy's existing reserved top bits independently.
func (t *Table) WriteEntry(c uint32, value uint32) error {
	numFATs := t.boot.NumFATs()
	for i := uint8(0); i < numFATs; i++ {
		offset := t.CopyOffset(i) + int64(c)*bytesPerEntry
		existing, err := t.dev.ReadBytesAt(offset, bytesPerEntry)
		if err != nil {
			return errors.ErrIO.Wrap(err)
		}

		merged := MergeEntryValue(binary.LittleEndian.Uint32(existing), value)
		buf := make([]byte, bytesPerEntry)
		binary.LittleEndian.PutUint32(buf, merged)
		if err := t.dev.WriteBytesAt(offset, buf); err != nil {
			return errors.ErrIO.Wrap(err)
		}
	}
	return nil
}

// ReadAll reads every entry of the first FAT copy into a slice indexed by
// cluster number (index 0 and 1 are the reserved media-descriptor entries).
func (t *Table) ReadAll() ([]uint32, error) {
	fatSize := int64(t.boot.FATSize()) * int64(t.boot.BytesPerSector())
	raw, err := t.dev.ReadBytesAt(t.CopyOffset(0), int(fatSize))
	if err != nil {
		return nil, errors.ErrIO.Wrap(err)
	}

	entries := make([]uint32, fatSize/bytesPerEntry)
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint32(raw[i*bytesPerEntry:])
	}
	return entries, nil
}

// ZeroAppendedRegion zeroes the sectors of FAT copy 0 from oldFATSizeSectors
// up to this Table's (new, larger) FATSize, marking the newly appended
// region free. t must be constructed against a boot sector whose FATSize
// already reflects the grown size.
func (t *Table) ZeroAppendedRegion(oldFATSizeSectors uint32) error {
	newFATSizeSectors := t.boot.FATSize()
	if newFATSizeSectors <= oldFATSizeSectors {
		return nil
	}

	sectorSize := t.boot.BytesPerSector()
	growthSectors := newFATSizeSectors - oldFATSizeSectors
	zeros := make([]byte, uint32(sectorSize)*growthSectors)

	offset := t.CopyOffset(0) + int64(oldFATSizeSectors)*int64(sectorSize)
	if err := t.dev.WriteBytesAt(offset, zeros); err != nil {
		return errors.ErrIO.Wrap(err)
	}
	return nil
}

// ZeroAndMirror copies the first FAT copy's entire content into each other
// copy. This is used after the newly appended region of FAT copy 0 has been
// zeroed, so every copy agrees on the grown FAT's content before the
// orchestrator advances past the data-copied checkpoint phase.
func (t *Table) ZeroAndMirror() error {
	fatSizeBytes := int64(t.boot.FATSize()) * int64(t.boot.BytesPerSector())
	primary, err := t.dev.ReadBytesAt(t.CopyOffset(0), int(fatSizeBytes))
	if err != nil {
		return errors.ErrIO.Wrap(err)
	}

	for i := uint8(1); i < t.boot.NumFATs(); i++ {
		if err := t.dev.WriteBytesAt(t.CopyOffset(i), primary); err != nil {
			return errors.ErrIO.Wrap(err)
		}
	}
	return nil
}

// InitializeReservedEntries writes the two reserved FAT32 entries (cluster 0
// carries the media descriptor, cluster 1 carries the EOC marker) into every
// FAT copy.
func (t *Table) InitializeReservedEntries() error {
	mediaEntry := 0xFFFFFF00 | uint32(t.boot.MediaType())
	if err := t.writeRawEntryAllCopies(0, mediaEntry); err != nil {
		return err
	}
	return t.writeRawEntryAllCopies(1, EntryEndOfChain)
}

func (t *Table) writeRawEntryAllCopies(c uint32, raw uint32) error {
	numFATs := t.boot.NumFATs()
	buf := make([]byte, bytesPerEntry)
	binary.LittleEndian.PutUint32(buf, raw)

	for i := uint8(0); i < numFATs; i++ {
		offset := t.CopyOffset(i) + int64(c)*bytesPerEntry
		if err := t.dev.WriteBytesAt(offset, buf); err != nil {
			return errors.ErrIO.Wrap(err)
		}
	}
	return nil
}
