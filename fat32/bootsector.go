// Package fat32 is the on-disk FAT32 structure codec: boot sector, backup
// boot sector, FSInfo, and FAT table entries. Every structure keeps its full
// raw sector bytes rather than a parsed-and-discarded struct, so unknown or
// vendor-specific bytes survive a read-modify-write cycle untouched. Typed
// accessors read and write fields in place on that buffer.
package fat32

import "encoding/binary"

// Byte offsets of the BPB fields this codec cares about. Unlisted bytes
// (OEM name, boot code, volume label, ...) are preserved as opaque payload.
const (
	offBytesPerSector    = 11
	offSectorsPerCluster = 13
	offReservedSectors   = 14
	offNumFATs           = 16
	offRootEntryCount    = 17
	offTotalSectors16    = 19
	offMediaType         = 21
	offFATSize16         = 22
	offTotalSectors32    = 32
	offFATSize32         = 36
	offRootCluster       = 44
	offFSInfoSector      = 48
	offBackupBootSector  = 50
	offFSType            = 82
	offBootSignature     = 510
)

// BootSignature is the value a valid boot sector carries at offset 510.
const BootSignature = 0xAA55

// ValidSectorSizes enumerates the bytes-per-sector values FAT32 permits.
var ValidSectorSizes = [...]uint16{512, 1024, 2048, 4096}

// BootSector wraps the raw bytes of a boot sector (or its backup copy),
// exposing typed getters and setters that read and write in place.
type BootSector struct {
	data []byte
}

// NewBootSector wraps data, which must be exactly the boot sector's sector
// size, as a BootSector. The slice is kept by reference, not copied: callers
// that need an independent copy (e.g. to produce a backup) must clone first.
func NewBootSector(data []byte) *BootSector {
	return &BootSector{data: data}
}

// Bytes returns the raw, mutable backing buffer, ready to be written straight
// to disk.
func (b *BootSector) Bytes() []byte {
	return b.data
}

// Clone returns a BootSector with an independent copy of the underlying
// bytes, for building a backup or a proposed new boot sector.
func (b *BootSector) Clone() *BootSector {
	dup := make([]byte, len(b.data))
	copy(dup, b.data)
	return NewBootSector(dup)
}

func (b *BootSector) u8(off int) uint8   { return b.data[off] }
func (b *BootSector) u16(off int) uint16 { return binary.LittleEndian.Uint16(b.data[off:]) }
func (b *BootSector) u32(off int) uint32 { return binary.LittleEndian.Uint32(b.data[off:]) }

func (b *BootSector) setU8(off int, v uint8)   { b.data[off] = v }
func (b *BootSector) setU16(off int, v uint16) { binary.LittleEndian.PutUint16(b.data[off:], v) }
func (b *BootSector) setU32(off int, v uint32) { binary.LittleEndian.PutUint32(b.data[off:], v) }

func (b *BootSector) BytesPerSector() uint16     { return b.u16(offBytesPerSector) }
func (b *BootSector) SectorsPerCluster() uint8   { return b.u8(offSectorsPerCluster) }
func (b *BootSector) ReservedSectors() uint16    { return b.u16(offReservedSectors) }
func (b *BootSector) NumFATs() uint8             { return b.u8(offNumFATs) }
func (b *BootSector) RootEntryCount() uint16     { return b.u16(offRootEntryCount) }
func (b *BootSector) TotalSectors16() uint16     { return b.u16(offTotalSectors16) }
func (b *BootSector) MediaType() uint8           { return b.u8(offMediaType) }
func (b *BootSector) FATSize16() uint16          { return b.u16(offFATSize16) }
func (b *BootSector) TotalSectors32() uint32     { return b.u32(offTotalSectors32) }
func (b *BootSector) FATSize32() uint32          { return b.u32(offFATSize32) }
func (b *BootSector) RootCluster() uint32        { return b.u32(offRootCluster) }
func (b *BootSector) FSInfoSector() uint16       { return b.u16(offFSInfoSector) }
func (b *BootSector) BackupBootSector() uint16   { return b.u16(offBackupBootSector) }
func (b *BootSector) BootSignatureValue() uint16 { return b.u16(offBootSignature) }

func (b *BootSector) SetTotalSectors32(v uint32)   { b.setU32(offTotalSectors32, v) }
func (b *BootSector) SetFATSize32(v uint32)        { b.setU32(offFATSize32, v) }
func (b *BootSector) SetRootCluster(v uint32)      { b.setU32(offRootCluster, v) }
func (b *BootSector) SetBackupBootSector(v uint16) { b.setU16(offBackupBootSector, v) }

// FSType returns the 8-byte filesystem type string (e.g. "FAT32   "),
// untrimmed; ValidateBootSector compares it whole with bytes.Equal.
func (b *BootSector) FSType() []byte {
	return b.data[offFSType : offFSType+8]
}

// IsSignatureValid reports whether the boot signature is 0xAA55.
func (b *BootSector) IsSignatureValid() bool {
	return b.BootSignatureValue() == BootSignature
}

// InvalidateSignature zeroes the boot signature bytes, opening the danger
// window in which other tools must refuse to touch the filesystem.
func (b *BootSector) InvalidateSignature() {
	b.setU16(offBootSignature, 0)
}

// RestoreSignature writes the valid 0xAA55 boot signature back.
func (b *BootSector) RestoreSignature() {
	b.setU16(offBootSignature, BootSignature)
}

// TotalSectors returns the filesystem's total sector count, preferring the
// 32-bit field and falling back to the 16-bit one (which FAT32 always
// leaves at 0, but the accessor follows the general FAT convention).
func (b *BootSector) TotalSectors() uint32 {
	if ts := b.TotalSectors32(); ts != 0 {
		return ts
	}
	return uint32(b.TotalSectors16())
}

// FATSize returns the size of one FAT copy in sectors, preferring the 32-bit
// field.
func (b *BootSector) FATSize() uint32 {
	if fs := b.FATSize32(); fs != 0 {
		return fs
	}
	return uint32(b.FATSize16())
}

// FirstFATSector returns the sector number of the start of the first FAT
// copy.
func (b *BootSector) FirstFATSector() uint64 {
	return uint64(b.ReservedSectors())
}

// rootDirSectors is always 0 for FAT32, which stores the root directory as
// an ordinary cluster chain starting at RootCluster.
func (b *BootSector) rootDirSectors() uint64 {
	return 0
}

// FirstDataSector returns the sector number of the first data cluster's
// first sector (cluster 2).
func (b *BootSector) FirstDataSector() uint64 {
	return b.FirstFATSector() +
		uint64(b.NumFATs())*uint64(b.FATSize()) +
		b.rootDirSectors()
}

// DataSectors returns the number of sectors in the data area.
func (b *BootSector) DataSectors() uint64 {
	total := uint64(b.TotalSectors())
	used := b.FirstDataSector()
	if used >= total {
		return 0
	}
	return total - used
}

// DataClusters returns the number of whole data clusters. Returns 0 for a
// boot sector with sectorsPerCluster of 0, since that's already invalid
// FAT32 geometry that ValidateBootSector reports on its own terms.
func (b *BootSector) DataClusters() uint32 {
	spc := b.SectorsPerCluster()
	if spc == 0 {
		return 0
	}
	return uint32(b.DataSectors() / uint64(spc))
}

// BytesPerCluster returns the size of one cluster in bytes.
func (b *BootSector) BytesPerCluster() uint32 {
	return uint32(b.BytesPerSector()) * uint32(b.SectorsPerCluster())
}

// ClusterToSector returns the first sector of cluster number c. Clusters are
// numbered from 2.
func (b *BootSector) ClusterToSector(c uint32) uint64 {
	return b.FirstDataSector() + uint64(c-2)*uint64(b.SectorsPerCluster())
}
