package testimage

import (
	"encoding/binary"

	"github.com/dargueta/fat32resize/block"
	"github.com/dargueta/fat32resize/fat32"
)

// Params describes the geometry of a synthesized FAT32 image.
type Params struct {
	SectorSize        uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	TotalSectors      uint32
	FATSize           uint32
	FSInfoSector      uint16
	BackupBootSector  uint16
	// UsedClusters marks these cluster numbers as end-of-chain in FAT-0, as
	// if a file occupied them, so relocation has real data to move.
	UsedClusters []uint32
}

// DefaultParams returns a small geometry that passes ValidateBootSector,
// usable as a starting point for ad hoc test images: 65584 data clusters,
// just above the 65525-data-cluster floor that distinguishes FAT32 from
// FAT16. Each 4-sector FAT copy holds only 512 entries, so the FATs do not
// cover the whole data area and only clusters below 512 can be marked used.
func DefaultParams() Params {
	return Params{
		SectorSize:        512,
		SectorsPerCluster: 1,
		ReservedSectors:   8,
		NumFATs:           2,
		TotalSectors:      65600,
		FATSize:           4,
		FSInfoSector:      1,
		BackupBootSector:  6,
	}
}

// Build synthesizes a complete in-memory FAT32 image: boot sector, backup
// boot sector, FSInfo, initialized FAT copies, and an empty data area. The
// returned bytes are exactly p.TotalSectors*p.SectorSize long.
func Build(p Params) []byte {
	data := make([]byte, int64(p.TotalSectors)*int64(p.SectorSize))

	boot := fat32.NewBootSector(data[0:p.SectorSize])
	writeBootSectorFields(boot, p)
	boot.RestoreSignature()

	backupOffset := int64(p.BackupBootSector) * int64(p.SectorSize)
	copy(data[backupOffset:backupOffset+int64(p.SectorSize)], boot.Bytes())

	fsinfoOffset := int64(p.FSInfoSector) * int64(p.SectorSize)
	fsinfo := fat32.NewFSInfo(data[fsinfoOffset : fsinfoOffset+int64(p.SectorSize)])
	writeFSInfoFields(fsinfo, p)

	store := NewStore(data)
	dev := block.NewFromStore(store, "", true, uint32(p.SectorSize), int64(len(data)))

	table := fat32.NewTable(dev, boot)
	// Errors are impossible here: the store is a plain byte slice and every
	// offset is within bounds by construction.
	_ = table.InitializeReservedEntries()
	for _, c := range p.UsedClusters {
		_ = table.WriteEntry(c, fat32.EntryEndOfChain)
	}
	_ = table.ZeroAndMirror()

	return data
}

// BuildDevice synthesizes an image per p and wraps it in a ready-to-use
// *block.Device backed by an in-memory store.
func BuildDevice(p Params) (*block.Device, []byte) {
	data := Build(p)
	store := NewStore(data)
	dev := block.NewFromStore(store, "memory", true, uint32(p.SectorSize), int64(len(data)))
	return dev, data
}

func writeBootSectorFields(boot *fat32.BootSector, p Params) {
	raw := boot.Bytes()
	binary.LittleEndian.PutUint16(raw[11:13], p.SectorSize)
	raw[13] = p.SectorsPerCluster
	binary.LittleEndian.PutUint16(raw[14:16], p.ReservedSectors)
	raw[16] = p.NumFATs
	// root entry count, total-sectors-16, fat-size-16 stay zero: required
	// for FAT32.
	raw[21] = 0xF8 // fixed disk
	boot.SetTotalSectors32(p.TotalSectors)
	boot.SetFATSize32(p.FATSize)
	boot.SetRootCluster(2)
	binary.LittleEndian.PutUint16(raw[48:50], p.FSInfoSector)
	boot.SetBackupBootSector(p.BackupBootSector)
	copy(raw[82:90], "FAT32   ")
}

func writeFSInfoFields(fsinfo *fat32.FSInfo, p Params) {
	raw := fsinfo.Bytes()
	binary.LittleEndian.PutUint32(raw[0:4], 0x41615252)
	binary.LittleEndian.PutUint32(raw[484:488], 0x61417272)
	binary.LittleEndian.PutUint32(raw[508:512], 0xAA550000)
	fsinfo.SetNextFree(3)

	dataSectors := uint64(p.TotalSectors) - uint64(p.ReservedSectors) - uint64(p.NumFATs)*uint64(p.FATSize)
	dataClusters := uint32(dataSectors / uint64(p.SectorsPerCluster))
	fsinfo.SetFreeCount(dataClusters - uint32(len(p.UsedClusters)))
}
