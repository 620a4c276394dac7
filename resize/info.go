package resize

import (
	"fmt"

	"github.com/dargueta/fat32resize/block"
	"github.com/dargueta/fat32resize/errors"
	"github.com/dargueta/fat32resize/fat32"
)

// FSInfoReport is the read-only filesystem report produced by Info.
type FSInfoReport struct {
	DevicePath        string
	BytesPerSector    uint16
	SectorsPerCluster uint8
	TotalSectors      uint32
	FATSize           uint32
	NumFATs           uint8
	DataClusters      uint32
	FreeClusters      uint32
	FreeClustersKnown bool
	CurrentSizeBytes  uint64
	MaxNewSizeBytes   uint64
	CanGrow           bool
	BackupMatches     bool
}

// Info opens path read-only and reports its current FAT32 geometry without
// making any changes. The device's total size, counted in the filesystem's
// own sector size, is used to report how much room remains to grow into. A
// boot sector whose signature was zeroed by an interrupted resize is
// reported as errors.ErrInvalidatedFilesystem.
func Info(path string) (*FSInfoReport, error) {
	dev, err := block.Open(path, false)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	rawBoot, err := dev.ReadBytesAt(0, maxSectorSize)
	if err != nil {
		return nil, err
	}

	probe := fat32.NewBootSector(rawBoot[:512])
	sectorSize := probe.BytesPerSector()
	if !sectorSizeSupported(sectorSize) {
		return nil, errors.ErrUnsupportedSectorSize.WithMessage(
			fmt.Sprintf("device reports %d bytes per sector", sectorSize))
	}
	dev.SetSectorSize(uint32(sectorSize))

	boot := fat32.NewBootSector(rawBoot[:sectorSize])
	if boot.BootSignatureValue() == 0 {
		return nil, errors.ErrInvalidatedFilesystem
	}
	if err := fat32.ValidateBootSector(boot, false); err != nil {
		return nil, err
	}

	backupData, err := dev.ReadSector(uint64(boot.BackupBootSector()))
	backupMatches := false
	if err == nil {
		backupMatches = fat32.BootSectorsMatch(boot, fat32.NewBootSector(backupData))
	}

	fsinfoData, err := dev.ReadSector(uint64(boot.FSInfoSector()))
	var freeClusters uint32
	freeClustersKnown := false
	if err == nil {
		fsinfo := fat32.NewFSInfo(fsinfoData)
		if fat32.ValidateFSInfo(fsinfo) == nil && fsinfo.FreeCount() != fat32.UnknownFreeCount {
			freeClusters = fsinfo.FreeCount()
			freeClustersKnown = true
		}
	}

	currentSizeBytes := uint64(boot.TotalSectors()) * uint64(sectorSize)
	deviceSizeBytes := dev.TotalSectors() * uint64(sectorSize)

	canGrow := deviceSizeBytes > currentSizeBytes
	maxNewSizeBytes := currentSizeBytes
	if canGrow {
		maxNewSizeBytes = deviceSizeBytes
	}

	return &FSInfoReport{
		DevicePath:        path,
		BytesPerSector:    sectorSize,
		SectorsPerCluster: boot.SectorsPerCluster(),
		TotalSectors:      boot.TotalSectors(),
		FATSize:           boot.FATSize(),
		NumFATs:           boot.NumFATs(),
		DataClusters:      boot.DataClusters(),
		FreeClusters:      freeClusters,
		FreeClustersKnown: freeClustersKnown,
		CurrentSizeBytes:  currentSizeBytes,
		MaxNewSizeBytes:   maxNewSizeBytes,
		CanGrow:           canGrow,
		BackupMatches:     backupMatches,
	}, nil
}
