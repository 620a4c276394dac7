// Package resize implements the growth-only FAT32 resize operation: size
// calculation, cluster relocation, the crash-safe checkpoint protocol, and
// the orchestrator that drives a device through them.
package resize

import (
	"github.com/dargueta/fat32resize/errors"
	"github.com/dargueta/fat32resize/fat32"
)

// SizeCalculation holds the sector-accounting math for growing a FAT32
// filesystem to fill a larger device.
type SizeCalculation struct {
	OldTotalSectors      uint32
	NewTotalSectors      uint32
	OldFATSize           uint32
	NewFATSize           uint32
	NewDataClusters      uint32
	FATNeedsGrowth       bool
	FATGrowthSectors     uint32
	FirstAffectedCluster uint32
	LastAffectedCluster  uint32
}

// SizeIncreaseBytes returns how many bytes larger the filesystem will become.
func (c SizeCalculation) SizeIncreaseBytes(bytesPerSector uint16) uint64 {
	return uint64(c.NewTotalSectors-c.OldTotalSectors) * uint64(bytesPerSector)
}

// NewSizeBytes returns the filesystem's total size in bytes after the resize.
func (c SizeCalculation) NewSizeBytes(bytesPerSector uint16) uint64 {
	return uint64(c.NewTotalSectors) * uint64(bytesPerSector)
}

// AdditionalClusters returns how many more data clusters the filesystem will
// have relative to oldDataClusters.
func (c SizeCalculation) AdditionalClusters(oldDataClusters uint32) uint32 {
	if c.NewDataClusters <= oldDataClusters {
		return 0
	}
	return c.NewDataClusters - oldDataClusters
}

// CalculateNewSize works out every size parameter needed to grow boot's
// filesystem to fill a device of deviceSectors sectors. It never mutates
// boot.
func CalculateNewSize(boot *fat32.BootSector, deviceSectors uint64) (SizeCalculation, error) {
	oldTotalSectors := boot.TotalSectors()
	oldFATSize := boot.FATSize()

	if deviceSectors > uint64(^uint32(0)) {
		return SizeCalculation{}, errors.ErrCalculation.WithMessage("device size in sectors exceeds the FAT32 32-bit sector count limit")
	}
	newTotalSectors := uint32(deviceSectors)

	if newTotalSectors < oldTotalSectors {
		return SizeCalculation{}, errors.ErrShrinkNotSupported
	}
	if newTotalSectors == oldTotalSectors {
		return SizeCalculation{}, errors.ErrAlreadyMaxSize
	}

	newFATSize, err := CalculateFATSize(
		newTotalSectors,
		boot.ReservedSectors(),
		boot.NumFATs(),
		boot.SectorsPerCluster(),
		boot.BytesPerSector(),
	)
	if err != nil {
		return SizeCalculation{}, err
	}

	newDataSectors := newTotalSectors - uint32(boot.ReservedSectors()) - uint32(boot.NumFATs())*newFATSize
	newDataClusters := newDataSectors / uint32(boot.SectorsPerCluster())

	if newDataClusters < fat32.MinFAT32Clusters {
		return SizeCalculation{}, errors.ErrCalculation.WithMessage("resulting data cluster count would no longer be FAT32")
	}

	fatNeedsGrowth := newFATSize > oldFATSize
	var fatGrowthSectors uint32
	if fatNeedsGrowth {
		fatGrowthSectors = newFATSize - oldFATSize
	}

	var firstAffected, lastAffected uint32
	if fatNeedsGrowth {
		totalGrowth := fatGrowthSectors * uint32(boot.NumFATs())
		sectorsPerCluster := uint32(boot.SectorsPerCluster())
		affectedClusters := ceilDiv(totalGrowth, sectorsPerCluster)

		firstAffected = 2
		lastAffected = firstAffected + affectedClusters - 1
	}

	return SizeCalculation{
		OldTotalSectors:      oldTotalSectors,
		NewTotalSectors:      newTotalSectors,
		OldFATSize:           oldFATSize,
		NewFATSize:           newFATSize,
		NewDataClusters:      newDataClusters,
		FATNeedsGrowth:       fatNeedsGrowth,
		FATGrowthSectors:     fatGrowthSectors,
		FirstAffectedCluster: firstAffected,
		LastAffectedCluster:  lastAffected,
	}, nil
}

// CalculateFATSize computes the number of sectors one FAT copy must occupy
// to index totalSectors sectors, using the Microsoft FAT32 BPB formula. The
// result may be slightly larger than strictly necessary but is never too
// small.
func CalculateFATSize(totalSectors uint32, reservedSectors uint16, numFATs uint8, sectorsPerCluster uint8, bytesPerSector uint16) (uint32, error) {
	if uint64(totalSectors) < uint64(reservedSectors) {
		return 0, errors.ErrCalculation.WithMessage("total sectors is smaller than the reserved area")
	}
	tmp1 := uint64(totalSectors) - uint64(reservedSectors)

	entriesPerSector := uint64(bytesPerSector) / 4
	tmp2 := entriesPerSector*uint64(sectorsPerCluster) + uint64(numFATs)/2
	if tmp2 == 0 {
		return 0, errors.ErrCalculation.WithMessage("FAT size formula denominator is zero")
	}

	fatSize := (tmp1 + tmp2 - 1) / tmp2
	if fatSize > uint64(^uint32(0)) {
		return 0, errors.ErrCalculation.WithMessage("computed FAT size exceeds 32 bits")
	}
	return uint32(fatSize), nil
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}
