package resize

import (
	"fmt"

	"github.com/dargueta/fat32resize/block"
	"github.com/dargueta/fat32resize/errors"
	"github.com/dargueta/fat32resize/fat32"
)

const maxSectorSize = 4096

// Options configures a single resize run.
type Options struct {
	// DevicePath is the file or block device to resize.
	DevicePath string
	// DryRun performs every read and calculation but no writes.
	DryRun bool
	// Verbose asks the orchestrator to log the detail of each cluster move,
	// not just a summary.
	Verbose bool
	// Force suppresses the backup-boot-sector-mismatch abort.
	Force bool
}

// Result reports what a run did or, for a dry run, would have done.
type Result struct {
	OldSizeBytes      uint64
	NewSizeBytes      uint64
	FATGrew           bool
	ClustersRelocated int
	Calculation       SizeCalculation
	// Operations is an ordered, human-readable log of what happened, used by
	// the CLI for reporting.
	Operations []string
}

// Run drives a device through the full resize protocol: read and validate
// the boot sector, consult any in-progress checkpoint, run (or resume) the
// phased data-shift/FAT-growth sequence, and persist the new geometry. It
// returns a Result describing what happened whether or not DryRun was set.
func Run(opts Options) (*Result, error) {
	dev, err := block.Open(opts.DevicePath, !opts.DryRun)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	result := &Result{}
	log := func(format string, args ...interface{}) {
		result.Operations = append(result.Operations, fmt.Sprintf(format, args...))
	}

	rawBoot, err := dev.ReadBytesAt(0, maxSectorSize)
	if err != nil {
		return nil, err
	}

	bootSignatureProbe := fat32.NewBootSector(rawBoot[:512])
	sectorSize := bootSignatureProbe.BytesPerSector()
	if !sectorSizeSupported(sectorSize) {
		return nil, errors.ErrUnsupportedSectorSize.WithMessage(
			fmt.Sprintf("device reports %d bytes per sector", sectorSize))
	}
	dev.SetSectorSize(uint32(sectorSize))

	boot := fat32.NewBootSector(rawBoot[:sectorSize])
	signatureValid := boot.IsSignatureValid()

	checkpoint, err := readCheckpoint(dev)
	if err != nil {
		return nil, err
	}

	if !signatureValid && checkpoint == nil {
		return nil, errors.ErrInvalidatedFilesystem
	}

	if err := fat32.ValidateBootSector(boot, checkpoint != nil); err != nil {
		return nil, err
	}

	if checkpoint != nil && dev.TotalSectors() < uint64(checkpoint.NewTotalSectors) {
		return nil, errors.ErrResizeSizeMismatch
	}

	var calc SizeCalculation
	var phase Phase
	if checkpoint != nil {
		calc = calculationFromCheckpoint(boot, *checkpoint)
		phase = checkpoint.Phase
		log("resuming interrupted resize at phase %d", phase)
	} else {
		calc, err = CalculateNewSize(boot, dev.TotalSectors())
		if err != nil {
			return nil, err
		}
		phase = PhaseStarted

		if !opts.Force {
			backup, err := dev.ReadSector(uint64(boot.BackupBootSector()))
			if err == nil && !fat32.BootSectorsMatch(boot, fat32.NewBootSector(backup)) {
				return nil, errors.ErrBackupMismatch
			}
		}
	}

	result.OldSizeBytes = calc.OldSizeBytes(sectorSize)
	result.NewSizeBytes = calc.NewSizeBytes(sectorSize)
	result.FATGrew = calc.FATNeedsGrowth
	result.Calculation = calc

	write := dev.Writable() && !opts.DryRun
	if opts.DryRun {
		log("dry run: no changes will be made")
	}

	oldDataClusters := oldDataClusterCount(boot, calc)

	if phase == PhaseStarted {
		if write {
			if err := writeCheckpoint(dev, Checkpoint{
				Phase:           PhaseStarted,
				OldTotalSectors: calc.OldTotalSectors,
				NewTotalSectors: calc.NewTotalSectors,
				OldFATSize:      calc.OldFATSize,
				NewFATSize:      calc.NewFATSize,
			}); err != nil {
				return nil, err
			}
		}
		log("checkpoint: started")
		crashAt("started")

		if calc.FATNeedsGrowth {
			table := fat32.NewTable(dev, boot)
			fat, err := table.ReadAll()
			if err != nil {
				return nil, err
			}

			plan, err := PlanRelocation(boot, fat, calc.FirstAffectedCluster, calc.LastAffectedCluster)
			if err != nil {
				return nil, err
			}
			result.ClustersRelocated = plan.ClusterCount()
			log("relocation plan: %d cluster(s) to move", plan.ClusterCount())

			if write && !plan.IsEmpty() {
				executor := NewRelocationExecutor(dev, boot, plan)
				var onProgress func(int, ClusterMove)
				if opts.Verbose {
					onProgress = func(i int, mv ClusterMove) {
						log("moved cluster %d: sector %d -> %d", mv.Cluster, mv.FromSector, mv.ToSector)
					}
				}
				if err := executor.Execute(plan, onProgress); err != nil {
					return nil, err
				}
			}
		} else {
			log("FAT tables do not need to grow; no relocation required")
		}

		if write {
			if err := writeCheckpoint(dev, Checkpoint{
				Phase:           PhaseDataCopied,
				OldTotalSectors: calc.OldTotalSectors,
				NewTotalSectors: calc.NewTotalSectors,
				OldFATSize:      calc.OldFATSize,
				NewFATSize:      calc.NewFATSize,
			}); err != nil {
				return nil, err
			}
		}
		log("checkpoint: data copied")
		phase = PhaseDataCopied
		crashAt("data-copied")
	}

	if phase == PhaseDataCopied {
		if write {
			boot.InvalidateSignature()
			if err := dev.WriteSector(0, boot.Bytes()); err != nil {
				return nil, err
			}
			if err := dev.Sync(); err != nil {
				return nil, err
			}
			log("invalidated boot signature")

			growingBoot := boot.Clone()
			growingBoot.SetFATSize32(calc.NewFATSize)
			table := fat32.NewTable(dev, growingBoot)

			if err := table.ZeroAppendedRegion(calc.OldFATSize); err != nil {
				return nil, err
			}
			if err := table.ZeroAndMirror(); err != nil {
				return nil, err
			}
			log("grew and mirrored FAT tables to %d sectors each", calc.NewFATSize)

			if err := writeCheckpoint(dev, Checkpoint{
				Phase:           PhaseFatWritten,
				OldTotalSectors: calc.OldTotalSectors,
				NewTotalSectors: calc.NewTotalSectors,
				OldFATSize:      calc.OldFATSize,
				NewFATSize:      calc.NewFATSize,
			}); err != nil {
				return nil, err
			}
			log("checkpoint: FAT written")
		}
		phase = PhaseFatWritten
		crashAt("fat-written")
	}

	if phase == PhaseFatWritten {
		if write {
			boot.SetTotalSectors32(calc.NewTotalSectors)
			boot.SetFATSize32(calc.NewFATSize)
			boot.RestoreSignature()

			if err := dev.WriteSector(0, boot.Bytes()); err != nil {
				return nil, err
			}
			if err := dev.WriteSector(uint64(boot.BackupBootSector()), boot.Bytes()); err != nil {
				return nil, err
			}
			log("updated primary and backup boot sectors")

			fsinfoData, err := dev.ReadSector(uint64(boot.FSInfoSector()))
			if err != nil {
				return nil, err
			}
			fsinfo := fat32.NewFSInfo(fsinfoData)
			fsinfo.AddFreeClusters(calc.NewDataClusters - oldDataClusters)
			if err := dev.WriteSector(uint64(boot.FSInfoSector()), fsinfo.Bytes()); err != nil {
				return nil, err
			}
			log("updated FSInfo free-cluster hint")

			if err := clearCheckpoint(dev); err != nil {
				return nil, err
			}
			if err := dev.Sync(); err != nil {
				return nil, err
			}
			log("cleared checkpoint; resize complete")
		} else {
			log("would update boot sector, FSInfo, and clear the checkpoint")
		}
	}

	return result, nil
}

// SizeIncreaseBytes and NewSizeBytes already exist on SizeCalculation;
// OldSizeBytes is the missing complement used only by the orchestrator's
// reporting.
func (c SizeCalculation) OldSizeBytes(bytesPerSector uint16) uint64 {
	return uint64(c.OldTotalSectors) * uint64(bytesPerSector)
}

func oldDataClusterCount(boot *fat32.BootSector, calc SizeCalculation) uint32 {
	oldDataSectors := calc.OldTotalSectors - uint32(boot.ReservedSectors()) - uint32(boot.NumFATs())*calc.OldFATSize
	return oldDataSectors / uint32(boot.SectorsPerCluster())
}

// calculationFromCheckpoint rebuilds a SizeCalculation purely from a
// checkpoint's persisted fields rather than re-deriving it from the live
// boot sector, since a resumed phase-2 run may have already partially
// persisted the new geometry to disk.
func calculationFromCheckpoint(boot *fat32.BootSector, cp Checkpoint) SizeCalculation {
	reserved := uint32(boot.ReservedSectors())
	numFATs := uint32(boot.NumFATs())
	spc := uint32(boot.SectorsPerCluster())

	newDataSectors := cp.NewTotalSectors - reserved - numFATs*cp.NewFATSize
	newDataClusters := newDataSectors / spc

	fatNeedsGrowth := cp.NewFATSize > cp.OldFATSize
	var growthSectors, firstAffected, lastAffected uint32
	if fatNeedsGrowth {
		growthSectors = cp.NewFATSize - cp.OldFATSize
		totalGrowth := growthSectors * numFATs
		affectedClusters := ceilDiv(totalGrowth, spc)
		firstAffected = 2
		lastAffected = firstAffected + affectedClusters - 1
	}

	return SizeCalculation{
		OldTotalSectors:      cp.OldTotalSectors,
		NewTotalSectors:      cp.NewTotalSectors,
		OldFATSize:           cp.OldFATSize,
		NewFATSize:           cp.NewFATSize,
		NewDataClusters:      newDataClusters,
		FATNeedsGrowth:       fatNeedsGrowth,
		FATGrowthSectors:     growthSectors,
		FirstAffectedCluster: firstAffected,
		LastAffectedCluster:  lastAffected,
	}
}

func readCheckpoint(dev *block.Device) (*Checkpoint, error) {
	if dev.TotalSectors() == 0 {
		return nil, nil
	}
	data, err := dev.ReadSector(dev.TotalSectors() - 1)
	if err != nil {
		return nil, err
	}
	return CheckpointFromBytes(data)
}

func writeCheckpoint(dev *block.Device, cp Checkpoint) error {
	buf := cp.ToBytes(dev.SectorSize())
	if err := dev.WriteSector(dev.TotalSectors()-1, buf); err != nil {
		return err
	}
	return dev.Sync()
}

func clearCheckpoint(dev *block.Device) error {
	zeros := make([]byte, dev.SectorSize())
	return dev.WriteSector(dev.TotalSectors()-1, zeros)
}

func sectorSizeSupported(size uint16) bool {
	for _, v := range fat32.ValidSectorSizes {
		if v == size {
			return true
		}
	}
	return false
}
