package resize

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/dargueta/fat32resize/errors"
)

// Phase identifies where in the three-stage resize protocol a checkpoint
// was written, telling a resumed run where to restart.
type Phase uint8

const (
	// PhaseStarted is written before the data shift begins.
	PhaseStarted Phase = 0
	// PhaseDataCopied is written once the data shift has completed.
	PhaseDataCopied Phase = 1
	// PhaseFatWritten is written once the new-sized FAT has been mirrored
	// to every copy, while the boot signature is still invalidated; the
	// signature is restored in the step that follows.
	PhaseFatWritten Phase = 2
)

const (
	checkpointMagic   = "FAT32RSZ"
	checkpointVersion = 1

	// checkpointRecordSize is the number of bytes covered by the CRC, i.e.
	// everything except the trailing CRC field itself.
	checkpointRecordSize = 28
	// CheckpointSize is the total on-disk size of a checkpoint record.
	CheckpointSize = 32
)

// Checkpoint is the crash-recovery record written to the last sector of the
// device while a resize is in flight.
type Checkpoint struct {
	Phase           Phase
	OldTotalSectors uint32
	NewTotalSectors uint32
	OldFATSize      uint32
	NewFATSize      uint32
}

// ToBytes serializes the checkpoint into a sectorSize-byte buffer, zero
// padded beyond the 32-byte record, with a CRC32 (IEEE polynomial) computed
// over the first 28 bytes.
func (c Checkpoint) ToBytes(sectorSize uint32) []byte {
	buf := make([]byte, sectorSize)
	copy(buf[0:8], checkpointMagic)
	buf[8] = checkpointVersion
	buf[9] = byte(c.Phase)
	// bytes 10-11 are padding, left zero.
	binary.LittleEndian.PutUint32(buf[12:16], c.OldTotalSectors)
	binary.LittleEndian.PutUint32(buf[16:20], c.NewTotalSectors)
	binary.LittleEndian.PutUint32(buf[20:24], c.OldFATSize)
	binary.LittleEndian.PutUint32(buf[24:28], c.NewFATSize)

	sum := crc32.ChecksumIEEE(buf[:checkpointRecordSize])
	binary.LittleEndian.PutUint32(buf[28:32], sum)
	return buf
}

// CheckpointFromBytes parses a checkpoint out of buf. It returns (nil, nil)
// if buf is too short, the magic doesn't match, or the version doesn't
// match — all three mean "no checkpoint present", not corruption, so a
// forward-incompatible record is silently ignored rather than rejected. It
// returns ErrCheckpointCorrupted if the magic and version match but the CRC
// does not.
func CheckpointFromBytes(buf []byte) (*Checkpoint, error) {
	if len(buf) < CheckpointSize {
		return nil, nil
	}
	if string(buf[0:8]) != checkpointMagic {
		return nil, nil
	}
	if buf[8] != checkpointVersion {
		return nil, nil
	}

	wantSum := crc32.ChecksumIEEE(buf[:checkpointRecordSize])
	gotSum := binary.LittleEndian.Uint32(buf[28:32])
	if wantSum != gotSum {
		return nil, errors.ErrCheckpointCorrupted
	}

	return &Checkpoint{
		Phase:           Phase(buf[9]),
		OldTotalSectors: binary.LittleEndian.Uint32(buf[12:16]),
		NewTotalSectors: binary.LittleEndian.Uint32(buf[16:20]),
		OldFATSize:      binary.LittleEndian.Uint32(buf[20:24]),
		NewFATSize:      binary.LittleEndian.Uint32(buf[24:28]),
	}, nil
}
