package fat32

import "encoding/binary"

// FSInfo signatures and the free/next-free hint offsets.
const (
	fsInfoLeadSig  = 0x41615252
	fsInfoStrucSig = 0x61417272
	fsInfoTrailSig = 0xAA550000

	offFSInfoLeadSig   = 0
	offFSInfoStrucSig  = 484
	offFSInfoFreeCount = 488
	offFSInfoNextFree  = 492
	offFSInfoTrailSig  = 508
)

// UnknownFreeCount is the sentinel value meaning "the free-cluster hint has
// not been computed".
const UnknownFreeCount = 0xFFFFFFFF

// FSInfo wraps the raw bytes of the FSInfo sector.
type FSInfo struct {
	data []byte
}

// NewFSInfo wraps data, which must be exactly one sector, as an FSInfo.
func NewFSInfo(data []byte) *FSInfo {
	return &FSInfo{data: data}
}

// Bytes returns the raw, mutable backing buffer.
func (f *FSInfo) Bytes() []byte {
	return f.data
}

func (f *FSInfo) u32(off int) uint32 { return binary.LittleEndian.Uint32(f.data[off:]) }
func (f *FSInfo) setU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(f.data[off:], v)
}

// LeadSignature returns the signature at offset 0, expected to be 0x41615252.
func (f *FSInfo) LeadSignature() uint32 { return f.u32(offFSInfoLeadSig) }

// StructSignature returns the signature at offset 484, expected to be
// 0x61417272.
func (f *FSInfo) StructSignature() uint32 { return f.u32(offFSInfoStrucSig) }

// TrailSignature returns the signature at offset 508, expected to be
// 0xAA550000.
func (f *FSInfo) TrailSignature() uint32 { return f.u32(offFSInfoTrailSig) }

// FreeCount returns the free-cluster count hint, or UnknownFreeCount if it
// has never been computed.
func (f *FSInfo) FreeCount() uint32 { return f.u32(offFSInfoFreeCount) }

// SetFreeCount sets the free-cluster count hint.
func (f *FSInfo) SetFreeCount(v uint32) { f.setU32(offFSInfoFreeCount, v) }

// NextFree returns the next-free-cluster hint.
func (f *FSInfo) NextFree() uint32 { return f.u32(offFSInfoNextFree) }

// SetNextFree sets the next-free-cluster hint.
func (f *FSInfo) SetNextFree(v uint32) { f.setU32(offFSInfoNextFree, v) }

// SignaturesValid reports whether all three FSInfo signatures are exactly
// the expected constants.
func (f *FSInfo) SignaturesValid() bool {
	return f.LeadSignature() == fsInfoLeadSig &&
		f.StructSignature() == fsInfoStrucSig &&
		f.TrailSignature() == fsInfoTrailSig
}

// AddFreeClusters adds n to the free-cluster hint, saturating at
// ^uint32(0)-1 so the result never collides with UnknownFreeCount, and
// leaving the hint untouched if it was already unknown.
func (f *FSInfo) AddFreeClusters(n uint32) {
	current := f.FreeCount()
	if current == UnknownFreeCount {
		return
	}

	sum := uint64(current) + uint64(n)
	if sum >= UnknownFreeCount {
		sum = UnknownFreeCount - 1
	}
	f.SetFreeCount(uint32(sum))
}
