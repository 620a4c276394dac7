package fat32_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dargueta/fat32resize/fat32"
)

func buildValidFSInfo() *fat32.FSInfo {
	data := make([]byte, 512)
	f := fat32.NewFSInfo(data)
	f.SetFreeCount(100)
	f.SetNextFree(10)

	// Signatures aren't exposed via setters since a well-formed FSInfo
	// always carries the fixed constants; write them directly like a
	// formatter would.
	raw := f.Bytes()
	raw[0], raw[1], raw[2], raw[3] = 0x52, 0x52, 0x61, 0x41
	raw[484], raw[485], raw[486], raw[487] = 0x72, 0x72, 0x41, 0x61
	raw[508], raw[509], raw[510], raw[511] = 0x00, 0x00, 0x55, 0xAA
	return f
}

func TestFSInfoSignaturesValid(t *testing.T) {
	f := buildValidFSInfo()
	assert.True(t, f.SignaturesValid())
}

func TestFSInfoSignaturesInvalidWhenZeroed(t *testing.T) {
	f := fat32.NewFSInfo(make([]byte, 512))
	assert.False(t, f.SignaturesValid())
}

func TestFSInfoFreeCountRoundTrip(t *testing.T) {
	f := buildValidFSInfo()
	assert.EqualValues(t, 100, f.FreeCount())
	assert.EqualValues(t, 10, f.NextFree())
}

func TestFSInfoAddFreeClustersLeavesUnknownAlone(t *testing.T) {
	f := buildValidFSInfo()
	f.SetFreeCount(fat32.UnknownFreeCount)
	f.AddFreeClusters(5)
	assert.EqualValues(t, fat32.UnknownFreeCount, f.FreeCount())
}

func TestFSInfoAddFreeClustersSaturates(t *testing.T) {
	f := buildValidFSInfo()
	f.SetFreeCount(fat32.UnknownFreeCount - 1)
	f.AddFreeClusters(10)
	assert.EqualValues(t, fat32.UnknownFreeCount-1, f.FreeCount())
}

func TestFSInfoAddFreeClustersNormalCase(t *testing.T) {
	f := buildValidFSInfo()
	f.SetFreeCount(100)
	f.AddFreeClusters(50)
	assert.EqualValues(t, 150, f.FreeCount())
}
