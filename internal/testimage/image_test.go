package testimage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/fat32resize/fat32"
	"github.com/dargueta/fat32resize/internal/testimage"
)

func TestBuildProducesValidBootSector(t *testing.T) {
	p := testimage.DefaultParams()
	data := testimage.Build(p)

	require.Len(t, data, int(p.TotalSectors)*int(p.SectorSize))

	boot := fat32.NewBootSector(data[0:p.SectorSize])
	require.NoError(t, fat32.ValidateBootSector(boot, false))
	assert.True(t, boot.IsSignatureValid())
	assert.EqualValues(t, p.TotalSectors, boot.TotalSectors32())
}

func TestBuildProducesMatchingBackup(t *testing.T) {
	p := testimage.DefaultParams()
	data := testimage.Build(p)

	boot := fat32.NewBootSector(data[0:p.SectorSize])
	backupOffset := int64(p.BackupBootSector) * int64(p.SectorSize)
	backup := fat32.NewBootSector(data[backupOffset : backupOffset+int64(p.SectorSize)])

	assert.True(t, fat32.BootSectorsMatch(boot, backup))
}

func TestBuildProducesValidFSInfo(t *testing.T) {
	p := testimage.DefaultParams()
	data := testimage.Build(p)

	fsinfoOffset := int64(p.FSInfoSector) * int64(p.SectorSize)
	fsinfo := fat32.NewFSInfo(data[fsinfoOffset : fsinfoOffset+int64(p.SectorSize)])
	assert.NoError(t, fat32.ValidateFSInfo(fsinfo))
}

func TestBuildDeviceRoundTripsThroughStore(t *testing.T) {
	p := testimage.DefaultParams()
	dev, data := testimage.BuildDevice(p)

	got, err := dev.ReadSector(0)
	require.NoError(t, err)
	assert.Equal(t, data[0:p.SectorSize], got)
}

func TestBuildMarksUsedClustersEndOfChain(t *testing.T) {
	p := testimage.DefaultParams()
	p.UsedClusters = []uint32{5, 6}
	dev, _ := testimage.BuildDevice(p)

	bootData, err := dev.ReadSector(0)
	require.NoError(t, err)
	boot := fat32.NewBootSector(bootData)
	table := fat32.NewTable(dev, boot)

	e5, err := table.ReadEntry(5)
	require.NoError(t, err)
	assert.True(t, fat32.IsEndOfChainEntry(e5))

	e4, err := table.ReadEntry(4)
	require.NoError(t, err)
	assert.True(t, fat32.IsFreeEntry(e4))
}
