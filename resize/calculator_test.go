package resize_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/fat32resize/errors"
	"github.com/dargueta/fat32resize/fat32"
	"github.com/dargueta/fat32resize/resize"
)

func buildCalcBootSector(totalSectors, fatSize uint32) *fat32.BootSector {
	data := make([]byte, 512)
	b := fat32.NewBootSector(data)
	b.Bytes()[11], b.Bytes()[12] = 0x00, 0x02 // 512 bytes/sector
	b.Bytes()[13] = 8                         // sectors per cluster
	b.Bytes()[14], b.Bytes()[15] = 0x20, 0x00 // reserved sectors = 32
	b.Bytes()[16] = 2                         // num FATs
	b.Bytes()[21] = 0xF8
	b.SetTotalSectors32(totalSectors)
	b.SetFATSize32(fatSize)
	b.SetRootCluster(2)
	b.RestoreSignature()
	return b
}

func TestCalculateFATSizeIsPositiveAndReasonable(t *testing.T) {
	size, err := resize.CalculateFATSize(2_097_152, 32, 2, 8, 512)
	require.NoError(t, err)
	assert.Greater(t, size, uint32(0))
	assert.Less(t, size, uint32(10000))
}

func TestCalculateNewSizeGrowsFAT(t *testing.T) {
	boot := buildCalcBootSector(1_000_000, 1000)

	calc, err := resize.CalculateNewSize(boot, 4_000_000)
	require.NoError(t, err)

	assert.EqualValues(t, 1_000_000, calc.OldTotalSectors)
	assert.EqualValues(t, 4_000_000, calc.NewTotalSectors)
	assert.GreaterOrEqual(t, calc.NewFATSize, calc.OldFATSize)
}

func TestCalculateNewSizeRejectsShrink(t *testing.T) {
	boot := buildCalcBootSector(2_000_000, 2000)

	_, err := resize.CalculateNewSize(boot, 1_000_000)
	assert.True(t, stderrors.Is(err, errors.ErrShrinkNotSupported))
}

func TestCalculateNewSizeRejectsSameSize(t *testing.T) {
	boot := buildCalcBootSector(2_000_000, 2000)

	_, err := resize.CalculateNewSize(boot, 2_000_000)
	assert.True(t, stderrors.Is(err, errors.ErrAlreadyMaxSize))
}

func TestCalculateNewSizeReportsAffectedClustersWhenFATGrows(t *testing.T) {
	boot := buildCalcBootSector(1_000_000, 100)

	calc, err := resize.CalculateNewSize(boot, 8_000_000)
	require.NoError(t, err)
	require.True(t, calc.FATNeedsGrowth)
	assert.EqualValues(t, 2, calc.FirstAffectedCluster)
	assert.GreaterOrEqual(t, calc.LastAffectedCluster, calc.FirstAffectedCluster)
}

func TestCalculateNewSizeNoGrowthWhenFATSizeUnchanged(t *testing.T) {
	boot := buildCalcBootSector(1_000_000, 100_000)

	calc, err := resize.CalculateNewSize(boot, 1_000_001)
	require.NoError(t, err)
	assert.False(t, calc.FATNeedsGrowth)
	assert.EqualValues(t, 0, calc.FirstAffectedCluster)
	assert.EqualValues(t, 0, calc.LastAffectedCluster)
}

func TestAdditionalClustersSaturatesAtZero(t *testing.T) {
	calc := resize.SizeCalculation{NewDataClusters: 100}
	assert.EqualValues(t, 0, calc.AdditionalClusters(200))
	assert.EqualValues(t, 50, calc.AdditionalClusters(50))
}

func TestSizeIncreaseAndNewSizeBytes(t *testing.T) {
	calc := resize.SizeCalculation{OldTotalSectors: 1000, NewTotalSectors: 3000}
	assert.EqualValues(t, 2000*512, calc.SizeIncreaseBytes(512))
	assert.EqualValues(t, 3000*512, calc.NewSizeBytes(512))
}
