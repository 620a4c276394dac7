package resize_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/fat32resize/block"
	"github.com/dargueta/fat32resize/fat32"
	"github.com/dargueta/fat32resize/resize"
)

func newRelocatorDevice(t *testing.T, sizeBytes int64) *block.Device {
	t.Helper()
	file, err := os.CreateTemp(t.TempDir(), "fat32resize-relocator")
	require.NoError(t, err)
	require.NoError(t, file.Truncate(sizeBytes))
	require.NoError(t, file.Close())

	dev, err := block.Open(file.Name(), true)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	return dev
}

func buildRelocatorBootSector() *fat32.BootSector {
	data := make([]byte, 512)
	b := fat32.NewBootSector(data)
	b.Bytes()[11], b.Bytes()[12] = 0x00, 0x02 // 512 bytes/sector
	b.Bytes()[13] = 1                         // 1 sector per cluster, for simple math
	b.Bytes()[14], b.Bytes()[15] = 4, 0       // reserved sectors
	b.Bytes()[16] = 1                         // 1 FAT
	b.SetFATSize32(2)
	b.SetTotalSectors32(100)
	b.SetRootCluster(2)
	return b
}

func TestPlanRelocationSkipsFreeClusters(t *testing.T) {
	boot := buildRelocatorBootSector()
	// first data sector = 4 + 1*2 = 6. Clusters 2,3,4 map to sectors 6,7,8.
	fat := make([]uint32, 10)
	fat[2] = fat32.EntryEndOfChain // in use
	fat[3] = fat32.EntryFree       // free, skip
	fat[4] = fat32.EntryEndOfChain // in use

	plan, err := resize.PlanRelocation(boot, fat, 2, 4)
	require.NoError(t, err)

	assert.Len(t, plan.Moves, 2)
	// Highest cluster first.
	assert.EqualValues(t, 4, plan.Moves[0].Cluster)
	assert.EqualValues(t, 2, plan.Moves[1].Cluster)
}

func TestPlanRelocationComputesShiftedSectors(t *testing.T) {
	boot := buildRelocatorBootSector()
	fat := make([]uint32, 10)
	fat[2] = fat32.EntryEndOfChain

	plan, err := resize.PlanRelocation(boot, fat, 2, 2)
	require.NoError(t, err)
	require.Len(t, plan.Moves, 1)

	mv := plan.Moves[0]
	assert.EqualValues(t, 6, mv.FromSector) // first data sector
	assert.EqualValues(t, 7, mv.ToSector)   // shifted by 1 affected cluster * 1 spc
}

func TestPlanRelocationRejectsInvertedRange(t *testing.T) {
	boot := buildRelocatorBootSector()
	_, err := resize.PlanRelocation(boot, make([]uint32, 10), 5, 2)
	assert.Error(t, err)
}

func TestRelocationExecutorMovesData(t *testing.T) {
	boot := buildRelocatorBootSector()
	dev := newRelocatorDevice(t, 512*100)

	pattern := make([]byte, 512)
	for i := range pattern {
		pattern[i] = 0xAB
	}
	require.NoError(t, dev.WriteSector(6, pattern))

	fat := make([]uint32, 10)
	fat[2] = fat32.EntryEndOfChain
	plan, err := resize.PlanRelocation(boot, fat, 2, 2)
	require.NoError(t, err)

	executor := resize.NewRelocationExecutor(dev, boot, plan)
	require.NoError(t, executor.Execute(plan, nil))

	moved, err := dev.ReadSector(7)
	require.NoError(t, err)
	assert.Equal(t, pattern, moved)
	assert.True(t, executor.AllDone(plan))
}

func TestRelocationExecutorSkipsAlreadyDoneMoves(t *testing.T) {
	boot := buildRelocatorBootSector()
	dev := newRelocatorDevice(t, 512*100)

	fat := make([]uint32, 10)
	fat[2] = fat32.EntryEndOfChain
	fat[3] = fat32.EntryEndOfChain
	plan, err := resize.PlanRelocation(boot, fat, 2, 3)
	require.NoError(t, err)
	require.Len(t, plan.Moves, 2)

	executor := resize.NewRelocationExecutor(dev, boot, plan)
	executor.MarkDone(0)
	assert.True(t, executor.IsDone(0))
	assert.False(t, executor.IsDone(1))

	calls := 0
	require.NoError(t, executor.Execute(plan, func(i int, mv resize.ClusterMove) { calls++ }))
	assert.Equal(t, 1, calls)
}

func TestRelocationPlanEmptyAndClusterCount(t *testing.T) {
	plan := resize.RelocationPlan{}
	assert.True(t, plan.IsEmpty())
	assert.Equal(t, 0, plan.ClusterCount())
}
