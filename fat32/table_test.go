package fat32_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/fat32resize/block"
	"github.com/dargueta/fat32resize/fat32"
)

func newTestDevice(t *testing.T, sizeBytes int64) *block.Device {
	t.Helper()
	file, err := os.CreateTemp(t.TempDir(), "fat32resize-table")
	require.NoError(t, err)
	require.NoError(t, file.Truncate(sizeBytes))
	require.NoError(t, file.Close())

	dev, err := block.Open(file.Name(), true)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	return dev
}

func buildTableBootSector() *fat32.BootSector {
	data := make([]byte, 512)
	b := fat32.NewBootSector(data)
	b.Bytes()[11], b.Bytes()[12] = 0x00, 0x02 // 512 bytes/sector
	b.Bytes()[13] = 1                         // 1 sector/cluster
	b.Bytes()[14], b.Bytes()[15] = 8, 0       // 8 reserved sectors
	b.Bytes()[16] = 2                         // 2 FATs
	b.Bytes()[21] = 0xF8                      // media type
	b.SetFATSize32(4)
	b.SetTotalSectors32(2048)
	b.SetRootCluster(2)
	return b
}

func TestTableReadWriteEntryRoundTrip(t *testing.T) {
	boot := buildTableBootSector()
	dev := newTestDevice(t, 512*2048)
	table := fat32.NewTable(dev, boot)

	require.NoError(t, table.WriteEntry(5, 0x1234))
	got, err := table.ReadEntry(5)
	require.NoError(t, err)
	assert.EqualValues(t, 0x1234, fat32.EntryValue(got))
}

func TestTableWriteEntryPreservesReservedBitsPerCopy(t *testing.T) {
	boot := buildTableBootSector()
	dev := newTestDevice(t, 512*2048)
	table := fat32.NewTable(dev, boot)

	// Seed differing reserved bits in each copy directly.
	off0 := table.CopyOffset(0) + 5*4
	off1 := table.CopyOffset(1) + 5*4
	require.NoError(t, dev.WriteBytesAt(off0, []byte{0x00, 0x00, 0x00, 0xA0}))
	require.NoError(t, dev.WriteBytesAt(off1, []byte{0x00, 0x00, 0x00, 0xB0}))

	require.NoError(t, table.WriteEntry(5, 0x00000007))

	raw0, err := dev.ReadBytesAt(off0, 4)
	require.NoError(t, err)
	raw1, err := dev.ReadBytesAt(off1, 4)
	require.NoError(t, err)

	assert.EqualValues(t, 0xA0, raw0[3])
	assert.EqualValues(t, 0xB0, raw1[3])
}

func TestTableReadAllLength(t *testing.T) {
	boot := buildTableBootSector()
	dev := newTestDevice(t, 512*2048)
	table := fat32.NewTable(dev, boot)

	entries, err := table.ReadAll()
	require.NoError(t, err)
	assert.Len(t, entries, int(boot.FATSize())*512/4)
}

func TestTableInitializeReservedEntries(t *testing.T) {
	boot := buildTableBootSector()
	dev := newTestDevice(t, 512*2048)
	table := fat32.NewTable(dev, boot)

	require.NoError(t, table.InitializeReservedEntries())

	entry0, err := table.ReadEntry(0)
	require.NoError(t, err)
	entry1, err := table.ReadEntry(1)
	require.NoError(t, err)

	assert.EqualValues(t, 0x0FFFFF00|uint32(boot.MediaType()), fat32.EntryValue(entry0))
	assert.True(t, fat32.IsEndOfChainEntry(entry1))
}

func TestTableZeroAndMirrorCopiesPrimaryToOtherFATs(t *testing.T) {
	boot := buildTableBootSector()
	dev := newTestDevice(t, 512*2048)
	table := fat32.NewTable(dev, boot)

	require.NoError(t, table.WriteEntry(3, 0x99))
	require.NoError(t, table.ZeroAndMirror())

	fatSize := int64(boot.FATSize()) * 512
	primary, err := dev.ReadBytesAt(table.CopyOffset(0), int(fatSize))
	require.NoError(t, err)
	secondary, err := dev.ReadBytesAt(table.CopyOffset(1), int(fatSize))
	require.NoError(t, err)

	assert.Equal(t, primary, secondary)
}
