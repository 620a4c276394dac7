package resize

import (
	"sort"

	"github.com/boljen/go-bitmap"

	"github.com/dargueta/fat32resize/block"
	"github.com/dargueta/fat32resize/errors"
	"github.com/dargueta/fat32resize/fat32"
)

// ClusterMove describes one cluster's physical relocation. The cluster
// number never changes; only its backing sector range does, since FAT
// growth shifts the whole data area forward without renumbering anything.
type ClusterMove struct {
	Cluster    uint32
	FromSector uint64
	ToSector   uint64
}

// RelocationPlan is the ordered list of cluster moves a growth operation
// must perform, highest cluster number first, before the FAT tables are
// rewritten to their new size.
type RelocationPlan struct {
	Moves              []ClusterMove
	TotalBytes         uint64
	OldFirstDataSector uint64
	NewFirstDataSector uint64
}

// IsEmpty reports whether the plan has no work to do.
func (p RelocationPlan) IsEmpty() bool {
	return len(p.Moves) == 0
}

// ClusterCount returns the number of clusters the plan will move.
func (p RelocationPlan) ClusterCount() int {
	return len(p.Moves)
}

// PlanRelocation lists every in-use cluster from firstAffected up to the end
// of the old data area, since growing the FAT tables shifts the whole data
// area forward, not only the clusters under the region the expanded FATs
// will claim. Free clusters need no data preserved and are skipped. The
// returned plan is sorted from highest cluster number to lowest so
// executing it never overwrites a cluster that hasn't been read yet.
func PlanRelocation(boot *fat32.BootSector, fat []uint32, firstAffected, lastAffected uint32) (RelocationPlan, error) {
	if lastAffected < firstAffected {
		return RelocationPlan{}, errors.ErrRelocation.WithMessage("affected cluster range is inverted")
	}

	oldFirstDataSector := boot.FirstDataSector()
	sectorsPerCluster := uint64(boot.SectorsPerCluster())

	affectedClusters := uint64(lastAffected-firstAffected) + 1
	shiftSectors := affectedClusters * sectorsPerCluster
	newFirstDataSector := oldFirstDataSector + shiftSectors

	oldMaxCluster := boot.DataClusters() + 2

	var moves []ClusterMove
	for cluster := firstAffected; cluster < oldMaxCluster; cluster++ {
		if cluster >= uint32(len(fat)) {
			break
		}
		if fat32.IsFreeEntry(fat[cluster]) {
			continue
		}

		oldSector := oldFirstDataSector + uint64(cluster-2)*sectorsPerCluster
		newSector := newFirstDataSector + uint64(cluster-2)*sectorsPerCluster
		if oldSector == newSector {
			continue
		}

		moves = append(moves, ClusterMove{
			Cluster:    cluster,
			FromSector: oldSector,
			ToSector:   newSector,
		})
	}

	sort.Slice(moves, func(i, j int) bool {
		return moves[i].Cluster > moves[j].Cluster
	})

	return RelocationPlan{
		Moves:              moves,
		TotalBytes:         uint64(len(moves)) * uint64(boot.BytesPerCluster()),
		OldFirstDataSector: oldFirstDataSector,
		NewFirstDataSector: newFirstDataSector,
	}, nil
}

// RelocationExecutor runs a RelocationPlan against a device, tracking which
// clusters have already been copied in an in-memory bitmap keyed by plan
// index. Calling Execute again on the same executor skips the moves it has
// already completed. The bitmap is not persisted: a run resumed after a
// crash builds a fresh executor and replays the whole plan.
type RelocationExecutor struct {
	dev  *block.Device
	boot *fat32.BootSector
	done bitmap.Bitmap
}

// NewRelocationExecutor returns an executor for plan against dev.
func NewRelocationExecutor(dev *block.Device, boot *fat32.BootSector, plan RelocationPlan) *RelocationExecutor {
	return &RelocationExecutor{
		dev:  dev,
		boot: boot,
		done: bitmap.New(len(plan.Moves)),
	}
}

// MarkDone records that the move at index i has already completed, so
// Execute skips it.
func (e *RelocationExecutor) MarkDone(i int) {
	e.done.Set(i, true)
}

// IsDone reports whether the move at index i has already completed.
func (e *RelocationExecutor) IsDone(i int) bool {
	return e.done.Get(i)
}

// Execute copies every not-yet-done move's cluster data from its old sector
// to its new sector, in the plan's highest-to-lowest order, calling
// onProgress after each move (which may be nil). It syncs the device once
// after all data is copied, matching the crash-safety boundary between
// checkpoint phases 0 and 1.
func (e *RelocationExecutor) Execute(plan RelocationPlan, onProgress func(index int, mv ClusterMove)) error {
	sectorsPerCluster := uint32(e.boot.SectorsPerCluster())

	for i, mv := range plan.Moves {
		if e.IsDone(i) {
			continue
		}

		data, err := e.dev.ReadSectors(mv.FromSector, sectorsPerCluster)
		if err != nil {
			return errors.ErrRelocation.Wrap(err)
		}
		if err := e.dev.WriteSectors(mv.ToSector, data); err != nil {
			return errors.ErrRelocation.Wrap(err)
		}

		e.MarkDone(i)
		if onProgress != nil {
			onProgress(i, mv)
		}
	}

	if err := e.dev.Sync(); err != nil {
		return errors.ErrRelocation.Wrap(err)
	}
	return nil
}

// AllDone reports whether every move in a plan of the executor's size has
// completed.
func (e *RelocationExecutor) AllDone(plan RelocationPlan) bool {
	for i := range plan.Moves {
		if !e.IsDone(i) {
			return false
		}
	}
	return true
}
