package ps

import (
	"sync"

	"github.com/nickyhof/CommitDB/model"
)

// typeIndex is a secondary index over one commit's instances, keyed by
// class id, so Store.ListInstancesForBranch/FindByTypeInBranch do not
// linear-scan every instance in the commit on every call. It is keyed
// by commit hash rather than persisted as its own git blob: a commit is
// immutable and content-addressed, so an in-memory cache keyed by hash
// never needs invalidation, only eviction.
type typeIndex struct {
	mu     sync.RWMutex
	byHash map[string]map[string][]int // commit hash -> class id -> indices into CommitData.Instances
}

func newTypeIndex() *typeIndex {
	return &typeIndex{byHash: make(map[string]map[string][]int)}
}

// forCommit returns the class-id index for hash, building it from data
// on first use and caching the result.
func (ti *typeIndex) forCommit(hash string, data *model.CommitData) map[string][]int {
	ti.mu.RLock()
	idx, ok := ti.byHash[hash]
	ti.mu.RUnlock()
	if ok {
		return idx
	}

	idx = make(map[string][]int, len(data.Schema.Classes))
	for i, inst := range data.Instances {
		idx[inst.ClassId] = append(idx[inst.ClassId], i)
	}

	ti.mu.Lock()
	ti.byHash[hash] = idx
	ti.mu.Unlock()
	return idx
}

// byClass returns the instances of classID in data, in their original
// order, using the cached index instead of a full scan.
func (ti *typeIndex) byClass(hash, classID string, data *model.CommitData) []model.Instance {
	idx := ti.forCommit(hash, data)
	positions := idx[classID]
	if len(positions) == 0 {
		return nil
	}
	out := make([]model.Instance, 0, len(positions))
	for _, pos := range positions {
		out = append(out, data.Instances[pos])
	}
	return out
}
