package reconcile

import (
	"github.com/ebbworks/ebbsync/pkg/model"
)

// Op is the decided body action for one remote model.
type Op int

// Disposition operations.
const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Disposition pairs a remote model with the operation resolved for it.
// A disposition exists only when the remote version is newer than the
// local metadata, or no local metadata exists.
type Disposition struct {
	Op     Op
	Remote model.RemoteModel
}

// Key returns the disposition's model key.
func (d Disposition) Key() model.Key {
	return d.Remote.Key()
}

// Resolution is the resolver's output: dispositions in batch order plus
// the keys dropped as stale.
type Resolution struct {
	Dispositions []Disposition
	Stale        []model.Key
}

// Resolve decides what to do with each remote model given the last known
// local sync metadata. Remote tombstones resolve to deletes, models with
// no local metadata to creates, newer versions to updates, and anything
// at or below the local version drops as stale. Later duplicates within
// the batch are measured against the highest version already resolved so
// a key never gets two dispositions at the same version.
func Resolve(batch []model.RemoteModel, local map[model.Key]model.Metadata) Resolution {
	res := Resolution{Dispositions: make([]Disposition, 0, len(batch))}
	resolved := make(map[model.Key]int64, len(batch))

	for _, remote := range batch {
		key := remote.Key()

		known, haveLocal := local[key]
		if v, ok := resolved[key]; ok && (!haveLocal || v > known.Version) {
			known = model.Metadata{Version: v}
			haveLocal = true
		}

		if haveLocal && remote.Metadata.Version <= known.Version {
			res.Stale = append(res.Stale, key)
			continue
		}

		op := OpCreate
		switch {
		case remote.Metadata.Deleted:
			op = OpDelete
		case haveLocal:
			op = OpUpdate
		}

		res.Dispositions = append(res.Dispositions, Disposition{Op: op, Remote: remote})
		resolved[key] = remote.Metadata.Version
	}

	return res
}
