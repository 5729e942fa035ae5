package reconcile

import (
	"github.com/ebbworks/ebbsync/pkg/model"
)

// Partition splits dispositions by pending-mutation conflict. ToApply
// items get a body write plus a metadata write; MetadataOnly items get
// only the metadata write, so an unsynced local edit is never overwritten
// before it has been pushed.
type Partition struct {
	ToApply      []Disposition
	MetadataOnly []Disposition
}

// Guard partitions dispositions using the pending-mutation set. Presence
// of a key in pending is the only signal; the mutation's kind and age do
// not matter here.
func Guard(dispositions []Disposition, pending map[model.Key]model.PendingMutation) Partition {
	part := Partition{ToApply: make([]Disposition, 0, len(dispositions))}

	for _, d := range dispositions {
		if _, conflicted := pending[d.Key()]; conflicted {
			part.MetadataOnly = append(part.MetadataOnly, d)
			continue
		}
		part.ToApply = append(part.ToApply, d)
	}

	return part
}
