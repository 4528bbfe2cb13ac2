package domain

import (
	"sort"
	"time"

	"github.com/smallbiznis/shelterbill/pkg/dates"
)

// FindOverlap returns the first version whose interval intersects [from, to].
func FindOverlap(versions []ActionVersion, from time.Time, to *time.Time) *ActionVersion {
	for i := range versions {
		if versions[i].Overlaps(from, to) {
			return &versions[i]
		}
	}
	return nil
}

// ResolveOn picks the version covering day from versions sorted by ValidFrom.
// Non-overlapping intervals make the answer unique.
func ResolveOn(sorted []ActionVersion, day time.Time) *ActionVersion {
	day = dates.Of(day)
	idx := sort.Search(len(sorted), func(i int) bool {
		return dates.Of(sorted[i].ValidFrom).After(day)
	}) - 1
	if idx < 0 {
		return nil
	}
	if !sorted[idx].Covers(day) {
		return nil
	}
	return &sorted[idx]
}

// OpenVersion returns the open-ended version, if any.
func OpenVersion(versions []ActionVersion) *ActionVersion {
	for i := range versions {
		if versions[i].IsOpen() {
			return &versions[i]
		}
	}
	return nil
}

// SortVersions orders versions by ValidFrom ascending.
func SortVersions(versions []ActionVersion) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].ValidFrom.Before(versions[j].ValidFrom)
	})
}
