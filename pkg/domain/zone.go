package domain

// Zone is an integer bucket identifier assigned to a coordinate by the
// geo partition (pkg/geo). ZoneUnmapped is the sentinel for out-of-range
// coordinates.
type Zone int

// ZoneUnmapped is returned for coordinates outside the mapped operating
// region; such tasks are treated as singleton-only seeds by Phase 1.
const ZoneUnmapped Zone = -1
