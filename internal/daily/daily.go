package daily

import "time"

const dayMs = int64(24 * time.Hour / time.Millisecond)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DayIndex is the number of whole UTC days since the Unix epoch (floor division,
// so instants before 1970 get negative indices).
func DayIndex(t time.Time) int64 {
	ms := t.UnixMilli()
	d := ms / dayMs
	if ms%dayMs < 0 {
		d--
	}
	return d
}

// SelectIndex returns a deterministic playlist index for the UTC day of now:
// (DayIndex(now) + offset) mod n, always in [0, n). Returns 0 when n <= 0.
func SelectIndex(now time.Time, n, offset int) int {
	if n <= 0 {
		return 0
	}
	i := (DayIndex(now) + int64(offset)) % int64(n)
	if i < 0 {
		i += int64(n)
	}
	return int(i)
}

// NextReset returns the next UTC midnight after t.
func NextReset(t time.Time) time.Time {
	return time.UnixMilli((DayIndex(t) + 1) * dayMs).UTC()
}

// UntilReset is the time left until NextReset.
func UntilReset(t time.Time) time.Duration {
	return NextReset(t).Sub(t)
}
