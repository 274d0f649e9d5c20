package utils

import "time"

// DeltaTimer measures the time between successive calls to Next
type DeltaTimer struct {
	last time.Time
}

func (d *DeltaTimer) Next() time.Duration {
	// one timestamp per call so errors don't accumulate
	now := time.Now()
	defer d.Set(now)
	if d.last.IsZero() {
		return 0
	}
	return now.Sub(d.last)
}

func (d *DeltaTimer) Set(t time.Time) {
	d.last = t
}

func (d *DeltaTimer) Reset() {
	d.last = time.Time{}
}
