package tzconvert

import (
	"iter"
	"time"
)

// OffsetRow is one country of the world offset table.
type OffsetRow struct {
	LocalTime      time.Time `json:"local_time"`
	Country        string    `json:"country"`
	Zone           string    `json:"zone"`
	UTCOffsetHours float64   `json:"utc_offset_hours"`
}

// WorldOffsetTable yields one row per country that has a registered zone, in the
// provider's country order. Nothing is cached: each iteration takes a fresh
// instant and recomputes every offset. Countries without a zone are omitted, and
// countries whose zone cannot be loaded are logged and skipped.
func (c *Converter) WorldOffsetTable() iter.Seq[OffsetRow] {
	return func(yield func(OffsetRow) bool) {
		now := c.clock.Now().UTC()
		for _, code := range c.provider.Countries() {
			zone, err := c.ResolveTimezone(code)
			if err != nil {
				continue
			}
			loc, err := c.LoadLocation(zone)
			if err != nil {
				c.logger.Warn("skipping country with unloadable zone", "country", code, "zone", zone, "error", err)
				continue
			}

			m := momentAt(now, zone, loc)
			row := OffsetRow{
				LocalTime:      m.Time,
				Country:        code,
				Zone:           zone,
				UTCOffsetHours: m.OffsetHours(),
			}
			if !yield(row) {
				return
			}
		}
	}
}
