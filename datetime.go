package ics

import (
	"fmt"
	"sync"
	"time"
)

// CalDateTime is an iCalendar DATE or DATE-TIME value. The wall clock fields
// are kept as written; the value is exactly one of floating (no zone), UTC or
// zoned (TZID). A value without time of day is a whole-day span.
type CalDateTime struct {
	wall    time.Time
	tzid    string
	utc     bool
	hasTime bool
}

func wallClock(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

// NewDate returns a date-only value.
func NewDate(year int, month time.Month, day int) CalDateTime {
	return CalDateTime{wall: wallClock(year, month, day, 0, 0, 0)}
}

// NewDateTime returns a floating date-time.
func NewDateTime(year int, month time.Month, day, hour, min, sec int) CalDateTime {
	return CalDateTime{wall: wallClock(year, month, day, hour, min, sec), hasTime: true}
}

func NewUTCDateTime(year int, month time.Month, day, hour, min, sec int) CalDateTime {
	return CalDateTime{wall: wallClock(year, month, day, hour, min, sec), hasTime: true, utc: true}
}

func NewZonedDateTime(tzid string, year int, month time.Month, day, hour, min, sec int) CalDateTime {
	return CalDateTime{wall: wallClock(year, month, day, hour, min, sec), hasTime: true, tzid: tzid}
}

// CalDateTimeFromTime converts t. UTC times become UTC values, time.Local
// becomes floating and any other location becomes zoned with its name as TZID.
func CalDateTimeFromTime(t time.Time) CalDateTime {
	d := CalDateTime{
		wall:    wallClock(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second()),
		hasTime: true,
	}
	switch loc := t.Location(); loc {
	case time.UTC:
		d.utc = true
	case time.Local:
	default:
		d.tzid = loc.String()
	}
	return d
}

func (d CalDateTime) IsZero() bool {
	return d.wall.IsZero()
}

func (d CalDateTime) HasTime() bool {
	return d.hasTime
}

func (d CalDateTime) IsUTC() bool {
	return d.utc
}

func (d CalDateTime) IsFloating() bool {
	return !d.utc && d.tzid == ""
}

func (d CalDateTime) TZID() string {
	return d.tzid
}

// Wall returns the wall clock fields in a UTC location.
func (d CalDateTime) Wall() time.Time {
	return d.wall
}

func (d CalDateTime) Year() int         { return d.wall.Year() }
func (d CalDateTime) Month() time.Month { return d.wall.Month() }
func (d CalDateTime) Day() int          { return d.wall.Day() }
func (d CalDateTime) Hour() int         { return d.wall.Hour() }
func (d CalDateTime) Minute() int       { return d.wall.Minute() }
func (d CalDateTime) Second() int       { return d.wall.Second() }

func (d CalDateTime) Weekday() time.Weekday {
	return d.wall.Weekday()
}

// DateOnly drops the time of day. The zone is dropped too since a DATE has
// none.
func (d CalDateTime) DateOnly() CalDateTime {
	return NewDate(d.wall.Year(), d.wall.Month(), d.wall.Day())
}

// withWall returns a value of the same kind as d with other wall fields.
func (d CalDateTime) withWall(wall time.Time) CalDateTime {
	d.wall = wall
	if !d.hasTime {
		d.wall = wallClock(wall.Year(), wall.Month(), wall.Day(), 0, 0, 0)
	}
	return d
}

func (d CalDateTime) AddDate(years, months, days int) CalDateTime {
	return d.withWall(d.wall.AddDate(years, months, days))
}

// Add moves the wall clock, so a day is always 24 hours in the value's zone.
func (d CalDateTime) Add(dur time.Duration) CalDateTime {
	d.wall = d.wall.Add(dur)
	return d
}

// Sub returns the wall clock difference d-o. Both should share a zone.
func (d CalDateTime) Sub(o CalDateTime) time.Duration {
	return d.wall.Sub(o.wall)
}

func (d CalDateTime) zoneKey() string {
	if d.utc {
		return "UTC"
	}
	return d.tzid
}

// Instant converts the value to an absolute time. A nil resolver uses
// DefaultResolver.
func (d CalDateTime) Instant(r TimeZoneResolver) (time.Time, error) {
	if d.utc {
		return d.wall, nil
	}
	if r == nil {
		r = DefaultResolver
	}
	return r.ToUTC(d.tzid, d.wall)
}

// In converts d into the zone kind of ref: UTC, the same TZID, or floating.
// Date-only values stay dates.
func (d CalDateTime) In(ref CalDateTime, r TimeZoneResolver) (CalDateTime, error) {
	if !d.hasTime || d.zoneKey() == ref.zoneKey() && d.utc == ref.utc {
		return d, nil
	}
	instant, err := d.Instant(r)
	if err != nil {
		return d, err
	}
	out := CalDateTime{hasTime: true, utc: ref.utc, tzid: ref.tzid}
	if ref.utc {
		out.wall = instant
		return out, nil
	}
	if r == nil {
		r = DefaultResolver
	}
	out.wall, err = r.FromUTC(ref.tzid, instant)
	return out, err
}

// Compare orders d and o. Floating pairs compare their wall clocks, anything
// else is compared in UTC. A date-only operand is compared as its day.
func (d CalDateTime) Compare(o CalDateTime, r TimeZoneResolver) (int, error) {
	if !d.hasTime || !o.hasTime {
		a, b := d.wall, o.wall
		if d.hasTime {
			w, err := d.In(CalDateTime{tzid: o.tzid, utc: o.utc}, r)
			if err != nil {
				return 0, err
			}
			a = w.wall
		}
		if o.hasTime {
			w, err := o.In(CalDateTime{tzid: d.tzid, utc: d.utc}, r)
			if err != nil {
				return 0, err
			}
			b = w.wall
		}
		return compareTime(truncateDay(a), truncateDay(b)), nil
	}
	if d.IsFloating() && o.IsFloating() {
		return compareTime(d.wall, o.wall), nil
	}
	a, err := d.Instant(r)
	if err != nil {
		return 0, err
	}
	b, err := o.Instant(r)
	if err != nil {
		return 0, err
	}
	return compareTime(a, b), nil
}

// Equal reports whether both values denote the same instant or day.
func (d CalDateTime) Equal(o CalDateTime, r TimeZoneResolver) bool {
	c, err := d.Compare(o, r)
	return err == nil && c == 0
}

func (d CalDateTime) String() string {
	return FormatDateTime(d)
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TimeZoneResolver converts wall clock times of a named zone to and from UTC.
// It stands in for a time zone database; an empty tzid names floating time.
// Implementations must be safe for concurrent use.
type TimeZoneResolver interface {
	ToUTC(tzid string, wall time.Time) (time.Time, error)
	FromUTC(tzid string, instant time.Time) (time.Time, error)
}

// SystemResolver resolves zones with the Go time zone database. Floating
// times are interpreted in Floating, time.Local when nil.
type SystemResolver struct {
	Floating *time.Location

	locations sync.Map
}

var DefaultResolver TimeZoneResolver = NewSystemResolver(nil)

func NewSystemResolver(floating *time.Location) *SystemResolver {
	return &SystemResolver{Floating: floating}
}

func (r *SystemResolver) location(tzid string) (*time.Location, error) {
	if tzid == "" {
		if r.Floating != nil {
			return r.Floating, nil
		}
		return time.Local, nil
	}
	if loc, ok := r.locations.Load(tzid); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		return nil, fmt.Errorf("resolving time zone %q: %w", tzid, err)
	}
	r.locations.Store(tzid, loc)
	return loc, nil
}

func (r *SystemResolver) ToUTC(tzid string, wall time.Time) (time.Time, error) {
	loc, err := r.location(tzid)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc).UTC(), nil
}

func (r *SystemResolver) FromUTC(tzid string, instant time.Time) (time.Time, error) {
	loc, err := r.location(tzid)
	if err != nil {
		return time.Time{}, err
	}
	t := instant.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
}
