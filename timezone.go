package ics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// wallResolver treats floating wall clocks as UTC, so that observance onsets
// can be evaluated on their written wall clock.
var wallResolver = NewSystemResolver(time.UTC)

// onsetLookback is how far back the last onset of a yearly observance is
// searched for before falling back to a scan from its DTSTART.
const onsetLookback = 400 * 24 * time.Hour

type observance struct {
	name       string
	standard   bool
	offsetFrom time.Duration
	offsetTo   time.Duration
	start      time.Time
	rc         *RecurringComponent
}

// lastOnset returns the wall clock of the last onset at or before wall.
func (o *observance) lastOnset(wall time.Time) (time.Time, bool, error) {
	if wall.Before(o.start) {
		return time.Time{}, false, nil
	}
	end := wall.Add(time.Second)
	from := wall.Add(-onsetLookback)
	if from.Before(o.start) {
		from = o.start
	}
	periods, err := o.rc.Evaluate(from, end)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(periods) == 0 && from.After(o.start) {
		if periods, err = o.rc.Evaluate(o.start, end); err != nil {
			return time.Time{}, false, err
		}
	}
	if len(periods) == 0 {
		return time.Time{}, false, nil
	}
	return periods[len(periods)-1].Start().Wall(), true, nil
}

type vtimezoneZone struct {
	mu          sync.Mutex
	observances []*observance
	err         error
}

func newVTimezoneZone(tz *VTimezone) *vtimezoneZone {
	z := &vtimezoneZone{}
	for _, c := range tz.Components {
		var cb *ComponentBase
		var rc *RecurringComponent
		var err error
		standard := false
		switch c := c.(type) {
		case *Standard:
			cb, standard = &c.ComponentBase, true
			rc, err = c.Recurrence(wallResolver)
		case *Daylight:
			cb = &c.ComponentBase
			rc, err = c.Recurrence(wallResolver)
		default:
			continue
		}
		if err != nil {
			z.err = fmt.Errorf("time zone %s: %w", tz.TzId(), err)
			return z
		}
		o := &observance{standard: standard, rc: rc, start: rc.Start().Wall()}
		if p := cb.GetProperty(ComponentPropertyTzname); p != nil {
			o.name = FromText(p.Value)
		}
		for _, f := range []struct {
			prop ComponentProperty
			dst  *time.Duration
		}{
			{ComponentPropertyTzoffsetfrom, &o.offsetFrom},
			{ComponentPropertyTzoffsetto, &o.offsetTo},
		} {
			p := cb.GetProperty(f.prop)
			if p == nil {
				z.err = fmt.Errorf("time zone %s: %w: %s", tz.TzId(), ErrorPropertyNotFound, f.prop)
				return z
			}
			off, err := ParseUTCOffset(p.Value)
			if err != nil {
				z.err = fmt.Errorf("time zone %s: %w", tz.TzId(), valueError(p.IANAToken, p.Value, err))
				return z
			}
			*f.dst = time.Duration(off)
		}
		z.observances = append(z.observances, o)
	}
	if len(z.observances) == 0 {
		z.err = fmt.Errorf("time zone %s has no STANDARD or DAYLIGHT observance", tz.TzId())
	}
	return z
}

// current returns the observance in effect at t. t is a local wall clock, or
// a UTC instant when utc is set.
func (z *vtimezoneZone) current(t time.Time, utc bool) (*observance, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.err != nil {
		return nil, z.err
	}
	var best *observance
	var bestOnset time.Time
	for _, o := range z.observances {
		probe := t
		if utc {
			probe = t.Add(o.offsetFrom)
		}
		onset, ok, err := o.lastOnset(probe)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if utc {
			onset = onset.Add(-o.offsetFrom)
		}
		if best == nil || onset.After(bestOnset) {
			best, bestOnset = o, onset
		}
	}
	if best != nil {
		return best, nil
	}
	// Before the first onset the zone used the offset the first one left.
	first := z.observances[0]
	for _, o := range z.observances[1:] {
		if o.start.Before(first.start) {
			first = o
		}
	}
	before := &observance{offsetTo: first.offsetFrom, standard: !first.standard}
	for _, o := range z.observances {
		if o.offsetTo == first.offsetFrom {
			before.name, before.standard = o.name, o.standard
			break
		}
	}
	return before, nil
}

// VTimezoneResolver resolves TZIDs defined by VTIMEZONE components and hands
// every other TZID to a fallback resolver.
type VTimezoneResolver struct {
	fallback TimeZoneResolver
	zones    map[string]*vtimezoneZone
}

func NewVTimezoneResolver(fallback TimeZoneResolver, timezones ...*VTimezone) *VTimezoneResolver {
	if fallback == nil {
		fallback = DefaultResolver
	}
	r := &VTimezoneResolver{fallback: fallback, zones: map[string]*vtimezoneZone{}}
	for _, tz := range timezones {
		if id := tz.TzId(); id != "" {
			r.zones[strings.ToLower(id)] = newVTimezoneZone(tz)
		}
	}
	return r
}

func (r *VTimezoneResolver) zone(tzid string) *vtimezoneZone {
	if tzid == "" {
		return nil
	}
	return r.zones[strings.ToLower(tzid)]
}

func (r *VTimezoneResolver) ToUTC(tzid string, wall time.Time) (time.Time, error) {
	z := r.zone(tzid)
	if z == nil {
		return r.fallback.ToUTC(tzid, wall)
	}
	o, err := z.current(wall, false)
	if err != nil {
		return time.Time{}, err
	}
	return wall.Add(-o.offsetTo).UTC(), nil
}

func (r *VTimezoneResolver) FromUTC(tzid string, instant time.Time) (time.Time, error) {
	z := r.zone(tzid)
	if z == nil {
		return r.fallback.FromUTC(tzid, instant)
	}
	o, err := z.current(instant.UTC(), true)
	if err != nil {
		return time.Time{}, err
	}
	return instant.UTC().Add(o.offsetTo), nil
}

// Abbreviation returns the TZNAME in effect at the wall clock time of tzid.
func (r *VTimezoneResolver) Abbreviation(tzid string, wall time.Time) (string, error) {
	z := r.zone(tzid)
	if z == nil {
		return "", fmt.Errorf("time zone %q is not defined by a VTIMEZONE", tzid)
	}
	o, err := z.current(wall, false)
	if err != nil {
		return "", err
	}
	return o.name, nil
}
