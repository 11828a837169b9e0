package ics

import (
	"fmt"
	"strings"
	"time"
)

// Period is a start with an optional end or duration. Only one of end and
// duration is authoritative; the other is derived from it.
//
// MatchesDateOnly makes equality and containment compare calendar dates only,
// so a date-only EXDATE removes every occurrence on that day.
type Period struct {
	start       CalDateTime
	end         CalDateTime
	duration    time.Duration
	hasEnd      bool
	hasDuration bool

	MatchesDateOnly bool
}

// NewStartPeriod returns a period made of a start only, as found in RDATE and
// EXDATE lists. Dates match on the whole day.
func NewStartPeriod(start CalDateTime) Period {
	return Period{start: start, MatchesDateOnly: !start.HasTime()}
}

func NewPeriod(start, end CalDateTime) (Period, error) {
	p := Period{start: start}
	if err := p.SetEnd(end); err != nil {
		return Period{}, err
	}
	return p, nil
}

func NewPeriodWithDuration(start CalDateTime, d time.Duration) (Period, error) {
	p := Period{start: start}
	if err := p.SetDuration(d); err != nil {
		return Period{}, err
	}
	return p, nil
}

func endBeforeStart(start, end CalDateTime) bool {
	if start.zoneKey() == end.zoneKey() || !start.HasTime() || !end.HasTime() {
		return end.wall.Before(start.wall)
	}
	c, err := end.Compare(start, nil)
	return err == nil && c < 0
}

func (p Period) Start() CalDateTime {
	return p.start
}

// End returns the given end, or the start moved by the duration.
func (p Period) End() CalDateTime {
	switch {
	case p.hasEnd:
		return p.end
	case p.hasDuration:
		return p.start.Add(p.duration)
	}
	return p.start
}

// Duration returns the given duration, or the wall clock distance to the
// end.
func (p Period) Duration() time.Duration {
	switch {
	case p.hasDuration:
		return p.duration
	case p.hasEnd:
		if p.start.zoneKey() == p.end.zoneKey() {
			return p.end.Sub(p.start)
		}
		s, err1 := p.start.Instant(nil)
		e, err2 := p.end.Instant(nil)
		if err1 == nil && err2 == nil {
			return e.Sub(s)
		}
	}
	return 0
}

func (p Period) HasEnd() bool {
	return p.hasEnd
}

func (p Period) HasDuration() bool {
	return p.hasDuration
}

// SetStart moves the start, keeping whichever of end or duration was given.
func (p *Period) SetStart(start CalDateTime) error {
	if p.hasEnd && endBeforeStart(start, p.end) {
		return ErrPeriodEndBeforeStart
	}
	p.start = start
	return nil
}

func (p *Period) SetEnd(end CalDateTime) error {
	if endBeforeStart(p.start, end) {
		return fmt.Errorf("%w: %s < %s", ErrPeriodEndBeforeStart, FormatDateTime(end), FormatDateTime(p.start))
	}
	p.end, p.hasEnd = end, true
	p.duration, p.hasDuration = 0, false
	return nil
}

func (p *Period) SetDuration(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeDuration, FormatDuration(d))
	}
	p.duration, p.hasDuration = d, true
	p.end, p.hasEnd = CalDateTime{}, false
	return nil
}

// Compare orders periods by start, then by end.
func (p Period) Compare(o Period, r TimeZoneResolver) (int, error) {
	c, err := p.start.Compare(o.start, r)
	if err != nil || c != 0 {
		return c, err
	}
	return p.End().Compare(o.End(), r)
}

// Equal compares starts, and ends when both periods carry one. Under
// MatchesDateOnly only the calendar dates of the starts are compared.
func (p Period) Equal(o Period, r TimeZoneResolver) bool {
	if p.MatchesDateOnly || o.MatchesDateOnly {
		return sameDay(p.start, o.start, r)
	}
	if !p.start.Equal(o.start, r) {
		return false
	}
	if (p.hasEnd || p.hasDuration) && (o.hasEnd || o.hasDuration) {
		return p.End().Equal(o.End(), r)
	}
	return true
}

// sameDay compares calendar dates. Two date-times are compared in the zone of
// b; a date against a date-time uses the date-time's own wall clock.
func sameDay(a, b CalDateTime, r TimeZoneResolver) bool {
	if a.HasTime() && b.HasTime() {
		var err error
		if a, err = a.In(b, r); err != nil {
			return false
		}
	}
	return truncateDay(a.wall).Equal(truncateDay(b.wall))
}

// Contains reports whether t falls in [start, end). With MatchesDateOnly any
// time on the start's date is contained.
func (p Period) Contains(t CalDateTime, r TimeZoneResolver) bool {
	if p.MatchesDateOnly {
		return sameDay(t, p.start, r)
	}
	c, err := t.Compare(p.start, r)
	if err != nil || c < 0 {
		return false
	}
	if !p.hasEnd && !p.hasDuration {
		return c == 0
	}
	c, err = t.Compare(p.End(), r)
	return err == nil && c < 0
}

// Collides reports whether the two periods overlap.
func (p Period) Collides(o Period, r TimeZoneResolver) bool {
	if p.Contains(o.start, r) || o.Contains(p.start, r) {
		return true
	}
	return false
}

// FormatPeriod renders start[/end-or-duration].
func FormatPeriod(p Period) string {
	switch {
	case p.hasEnd:
		return FormatDateTime(p.start) + "/" + FormatDateTime(p.end)
	case p.hasDuration:
		return FormatDateTime(p.start) + "/" + FormatDuration(p.duration)
	}
	return FormatDateTime(p.start)
}

func (p Period) String() string {
	return FormatPeriod(p)
}

func ParsePeriod(text string, params map[string][]string) (Period, error) {
	startText, rest, hasRest := strings.Cut(strings.TrimSpace(text), "/")
	start, err := ParseDateTime(startText, params)
	if err != nil {
		return Period{}, fmt.Errorf("period start: %w", err)
	}
	if !hasRest {
		return NewStartPeriod(start), nil
	}
	if strings.HasPrefix(strings.TrimLeft(rest, "+-"), "P") {
		d, err := ParseDuration(rest)
		if err != nil {
			return Period{}, fmt.Errorf("period duration: %w", err)
		}
		return NewPeriodWithDuration(start, d)
	}
	end, err := ParseDateTime(rest, params)
	if err != nil {
		return Period{}, fmt.Errorf("period end: %w", err)
	}
	return NewPeriod(start, end)
}

// PeriodList is the value of one RDATE, EXDATE or FREEBUSY property.
type PeriodList []Period

func (pl PeriodList) String() string {
	parts := make([]string, len(pl))
	for i, p := range pl {
		parts[i] = FormatPeriod(p)
	}
	return strings.Join(parts, ",")
}

func ParsePeriodList(text string, params map[string][]string) (PeriodList, error) {
	var pl PeriodList
	for _, part := range strings.Split(text, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParsePeriod(part, params)
		if err != nil {
			return nil, err
		}
		pl = append(pl, p)
	}
	return pl, nil
}
