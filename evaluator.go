package ics

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/mo"
)

var errMissingDtStart = errors.New("recurrence needs a DTSTART")

// evaluationMargin widens windows converted to wall clock time so that zone
// offsets never hide a candidate.
const evaluationMargin = 36 * time.Hour

// RuleEvaluator expands one RecurrencePattern anchored at DTSTART.
//
// Rules with COUNT are generated from DTSTART onwards and the generated
// occurrences are kept, so later windows resume where the previous call
// stopped. Other rules jump straight to the requested window.
//
// A RuleEvaluator is not safe for concurrent use.
type RuleEvaluator struct {
	pattern  *RecurrencePattern
	dtstart  CalDateTime
	resolver TimeZoneResolver

	freq     Frequency
	interval int
	count    mo.Option[int]
	until    mo.Option[CalDateTime]

	byMonth    []int
	byWeekNo   []int
	byYearDay  []int
	byMonthDay []int
	byDay      []WeekDay
	byHour     []int
	byMinute   []int
	bySecond   []int
	bySetPos   []int
	weekStart  time.Weekday

	// ordinals says whether BYDAY offsets count; monthScope whether they
	// count within the month rather than the year.
	ordinals   bool
	monthScope bool

	generated []CalDateTime
	next      time.Time
	started   bool
	done      bool
}

// NewRuleEvaluator prepares pattern for evaluation. BYxxx values outside
// their valid range are dropped; see RecurrencePattern.Validate.
func NewRuleEvaluator(pattern *RecurrencePattern, dtstart CalDateTime, resolver TimeZoneResolver) (*RuleEvaluator, error) {
	if pattern == nil {
		return nil, ErrMissingFrequency
	}
	if dtstart.IsZero() {
		return nil, errMissingDtStart
	}
	if pattern.Frequency == FrequencyNone {
		return nil, ErrMissingFrequency
	}
	freq, err := pattern.effectiveFrequency()
	if err != nil {
		return nil, err
	}
	if !dtstart.HasTime() && freq < FrequencyDaily {
		freq = FrequencyDaily
	}
	if resolver == nil {
		resolver = DefaultResolver
	}
	e := &RuleEvaluator{
		pattern:    pattern,
		dtstart:    dtstart,
		resolver:   resolver,
		freq:       freq,
		interval:   pattern.interval(),
		count:      pattern.Count,
		byMonth:    validValues(pattern.ByMonth, 1, 12, false),
		byWeekNo:   validValues(pattern.ByWeekNo, 1, 53, true),
		byYearDay:  validValues(pattern.ByYearDay, 1, 366, true),
		byMonthDay: validValues(pattern.ByMonthDay, 1, 31, true),
		byHour:     validValues(pattern.ByHour, 0, 23, false),
		byMinute:   validValues(pattern.ByMinute, 0, 59, false),
		bySecond:   validValues(pattern.BySecond, 0, 59, false),
		bySetPos:   validValues(pattern.BySetPosition, 1, 366, true),
		weekStart:  pattern.WeekStart,
	}
	if until, ok := pattern.Until.Get(); ok {
		e.until = mo.Some(untilIn(until, dtstart))
	}
	for _, wd := range pattern.ByDay {
		if wd.Offset >= -53 && wd.Offset <= 53 {
			e.byDay = append(e.byDay, wd)
		}
	}
	if c, ok := e.count.Get(); ok && c < 1 {
		e.done = true
	}
	e.applyDefaults()
	e.ordinals = (freq == FrequencyMonthly || freq == FrequencyYearly) && len(e.byWeekNo) == 0
	e.monthScope = freq == FrequencyMonthly || len(e.byMonth) > 0
	return e, nil
}

func validValues(values []int, lo, hi int, allowNegative bool) []int {
	var out []int
	for _, v := range values {
		switch {
		case v >= lo && v <= hi:
			out = append(out, v)
		case allowNegative && v <= -lo && v >= -hi:
			out = append(out, v)
		}
	}
	return out
}

// applyDefaults fills the day level rule parts DTSTART implies when the rule
// names none.
func (e *RuleEvaluator) applyDefaults() {
	w := e.dtstart.wall
	switch e.freq {
	case FrequencyYearly:
		if len(e.byWeekNo) == 0 && len(e.byYearDay) == 0 && len(e.byMonthDay) == 0 && len(e.byDay) == 0 {
			if len(e.byMonth) == 0 {
				e.byMonth = []int{int(w.Month())}
			}
			e.byMonthDay = []int{w.Day()}
		}
	case FrequencyMonthly:
		if len(e.byWeekNo) == 0 && len(e.byYearDay) == 0 && len(e.byMonthDay) == 0 && len(e.byDay) == 0 {
			e.byMonthDay = []int{w.Day()}
		}
	case FrequencyWeekly:
		if len(e.byYearDay) == 0 && len(e.byMonthDay) == 0 && len(e.byDay) == 0 {
			e.byDay = []WeekDay{{Weekday: w.Weekday()}}
		}
	}
}

func (e *RuleEvaluator) Pattern() *RecurrencePattern {
	return e.pattern
}

func (e *RuleEvaluator) DtStart() CalDateTime {
	return e.dtstart
}

// Reset drops the occurrences kept for COUNT rules.
func (e *RuleEvaluator) Reset() {
	e.generated = nil
	e.started = false
	e.done = false
	if c, ok := e.count.Get(); ok && c < 1 {
		e.done = true
	}
}

// Evaluate returns the occurrences whose start lies in [from, to), in
// ascending order. Occurrences have the same kind as DTSTART.
func (e *RuleEvaluator) Evaluate(from, to time.Time) ([]CalDateTime, error) {
	if !to.After(from) {
		return nil, nil
	}
	limit, err := e.wallOf(to)
	if err != nil {
		return nil, err
	}
	limit = limit.Add(evaluationMargin)
	if _, ok := e.count.Get(); ok {
		if err := e.generateCounted(limit); err != nil {
			return nil, err
		}
		return e.window(e.generated, from, to)
	}
	start, err := e.wallOf(from)
	if err != nil {
		return nil, err
	}
	anchor := e.fastForward(e.firstAnchor(), start.Add(-evaluationMargin))
	var out []CalDateTime
	for ; !anchor.After(limit) && anchor.Year() <= maxCalDateTime.Year(); anchor = e.step(anchor, 1) {
		for _, w := range e.expand(anchor) {
			occ := e.dtstart.withWall(w)
			if occ.wall.Before(e.dtstart.wall) {
				continue
			}
			stop, err := e.pastUntil(occ)
			if err != nil {
				return nil, err
			}
			if stop {
				return e.window(out, from, to)
			}
			out = append(out, occ)
		}
		if len(out) > 0 {
			last, err := out[len(out)-1].Instant(e.resolver)
			if err != nil {
				return nil, err
			}
			if !last.Before(to) {
				break
			}
		}
	}
	return e.window(out, from, to)
}

func (e *RuleEvaluator) generateCounted(limit time.Time) error {
	count := e.count.OrEmpty()
	if !e.started {
		e.next = e.firstAnchor()
		e.started = true
	}
	for !e.done && !e.next.After(limit) {
		if e.next.Year() > maxCalDateTime.Year() {
			e.done = true
			break
		}
		for _, w := range e.expand(e.next) {
			occ := e.dtstart.withWall(w)
			if occ.wall.Before(e.dtstart.wall) {
				continue
			}
			stop, err := e.pastUntil(occ)
			if err != nil {
				return err
			}
			if stop {
				e.done = true
				break
			}
			e.generated = append(e.generated, occ)
			if len(e.generated) >= count {
				e.done = true
				break
			}
		}
		e.next = e.step(e.next, 1)
	}
	return nil
}

// untilIn binds a floating or date-only UNTIL to the zone of a zoned or UTC
// DTSTART. A date covers the whole day.
func untilIn(until, dtstart CalDateTime) CalDateTime {
	if !dtstart.HasTime() || dtstart.IsFloating() {
		return until
	}
	switch {
	case !until.HasTime():
		return dtstart.withWall(wallClock(until.Year(), until.Month(), until.Day(), 23, 59, 59))
	case until.IsFloating():
		return dtstart.withWall(until.Wall())
	}
	return until
}

func (e *RuleEvaluator) pastUntil(occ CalDateTime) (bool, error) {
	until, ok := e.until.Get()
	if !ok {
		return false, nil
	}
	c, err := occ.Compare(until, e.resolver)
	if err != nil {
		return false, fmt.Errorf("comparing with UNTIL: %w", err)
	}
	return c > 0, nil
}

func (e *RuleEvaluator) window(occs []CalDateTime, from, to time.Time) ([]CalDateTime, error) {
	var out []CalDateTime
	for _, occ := range occs {
		t, err := occ.Instant(e.resolver)
		if err != nil {
			return nil, err
		}
		if !t.Before(from) && t.Before(to) {
			out = append(out, occ)
		}
	}
	return out, nil
}

// wallOf converts an instant to the wall clock of DTSTART's zone.
func (e *RuleEvaluator) wallOf(instant time.Time) (time.Time, error) {
	if e.dtstart.utc {
		return instant.UTC(), nil
	}
	return e.resolver.FromUTC(e.dtstart.tzid, instant)
}

func (e *RuleEvaluator) firstAnchor() time.Time {
	w := e.dtstart.wall
	switch e.freq {
	case FrequencyYearly:
		return wallClock(w.Year(), time.January, 1, 0, 0, 0)
	case FrequencyMonthly:
		return wallClock(w.Year(), w.Month(), 1, 0, 0, 0)
	case FrequencyWeekly:
		d := truncateDay(w)
		return d.AddDate(0, 0, -((int(d.Weekday()) - int(e.weekStart) + 7) % 7))
	case FrequencyDaily:
		return truncateDay(w)
	case FrequencyHourly:
		return w.Truncate(time.Hour)
	case FrequencyMinutely:
		return w.Truncate(time.Minute)
	}
	return w.Truncate(time.Second)
}

func (e *RuleEvaluator) step(anchor time.Time, n int) time.Time {
	n *= e.interval
	switch e.freq {
	case FrequencyYearly:
		return anchor.AddDate(n, 0, 0)
	case FrequencyMonthly:
		return anchor.AddDate(0, n, 0)
	case FrequencyWeekly:
		return anchor.AddDate(0, 0, 7*n)
	case FrequencyDaily:
		return anchor.AddDate(0, 0, n)
	case FrequencyHourly:
		return anchor.Add(time.Duration(n) * time.Hour)
	case FrequencyMinutely:
		return anchor.Add(time.Duration(n) * time.Minute)
	}
	return anchor.Add(time.Duration(n) * time.Second)
}

// fastForward moves anchor by whole intervals to the last period starting at
// or before target.
func (e *RuleEvaluator) fastForward(anchor, target time.Time) time.Time {
	if !target.After(anchor) {
		return anchor
	}
	var units int
	switch e.freq {
	case FrequencyYearly:
		units = target.Year() - anchor.Year()
	case FrequencyMonthly:
		units = (target.Year()-anchor.Year())*12 + int(target.Month()) - int(anchor.Month())
	case FrequencyWeekly:
		units = int(target.Sub(anchor)/(24*time.Hour)) / 7
	case FrequencyDaily:
		units = int(target.Sub(anchor) / (24 * time.Hour))
	case FrequencyHourly:
		units = int(target.Sub(anchor) / time.Hour)
	case FrequencyMinutely:
		units = int(target.Sub(anchor) / time.Minute)
	default:
		units = int(target.Sub(anchor) / time.Second)
	}
	if n := units / e.interval; n > 0 {
		return e.step(anchor, n)
	}
	return anchor
}

// expand returns the sorted candidates of the period starting at anchor.
func (e *RuleEvaluator) expand(anchor time.Time) []time.Time {
	times := e.timesOf(anchor)
	if len(times) == 0 {
		return nil
	}
	var out []time.Time
	for _, day := range e.daysOf(anchor) {
		if !e.matchDay(day) {
			continue
		}
		for _, tod := range times {
			out = append(out, day.Add(tod))
		}
	}
	slices.SortFunc(out, compareTime)
	if len(e.bySetPos) > 0 {
		out = applySetPos(out, e.bySetPos)
	}
	return out
}

func (e *RuleEvaluator) daysOf(anchor time.Time) []time.Time {
	var first time.Time
	var n int
	switch e.freq {
	case FrequencyYearly:
		first, n = anchor, daysInYear(anchor.Year())
	case FrequencyMonthly:
		first, n = anchor, daysIn(anchor.Year(), anchor.Month())
	case FrequencyWeekly:
		first, n = anchor, 7
	default:
		return []time.Time{truncateDay(anchor)}
	}
	days := make([]time.Time, n)
	for i := range days {
		days[i] = first.AddDate(0, 0, i)
	}
	return days
}

// timesOf returns the times of day, as offsets from midnight, produced in the
// period starting at anchor. Sub-daily periods filter their own unit and
// expand the finer ones.
func (e *RuleEvaluator) timesOf(anchor time.Time) []time.Duration {
	if !e.dtstart.HasTime() {
		return []time.Duration{0}
	}
	w := e.dtstart.wall
	hours := orDefault(e.byHour, w.Hour())
	minutes := orDefault(e.byMinute, w.Minute())
	seconds := orDefault(e.bySecond, w.Second())
	switch e.freq {
	case FrequencySecondly:
		if !allows(e.bySecond, anchor.Second()) {
			return nil
		}
		seconds = []int{anchor.Second()}
		fallthrough
	case FrequencyMinutely:
		if !allows(e.byMinute, anchor.Minute()) {
			return nil
		}
		minutes = []int{anchor.Minute()}
		fallthrough
	case FrequencyHourly:
		if !allows(e.byHour, anchor.Hour()) {
			return nil
		}
		hours = []int{anchor.Hour()}
	}
	out := make([]time.Duration, 0, len(hours)*len(minutes)*len(seconds))
	for _, h := range hours {
		for _, m := range minutes {
			for _, s := range seconds {
				out = append(out, time.Duration(h)*time.Hour+time.Duration(m)*time.Minute+time.Duration(s)*time.Second)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func orDefault(values []int, def int) []int {
	if len(values) == 0 {
		return []int{def}
	}
	return values
}

func allows(values []int, v int) bool {
	return len(values) == 0 || slices.Contains(values, v)
}

// matchesSigned reports whether the 1-based position pos, of total, is named
// in values either from the start or from the end.
func matchesSigned(values []int, pos, total int) bool {
	return slices.Contains(values, pos) || slices.Contains(values, pos-total-1)
}

func (e *RuleEvaluator) matchDay(d time.Time) bool {
	if len(e.byMonth) > 0 && !slices.Contains(e.byMonth, int(d.Month())) {
		return false
	}
	if len(e.byWeekNo) > 0 && !e.matchWeekNo(d) {
		return false
	}
	if len(e.byYearDay) > 0 && !matchesSigned(e.byYearDay, d.YearDay(), daysInYear(d.Year())) {
		return false
	}
	if len(e.byMonthDay) > 0 && !matchesSigned(e.byMonthDay, d.Day(), daysIn(d.Year(), d.Month())) {
		return false
	}
	if len(e.byDay) > 0 && !e.matchWeekday(d) {
		return false
	}
	return true
}

func (e *RuleEvaluator) matchWeekday(d time.Time) bool {
	for _, wd := range e.byDay {
		if wd.Weekday != d.Weekday() {
			continue
		}
		if wd.Offset == 0 || !e.ordinals {
			return true
		}
		var pos, last int
		if e.monthScope {
			pos, last = (d.Day()-1)/7+1, (daysIn(d.Year(), d.Month())-d.Day())/7+1
		} else {
			pos, last = (d.YearDay()-1)/7+1, (daysInYear(d.Year())-d.YearDay())/7+1
		}
		if wd.Offset == pos || wd.Offset == -last {
			return true
		}
	}
	return false
}

// weekOneStart returns the first day of week 1 of year: the week, starting on
// wkst, that holds at least four days of the year.
func weekOneStart(year int, wkst time.Weekday) time.Time {
	jan1 := wallClock(year, time.January, 1, 0, 0, 0)
	offset := (int(jan1.Weekday()) - int(wkst) + 7) % 7
	if offset <= 3 {
		return jan1.AddDate(0, 0, -offset)
	}
	return jan1.AddDate(0, 0, 7-offset)
}

// weekNumber returns the week of d and the number of weeks of the year that
// week belongs to.
func weekNumber(d time.Time, wkst time.Weekday) (week, weeks int) {
	year := d.Year()
	start := weekOneStart(year, wkst)
	if d.Before(start) {
		year--
		start = weekOneStart(year, wkst)
	} else if next := weekOneStart(year+1, wkst); !d.Before(next) {
		year++
		start = next
	}
	weeks = int(weekOneStart(year+1, wkst).Sub(start)/(24*time.Hour)) / 7
	week = int(d.Sub(start)/(24*time.Hour))/7 + 1
	return week, weeks
}

func (e *RuleEvaluator) matchWeekNo(d time.Time) bool {
	week, weeks := weekNumber(d, e.weekStart)
	return matchesSigned(e.byWeekNo, week, weeks)
}

func applySetPos(candidates []time.Time, positions []int) []time.Time {
	n := len(candidates)
	var out []time.Time
	for _, p := range positions {
		i := p - 1
		if p < 0 {
			i = n + p
		}
		if i >= 0 && i < n {
			out = append(out, candidates[i])
		}
	}
	slices.SortFunc(out, compareTime)
	return slices.CompactFunc(out, time.Time.Equal)
}
