package ics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Frequency is the FREQ rule part. Larger values are coarser.
type Frequency int

const (
	FrequencyNone Frequency = iota
	FrequencySecondly
	FrequencyMinutely
	FrequencyHourly
	FrequencyDaily
	FrequencyWeekly
	FrequencyMonthly
	FrequencyYearly
)

var frequencyNames = [...]string{"", "SECONDLY", "MINUTELY", "HOURLY", "DAILY", "WEEKLY", "MONTHLY", "YEARLY"}

func (f Frequency) String() string {
	if f < 0 || int(f) >= len(frequencyNames) {
		return "Frequency(" + strconv.Itoa(int(f)) + ")"
	}
	return frequencyNames[f]
}

func ParseFrequency(s string) (Frequency, error) {
	for i, name := range frequencyNames {
		if i > 0 && strings.EqualFold(name, s) {
			return Frequency(i), nil
		}
	}
	return FrequencyNone, fmt.Errorf("unknown frequency %q", s)
}

// RestrictionType limits how fine grained a rule may recur.
type RestrictionType int

const (
	RestrictionDefault RestrictionType = iota
	NoRestriction
	RestrictSecondly
	RestrictMinutely
	RestrictHourly
)

// EvaluationMode says what happens to a rule whose frequency is restricted.
type EvaluationMode int

const (
	// AdjustAutomatically raises the frequency to the finest allowed one.
	AdjustAutomatically EvaluationMode = iota
	// ThrowException fails the evaluation with ErrRestrictedFrequency.
	ThrowException
)

// RecurrencePattern is a RECUR value, RFC 5545 section 3.3.10.
//
// Count and Until may both be set; generation stops at whichever comes first.
// BYxxx lists follow the RFC convention that negative values count from the
// end of the month or year.
type RecurrencePattern struct {
	Frequency     Frequency
	Interval      int
	Count         mo.Option[int]
	Until         mo.Option[CalDateTime]
	WeekStart     time.Weekday
	BySecond      []int
	ByMinute      []int
	ByHour        []int
	ByDay         []WeekDay
	ByMonthDay    []int
	ByYearDay     []int
	ByWeekNo      []int
	ByMonth       []int
	BySetPosition []int

	// Restriction and EvaluationMode are evaluation policy and are never
	// serialized.
	Restriction    RestrictionType
	EvaluationMode EvaluationMode
}

func NewRecurrencePattern(freq Frequency) *RecurrencePattern {
	return &RecurrencePattern{
		Frequency: freq,
		Interval:  1,
		WeekStart: time.Monday,
	}
}

func (rp *RecurrencePattern) interval() int {
	if rp.Interval < 1 {
		return 1
	}
	return rp.Interval
}

func (rp *RecurrencePattern) Clone() *RecurrencePattern {
	c := *rp
	c.BySecond = append([]int(nil), rp.BySecond...)
	c.ByMinute = append([]int(nil), rp.ByMinute...)
	c.ByHour = append([]int(nil), rp.ByHour...)
	c.ByDay = append([]WeekDay(nil), rp.ByDay...)
	c.ByMonthDay = append([]int(nil), rp.ByMonthDay...)
	c.ByYearDay = append([]int(nil), rp.ByYearDay...)
	c.ByWeekNo = append([]int(nil), rp.ByWeekNo...)
	c.ByMonth = append([]int(nil), rp.ByMonth...)
	c.BySetPosition = append([]int(nil), rp.BySetPosition...)
	return &c
}

// effectiveFrequency applies the restriction policy.
func (rp *RecurrencePattern) effectiveFrequency() (Frequency, error) {
	var finest Frequency
	switch rp.Restriction {
	case RestrictSecondly:
		finest = FrequencyMinutely
	case RestrictMinutely:
		finest = FrequencyHourly
	case RestrictHourly:
		finest = FrequencyDaily
	default:
		return rp.Frequency, nil
	}
	if rp.Frequency >= finest {
		return rp.Frequency, nil
	}
	if rp.EvaluationMode == ThrowException {
		return rp.Frequency, fmt.Errorf("%w: %s", ErrRestrictedFrequency, rp.Frequency)
	}
	return finest, nil
}

func checkRange(errs []error, part string, values []int, lo, hi int, allowNegative bool) []error {
	for _, v := range values {
		switch {
		case v == 0 && allowNegative:
			errs = append(errs, fmt.Errorf("%s: 0 is not a valid value", part))
		case allowNegative && (v < -hi || v > hi):
			errs = append(errs, fmt.Errorf("%s: %d out of range", part, v))
		case !allowNegative && (v < lo || v > hi):
			errs = append(errs, fmt.Errorf("%s: %d out of range", part, v))
		}
	}
	return errs
}

// Validate reports rule parts the evaluator would ignore. Evaluation never
// fails because of them.
func (rp *RecurrencePattern) Validate() error {
	var errs []error
	if rp.Frequency == FrequencyNone {
		errs = append(errs, ErrMissingFrequency)
	}
	if rp.Interval < 0 {
		errs = append(errs, fmt.Errorf("INTERVAL: %d is negative", rp.Interval))
	}
	if c, ok := rp.Count.Get(); ok && c < 1 {
		errs = append(errs, fmt.Errorf("COUNT: %d is not positive", c))
	}
	errs = checkRange(errs, "BYSECOND", rp.BySecond, 0, 60, false)
	errs = checkRange(errs, "BYMINUTE", rp.ByMinute, 0, 59, false)
	errs = checkRange(errs, "BYHOUR", rp.ByHour, 0, 23, false)
	errs = checkRange(errs, "BYMONTHDAY", rp.ByMonthDay, 1, 31, true)
	errs = checkRange(errs, "BYYEARDAY", rp.ByYearDay, 1, 366, true)
	errs = checkRange(errs, "BYWEEKNO", rp.ByWeekNo, 1, 53, true)
	errs = checkRange(errs, "BYMONTH", rp.ByMonth, 1, 12, false)
	errs = checkRange(errs, "BYSETPOS", rp.BySetPosition, 1, 366, true)
	for _, wd := range rp.ByDay {
		if wd.Offset < -53 || wd.Offset > 53 {
			errs = append(errs, fmt.Errorf("BYDAY: ordinal %d out of range", wd.Offset))
		}
	}
	return errors.Join(errs...)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// String serializes the rule with parts in a fixed order.
func (rp *RecurrencePattern) String() string {
	var parts []string
	add := func(k, v string) {
		parts = append(parts, k+"="+v)
	}
	addInts := func(k string, values []int) {
		if len(values) > 0 {
			add(k, joinInts(values))
		}
	}
	add("FREQ", rp.Frequency.String())
	if rp.Interval > 1 {
		add("INTERVAL", strconv.Itoa(rp.Interval))
	}
	if until, ok := rp.Until.Get(); ok {
		if until.HasTime() && until.TZID() != "" {
			if at, err := until.Instant(DefaultResolver); err == nil {
				until = CalDateTimeFromTime(at)
			}
		}
		add("UNTIL", FormatDateTime(until))
	}
	if rp.WeekStart != time.Monday {
		add("WKST", weekdayCodes[rp.WeekStart])
	}
	if c, ok := rp.Count.Get(); ok {
		add("COUNT", strconv.Itoa(c))
	}
	if len(rp.ByDay) > 0 {
		days := make([]string, len(rp.ByDay))
		for i, wd := range rp.ByDay {
			days[i] = wd.String()
		}
		add("BYDAY", strings.Join(days, ","))
	}
	addInts("BYHOUR", rp.ByHour)
	addInts("BYMINUTE", rp.ByMinute)
	addInts("BYMONTH", rp.ByMonth)
	addInts("BYMONTHDAY", rp.ByMonthDay)
	addInts("BYSECOND", rp.BySecond)
	addInts("BYSETPOS", rp.BySetPosition)
	addInts("BYWEEKNO", rp.ByWeekNo)
	addInts("BYYEARDAY", rp.ByYearDay)
	return strings.Join(parts, ";")
}

func parseIntList(s string) ([]int, error) {
	var values []int
	for _, p := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(p), "+"))
		if err != nil {
			return nil, err
		}
		values = append(values, n)
	}
	return values, nil
}

// ParseRecurrencePattern decodes a RECUR value. FREQ is mandatory; unknown
// rule parts other than X- extensions are an error.
func ParseRecurrencePattern(s string) (*RecurrencePattern, error) {
	rp := NewRecurrencePattern(FrequencyNone)
	for _, part := range strings.Split(strings.TrimSpace(s), ";") {
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok || v == "" {
			return nil, fmt.Errorf("rule part %q has no value", part)
		}
		k = strings.ToUpper(strings.TrimSpace(k))
		var err error
		switch k {
		case "FREQ":
			rp.Frequency, err = ParseFrequency(v)
		case "INTERVAL":
			rp.Interval, err = strconv.Atoi(v)
			if err == nil && rp.Interval < 1 {
				err = fmt.Errorf("must be positive")
			}
		case "COUNT":
			var c int
			c, err = strconv.Atoi(v)
			rp.Count = mo.Some(c)
		case "UNTIL":
			var until CalDateTime
			until, err = ParseDateTime(v, nil)
			rp.Until = mo.Some(until)
		case "WKST":
			rp.WeekStart, err = parseWeekdayCode(v)
		case "BYDAY":
			for _, d := range strings.Split(v, ",") {
				var wd WeekDay
				wd, err = ParseWeekDay(d)
				if err != nil {
					break
				}
				rp.ByDay = append(rp.ByDay, wd)
			}
		case "BYSECOND":
			rp.BySecond, err = parseIntList(v)
		case "BYMINUTE":
			rp.ByMinute, err = parseIntList(v)
		case "BYHOUR":
			rp.ByHour, err = parseIntList(v)
		case "BYMONTHDAY":
			rp.ByMonthDay, err = parseIntList(v)
		case "BYYEARDAY":
			rp.ByYearDay, err = parseIntList(v)
		case "BYWEEKNO":
			rp.ByWeekNo, err = parseIntList(v)
		case "BYMONTH":
			rp.ByMonth, err = parseIntList(v)
		case "BYSETPOS":
			rp.BySetPosition, err = parseIntList(v)
		default:
			if !strings.HasPrefix(k, "X-") {
				err = errors.New("unknown rule part")
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%s=%s: %w", k, v, err)
		}
	}
	if rp.Frequency == FrequencyNone {
		return nil, ErrMissingFrequency
	}
	return rp, nil
}
